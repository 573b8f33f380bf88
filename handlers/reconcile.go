// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/middleware"
	"github.com/chugchanga/chugchanga/models"
	"github.com/chugchanga/chugchanga/musicbrainz"
)

// searchLimit caps the release groups asked of MusicBrainz per search
const searchLimit = 25

type ReconcileHandler struct {
	db      *sql.DB
	cfg     cliparse.Config
	catalog Catalog
}

func NewReconcileHandler(db *sql.DB, cfg cliparse.Config, catalog Catalog) *ReconcileHandler {
	return &ReconcileHandler{db: db, cfg: cfg, catalog: catalog}
}

// foldName reduces an artist name for matching: case, accents, width and
// runs of spaces are ignored.
func foldName(name string) string {
	// Transformers keep state, so each call builds its own chain
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return cases.Fold().String(strings.Join(strings.Fields(folded), " "))
}

// matchLocalArtist finds a stored artist whose name folds to the same
// text. Artists known to MusicBrainz win over local-only ones.
func matchLocalArtist(ctx context.Context, q queryer, name string) (*models.Artist, error) {
	want := foldName(name)
	if want == "" {
		return nil, nil
	}

	rows, err := q.QueryContext(ctx, `SELECT `+artistColumns+` FROM artist ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var match *models.Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		if foldName(a.Name) != want {
			continue
		}
		if match == nil || (match.MBID == nil && a.MBID != nil) {
			match = &a
		}
	}
	return match, rows.Err()
}

// Unmatched handles GET /admin/years/{year}/unmatched
// Votes with text but no release, grouped by identical artist and title.
func (h *ReconcileHandler) Unmatched(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	year, err := pathYear(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if _, err := loadYear(ctx, h.db, year); errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Year not found")
		return
	} else if err != nil {
		slog.Error("failed to load year", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT v.id, v.artist, v.title
		FROM vote v
		JOIN ballot b ON b.id = v.ballot_id
		WHERE b.year = $1 AND v.release_id IS NULL AND (v.artist <> '' OR v.title <> '')
		ORDER BY v.artist, v.title, v.id
	`, year)
	if err != nil {
		slog.Error("failed to query unmatched votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	groups := []models.UnmatchedGroup{}
	for rows.Next() {
		var id, artist, title string
		if err := rows.Scan(&id, &artist, &title); err != nil {
			slog.Error("failed to scan vote", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if n := len(groups); n > 0 && groups[n-1].Artist == artist && groups[n-1].Title == title {
			groups[n-1].VoteIDs = append(groups[n-1].VoteIDs, id)
			continue
		}
		groups = append(groups, models.UnmatchedGroup{Artist: artist, Title: title, VoteIDs: []string{id}})
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.UnmatchedResponse{Year: year, Groups: groups})
}

// Candidates handles GET /admin/votes/{id}/candidates
// Searches MusicBrainz for the vote's release. When a stored artist matches
// the vote's artist text, the search uses its MusicBrainz id instead of the
// name, and the artist's stored releases are returned as well.
func (h *ReconcileHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	ctx := r.Context()
	vote, err := loadVote(ctx, h.db, r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Vote not found")
		return
	}
	if err != nil {
		slog.Error("failed to load vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if vote.Artist == "" && vote.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Vote has no artist or title")
		return
	}

	resp := models.CandidatesResponse{
		Vote:          vote,
		LocalReleases: []models.Release{},
		Candidates:    []models.Candidate{},
	}

	artist, err := matchLocalArtist(ctx, h.db, vote.Artist)
	if err != nil {
		slog.Error("failed to match artist", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	params := musicbrainz.SearchParams{Title: vote.Title, Limit: searchLimit}
	if artist != nil {
		resp.Artist = artist
		resp.LocalReleases, err = artistReleases(ctx, h.db, artist.ID)
		if err != nil {
			slog.Error("failed to load releases", "error", err, "artist_id", artist.ID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if artist.MBID != nil {
			params.ArtistID = *artist.MBID
		}
	}
	if params.ArtistID == "" {
		params.Artist = vote.Artist
	}

	groups, err := h.catalog.SearchReleaseGroups(ctx, params)
	if err != nil {
		writeCatalogError(w, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err), "Release")
		return
	}

	seen := make(map[string]bool, len(groups))
	for _, rg := range groups {
		if seen[rg.ID] {
			continue
		}
		seen[rg.ID] = true

		c := models.Candidate{
			MBID:       rg.ID,
			Title:      rg.Title,
			Type:       rg.Type,
			Score:      rg.Score,
			ArtistMBID: rg.Artist.ID,
			ArtistName: rg.Artist.Name,
			SortName:   rg.Artist.SortName,
		}
		local, err := loadRelease(ctx, h.db, "mbid", rg.ID)
		switch {
		case err == nil:
			c.LocalID = &local.ID
		case !errors.Is(err, ErrNotFound):
			slog.Error("failed to look up release", "error", err, "mbid", rg.ID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		resp.Candidates = append(resp.Candidates, c)
	}
	sort.SliceStable(resp.Candidates, func(i, j int) bool {
		return resp.Candidates[i].Score > resp.Candidates[j].Score
	})

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// resolveRelease finds or creates the release a match request names
func (h *ReconcileHandler) resolveRelease(ctx context.Context, vote models.Vote, req models.MatchVoteRequest) (models.Release, int, error) {
	switch {
	case req.ReleaseID != "":
		rel, err := loadRelease(ctx, h.db, "id", req.ReleaseID)
		if errors.Is(err, ErrNotFound) {
			return rel, http.StatusNotFound, err
		}
		return rel, 0, err

	case req.ReleaseMBID != "":
		rel, err := ReleaseByMBID(ctx, h.db, h.catalog, req.ReleaseMBID)
		return rel, 0, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = vote.Title
	}
	if title == "" {
		return models.Release{}, http.StatusBadRequest, errors.New("title is required")
	}

	var artist models.Artist
	var err error
	switch {
	case req.ArtistID != "":
		artist, err = loadArtist(ctx, h.db, "id", req.ArtistID)
		if errors.Is(err, ErrNotFound) {
			return models.Release{}, http.StatusNotFound, err
		}
	case req.ArtistMBID != "":
		artist, err = ArtistByMBID(ctx, h.db, h.catalog, req.ArtistMBID)
	case strings.TrimSpace(req.ArtistName) != "":
		artist, err = insertArtist(ctx, h.db, strings.TrimSpace(req.ArtistName), req.SortName, nil, nullable(strings.TrimSpace(req.ArtistURL)))
		if err == nil {
			slog.Info("artist added", "artist_id", artist.ID, "name", artist.Name)
		}
	default:
		return models.Release{}, http.StatusBadRequest, errors.New("release_id, release_mbid or an artist is required")
	}
	if err != nil {
		return models.Release{}, 0, err
	}

	rel, err := insertRelease(ctx, h.db, artist.ID, title, nil, nullable(strings.TrimSpace(req.URL)))
	if err == nil {
		slog.Info("release added", "release_id", rel.ID, "artist_id", artist.ID, "title", title)
	}
	return rel, 0, err
}

// Match handles POST /admin/votes/{id}/match
// Links the vote to a release. With apply_to_all, every unmatched vote of
// the same year with identical artist and title text is linked too.
func (h *ReconcileHandler) Match(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	ctx := r.Context()
	vote, err := loadVote(ctx, h.db, r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Vote not found")
		return
	}
	if err != nil {
		slog.Error("failed to load vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var req models.MatchVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	release, status, err := h.resolveRelease(ctx, vote, req)
	if status != 0 {
		middleware.ErrorResponse(w, status, err.Error())
		return
	}
	if err != nil {
		writeCatalogError(w, err, "Release")
		return
	}

	matched := 0
	err = withTx(ctx, h.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE vote SET release_id = $1 WHERE id = $2`, release.ID, vote.ID)
		if err != nil {
			return fmt.Errorf("failed to link vote: %w", err)
		}
		n, _ := res.RowsAffected()
		matched += int(n)

		if !req.ApplyToAll {
			return nil
		}
		res, err = tx.ExecContext(ctx, `
			UPDATE vote
			SET release_id = $1
			WHERE release_id IS NULL AND artist = $2 AND title = $3
			  AND ballot_id IN (
				SELECT id FROM ballot WHERE year = (SELECT year FROM ballot WHERE id = $4)
			  )
		`, release.ID, vote.Artist, vote.Title, vote.BallotID)
		if err != nil {
			return fmt.Errorf("failed to link matching votes: %w", err)
		}
		n, _ = res.RowsAffected()
		matched += int(n)
		return nil
	})
	if err != nil {
		slog.Error("failed to match vote", "error", err, "vote_id", vote.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to match vote")
		return
	}

	slog.Info("vote matched", "vote_id", vote.ID, "release_id", release.ID, "matched", matched)

	middleware.JSONResponse(w, http.StatusOK, models.MatchVoteResponse{
		Release: release,
		Matched: matched,
	})
}

// Unmatch handles POST /admin/votes/{id}/unmatch
func (h *ReconcileHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	ctx := r.Context()
	res, err := h.db.ExecContext(ctx, `UPDATE vote SET release_id = NULL WHERE id = $1`, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to unmatch vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Vote not found")
		return
	}

	vote, err := loadVote(ctx, h.db, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to load vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("vote unmatched", "vote_id", vote.ID)
	middleware.JSONResponse(w, http.StatusOK, vote)
}
