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
	"strings"

	"github.com/chugchanga/chugchanga/auth"
	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/middleware"
	"github.com/chugchanga/chugchanga/models"
)

type BallotHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewBallotHandler(db *sql.DB, cfg cliparse.Config) *BallotHandler {
	return &BallotHandler{db: db, cfg: cfg}
}

// ensureBallot returns the session's ballot, creating an empty one on first use
func ensureBallot(ctx context.Context, q queryer, s *session) (models.Ballot, error) {
	if s.ballot != nil {
		return *s.ballot, nil
	}
	ballot, err := getOrCreateBallot(ctx, q, s.voter.ID, s.year)
	if err != nil {
		return ballot, err
	}
	s.ballot = &ballot
	return ballot, nil
}

// getOrCreateBallot inserts an empty ballot unless the voter already has one
// for the year, then reads the stored row.
func getOrCreateBallot(ctx context.Context, q queryer, voterID string, year int) (models.Ballot, error) {
	ballotID, err := auth.GenerateID(8)
	if err != nil {
		return models.Ballot{}, err
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO ballot (id, voter_id, year, anonymous, preamble, postamble, honorable, notable, updated_at)
		VALUES ($1, $2, $3, $4, '', '', 0, 0, $5)
		ON CONFLICT (voter_id, year) DO NOTHING
	`, ballotID, voterID, year, false, now())
	if err != nil {
		return models.Ballot{}, fmt.Errorf("failed to create ballot: %w", err)
	}

	ballot, err := loadBallot(ctx, q, voterID, year)
	if err != nil {
		return ballot, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		slog.Info("ballot created", "ballot_id", ballot.ID, "voter_id", voterID, "year", year)
	}
	return ballot, nil
}

// ballotLimitError rejects a save whose lists or counts do not fit the ballot
type ballotLimitError struct {
	msg string
}

func (e *ballotLimitError) Error() string {
	return e.msg
}

// checkLimits reports the first category holding more entries than its maximum rank
func checkLimits(ballot models.Ballot, votes map[string][]models.VoteEntry) error {
	for _, cat := range models.Categories {
		if limit := ballot.MaxRank(cat); len(votes[cat]) > limit {
			return &ballotLimitError{msg: fmt.Sprintf("too many %s votes: at most %d", cat, limit)}
		}
	}
	return nil
}

// voteSlots groups votes by category. With pad set, every category is
// filled out to the ballot's maximum rank with empty slots.
func voteSlots(b models.Ballot, votes []models.Vote, pad bool) map[string][]models.VoteSlot {
	slots := make(map[string][]models.VoteSlot, len(models.Categories))
	for _, cat := range models.Categories {
		list := []models.VoteSlot{}
		if pad {
			for rank := 1; rank <= min(b.MaxRank(cat), models.MaxRankLimit); rank++ {
				list = append(list, models.VoteSlot{Rank: rank})
			}
		}
		slots[cat] = list
	}

	for _, v := range votes {
		slot := models.VoteSlot{
			ID:        v.ID,
			Rank:      v.Rank,
			Artist:    v.Artist,
			Title:     v.Title,
			Comments:  v.Comments,
			ReleaseID: v.ReleaseID,
		}
		list := slots[v.Category]
		if pad {
			for len(list) < v.Rank {
				list = append(list, models.VoteSlot{Rank: len(list) + 1})
			}
			list[v.Rank-1] = slot
		} else {
			list = append(list, slot)
		}
		slots[v.Category] = list
	}
	return slots
}

func (h *BallotHandler) ballotResponse(ctx context.Context, s *session, ballot models.Ballot) (models.BallotResponse, error) {
	votes, err := loadVotes(ctx, h.db, ballot.ID)
	if err != nil {
		return models.BallotResponse{}, err
	}
	return models.BallotResponse{
		Year:       s.year,
		OtherYears: s.otherYears(),
		Ballot:     ballot,
		Votes:      voteSlots(ballot, votes, true),
	}, nil
}

// GetBallot handles GET /ballot
// The ballot for the selected year is created on the first visit.
func (h *BallotHandler) GetBallot(w http.ResponseWriter, r *http.Request) {
	s, ok := validateVoter(w, r, h.db, h.cfg)
	if !ok {
		return
	}

	ballot, err := ensureBallot(r.Context(), h.db, s)
	if err != nil {
		slog.Error("failed to create ballot", "error", err, "voter_id", s.voter.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create ballot")
		return
	}

	resp, err := h.ballotResponse(r.Context(), s, ballot)
	if err != nil {
		slog.Error("failed to load votes", "error", err, "ballot_id", ballot.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

func trimEntry(e models.VoteEntry) models.VoteEntry {
	return models.VoteEntry{
		Artist:   strings.TrimSpace(e.Artist),
		Title:    strings.TrimSpace(e.Title),
		Comments: strings.TrimSpace(e.Comments),
	}
}

// SaveBallot handles PUT /ballot
// The submitted form replaces every vote on the ballot. A vote keeps its
// release link when its slot still holds the same artist and title.
func (h *BallotHandler) SaveBallot(w http.ResponseWriter, r *http.Request) {
	s, ok := validateVoter(w, r, h.db, h.cfg)
	if !ok {
		return
	}

	var req models.SaveBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	for cat := range req.Votes {
		if !models.IsCategory(cat) {
			middleware.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", cat))
			return
		}
	}
	for _, n := range []*int{req.Honorable, req.Notable} {
		if n != nil && (*n < 0 || *n > models.MaxRankLimit) {
			middleware.ErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("vote counts must be between 0 and %d", models.MaxRankLimit))
			return
		}
	}

	ctx := r.Context()
	var ballot models.Ballot
	saved := 0
	err := withTx(ctx, h.db, func(tx *sql.Tx) error {
		var err error
		ballot, err = getOrCreateBallot(ctx, tx, s.voter.ID, s.year)
		if err != nil {
			return err
		}

		ballot.Anonymous = req.Anonymous
		ballot.Preamble = req.Preamble
		ballot.Postamble = req.Postamble
		if req.Honorable != nil {
			ballot.Honorable = *req.Honorable
		}
		if req.Notable != nil {
			ballot.Notable = *req.Notable
		}
		ballot.UpdatedAt = now()

		if err := checkLimits(ballot, req.Votes); err != nil {
			return err
		}

		previous, err := loadVotes(ctx, tx, ballot.ID)
		if err != nil {
			return err
		}
		links := make(map[string]models.Vote, len(previous))
		for _, v := range previous {
			if v.ReleaseID != nil {
				links[models.VoteAnchor(v.Category, v.Rank)] = v
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM vote WHERE ballot_id = $1`, ballot.ID); err != nil {
			return fmt.Errorf("failed to delete votes: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE ballot
			SET anonymous = $1, preamble = $2, postamble = $3, honorable = $4, notable = $5, updated_at = $6
			WHERE id = $7
		`, ballot.Anonymous, ballot.Preamble, ballot.Postamble, ballot.Honorable, ballot.Notable, ballot.UpdatedAt, ballot.ID)
		if err != nil {
			return fmt.Errorf("failed to update ballot: %w", err)
		}

		for _, cat := range models.Categories {
			for i, entry := range req.Votes[cat] {
				entry = trimEntry(entry)
				if entry.IsBlank() {
					continue
				}
				rank := i + 1

				var releaseID *string
				if old, ok := links[models.VoteAnchor(cat, rank)]; ok && old.Artist == entry.Artist && old.Title == entry.Title {
					releaseID = old.ReleaseID
				}

				voteID, err := auth.GenerateID(8)
				if err != nil {
					return err
				}
				_, err = tx.ExecContext(ctx, `
					INSERT INTO vote (id, ballot_id, category, vote_rank, artist, title, comments, release_id)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				`, voteID, ballot.ID, cat, rank, entry.Artist, entry.Title, entry.Comments, releaseID)
				if err != nil {
					return fmt.Errorf("failed to insert vote: %w", err)
				}
				saved++
			}
		}
		return nil
	})
	var limitErr *ballotLimitError
	if errors.As(err, &limitErr) {
		middleware.ErrorResponse(w, http.StatusBadRequest, limitErr.msg)
		return
	}
	if err != nil {
		slog.Error("failed to save ballot", "error", err, "voter_id", s.voter.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save ballot")
		return
	}

	slog.Info("ballot saved", "ballot_id", ballot.ID, "year", s.year, "votes", saved)
	s.ballot = &ballot

	resp, err := h.ballotResponse(ctx, s, ballot)
	if err != nil {
		slog.Error("failed to load votes", "error", err, "ballot_id", ballot.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// MoreVotes handles POST /ballot/more
// Adds ten slots to the honorable or notable category.
func (h *BallotHandler) MoreVotes(w http.ResponseWriter, r *http.Request) {
	s, ok := validateVoter(w, r, h.db, h.cfg)
	if !ok {
		return
	}

	var req models.MoreVotesRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var query string
	switch req.Category {
	case models.CategoryHonorable:
		query = `UPDATE ballot SET honorable = honorable + $1, updated_at = $2 WHERE id = $3 AND honorable + $1 <= $4`
	case models.CategoryNotable:
		query = `UPDATE ballot SET notable = notable + $1, updated_at = $2 WHERE id = $3 AND notable + $1 <= $4`
	case models.CategoryFavorite:
		middleware.ErrorResponse(w, http.StatusBadRequest, "favorite has a fixed number of votes")
		return
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "category must be honorable or notable")
		return
	}

	ctx := r.Context()
	ballot, err := ensureBallot(ctx, h.db, s)
	if err != nil {
		slog.Error("failed to create ballot", "error", err, "voter_id", s.voter.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update ballot")
		return
	}

	res, err := h.db.ExecContext(ctx, query, models.MoreVotesStep, now(), ballot.ID, models.MaxRankLimit)
	if err != nil {
		slog.Error("failed to add votes", "error", err, "ballot_id", ballot.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update ballot")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("%s already has the most votes allowed (%d)", req.Category, models.MaxRankLimit))
		return
	}

	ballot, err = loadBallot(ctx, h.db, s.voter.ID, s.year)
	if err != nil {
		slog.Error("failed to reload ballot", "error", err, "ballot_id", ballot.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MoreVotesResponse{
		Category: req.Category,
		MaxRank:  ballot.MaxRank(req.Category),
	})
}

// DeleteBallot handles DELETE /ballot
func (h *BallotHandler) DeleteBallot(w http.ResponseWriter, r *http.Request) {
	s, ok := validateVoter(w, r, h.db, h.cfg)
	if !ok {
		return
	}
	if s.ballot == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "No ballot for this year")
		return
	}

	ctx := r.Context()
	ballotID := s.ballot.ID
	err := withTx(ctx, h.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vote WHERE ballot_id = $1`, ballotID); err != nil {
			return fmt.Errorf("failed to delete votes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ballot WHERE id = $1`, ballotID); err != nil {
			return fmt.Errorf("failed to delete ballot: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to delete ballot", "error", err, "ballot_id", ballotID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete ballot")
		return
	}

	slog.Info("ballot deleted", "ballot_id", ballotID, "year", s.year)
	w.WriteHeader(http.StatusNoContent)
}

// GetPublicBallot handles GET /ballots/{id}
// Ballots are sealed, like results, while their year is open.
func (h *BallotHandler) GetPublicBallot(w http.ResponseWriter, r *http.Request) {
	ballotID := r.PathValue("id")
	if ballotID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "ballot id is required")
		return
	}

	ctx := r.Context()
	var ballot models.Ballot
	var voterName, voterURL string
	var open bool
	err := h.db.QueryRowContext(ctx, `
		SELECT b.id, b.year, b.anonymous, b.preamble, b.postamble, b.honorable, b.notable,
		       v.name, v.url, y.voting_open
		FROM ballot b
		JOIN voter v ON v.id = b.voter_id
		JOIN poll_year y ON y.year = b.year
		WHERE b.id = $1
	`, ballotID).Scan(&ballot.ID, &ballot.Year, &ballot.Anonymous, &ballot.Preamble, &ballot.Postamble,
		&ballot.Honorable, &ballot.Notable, &voterName, &voterURL, &open)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Ballot not found")
		return
	}
	if err != nil {
		slog.Error("failed to query ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if open {
		middleware.ErrorResponse(w, http.StatusForbidden, "Ballots are sealed until voting closes")
		return
	}

	votes, err := loadVotes(ctx, h.db, ballot.ID)
	if err != nil {
		slog.Error("failed to load votes", "error", err, "ballot_id", ballot.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := models.PublicBallotResponse{
		ID:        ballot.ID,
		Year:      ballot.Year,
		Name:      ballot.DisplayName(voterName),
		Preamble:  ballot.Preamble,
		Postamble: ballot.Postamble,
		Votes:     voteSlots(ballot, votes, false),
	}
	if !ballot.Anonymous {
		resp.URL = voterURL
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
