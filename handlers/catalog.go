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

	"github.com/chugchanga/chugchanga/auth"
	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/db"
	"github.com/chugchanga/chugchanga/middleware"
	"github.com/chugchanga/chugchanga/models"
	"github.com/chugchanga/chugchanga/musicbrainz"
)

// Catalog is the slice of the MusicBrainz client the handlers use
type Catalog interface {
	LookupArtist(ctx context.Context, mbid string) (*musicbrainz.Artist, error)
	LookupReleaseGroup(ctx context.Context, mbid string) (*musicbrainz.ReleaseGroup, error)
	SearchReleaseGroups(ctx context.Context, p musicbrainz.SearchParams) ([]musicbrainz.ReleaseGroup, error)
}

// ErrCatalogUnavailable wraps failures talking to MusicBrainz
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// catalogError classifies a client error: unknown ids become ErrNotFound,
// everything else ErrCatalogUnavailable.
func catalogError(err error) error {
	switch {
	case errors.Is(err, musicbrainz.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case musicbrainz.StatusCode(err) == http.StatusNotFound, musicbrainz.StatusCode(err) == http.StatusBadRequest:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
}

// writeCatalogError maps lookup errors to responses
func writeCatalogError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, ErrCatalogUnavailable):
		slog.Error("catalog request failed", "error", err)
		middleware.ErrorResponse(w, http.StatusBadGateway, "MusicBrainz is unavailable")
	default:
		slog.Error("catalog lookup failed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
	}
}

// insertArtist stores a new artist. The sort name is kept lower-cased.
func insertArtist(ctx context.Context, q queryer, name, sortName string, mbid, url *string) (models.Artist, error) {
	id, err := auth.GenerateID(8)
	if err != nil {
		return models.Artist{}, err
	}
	if strings.TrimSpace(sortName) == "" {
		sortName = name
	}

	a := models.Artist{
		ID:       id,
		Name:     name,
		SortName: strings.ToLower(strings.TrimSpace(sortName)),
		MBID:     mbid,
		URL:      url,
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO artist (id, name, sortname, mbid, url)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.Name, a.SortName, a.MBID, a.URL)
	if err != nil {
		return a, fmt.Errorf("failed to insert artist: %w", err)
	}
	return a, nil
}

func insertRelease(ctx context.Context, q queryer, artistID, title string, mbid, url *string) (models.Release, error) {
	id, err := auth.GenerateID(8)
	if err != nil {
		return models.Release{}, err
	}

	rel := models.Release{ID: id, ArtistID: artistID, Title: title, MBID: mbid, URL: url}
	_, err = q.ExecContext(ctx, `
		INSERT INTO catalog_release (id, artist_id, title, mbid, url)
		VALUES ($1, $2, $3, $4, $5)
	`, rel.ID, rel.ArtistID, rel.Title, rel.MBID, rel.URL)
	if err != nil {
		return rel, fmt.Errorf("failed to insert release: %w", err)
	}
	return rel, nil
}

// ArtistByMBID returns the local artist with the MusicBrainz id, fetching
// and storing it on first use.
func ArtistByMBID(ctx context.Context, conn *sql.DB, cat Catalog, mbid string) (models.Artist, error) {
	return artistFromCatalog(ctx, conn, cat, musicbrainz.Artist{ID: mbid})
}

// artistFromCatalog is ArtistByMBID for a MusicBrainz artist that may
// already carry its names, as release group lookups do.
func artistFromCatalog(ctx context.Context, conn *sql.DB, cat Catalog, mb musicbrainz.Artist) (models.Artist, error) {
	a, err := loadArtist(ctx, conn, "mbid", mb.ID)
	if !errors.Is(err, ErrNotFound) {
		return a, err
	}

	if mb.Name == "" {
		fetched, err := cat.LookupArtist(ctx, mb.ID)
		if err != nil {
			return a, catalogError(err)
		}
		mb = *fetched
	}

	a, err = insertArtist(ctx, conn, mb.Name, mb.SortName, &mb.ID, nil)
	if db.IsUniqueViolation(err) {
		return loadArtist(ctx, conn, "mbid", mb.ID)
	}
	if err != nil {
		return a, err
	}

	slog.Info("artist added from MusicBrainz", "artist_id", a.ID, "mbid", mb.ID, "name", a.Name)
	return a, nil
}

// ReleaseByMBID returns the local release for a MusicBrainz release group,
// fetching it and its artist on first use.
func ReleaseByMBID(ctx context.Context, conn *sql.DB, cat Catalog, mbid string) (models.Release, error) {
	rel, err := loadRelease(ctx, conn, "mbid", mbid)
	if !errors.Is(err, ErrNotFound) {
		return rel, err
	}

	rg, err := cat.LookupReleaseGroup(ctx, mbid)
	if err != nil {
		return rel, catalogError(err)
	}

	artist, err := artistFromCatalog(ctx, conn, cat, rg.Artist)
	if err != nil {
		return rel, err
	}

	rel, err = insertRelease(ctx, conn, artist.ID, rg.Title, &rg.ID, nil)
	if db.IsUniqueViolation(err) {
		return loadRelease(ctx, conn, "mbid", rg.ID)
	}
	if err != nil {
		return rel, err
	}

	slog.Info("release added from MusicBrainz", "release_id", rel.ID, "mbid", rg.ID, "title", rel.Title)
	return rel, nil
}

type CatalogHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewCatalogHandler(db *sql.DB, cfg cliparse.Config) *CatalogHandler {
	return &CatalogHandler{db: db, cfg: cfg}
}

// GetArtist handles GET /artists/{id}
func (h *CatalogHandler) GetArtist(w http.ResponseWriter, r *http.Request) {
	artist, err := loadArtist(r.Context(), h.db, "id", r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Artist not found")
		return
	}
	if err != nil {
		slog.Error("failed to load artist", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	releases, err := artistReleases(r.Context(), h.db, artist.ID)
	if err != nil {
		slog.Error("failed to load releases", "error", err, "artist_id", artist.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ArtistResponse{
		Artist:   artist,
		Releases: releases,
	})
}

// GetRelease handles GET /releases/{id}
// Lists the release's votes from closed years, by year, category and voter.
func (h *CatalogHandler) GetRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	release, err := loadRelease(ctx, h.db, "id", r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Release not found")
		return
	}
	if err != nil {
		slog.Error("failed to load release", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	artist, err := loadArtist(ctx, h.db, "id", release.ArtistID)
	if err != nil {
		slog.Error("failed to load artist", "error", err, "artist_id", release.ArtistID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	votes, err := releaseVotes(ctx, h.db, release.ID)
	if err != nil {
		slog.Error("failed to load release votes", "error", err, "release_id", release.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ReleaseResponse{
		Release: release,
		Artist:  artist,
		Votes:   votes,
	})
}

func releaseVotes(ctx context.Context, q queryer, releaseID string) ([]models.ReleaseVote, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT b.id, b.anonymous, vo.name, b.year, v.category, v.vote_rank, v.comments
		FROM vote v
		JOIN ballot b ON b.id = v.ballot_id
		JOIN voter vo ON vo.id = b.voter_id
		JOIN poll_year y ON y.year = b.year
		WHERE v.release_id = $1 AND y.voting_open = $2
	`, releaseID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to query release votes: %w", err)
	}
	defer rows.Close()

	votes := []models.ReleaseVote{}
	for rows.Next() {
		var rv models.ReleaseVote
		var ballot models.Ballot
		var voterName string
		if err := rows.Scan(&ballot.ID, &ballot.Anonymous, &voterName, &rv.Year, &rv.Category, &rv.Rank, &rv.Comments); err != nil {
			return nil, fmt.Errorf("failed to scan release vote: %w", err)
		}
		rv.BallotID = ballot.ID
		rv.Name = ballot.DisplayName(voterName)
		votes = append(votes, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(votes, func(i, j int) bool {
		a, b := votes[i], votes[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Name < b.Name
	})
	return votes, nil
}
