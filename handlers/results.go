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

	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/middleware"
	"github.com/chugchanga/chugchanga/models"
)

type ResultsHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewResultsHandler(db *sql.DB, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{db: db, cfg: cfg}
}

// ListYears handles GET /years
// Returns every year with its summary counts, newest first
func (h *ResultsHandler) ListYears(w http.ResponseWriter, r *http.Request) {
	years, err := listYears(r.Context(), h.db)
	if err != nil {
		slog.Error("failed to list years", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, years)
}

// GetResults handles GET /years/{year}/results
// Results are sealed until voting for the year closes.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	order := r.URL.Query().Get("order")
	if order == "" {
		order = models.OrderByVotes
	}
	if order != models.OrderByVotes && order != models.OrderByArtist {
		middleware.ErrorResponse(w, http.StatusBadRequest, "order must be votes or artist")
		return
	}

	ctx := r.Context()
	y, err := loadYear(ctx, h.db, year)
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Year not found")
		return
	}
	if err != nil {
		slog.Error("failed to load year", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if y.VotingOpen {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results are sealed until voting closes")
		return
	}

	releases, err := rankedReleases(ctx, h.db, year, order)
	if err != nil {
		slog.Error("failed to load results", "error", err, "year", year)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Year:     y,
		Order:    order,
		Releases: releases,
	})
}

// rankedReleases reads a year's stored results in the requested order
func rankedReleases(ctx context.Context, q queryer, year int, order string) ([]models.RankedRelease, error) {
	orderBy := "result_rank, sortname, title"
	if order == models.OrderByArtist {
		orderBy = "sortname, result_rank, title"
	}

	rows, err := q.QueryContext(ctx, `
		SELECT year, result_rank, release_id, artist_id, artist_name, sortname, title,
		       favorite_count, honorable_count, notable_count
		FROM ranked_release
		WHERE year = $1
		ORDER BY `+orderBy, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked releases: %w", err)
	}
	defer rows.Close()

	releases := []models.RankedRelease{}
	perRank := make(map[int]int)
	for rows.Next() {
		var rr models.RankedRelease
		err := rows.Scan(&rr.Year, &rr.Rank, &rr.ReleaseID, &rr.ArtistID, &rr.ArtistName, &rr.SortName,
			&rr.Title, &rr.Favorite, &rr.Honorable, &rr.Notable)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranked release: %w", err)
		}
		rr.Link = models.Release{ID: rr.ReleaseID, ArtistID: rr.ArtistID}.Local()
		perRank[rr.Rank]++
		releases = append(releases, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range releases {
		releases[i].RankLabel = rankLabel(releases[i].Rank, perRank[releases[i].Rank] > 1)
	}
	return releases, nil
}
