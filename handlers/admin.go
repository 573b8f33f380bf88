// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/db"
	"github.com/chugchanga/chugchanga/metrics"
	"github.com/chugchanga/chugchanga/middleware"
	"github.com/chugchanga/chugchanga/models"
)

type AdminHandler struct {
	db      *sql.DB
	cfg     cliparse.Config
	metrics *metrics.Metrics
}

func NewAdminHandler(db *sql.DB, cfg cliparse.Config, m *metrics.Metrics) *AdminHandler {
	return &AdminHandler{db: db, cfg: cfg, metrics: m}
}

func (h *AdminHandler) adminResponse(r *http.Request) (models.AdminResponse, error) {
	secret, err := secretWord(r.Context(), h.db)
	if err != nil {
		return models.AdminResponse{}, err
	}
	years, err := listYears(r.Context(), h.db)
	if err != nil {
		return models.AdminResponse{}, err
	}
	return models.AdminResponse{SecretWord: secret, Years: years}, nil
}

// GetAdmin handles GET /admin
func (h *AdminHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	resp, err := h.adminResponse(r)
	if err != nil {
		slog.Error("failed to load admin settings", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// UpdateAdmin handles PUT /admin
// Sets the secret word and opens exactly the listed years. Years that
// close here are ranked, as with POST /admin/years/{year}/close.
func (h *AdminHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	var req models.UpdateAdminRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	open := make(map[int]bool, len(req.OpenYears))
	for _, y := range req.OpenYears {
		open[y] = true
	}

	ctx := r.Context()
	var closed []int
	err := withTx(ctx, h.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO setting (name, value) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET value = excluded.value
		`, models.SettingSecretWord, strings.TrimSpace(req.SecretWord))
		if err != nil {
			return fmt.Errorf("failed to store secret word: %w", err)
		}

		years, err := listYears(ctx, tx)
		if err != nil {
			return err
		}
		known := make(map[int]bool, len(years))
		for _, y := range years {
			known[y.Year] = true
		}
		for y := range open {
			if !known[y] {
				return fmt.Errorf("year %d: %w", y, ErrNotFound)
			}
		}

		for _, y := range years {
			if y.VotingOpen == open[y.Year] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE poll_year SET voting_open = $1 WHERE year = $2`, open[y.Year], y.Year); err != nil {
				return fmt.Errorf("failed to update year %d: %w", y.Year, err)
			}
			if y.VotingOpen {
				closed = append(closed, y.Year)
			}
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "open_years lists an unknown year")
		return
	}
	if err != nil {
		slog.Error("failed to update admin settings", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	slog.Info("admin settings updated", "open_years", req.OpenYears)

	// The settings are committed; a year that fails to rank here can be
	// ranked again with POST /admin/years/{year}/rank.
	var unranked []int
	for _, y := range closed {
		if _, _, err := RankYear(ctx, h.db, h.metrics, y); err != nil {
			slog.Error("failed to rank closed year", "error", err, "year", y)
			unranked = append(unranked, y)
		}
	}

	resp, err := h.adminResponse(r)
	if err != nil {
		slog.Error("failed to load admin settings", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Settings saved, but reloading them failed")
		return
	}
	resp.Unranked = unranked
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// AddYear handles POST /admin/years
func (h *AdminHandler) AddYear(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	var req models.AddYearRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Year <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "year is required")
		return
	}

	_, err := h.db.ExecContext(r.Context(), `
		INSERT INTO poll_year (year, voting_open) VALUES ($1, $2)
	`, req.Year, true)
	if db.IsUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "Year already exists")
		return
	}
	if err != nil {
		slog.Error("failed to insert year", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add year")
		return
	}

	slog.Info("year added", "year", req.Year)

	year, err := loadYear(r.Context(), h.db, req.Year)
	if err != nil {
		slog.Error("failed to load year", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, year)
}

// setVoting flips a year's voting flag, answering 404 for an unknown year
func (h *AdminHandler) setVoting(w http.ResponseWriter, r *http.Request, open bool) (int, bool) {
	year, err := pathYear(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return 0, false
	}

	res, err := h.db.ExecContext(r.Context(), `UPDATE poll_year SET voting_open = $1 WHERE year = $2`, open, year)
	if err != nil {
		slog.Error("failed to update year", "error", err, "year", year)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return 0, false
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Year not found")
		return 0, false
	}

	slog.Info("voting updated", "year", year, "open", open)
	return year, true
}

// CloseYear handles POST /admin/years/{year}/close
// Closing voting ranks the year's releases.
func (h *AdminHandler) CloseYear(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	year, ok := h.setVoting(w, r, false)
	if !ok {
		return
	}
	h.rank(w, r, year)
}

// OpenYear handles POST /admin/years/{year}/open
func (h *AdminHandler) OpenYear(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	year, ok := h.setVoting(w, r, true)
	if !ok {
		return
	}

	y, err := loadYear(r.Context(), h.db, year)
	if err != nil {
		slog.Error("failed to load year", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, y)
}

// RankYear handles POST /admin/years/{year}/rank
func (h *AdminHandler) RankYear(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	year, err := pathYear(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	h.rank(w, r, year)
}

func (h *AdminHandler) rank(w http.ResponseWriter, r *http.Request, year int) {
	summary, ranked, err := RankYear(r.Context(), h.db, h.metrics, year)
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Year not found")
		return
	}
	if err != nil {
		slog.Error("failed to rank year", "error", err, "year", year)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to rank results")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.RankResponse{
		Year:     summary,
		Releases: ranked,
	})
}
