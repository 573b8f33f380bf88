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
	"slices"
	"strconv"

	"github.com/chugchanga/chugchanga/auth"
	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/middleware"
	"github.com/chugchanga/chugchanga/models"
)

const (
	VoterTokenHeader = "X-Voter-Token"
	AdminKeyHeader   = "X-Admin-Key"
)

// session is what a ballot route knows about the caller
type session struct {
	voter     models.Voter
	year      int
	openYears []int
	ballot    *models.Ballot
}

// otherYears lists the open years other than the selected one
func (s *session) otherYears() []int {
	others := []int{}
	for _, y := range s.openYears {
		if y != s.year {
			others = append(others, y)
		}
	}
	return others
}

// voterByToken resolves a member token to its voter
func voterByToken(ctx context.Context, q queryer, token, salt string) (models.Voter, error) {
	var v models.Voter
	hash, err := auth.HashToken(token, salt)
	if err != nil {
		return v, ErrNotFound
	}

	var year sql.NullInt64
	err = q.QueryRowContext(ctx, `
		SELECT id, token_hash, name, url, year, created_at
		FROM voter
		WHERE token_hash = $1
	`, hash).Scan(&v.ID, &v.TokenHash, &v.Name, &v.URL, &year, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	if err != nil {
		return v, fmt.Errorf("failed to load voter: %w", err)
	}
	if year.Valid {
		y := int(year.Int64)
		v.Year = &y
	}
	return v, nil
}

// authenticateVoter writes a 401 and returns false when the request carries
// no valid member token
func authenticateVoter(w http.ResponseWriter, r *http.Request, db *sql.DB, cfg cliparse.Config) (models.Voter, bool) {
	voter, err := voterByToken(r.Context(), db, r.Header.Get(VoterTokenHeader), cfg.TokenSalt)
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token")
		return voter, false
	}
	if err != nil {
		slog.Error("failed to authenticate voter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return voter, false
	}
	return voter, true
}

// validateVoter authenticates the caller and selects the year being edited:
// the ?year= parameter, else the voter's last year, else the newest open
// year. A selection that is not open falls back to the newest open year.
// The selection is remembered on the voter.
func validateVoter(w http.ResponseWriter, r *http.Request, db *sql.DB, cfg cliparse.Config) (*session, bool) {
	ctx := r.Context()

	voter, ok := authenticateVoter(w, r, db, cfg)
	if !ok {
		return nil, false
	}

	open, err := openYears(ctx, db)
	if err != nil {
		slog.Error("failed to list open years", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return nil, false
	}
	if len(open) == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Voting is closed")
		return nil, false
	}

	newest := open[len(open)-1]
	selected := newest
	if param := r.URL.Query().Get("year"); param != "" {
		selected, err = strconv.Atoi(param)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid year")
			return nil, false
		}
	} else if voter.Year != nil {
		selected = *voter.Year
	}
	if !slices.Contains(open, selected) {
		selected = newest
	}

	if voter.Year == nil || *voter.Year != selected {
		_, err := db.ExecContext(ctx, `UPDATE voter SET year = $1 WHERE id = $2`, selected, voter.ID)
		if err != nil {
			slog.Error("failed to update voter year", "error", err, "voter_id", voter.ID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return nil, false
		}
		voter.Year = &selected
	}

	s := &session{voter: voter, year: selected, openYears: open}

	ballot, err := loadBallot(ctx, db, voter.ID, selected)
	switch {
	case err == nil:
		s.ballot = &ballot
	case !errors.Is(err, ErrNotFound):
		slog.Error("failed to load ballot", "error", err, "voter_id", voter.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return nil, false
	}

	return s, true
}

// requireAdmin writes a 401 and returns false unless X-Admin-Key matches
func requireAdmin(w http.ResponseWriter, r *http.Request, cfg cliparse.Config) bool {
	if err := auth.ValidateAdminKey(r.Header.Get(AdminKeyHeader), cfg.AdminKey); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return false
	}
	return true
}
