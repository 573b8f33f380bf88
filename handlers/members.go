// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chugchanga/chugchanga/auth"
	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/middleware"
	"github.com/chugchanga/chugchanga/models"
)

type MemberHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewMemberHandler(db *sql.DB, cfg cliparse.Config) *MemberHandler {
	return &MemberHandler{db: db, cfg: cfg}
}

// secretWord returns the stored membership secret, or "" when none is set
func secretWord(ctx context.Context, q queryer) (string, error) {
	var word string
	err := q.QueryRowContext(ctx, `SELECT value FROM setting WHERE name = $1`, models.SettingSecretWord).Scan(&word)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load secret word: %w", err)
	}
	return word, nil
}

// Join handles POST /join
// The caller becomes a voter by knowing the secret word. The member token
// in the response is the only copy; the server keeps its hash.
func (h *MemberHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req models.JoinRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	secret, err := secretWord(r.Context(), h.db)
	if err != nil {
		slog.Error("failed to load secret word", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if secret == "" || subtle.ConstantTimeCompare([]byte(req.SecretWord), []byte(secret)) != 1 {
		middleware.ErrorResponse(w, http.StatusForbidden, "Wrong secret word")
		return
	}

	voterID, err := auth.GenerateID(8)
	if err != nil {
		slog.Error("failed to generate voter ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create voter")
		return
	}
	token, err := auth.GenerateMemberToken()
	if err != nil {
		slog.Error("failed to generate member token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create voter")
		return
	}
	hash, err := auth.HashToken(token, h.cfg.TokenSalt)
	if err != nil {
		slog.Error("failed to hash member token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create voter")
		return
	}

	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO voter (id, token_hash, name, url, created_at)
		VALUES ($1, $2, $3, '', $4)
	`, voterID, hash, name, now())
	if err != nil {
		slog.Error("failed to insert voter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create voter")
		return
	}

	slog.Info("voter joined", "voter_id", voterID, "name", name)

	middleware.JSONResponse(w, http.StatusCreated, models.JoinResponse{
		VoterID:    voterID,
		VoterToken: token,
	})
}

// GetProfile handles GET /profile
func (h *MemberHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	voter, ok := authenticateVoter(w, r, h.db, h.cfg)
	if !ok {
		return
	}
	middleware.JSONResponse(w, http.StatusOK, voter)
}

// UpdateProfile handles PUT /profile
// An empty name keeps the current one.
func (h *MemberHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	voter, ok := authenticateVoter(w, r, h.db, h.cfg)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		voter.Name = name
	}
	voter.URL = strings.TrimSpace(req.URL)

	_, err := h.db.ExecContext(r.Context(), `
		UPDATE voter SET name = $1, url = $2 WHERE id = $3
	`, voter.Name, voter.URL, voter.ID)
	if err != nil {
		slog.Error("failed to update voter", "error", err, "voter_id", voter.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, voter)
}
