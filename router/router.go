// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/handlers"
	"github.com/chugchanga/chugchanga/metrics"
	"github.com/chugchanga/chugchanga/middleware"
	"github.com/chugchanga/chugchanga/musicbrainz"
)

func NewRouter(db *sql.DB, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()
	m := metrics.New()

	catalog := musicbrainz.New(cfg.MusicBrainzURL,
		musicbrainz.WithTimeout(cfg.MusicBrainzTimeout),
		musicbrainz.WithRetryDelay(cfg.MusicBrainzRetryDelay),
		musicbrainz.WithRecorder(m),
	)

	// Initialize handlers
	memberHandler := handlers.NewMemberHandler(db, cfg)
	ballotHandler := handlers.NewBallotHandler(db, cfg)
	adminHandler := handlers.NewAdminHandler(db, cfg, m)
	resultsHandler := handlers.NewResultsHandler(db, cfg)
	catalogHandler := handlers.NewCatalogHandler(db, cfg)
	reconcileHandler := handlers.NewReconcileHandler(db, cfg, catalog)
	backupHandler := handlers.NewBackupHandler(db, cfg)

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware.WithLogging(middleware.WithMetrics(m, pattern, h)))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", m.Handler())

	// Membership (X-Voter-Token after joining)
	handle("POST /join", memberHandler.Join)
	handle("GET /profile", memberHandler.GetProfile)
	handle("PUT /profile", memberHandler.UpdateProfile)

	// Ballot entry
	handle("GET /ballot", ballotHandler.GetBallot)
	handle("PUT /ballot", ballotHandler.SaveBallot)
	handle("DELETE /ballot", ballotHandler.DeleteBallot)
	handle("POST /ballot/more", ballotHandler.MoreVotes)
	handle("GET /ballots/{id}", ballotHandler.GetPublicBallot)

	// Results and catalog (public)
	handle("GET /years", resultsHandler.ListYears)
	handle("GET /years/{year}/results", resultsHandler.GetResults)
	handle("GET /artists/{id}", catalogHandler.GetArtist)
	handle("GET /releases/{id}", catalogHandler.GetRelease)

	// Administration (X-Admin-Key)
	handle("GET /admin", adminHandler.GetAdmin)
	handle("PUT /admin", adminHandler.UpdateAdmin)
	handle("POST /admin/years", adminHandler.AddYear)
	handle("POST /admin/years/{year}/close", adminHandler.CloseYear)
	handle("POST /admin/years/{year}/open", adminHandler.OpenYear)
	handle("POST /admin/years/{year}/rank", adminHandler.RankYear)
	handle("GET /admin/backup.xml", backupHandler.Export)

	// Catalog reconciliation (X-Admin-Key)
	handle("GET /admin/years/{year}/unmatched", reconcileHandler.Unmatched)
	handle("GET /admin/votes/{id}/candidates", reconcileHandler.Candidates)
	handle("POST /admin/votes/{id}/match", reconcileHandler.Match)
	handle("POST /admin/votes/{id}/unmatch", reconcileHandler.Unmatch)

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("chugchanga ballots API v1"))
	})

	return mux
}
