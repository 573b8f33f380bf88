// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chugchanga/chugchanga/auth"
	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/db"
)

// Test secrets shared by fixtures and requests
const (
	TestAdminKey   = "test-admin-key"
	TestTokenSalt  = "test-token-salt"
	TestSecretWord = "chugchanga"
)

// SetupTestDB opens a fresh in-memory SQLite database with the full schema.
// The database is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(cliparse.Config{
		DatabaseType: cliparse.DatabaseSQLite,
		DatabaseURL:  ":memory:",
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:                  3318,
		DatabaseURL:           ":memory:",
		DatabaseType:          cliparse.DatabaseSQLite,
		AdminKey:              TestAdminKey,
		TokenSalt:             TestTokenSalt,
		MusicBrainzURL:        "http://127.0.0.1:1/ws/1",
		MusicBrainzTimeout:    2 * time.Second,
		MusicBrainzRetryDelay: time.Millisecond,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// AdminHeaders carries the test admin key
func AdminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": TestAdminKey}
}

// VoterHeaders carries a member token
func VoterHeaders(token string) map[string]string {
	return map[string]string{"X-Voter-Token": token}
}

// SetSecretWord stores the membership secret word
func SetSecretWord(t *testing.T, conn *sql.DB, word string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO setting (name, value) VALUES ('secret_word', $1)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value
	`, word)
	if err != nil {
		t.Fatalf("Failed to set secret word: %v", err)
	}
}

// CreateTestYear adds a voting year
func CreateTestYear(t *testing.T, conn *sql.DB, year int, open bool) {
	t.Helper()

	_, err := conn.Exec(`INSERT INTO poll_year (year, voting_open) VALUES ($1, $2)`, year, open)
	if err != nil {
		t.Fatalf("Failed to create test year: %v", err)
	}
}

// SetYearOpen opens or closes voting for a year
func SetYearOpen(t *testing.T, conn *sql.DB, year int, open bool) {
	t.Helper()

	if _, err := conn.Exec(`UPDATE poll_year SET voting_open = $1 WHERE year = $2`, open, year); err != nil {
		t.Fatalf("Failed to update test year: %v", err)
	}
}

// CreateTestVoter creates a member and returns its ID and member token
func CreateTestVoter(t *testing.T, conn *sql.DB, cfg cliparse.Config, name string) (voterID, token string) {
	t.Helper()

	voterID, _ = auth.GenerateID(8)
	token, _ = auth.GenerateMemberToken()
	hash, err := auth.HashToken(token, cfg.TokenSalt)
	if err != nil {
		t.Fatalf("Failed to hash member token: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO voter (id, token_hash, name, url, created_at)
		VALUES ($1, $2, $3, '', $4)
	`, voterID, hash, name, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return voterID, token
}

// CreateTestBallot creates an empty ballot and returns its ID
func CreateTestBallot(t *testing.T, conn *sql.DB, voterID string, year int, anonymous bool) string {
	t.Helper()

	ballotID, _ := auth.GenerateID(8)
	_, err := conn.Exec(`
		INSERT INTO ballot (id, voter_id, year, anonymous, preamble, postamble, honorable, notable, updated_at)
		VALUES ($1, $2, $3, $4, '', '', 10, 10, $5)
	`, ballotID, voterID, year, anonymous, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test ballot: %v", err)
	}

	return ballotID
}

// AddTestVote adds a vote to a ballot and returns its ID.
// An empty releaseID leaves the vote unmatched.
func AddTestVote(t *testing.T, conn *sql.DB, ballotID, category string, rank int, artist, title, releaseID string) string {
	t.Helper()

	var release *string
	if releaseID != "" {
		release = &releaseID
	}

	voteID, _ := auth.GenerateID(8)
	_, err := conn.Exec(`
		INSERT INTO vote (id, ballot_id, category, vote_rank, artist, title, comments, release_id)
		VALUES ($1, $2, $3, $4, $5, $6, '', $7)
	`, voteID, ballotID, category, rank, artist, title, release)
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}

	return voteID
}

// CreateTestArtist stores an artist and returns its ID. An empty mbid
// leaves the artist local-only.
func CreateTestArtist(t *testing.T, conn *sql.DB, name, sortName, mbid string) string {
	t.Helper()

	var mb *string
	if mbid != "" {
		mb = &mbid
	}

	artistID, _ := auth.GenerateID(8)
	_, err := conn.Exec(`
		INSERT INTO artist (id, name, sortname, mbid)
		VALUES ($1, $2, $3, $4)
	`, artistID, name, sortName, mb)
	if err != nil {
		t.Fatalf("Failed to create test artist: %v", err)
	}

	return artistID
}

// CreateTestRelease stores a release and returns its ID
func CreateTestRelease(t *testing.T, conn *sql.DB, artistID, title, mbid string) string {
	t.Helper()

	var mb *string
	if mbid != "" {
		mb = &mbid
	}

	releaseID, _ := auth.GenerateID(8)
	_, err := conn.Exec(`
		INSERT INTO catalog_release (id, artist_id, title, mbid)
		VALUES ($1, $2, $3, $4)
	`, releaseID, artistID, title, mb)
	if err != nil {
		t.Fatalf("Failed to create test release: %v", err)
	}

	return releaseID
}

// NewMusicBrainzServer serves canned ws/1 XML documents keyed by request
// path. Unknown paths answer 404. The server is closed when the test ends.
func NewMusicBrainzServer(t *testing.T, docs map[string]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.Write([]byte(doc))
	}))
	t.Cleanup(srv.Close)

	return srv
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
