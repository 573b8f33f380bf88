// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chugchanga/chugchanga/models"
)

// ErrNotFound is returned by lookups when the row does not exist
var ErrNotFound = errors.New("not found")

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing when it returns nil.
// fn must use tx for every statement: SQLite runs with a single connection.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

// pathYear reads the {year} path value
func pathYear(r *http.Request) (int, error) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year <= 0 {
		return 0, fmt.Errorf("invalid year %q", r.PathValue("year"))
	}
	return year, nil
}

const yearColumns = `year, voting_open, ballot_count, vote_count, ranked_at`

func scanYear(row interface{ Scan(...any) error }) (models.Year, error) {
	var y models.Year
	var rankedAt sql.NullTime
	if err := row.Scan(&y.Year, &y.VotingOpen, &y.BallotCount, &y.VoteCount, &rankedAt); err != nil {
		return y, err
	}
	if rankedAt.Valid {
		t := rankedAt.Time
		y.RankedAt = &t
		y.RankedAgo = humanize.Time(t)
	}
	return y, nil
}

func loadYear(ctx context.Context, q queryer, year int) (models.Year, error) {
	y, err := scanYear(q.QueryRowContext(ctx, `SELECT `+yearColumns+` FROM poll_year WHERE year = $1`, year))
	if err == sql.ErrNoRows {
		return y, fmt.Errorf("year %d: %w", year, ErrNotFound)
	}
	if err != nil {
		return y, fmt.Errorf("failed to load year %d: %w", year, err)
	}
	return y, nil
}

// listYears returns every year, newest first
func listYears(ctx context.Context, q queryer) ([]models.Year, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+yearColumns+` FROM poll_year ORDER BY year DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer rows.Close()

	years := []models.Year{}
	for rows.Next() {
		y, err := scanYear(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// openYears returns the years accepting ballots, oldest first
func openYears(ctx context.Context, q queryer) ([]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT year FROM poll_year WHERE voting_open = $1 ORDER BY year`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query open years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

const ballotColumns = `id, voter_id, year, anonymous, preamble, postamble, honorable, notable, updated_at`

func scanBallot(row interface{ Scan(...any) error }) (models.Ballot, error) {
	var b models.Ballot
	err := row.Scan(&b.ID, &b.VoterID, &b.Year, &b.Anonymous, &b.Preamble, &b.Postamble,
		&b.Honorable, &b.Notable, &b.UpdatedAt)
	return b, err
}

// loadBallot finds the voter's ballot for a year
func loadBallot(ctx context.Context, q queryer, voterID string, year int) (models.Ballot, error) {
	b, err := scanBallot(q.QueryRowContext(ctx,
		`SELECT `+ballotColumns+` FROM ballot WHERE voter_id = $1 AND year = $2`, voterID, year))
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, fmt.Errorf("failed to load ballot: %w", err)
	}
	return b, nil
}

// loadVotes returns a ballot's votes ordered by category then rank
func loadVotes(ctx context.Context, q queryer, ballotID string) ([]models.Vote, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, ballot_id, category, vote_rank, artist, title, comments, release_id
		FROM vote
		WHERE ballot_id = $1
		ORDER BY category, vote_rank
	`, ballotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func scanVote(row interface{ Scan(...any) error }) (models.Vote, error) {
	var v models.Vote
	var releaseID sql.NullString
	err := row.Scan(&v.ID, &v.BallotID, &v.Category, &v.Rank, &v.Artist, &v.Title, &v.Comments, &releaseID)
	if releaseID.Valid {
		v.ReleaseID = &releaseID.String
	}
	return v, err
}

func loadVote(ctx context.Context, q queryer, voteID string) (models.Vote, error) {
	v, err := scanVote(q.QueryRowContext(ctx, `
		SELECT id, ballot_id, category, vote_rank, artist, title, comments, release_id
		FROM vote
		WHERE id = $1
	`, voteID))
	if err == sql.ErrNoRows {
		return v, fmt.Errorf("vote %s: %w", voteID, ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("failed to load vote: %w", err)
	}
	return v, nil
}

func scanArtist(row interface{ Scan(...any) error }) (models.Artist, error) {
	var a models.Artist
	var mbid, url sql.NullString
	err := row.Scan(&a.ID, &a.Name, &a.SortName, &mbid, &url)
	if mbid.Valid {
		a.MBID = &mbid.String
	}
	if url.Valid {
		a.URL = &url.String
	}
	return a, err
}

const artistColumns = `id, name, sortname, mbid, url`

func loadArtist(ctx context.Context, q queryer, column, value string) (models.Artist, error) {
	a, err := scanArtist(q.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artist WHERE `+column+` = $1`, value))
	if err == sql.ErrNoRows {
		return a, fmt.Errorf("artist %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("failed to load artist: %w", err)
	}
	return a, nil
}

func scanRelease(row interface{ Scan(...any) error }) (models.Release, error) {
	var r models.Release
	var mbid, url sql.NullString
	err := row.Scan(&r.ID, &r.ArtistID, &r.Title, &mbid, &url)
	if mbid.Valid {
		r.MBID = &mbid.String
	}
	if url.Valid {
		r.URL = &url.String
	}
	return r, err
}

const releaseColumns = `id, artist_id, title, mbid, url`

func loadRelease(ctx context.Context, q queryer, column, value string) (models.Release, error) {
	r, err := scanRelease(q.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM catalog_release WHERE `+column+` = $1`, value))
	if err == sql.ErrNoRows {
		return r, fmt.Errorf("release %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("failed to load release: %w", err)
	}
	return r, nil
}

// artistReleases lists an artist's releases ordered by title
func artistReleases(ctx context.Context, q queryer, artistID string) ([]models.Release, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+releaseColumns+`
		FROM catalog_release
		WHERE artist_id = $1
		ORDER BY title, id
	`, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer rows.Close()

	releases := []models.Release{}
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, rel)
	}
	return releases, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
