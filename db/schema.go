// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The statements are valid for both PostgreSQL and SQLite.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Site-wide values (the membership secret word)
CREATE TABLE IF NOT EXISTS setting (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Voting periods
CREATE TABLE IF NOT EXISTS poll_year (
    year INTEGER PRIMARY KEY,
    voting_open BOOLEAN NOT NULL DEFAULT TRUE,
    ballot_count INTEGER NOT NULL DEFAULT 0,
    vote_count INTEGER NOT NULL DEFAULT 0,
    ranked_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_poll_year_open ON poll_year(voting_open);

-- Members
CREATE TABLE IF NOT EXISTS voter (
    id TEXT PRIMARY KEY,
    token_hash TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    url TEXT NOT NULL DEFAULT '',
    year INTEGER,
    created_at TIMESTAMP NOT NULL
);

-- Ballots: one per voter per year
CREATE TABLE IF NOT EXISTS ballot (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL REFERENCES voter(id) ON DELETE CASCADE,
    year INTEGER NOT NULL REFERENCES poll_year(year) ON DELETE CASCADE,
    anonymous BOOLEAN NOT NULL DEFAULT FALSE,
    preamble TEXT NOT NULL DEFAULT '',
    postamble TEXT NOT NULL DEFAULT '',
    honorable INTEGER NOT NULL DEFAULT 0 CHECK (honorable BETWEEN 0 AND 200),
    notable INTEGER NOT NULL DEFAULT 0 CHECK (notable BETWEEN 0 AND 200),
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (voter_id, year)
);

CREATE INDEX IF NOT EXISTS idx_ballot_year ON ballot(year);

-- Canonical catalog
CREATE TABLE IF NOT EXISTS artist (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    sortname TEXT NOT NULL,
    mbid TEXT UNIQUE,
    url TEXT
);

CREATE TABLE IF NOT EXISTS catalog_release (
    id TEXT PRIMARY KEY,
    artist_id TEXT NOT NULL REFERENCES artist(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    mbid TEXT UNIQUE,
    url TEXT
);

CREATE INDEX IF NOT EXISTS idx_catalog_release_artist ON catalog_release(artist_id);

-- Votes: one per ballot, category and rank
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    ballot_id TEXT NOT NULL REFERENCES ballot(id) ON DELETE CASCADE,
    category TEXT NOT NULL CHECK (category IN ('favorite', 'honorable', 'notable')),
    vote_rank INTEGER NOT NULL CHECK (vote_rank >= 1),
    artist TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    comments TEXT NOT NULL DEFAULT '',
    release_id TEXT REFERENCES catalog_release(id) ON DELETE SET NULL,
    UNIQUE (ballot_id, category, vote_rank)
);

CREATE INDEX IF NOT EXISTS idx_vote_release ON vote(release_id);

-- Cached results, replaced whenever a year is ranked
CREATE TABLE IF NOT EXISTS ranked_release (
    year INTEGER NOT NULL REFERENCES poll_year(year) ON DELETE CASCADE,
    release_id TEXT NOT NULL REFERENCES catalog_release(id) ON DELETE CASCADE,
    result_rank INTEGER NOT NULL,
    artist_id TEXT NOT NULL,
    artist_name TEXT NOT NULL,
    sortname TEXT NOT NULL,
    title TEXT NOT NULL,
    favorite_count INTEGER NOT NULL DEFAULT 0,
    honorable_count INTEGER NOT NULL DEFAULT 0,
    notable_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (year, release_id)
);

CREATE INDEX IF NOT EXISTS idx_ranked_release_rank ON ranked_release(year, result_rank);
`
