// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Connecting

Open picks the driver from the configured database type:

	conn, err := db.Open(cfg) // "postgres" via lib/pq, "sqlite" via modernc.org/sqlite

SQLite connections enable foreign keys and are limited to a single open
connection, so callers must finish reading rows before issuing the next
query, and must not touch the *sql.DB while holding a transaction.

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - setting: site-wide values (secret_word)
  - poll_year: voting periods, open flag and cached summary counts
  - voter: members, keyed by the hash of their token
  - ballot: one per voter per year
  - vote: one per ballot, category and rank
  - artist, catalog_release: canonical catalog entries
  - ranked_release: cached results per year

# Relationships

	poll_year 1──* ballot
	voter     1──* ballot
	ballot    1──* vote
	artist    1──* catalog_release
	catalog_release 1──* vote (optional)
	poll_year 1──* ranked_release

Deleting a ballot deletes its votes. Deleting a release unlinks its votes.

# Errors

IsUniqueViolation recognizes unique and primary key violations from both
drivers (PostgreSQL code 23505, SQLite extended constraint codes).
*/
package db
