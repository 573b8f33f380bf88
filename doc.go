// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Chugchanga ballots API server.

Chugchanga collects year-end music ballots from the members of a mailing
list, tallies the votes into ranked results, and reconciles free-text
artist and release entries against MusicBrainz.

# Starting the Server

The server reads a .env file if present, then environment variables, then
CLI flags:

	DATABASE_URL=chugchanga.db ADMIN_KEY=... TOKEN_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - ADMIN_KEY (--admin-key): Key for the /admin routes
  - TOKEN_SALT (--token-salt): Secret for member token hashing

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - MUSICBRAINZ_URL: ws/1 base URL (default: http://musicbrainz.org/ws/1)
  - MUSICBRAINZ_TIMEOUT, MUSICBRAINZ_RETRY_DELAY: per-call deadline and retry delay
  - LOG_LEVEL, LOG_FORMAT: slog level and text/json output
  - OTEL_ENDPOINT: OTLP/HTTP trace endpoint; tracing is off when unset

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (membership, ballots, admin, results,
    catalog, reconciliation, backup) and the vote tally
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, metrics, JSON/XML helpers
  - models: Request/response types
  - auth: IDs, member tokens, admin key check
  - db: Connection, schema creation, constraint errors
  - musicbrainz: ws/1 XML client
  - metrics, telemetry: Prometheus metrics and OpenTelemetry tracing
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
