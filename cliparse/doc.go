// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Environment variables are read first (with defaults from struct tags),
then command-line flags override them.

# Settings

	Flag                         Env                       Default
	-p, --port                   PORT                      3318
	-d, --database-url           DATABASE_URL              (required)
	-t, --database-type          DATABASE_TYPE             sqlite
	--admin-key                  ADMIN_KEY                 (required)
	--token-salt                 TOKEN_SALT                (required)
	--musicbrainz-url            MUSICBRAINZ_URL           http://musicbrainz.org/ws/1
	--musicbrainz-timeout        MUSICBRAINZ_TIMEOUT       10s
	--musicbrainz-retry-delay    MUSICBRAINZ_RETRY_DELAY   1s
	--log-level                  LOG_LEVEL                 info
	--log-format                 LOG_FORMAT                text
	--otel-endpoint              OTEL_ENDPOINT             (tracing off)

# Validation

ParseFlags returns an error if a required value is missing, the database
type is not sqlite or postgres, or the port or durations are out of range.
*/
package cliparse
