// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Chugchanga ballots API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - MemberHandler: Joining with the secret word, profile
  - BallotHandler: Ballot entry for the selected year, public ballot view
  - AdminHandler: Secret word, years, closing and ranking
  - ResultsHandler: Years and ranked results
  - CatalogHandler: Artist and release pages
  - ReconcileHandler: Linking free-text votes to MusicBrainz releases
  - BackupHandler: XML export

Handlers are created via constructor functions that accept *sql.DB and Config:

	ballotHandler := handlers.NewBallotHandler(db, cfg)

ReconcileHandler also takes a Catalog (the MusicBrainz client) and
AdminHandler the metrics it reports ranking times to.

# Voter Flow

	POST /join          → Join (returns voter_token)
	GET  /ballot        → GetBallot (creates the ballot on first visit)
	PUT  /ballot        → SaveBallot (replaces all votes)
	POST /ballot/more   → MoreVotes (ten more honorable or notable slots)

Voter operations require the X-Voter-Token header. The year being edited
is ?year=, else the voter's last year, else the newest open year.

# Years

Years are open for voting, then closed by an admin:

	POST /admin/years              → AddYear
	POST /admin/years/{year}/close → CloseYear (ranks the year)
	GET  /years/{year}/results     → GetResults (closed years only)

Admin operations require the X-Admin-Key header.

# Ranking

The tally is implemented in tally.go:

	year, ranked, err := RankYear(ctx, db, metrics, 2009)

Releases are ordered by favorite votes, then honorable mentions. Tied
releases share a rank and the following rank skips ahead (1, 2, 2, 4).

# Reconciliation

Votes are free text until an admin links them to a release:

	GET  /admin/years/{year}/unmatched → Unmatched
	GET  /admin/votes/{id}/candidates  → Candidates
	POST /admin/votes/{id}/match       → Match

Artists and releases named by MusicBrainz id are fetched and stored on
first use (ArtistByMBID, ReleaseByMBID).
*/
package handlers
