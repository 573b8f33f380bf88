// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Chugchanga ballots API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg)

Every API route is wrapped with request logging and Prometheus metrics.

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Membership (X-Voter-Token after joining):

	POST /join    - Become a voter with the secret word
	GET  /profile - Name and URL
	PUT  /profile - Update name and URL

Ballot entry (X-Voter-Token, optional ?year=):

	GET    /ballot       - Ballot for the selected year, created on first visit
	PUT    /ballot       - Replace the ballot and its votes
	DELETE /ballot       - Delete the ballot
	POST   /ballot/more  - Ten more honorable or notable slots
	GET    /ballots/{id} - Public view of a ballot (closed years)

Results and catalog (public):

	GET /years                 - Years with summary counts
	GET /years/{year}/results  - Ranked releases (closed years, ?order=votes|artist)
	GET /artists/{id}          - Artist and releases
	GET /releases/{id}         - Release and its votes

Administration (X-Admin-Key):

	GET  /admin                          - Secret word and years
	PUT  /admin                          - Set secret word and open years
	POST /admin/years                    - Add a year
	POST /admin/years/{year}/close       - Close voting and rank
	POST /admin/years/{year}/open        - Reopen voting
	POST /admin/years/{year}/rank        - Recompute results
	GET  /admin/backup.xml               - XML export
	GET  /admin/years/{year}/unmatched   - Votes without a release
	GET  /admin/votes/{id}/candidates    - MusicBrainz candidates for a vote
	POST /admin/votes/{id}/match         - Link a vote to a release
	POST /admin/votes/{id}/unmatch       - Clear a vote's release

# Handler Initialization

The router builds the MusicBrainz client from the configuration and hands
it to the reconciliation handler. All handlers receive the database
connection and configuration.
*/
package router
