// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package musicbrainz is a small client for the MusicBrainz ws/1 XML web
service, used to canonicalize free-text ballot entries.

	c := musicbrainz.New(cfg.MusicBrainzURL,
		musicbrainz.WithTimeout(cfg.MusicBrainzTimeout),
		musicbrainz.WithRetryDelay(cfg.MusicBrainzRetryDelay),
	)
	rgs, err := c.SearchReleaseGroups(ctx, musicbrainz.SearchParams{Title: "Veckatimest"})

# Calls

  - LookupArtist:        GET {base}/artist/{mbid}?type=xml
  - LookupReleaseGroup:  GET {base}/release-group/{mbid}?type=xml&inc=artist
  - SearchReleaseGroups: GET {base}/release-group/?type=xml&title=..&artist=..&artistid=..

# Failures

Each attempt has its own deadline. A 503 (the service's rate limit
answer), a 429, or a transport error is retried once after a fixed delay;
anything else fails at once. Non-200 answers surface as *StatusError.
*/
package musicbrainz
