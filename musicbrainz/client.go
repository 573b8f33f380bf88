// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package musicbrainz

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL   = "http://musicbrainz.org/ws/1"
	DefaultUserAgent = "chugchanga-ballots/1.0 (+https://github.com/chugchanga/chugchanga)"

	// Attempts per call: the first request plus one retry
	attempts = 2
)

var tracer = otel.Tracer("github.com/chugchanga/chugchanga/musicbrainz")

// ErrNotFound is returned when a lookup response lacks the requested entity
var ErrNotFound = errors.New("musicbrainz: entity not found")

// StatusError reports a non-200 answer from the web service
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("musicbrainz: %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Recorder receives one observation per client call, retries included
type Recorder interface {
	ObserveCatalogCall(op string, d time.Duration, err error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retryDelay time.Duration
	userAgent  string
	recorder   Recorder
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the deadline of each attempt
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetryDelay sets the fixed pause before the retry
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// New creates a client for the ws/1 XML service rooted at baseURL.
// A proxy in front of MusicBrainz works as long as it keeps the same paths.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		timeout:    10 * time.Second,
		retryDelay: time.Second,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LookupArtist fetches one artist by MusicBrainz id
func (c *Client) LookupArtist(ctx context.Context, mbid string) (*Artist, error) {
	if strings.TrimSpace(mbid) == "" {
		return nil, errors.New("musicbrainz: artist id is required")
	}
	q := url.Values{"type": {"xml"}}
	md, err := c.get(ctx, "lookup_artist", "/artist/"+url.PathEscape(mbid), q)
	if err != nil {
		return nil, err
	}
	if md.Artist == nil {
		return nil, fmt.Errorf("artist %s: %w", mbid, ErrNotFound)
	}
	return md.Artist, nil
}

// LookupReleaseGroup fetches one release group, with its artist, by id
func (c *Client) LookupReleaseGroup(ctx context.Context, mbid string) (*ReleaseGroup, error) {
	if strings.TrimSpace(mbid) == "" {
		return nil, errors.New("musicbrainz: release group id is required")
	}
	q := url.Values{"type": {"xml"}, "inc": {"artist"}}
	md, err := c.get(ctx, "lookup_release_group", "/release-group/"+url.PathEscape(mbid), q)
	if err != nil {
		return nil, err
	}
	if md.ReleaseGroup == nil {
		return nil, fmt.Errorf("release group %s: %w", mbid, ErrNotFound)
	}
	return md.ReleaseGroup, nil
}

type SearchParams struct {
	Title    string
	Artist   string
	ArtistID string
	Limit    int
}

func (p SearchParams) values() url.Values {
	q := url.Values{"type": {"xml"}}
	if p.Title != "" {
		q.Set("title", p.Title)
	}
	if p.Artist != "" {
		q.Set("artist", p.Artist)
	}
	if p.ArtistID != "" {
		q.Set("artistid", p.ArtistID)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// SearchReleaseGroups runs a release group search; results keep the
// service's score order.
func (c *Client) SearchReleaseGroups(ctx context.Context, p SearchParams) ([]ReleaseGroup, error) {
	if p.Title == "" && p.Artist == "" && p.ArtistID == "" {
		return nil, errors.New("musicbrainz: search needs a title, artist or artist id")
	}
	md, err := c.get(ctx, "search_release_groups", "/release-group/", p.values())
	if err != nil {
		return nil, err
	}
	return md.ReleaseGroupList.Items, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values) (*metadata, error) {
	u := c.baseURL + path + "?" + q.Encode()

	ctx, span := tracer.Start(ctx, "musicbrainz."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.url", u))

	start := time.Now()
	var md *metadata
	err := retry.Do(func() error {
		var err error
		md, err = c.fetch(ctx, u)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("musicbrainz call failed, retrying",
				"op", op, "attempt", n+1, "max_attempts", attempts, "error", err)
		}),
	)

	if c.recorder != nil {
		c.recorder.ObserveCatalogCall(op, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return md, nil
}

// fetch performs one attempt. Errors that a retry cannot fix are marked
// unrecoverable.
func (c *Client) fetch(ctx context.Context, u string) (*metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("musicbrainz: build request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: u}
		// 503 is how the service signals rate limiting
		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, retry.Unrecoverable(statusErr)
	}

	var md metadata
	if err := xml.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("musicbrainz: decode response: %w", err))
	}
	return &md, nil
}

// StatusCode extracts the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
