package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quillon/crossmatch/internal/catalog"
)

const defaultBaseURL = "https://api.deezer.com"

// Config holds the Deezer connector tunables.
type Config struct {
	PageSize     int
	RetryLimit   int
	RetryBackoff time.Duration
}

// DefaultConfig returns the production Deezer settings. Deezer's quota
// errors arrive as HTTP 200 with an embedded error object, so the retry
// budget is generous.
func DefaultConfig() Config {
	return Config{
		PageSize:     100,
		RetryLimit:   10,
		RetryBackoff: 1500 * time.Millisecond,
	}
}

// Connector talks to Deezer's public API. No authentication is required.
// Deezer is the canonical source catalog: besides the common connector
// surface it can enumerate an artist's discography for batch runs.
type Connector struct {
	client  *http.Client
	limiter *catalog.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	cfg     Config
	retry   catalog.RetryConfig
}

// New creates a Deezer connector with the default base URL.
func New(cfg Config, limiter *catalog.RateLimiterMap, logger *slog.Logger) *Connector {
	return NewWithBaseURL(cfg, limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Deezer connector with a custom base URL (for testing).
func NewWithBaseURL(cfg Config, limiter *catalog.RateLimiterMap, logger *slog.Logger, baseURL string) *Connector {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("platform", "deezer")),
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     cfg,
		retry: catalog.RetryConfig{
			Limit:   cfg.RetryLimit,
			Backoff: cfg.RetryBackoff,
		},
	}
}

// Platform returns the platform identifier.
func (c *Connector) Platform() catalog.PlatformName { return catalog.NameDeezer }

// SearchReleases searches Deezer for albums matching the query. KindAlbum
// asks for Deezer's strict ranking, KindAlbumBroad for its default fuzzy
// ranking, and KindTrack searches tracks and reports their parent albums.
func (c *Connector) SearchReleases(ctx context.Context, query string, kind catalog.SearchKind) ([]catalog.Release, error) {
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(c.cfg.PageSize)},
	}

	switch kind {
	case catalog.KindTrack:
		body, err := c.doRequest(ctx, c.baseURL+"/search/track?"+params.Encode())
		if err != nil {
			return nil, err
		}
		var resp listResponse[trackObject]
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing track search response: %w", err)
		}
		return parentAlbums(resp.Data), nil

	case catalog.KindAlbum:
		params.Set("strict", "on")
	case catalog.KindAlbumBroad:
		// default ranking, no strict filter
	}

	body, err := c.doRequest(ctx, c.baseURL+"/search/album?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var resp listResponse[albumObject]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing album search response: %w", err)
	}

	releases := make([]catalog.Release, 0, len(resp.Data))
	for i := range resp.Data {
		releases = append(releases, mapAlbum(&resp.Data[i]))
	}

	c.logger.Debug("release search completed",
		slog.String("query", query),
		slog.String("kind", string(kind)),
		slog.Int("results", len(releases)))

	return releases, nil
}

// GetRelease fetches one album by its Deezer ID, including the embedded
// track list when Deezer returns one.
func (c *Connector) GetRelease(ctx context.Context, id string) (*catalog.Release, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("%s/album/%s", c.baseURL, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}

	var album albumObject
	if err := json.Unmarshal(body, &album); err != nil {
		return nil, fmt.Errorf("parsing album response: %w", err)
	}
	release := mapAlbum(&album)
	return &release, nil
}

// GetReleaseTracks fetches the full track list of an album, following
// Deezer's index-based pagination until the last page.
func (c *Connector) GetReleaseTracks(ctx context.Context, id string) ([]catalog.Track, error) {
	return catalog.FetchAll(ctx, c.cfg.PageSize, func(ctx context.Context, offset int) ([]catalog.Track, bool, error) {
		params := url.Values{
			"index": {strconv.Itoa(offset)},
			"limit": {strconv.Itoa(c.cfg.PageSize)},
		}
		body, err := c.doRequest(ctx, fmt.Sprintf("%s/album/%s/tracks?%s", c.baseURL, url.PathEscape(id), params.Encode()))
		if err != nil {
			return nil, false, err
		}
		var resp listResponse[trackObject]
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, false, fmt.Errorf("parsing album tracks response: %w", err)
		}
		tracks := make([]catalog.Track, 0, len(resp.Data))
		for _, t := range resp.Data {
			tracks = append(tracks, mapTrack(t))
		}
		return tracks, resp.Next != "", nil
	})
}

// GetArtist fetches one artist by its Deezer ID.
func (c *Connector) GetArtist(ctx context.Context, id string) (*catalog.Artist, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("%s/artist/%s", c.baseURL, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}

	var artist artistObject
	if err := json.Unmarshal(body, &artist); err != nil {
		return nil, fmt.Errorf("parsing artist response: %w", err)
	}
	a := mapArtist(&artist)
	return &a, nil
}

// ListArtistReleases enumerates an artist's discography. The returned
// releases are summaries without UPC or tracks; callers needing either
// follow up with GetRelease.
func (c *Connector) ListArtistReleases(ctx context.Context, artistID string) ([]catalog.Release, error) {
	return catalog.FetchAll(ctx, c.cfg.PageSize, func(ctx context.Context, offset int) ([]catalog.Release, bool, error) {
		params := url.Values{
			"index": {strconv.Itoa(offset)},
			"limit": {strconv.Itoa(c.cfg.PageSize)},
		}
		body, err := c.doRequest(ctx, fmt.Sprintf("%s/artist/%s/albums?%s", c.baseURL, url.PathEscape(artistID), params.Encode()))
		if err != nil {
			return nil, false, err
		}
		var resp listResponse[albumObject]
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, false, fmt.Errorf("parsing artist albums response: %w", err)
		}
		releases := make([]catalog.Release, 0, len(resp.Data))
		for i := range resp.Data {
			releases = append(releases, mapAlbum(&resp.Data[i]))
		}
		return releases, resp.Next != "", nil
	})
}

// doRequest executes one rate-limited GET with retries and returns the
// response body after screening Deezer's embedded error object.
func (c *Connector) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	return catalog.WithRetry(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx, catalog.NameDeezer); err != nil {
			return nil, &catalog.ErrUnavailable{
				Platform: catalog.NameDeezer,
				Cause:    fmt.Errorf("rate limiter: %w", err),
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		body, err := catalog.FetchJSON(c.client, req, catalog.NameDeezer)
		if err != nil {
			return nil, err
		}
		if err := checkAPIError(body, reqURL); err != nil {
			return nil, err
		}
		return body, nil
	})
}

// checkAPIError classifies Deezer's embedded error object, which arrives
// with HTTP 200. Quota exhaustion becomes a retryable rate-limit signal.
func checkAPIError(body []byte, reqURL string) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil
	}
	switch env.Error.Code {
	case codeQuota:
		return &catalog.ErrRateLimited{
			Platform: catalog.NameDeezer,
			Cause:    fmt.Errorf("quota exceeded: %s", env.Error.Message),
		}
	case codeNoData:
		return &catalog.ErrNotFound{Platform: catalog.NameDeezer, ID: reqURL}
	case codeInvalid:
		return &catalog.ErrUnavailable{
			Platform: catalog.NameDeezer,
			Cause:    fmt.Errorf("invalid or expired token: %s", env.Error.Message),
		}
	default:
		return &catalog.ErrUnavailable{
			Platform: catalog.NameDeezer,
			Cause:    fmt.Errorf("api error %d: %s", env.Error.Code, env.Error.Message),
		}
	}
}

// parentAlbums lifts the distinct parent albums out of a track search,
// preserving first-seen order. Track-level artist credit is attached so
// downstream scoring has something to compare.
func parentAlbums(tracks []trackObject) []catalog.Release {
	seen := make(map[int64]bool)
	var releases []catalog.Release
	for i := range tracks {
		t := &tracks[i]
		if t.Album == nil || seen[t.Album.ID] {
			continue
		}
		seen[t.Album.ID] = true
		r := mapAlbum(t.Album)
		if len(r.Artists) == 0 && t.Artist != nil {
			r.Artists = []catalog.Artist{mapArtist(t.Artist)}
		}
		releases = append(releases, r)
	}
	return releases
}
