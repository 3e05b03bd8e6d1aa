package discogs

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

const (
	defaultBaseURL = "https://api.discogs.com"
	userAgent      = "crossmatch/1.0 +https://github.com/quillon/crossmatch"
)

// Config holds the Discogs connector tunables. Key and Secret come from a
// Discogs application; they ride along on every request in the
// Authorization header.
type Config struct {
	Key          string
	Secret       string
	PageSize     int
	RetryLimit   int
	RetryBackoff time.Duration
}

// DefaultConfig returns the production Discogs settings without
// credentials. Discogs throttles hard, so the backoff is the longest of
// the three connectors.
func DefaultConfig() Config {
	return Config{
		PageSize:     100,
		RetryLimit:   8,
		RetryBackoff: 1800 * time.Millisecond,
	}
}

// Connector talks to the Discogs API with consumer key/secret auth.
type Connector struct {
	client  *http.Client
	limiter *catalog.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	cfg     Config
	retry   catalog.RetryConfig
}

// New creates a Discogs connector with the default base URL.
func New(cfg Config, limiter *catalog.RateLimiterMap, logger *slog.Logger) *Connector {
	return NewWithBaseURL(cfg, limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Discogs connector with a custom base URL (for testing).
func NewWithBaseURL(cfg Config, limiter *catalog.RateLimiterMap, logger *slog.Logger, baseURL string) *Connector {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("platform", "discogs")),
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     cfg,
		retry: catalog.RetryConfig{
			Limit:   cfg.RetryLimit,
			Backoff: cfg.RetryBackoff,
		},
	}
}

// Platform returns the platform identifier.
func (c *Connector) Platform() catalog.PlatformName { return catalog.NameDiscogs }

// SearchReleases searches the Discogs database. Album kinds query the
// combined artist-title index; KindTrack uses the dedicated track field so
// the matched rows are releases containing the track. Discogs has no
// strict search variant, so KindAlbum and KindAlbumBroad behave alike.
func (c *Connector) SearchReleases(ctx context.Context, query string, kind catalog.SearchKind) ([]catalog.Release, error) {
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"type":     {"release"},
		"per_page": {strconv.Itoa(min(c.cfg.PageSize, 100))},
		"page":     {"1"},
	}
	if kind == catalog.KindTrack {
		params.Set("track", query)
	} else {
		params.Set("q", query)
	}

	body, err := c.doRequest(ctx, c.baseURL+"/database/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	releases := make([]catalog.Release, 0, len(resp.Results))
	for i := range resp.Results {
		if resp.Results[i].Type != "release" && resp.Results[i].Type != "master" {
			continue
		}
		releases = append(releases, mapSearchResult(&resp.Results[i]))
	}

	c.logger.Debug("release search completed",
		slog.String("query", query),
		slog.String("kind", string(kind)),
		slog.Int("results", len(releases)))

	return releases, nil
}

// GetRelease fetches one release by its Discogs ID, including the full
// tracklist and the sleeve barcode.
func (c *Connector) GetRelease(ctx context.Context, id string) (*catalog.Release, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("%s/releases/%s", c.baseURL, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}

	var resp releaseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing release response: %w", err)
	}
	release := mapRelease(&resp)
	return &release, nil
}

// GetArtist fetches one artist by its Discogs ID. The disambiguation
// suffix is stripped from the name like everywhere else.
func (c *Connector) GetArtist(ctx context.Context, id string) (*catalog.Artist, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("%s/artists/%s", c.baseURL, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}

	var resp artistResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing artist response: %w", err)
	}
	return &catalog.Artist{
		ID:   strconv.FormatInt(resp.ID, 10),
		Name: cleanArtistName(resp.Name),
		Link: resp.URI,
	}, nil
}

// GetReleaseTracks fetches the tracklist of a release. Discogs has no
// separate tracks endpoint; the release document carries the whole list.
func (c *Connector) GetReleaseTracks(ctx context.Context, id string) ([]catalog.Track, error) {
	release, err := c.GetRelease(ctx, id)
	if err != nil {
		return nil, err
	}
	return release.Tracks, nil
}

// doRequest executes one rate-limited GET with retries. Discogs
// authenticates through a vendor Authorization scheme carrying the
// consumer key and secret.
func (c *Connector) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	return catalog.WithRetry(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx, catalog.NameDiscogs); err != nil {
			return nil, &catalog.ErrUnavailable{
				Platform: catalog.NameDiscogs,
				Cause:    fmt.Errorf("rate limiter: %w", err),
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		if c.cfg.Key != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Discogs key=%s, secret=%s", c.cfg.Key, c.cfg.Secret))
		}

		return catalog.FetchJSON(c.client, req, catalog.NameDiscogs)
	})
}
