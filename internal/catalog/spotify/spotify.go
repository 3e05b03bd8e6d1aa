package spotify

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

	"golang.org/x/oauth2/clientcredentials"

	"github.com/quillon/crossmatch/internal/catalog"
)

const (
	defaultBaseURL  = "https://api.spotify.com"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
)

// Config holds the Spotify connector tunables. ClientID and ClientSecret
// come from a Spotify developer application; tokens are minted and
// refreshed through the client-credentials flow.
type Config struct {
	ClientID     string
	ClientSecret string
	PageSize     int
	RetryLimit   int
	RetryBackoff time.Duration
}

// DefaultConfig returns the production Spotify settings without credentials.
func DefaultConfig() Config {
	return Config{
		PageSize:     50,
		RetryLimit:   8,
		RetryBackoff: 1500 * time.Millisecond,
	}
}

// Connector talks to the Spotify Web API with an app token.
type Connector struct {
	client  *http.Client
	limiter *catalog.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	cfg     Config
	retry   catalog.RetryConfig
}

// New creates a Spotify connector against the production endpoints.
func New(cfg Config, limiter *catalog.RateLimiterMap, logger *slog.Logger) *Connector {
	return NewWithBaseURL(cfg, limiter, logger, defaultBaseURL, defaultTokenURL)
}

// NewWithBaseURL creates a Spotify connector with custom API and token
// endpoints (for testing). The underlying client injects and refreshes the
// bearer token on every request.
func NewWithBaseURL(cfg Config, limiter *catalog.RateLimiterMap, logger *slog.Logger, baseURL, tokenURL string) *Connector {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}
	client := creds.Client(context.Background())
	client.Timeout = 10 * time.Second
	return &Connector{
		client:  client,
		limiter: limiter,
		logger:  logger.With(slog.String("platform", "spotify")),
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     cfg,
		retry: catalog.RetryConfig{
			Limit:   cfg.RetryLimit,
			Backoff: cfg.RetryBackoff,
		},
	}
}

// Platform returns the platform identifier.
func (c *Connector) Platform() catalog.PlatformName { return catalog.NameSpotify }

// SearchReleases searches Spotify for albums matching the query. Spotify
// has no strict search variant, so KindAlbum and KindAlbumBroad share the
// same endpoint; KindTrack searches tracks and reports their parent albums.
func (c *Connector) SearchReleases(ctx context.Context, query string, kind catalog.SearchKind) ([]catalog.Release, error) {
	if query == "" {
		return nil, nil
	}

	searchType := "album"
	if kind == catalog.KindTrack {
		searchType = "track"
	}
	params := url.Values{
		"q":     {query},
		"type":  {searchType},
		"limit": {strconv.Itoa(min(c.cfg.PageSize, 50))},
	}

	body, err := c.doRequest(ctx, c.baseURL+"/v1/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	var releases []catalog.Release
	switch {
	case kind == catalog.KindTrack && resp.Tracks != nil:
		releases = parentAlbums(resp.Tracks.Items)
	case resp.Albums != nil:
		releases = make([]catalog.Release, 0, len(resp.Albums.Items))
		for i := range resp.Albums.Items {
			releases = append(releases, mapAlbum(&resp.Albums.Items[i]))
		}
	}

	c.logger.Debug("release search completed",
		slog.String("query", query),
		slog.String("kind", string(kind)),
		slog.Int("results", len(releases)))

	return releases, nil
}

// GetRelease fetches one album by its Spotify ID. The full album object
// carries the barcode and the first page of tracks.
func (c *Connector) GetRelease(ctx context.Context, id string) (*catalog.Release, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("%s/v1/albums/%s", c.baseURL, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}

	var album albumObject
	if err := json.Unmarshal(body, &album); err != nil {
		return nil, fmt.Errorf("parsing album response: %w", err)
	}
	release := mapAlbum(&album)

	// The embedded track page is capped at 50; fetch the rest when the
	// album declares more.
	if album.Tracks != nil && album.Tracks.Next != "" {
		tracks, err := c.GetReleaseTracks(ctx, id)
		if err == nil && len(tracks) >= len(release.Tracks) {
			release.Tracks = tracks
		}
	}
	return &release, nil
}

// GetArtist fetches one artist by its Spotify ID.
func (c *Connector) GetArtist(ctx context.Context, id string) (*catalog.Artist, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("%s/v1/artists/%s", c.baseURL, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}

	var artist artistObject
	if err := json.Unmarshal(body, &artist); err != nil {
		return nil, fmt.Errorf("parsing artist response: %w", err)
	}
	return &catalog.Artist{
		ID:   artist.ID,
		Name: artist.Name,
		Link: artist.ExternalURLs.Spotify,
	}, nil
}

// GetReleaseTracks fetches the full track list of an album, following
// Spotify's offset pagination until the last page.
func (c *Connector) GetReleaseTracks(ctx context.Context, id string) ([]catalog.Track, error) {
	return catalog.FetchAll(ctx, c.cfg.PageSize, func(ctx context.Context, offset int) ([]catalog.Track, bool, error) {
		params := url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(min(c.cfg.PageSize, 50))},
		}
		body, err := c.doRequest(ctx, fmt.Sprintf("%s/v1/albums/%s/tracks?%s", c.baseURL, url.PathEscape(id), params.Encode()))
		if err != nil {
			return nil, false, err
		}
		var page pagingObject[trackObject]
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, false, fmt.Errorf("parsing album tracks response: %w", err)
		}
		tracks := make([]catalog.Track, 0, len(page.Items))
		for _, t := range page.Items {
			tracks = append(tracks, mapTrack(t))
		}
		return tracks, page.Next != "", nil
	})
}

// doRequest executes one rate-limited GET with retries. The oauth2
// transport attaches the bearer token; a token fetch failure surfaces as a
// transport error and is classified as unavailable.
func (c *Connector) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	return catalog.WithRetry(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx, catalog.NameSpotify); err != nil {
			return nil, &catalog.ErrUnavailable{
				Platform: catalog.NameSpotify,
				Cause:    fmt.Errorf("rate limiter: %w", err),
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		return catalog.FetchJSON(c.client, req, catalog.NameSpotify)
	})
}

// parentAlbums lifts the distinct parent albums out of a track search,
// preserving first-seen order.
func parentAlbums(tracks []trackObject) []catalog.Release {
	seen := make(map[string]bool)
	var releases []catalog.Release
	for i := range tracks {
		t := &tracks[i]
		if t.Album == nil || t.Album.ID == "" || seen[t.Album.ID] {
			continue
		}
		seen[t.Album.ID] = true
		r := mapAlbum(t.Album)
		if len(r.Artists) == 0 {
			r.Artists = mapArtists(t.Artists)
		}
		releases = append(releases, r)
	}
	return releases
}
