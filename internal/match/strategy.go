package match

import (
	"context"
	"strings"

	"github.com/quillon/crossmatch/internal/catalog"
)

// Connector is the slice of a target catalog the matching engine needs.
// Connectors fetch and normalize; they never score.
type Connector interface {
	Platform() catalog.PlatformName

	// SearchReleases runs a text search. For KindTrack the returned
	// releases are the parent albums of the matched tracks, possibly
	// with only their IDs populated.
	SearchReleases(ctx context.Context, query string, kind catalog.SearchKind) ([]catalog.Release, error)

	// GetRelease fetches one release by the connector's own ID.
	GetRelease(ctx context.Context, id string) (*catalog.Release, error)

	// GetReleaseTracks fetches the full track list of a release.
	GetReleaseTracks(ctx context.Context, id string) ([]catalog.Track, error)

	// GetArtist fetches one artist by the connector's own ID.
	GetArtist(ctx context.Context, id string) (*catalog.Artist, error)
}

// CompareKind selects which similarity function scores a strategy's
// candidates.
type CompareKind int

// Compare kinds.
const (
	CompareByAlbum CompareKind = iota
	CompareByTracks
)

// Strategy proposes candidates from a target catalog for one canonical
// release. Strategies run strictly in order; each is only tried after the
// previous one failed to produce a winner.
type Strategy struct {
	Name    string
	Compare CompareKind
	Run     func(ctx context.Context, conn Connector, canonical *catalog.Release) ([]catalog.Release, error)
}

// StrategyConfig bounds the per-track fan-out of the search strategies.
type StrategyConfig struct {
	// AlbumSearchSample is how many leading tracks feed the per-track
	// album search (strategy 2).
	AlbumSearchSample int
	// TrackSearchSample is how many leading tracks feed the track-driven
	// album discovery (strategy 6).
	TrackSearchSample int
}

// DefaultStrategyConfig returns the production sample sizes.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{AlbumSearchSample: 8, TrackSearchSample: 15}
}

// Strategies returns the six ordered search strategies.
func Strategies(cfg StrategyConfig) []Strategy {
	return []Strategy{
		{
			Name:    "artist+album",
			Compare: CompareByAlbum,
			Run: func(ctx context.Context, conn Connector, canonical *catalog.Release) ([]catalog.Release, error) {
				q := joinQuery(CleanTitle(primaryArtist(canonical)), CleanTitle(canonical.Name))
				if q == "" {
					return nil, nil
				}
				return conn.SearchReleases(ctx, q, catalog.KindAlbum)
			},
		},
		{
			Name:    "per-track albums",
			Compare: CompareByAlbum,
			Run: func(ctx context.Context, conn Connector, canonical *catalog.Release) ([]catalog.Release, error) {
				return albumsFromTracks(ctx, conn, canonical, cfg.AlbumSearchSample, catalog.KindAlbum)
			},
		},
		{
			Name:    "artist only",
			Compare: CompareByAlbum,
			Run: func(ctx context.Context, conn Connector, canonical *catalog.Release) ([]catalog.Release, error) {
				artist := CleanTitle(primaryArtist(canonical))
				if artist == "" {
					return nil, nil
				}
				return conn.SearchReleases(ctx, artist, catalog.KindAlbum)
			},
		},
		{
			Name:    "album title",
			Compare: CompareByAlbum,
			Run: func(ctx context.Context, conn Connector, canonical *catalog.Release) ([]catalog.Release, error) {
				title := CleanTitle(canonical.Name)
				if title == "" {
					return nil, nil
				}
				return conn.SearchReleases(ctx, title, catalog.KindAlbum)
			},
		},
		{
			Name:    "album title broad",
			Compare: CompareByAlbum,
			Run: func(ctx context.Context, conn Connector, canonical *catalog.Release) ([]catalog.Release, error) {
				title := CleanTitle(canonical.Name)
				if title == "" {
					return nil, nil
				}
				return conn.SearchReleases(ctx, title, catalog.KindAlbumBroad)
			},
		},
		{
			Name:    "track-driven discovery",
			Compare: CompareByTracks,
			Run: func(ctx context.Context, conn Connector, canonical *catalog.Release) ([]catalog.Release, error) {
				return albumsViaTrackSearch(ctx, conn, canonical, cfg.TrackSearchSample)
			},
		},
	}
}

// albumsFromTracks searches the catalog once per leading canonical track
// and unions the resulting albums by ID, preserving first-seen order.
func albumsFromTracks(ctx context.Context, conn Connector, canonical *catalog.Release, sample int, kind catalog.SearchKind) ([]catalog.Release, error) {
	seen := make(map[string]bool)
	var union []catalog.Release

	for _, t := range leadingTracks(canonical, sample) {
		q := joinQuery(CleanTitle(trackArtist(t, canonical)), CleanTitle(t.Name))
		if q == "" {
			continue
		}
		releases, err := conn.SearchReleases(ctx, q, kind)
		if err != nil {
			return nil, err
		}
		for _, r := range releases {
			if r.ID == "" || seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			union = append(union, r)
		}
	}
	return union, nil
}

// albumsViaTrackSearch searches by track, collects the distinct parent
// album IDs, and fetches each album together with its track list so the
// candidates can be scored track-by-track.
func albumsViaTrackSearch(ctx context.Context, conn Connector, canonical *catalog.Release, sample int) ([]catalog.Release, error) {
	parents, err := albumsFromTracks(ctx, conn, canonical, sample, catalog.KindTrack)
	if err != nil {
		return nil, err
	}

	candidates := make([]catalog.Release, 0, len(parents))
	for _, p := range parents {
		release, err := conn.GetRelease(ctx, p.ID)
		if err != nil {
			if catalog.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if len(release.Tracks) == 0 {
			tracks, err := conn.GetReleaseTracks(ctx, p.ID)
			if err != nil {
				if catalog.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			release.Tracks = tracks
		}
		candidates = append(candidates, *release)
	}
	return candidates, nil
}

func leadingTracks(r *catalog.Release, n int) []catalog.Track {
	if n <= 0 || n > len(r.Tracks) {
		n = len(r.Tracks)
	}
	return r.Tracks[:n]
}

func primaryArtist(r *catalog.Release) string {
	if len(r.Artists) == 0 {
		return ""
	}
	return r.Artists[0].Name
}

// trackArtist prefers the track's own credit, falling back to the
// release's primary artist.
func trackArtist(t catalog.Track, r *catalog.Release) string {
	if len(t.Artists) > 0 {
		return t.Artists[0].Name
	}
	return primaryArtist(r)
}

func joinQuery(parts ...string) string {
	var kept []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
