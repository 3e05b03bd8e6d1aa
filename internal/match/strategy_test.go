package match

import (
	"context"
	"fmt"
	"testing"

	"github.com/quillon/crossmatch/internal/catalog"
)

func canonicalWithTracks(n int) *catalog.Release {
	r := &catalog.Release{
		Platform: catalog.NameDeezer,
		ID:       "dz-1",
		Name:     "Homework (Remastered)",
		Artists:  []catalog.Artist{{ID: "27", Name: "Daft Punk"}},
	}
	for i := 0; i < n; i++ {
		r.Tracks = append(r.Tracks, catalog.Track{
			ID:      fmt.Sprintf("t%d", i),
			Name:    fmt.Sprintf("Track %d", i),
			Artists: []catalog.Artist{{Name: "Daft Punk"}},
		})
	}
	r.NbTracks = n
	return r
}

func strategyByName(t *testing.T, name string) Strategy {
	t.Helper()
	for _, s := range Strategies(DefaultStrategyConfig()) {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("unknown strategy %q", name)
	return Strategy{}
}

func TestStrategiesAreOrdered(t *testing.T) {
	names := []string{
		"artist+album",
		"per-track albums",
		"artist only",
		"album title",
		"album title broad",
		"track-driven discovery",
	}
	strats := Strategies(DefaultStrategyConfig())
	if len(strats) != 6 {
		t.Fatalf("expected 6 strategies, got %d", len(strats))
	}
	for i, s := range strats {
		if s.Name != names[i] {
			t.Errorf("strategy %d = %q, want %q", i+1, s.Name, names[i])
		}
	}
	if strats[5].Compare != CompareByTracks {
		t.Error("track-driven discovery must score by track sets")
	}
	for i := 0; i < 5; i++ {
		if strats[i].Compare != CompareByAlbum {
			t.Errorf("strategy %d must score by album", i+1)
		}
	}
}

func TestExactQueryStripsQualifiers(t *testing.T) {
	conn := &fakeConnector{platform: catalog.NameSpotify}
	strat := strategyByName(t, "artist+album")

	_, err := strat.Run(context.Background(), conn, canonicalWithTracks(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(conn.searches) != 1 {
		t.Fatalf("expected 1 search, got %d", len(conn.searches))
	}
	if got := conn.searches[0].query; got != "Daft Punk Homework" {
		t.Errorf("expected cleaned query, got %q", got)
	}
	if conn.searches[0].kind != catalog.KindAlbum {
		t.Errorf("expected album kind, got %q", conn.searches[0].kind)
	}
}

func TestPerTrackAlbumSearchSamplesAndUnions(t *testing.T) {
	winner := catalog.Release{ID: "x1", Name: "Homework"}
	other := catalog.Release{ID: "x2", Name: "Alive 1997"}
	conn := &fakeConnector{
		platform: catalog.NameSpotify,
		searchFn: func(ctx context.Context, q string, kind catalog.SearchKind) ([]catalog.Release, error) {
			// Every per-track query returns the same two albums.
			return []catalog.Release{winner, other}, nil
		},
	}
	strat := strategyByName(t, "per-track albums")

	candidates, err := strat.Run(context.Background(), conn, canonicalWithTracks(12))
	if err != nil {
		t.Fatal(err)
	}
	if len(conn.searches) != 8 {
		t.Errorf("expected 8 per-track searches (sample), got %d", len(conn.searches))
	}
	if len(candidates) != 2 {
		t.Errorf("expected union of 2 distinct albums, got %d", len(candidates))
	}
}

func TestPerTrackQueriesStripQualifiers(t *testing.T) {
	canonical := &catalog.Release{
		Platform: catalog.NameDeezer,
		ID:       "dz-2",
		Name:     "Discovery",
		Artists:  []catalog.Artist{{Name: "Daft Punk"}},
		Tracks: []catalog.Track{
			{
				ID:      "t1",
				Name:    "One More Time (Club Mix)",
				Artists: []catalog.Artist{{Name: "Daft Punk (2)"}},
			},
		},
	}
	conn := &fakeConnector{platform: catalog.NameDiscogs}

	for _, name := range []string{"per-track albums", "track-driven discovery"} {
		conn.searches = nil
		strat := strategyByName(t, name)
		if _, err := strat.Run(context.Background(), conn, canonical); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(conn.searches) != 1 {
			t.Fatalf("%s: expected 1 search, got %d", name, len(conn.searches))
		}
		if got := conn.searches[0].query; got != "Daft Punk One More Time" {
			t.Errorf("%s: expected cleaned query, got %q", name, got)
		}
	}
}

func TestBroadStrategyUsesBroadKind(t *testing.T) {
	conn := &fakeConnector{platform: catalog.NameDiscogs}
	strat := strategyByName(t, "album title broad")

	_, err := strat.Run(context.Background(), conn, canonicalWithTracks(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(conn.searches) != 1 || conn.searches[0].kind != catalog.KindAlbumBroad {
		t.Fatalf("expected one broad search, got %+v", conn.searches)
	}
	if conn.searches[0].query != "Homework" {
		t.Errorf("expected title-only query, got %q", conn.searches[0].query)
	}
}

func TestTrackDrivenDiscoveryFetchesParentAlbums(t *testing.T) {
	album := &catalog.Release{Platform: catalog.NameSpotify, ID: "x9", Name: "Homework"}
	conn := &fakeConnector{
		platform: catalog.NameSpotify,
		searchFn: func(ctx context.Context, q string, kind catalog.SearchKind) ([]catalog.Release, error) {
			if kind != catalog.KindTrack {
				t.Errorf("expected track kind, got %q", kind)
			}
			// Matched tracks all reference the same parent album.
			return []catalog.Release{{ID: "x9"}}, nil
		},
		releases: map[string]*catalog.Release{"x9": album},
		tracks: map[string][]catalog.Track{
			"x9": {{ID: "t1", Name: "Da Funk", Duration: "5:28"}},
		},
	}
	strat := strategyByName(t, "track-driven discovery")

	candidates, err := strat.Run(context.Background(), conn, canonicalWithTracks(20))
	if err != nil {
		t.Fatal(err)
	}
	if len(conn.searches) != 15 {
		t.Errorf("expected 15 track searches (sample), got %d", len(conn.searches))
	}
	if len(conn.getReleases) != 1 {
		t.Errorf("expected 1 distinct parent album fetch, got %d", len(conn.getReleases))
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if len(candidates[0].Tracks) != 1 {
		t.Errorf("candidate should carry its fetched track list")
	}
}

func TestTrackDrivenDiscoverySkipsVanishedAlbums(t *testing.T) {
	conn := &fakeConnector{
		platform: catalog.NameSpotify,
		searchFn: func(ctx context.Context, q string, kind catalog.SearchKind) ([]catalog.Release, error) {
			return []catalog.Release{{ID: "gone"}}, nil
		},
		releases: map[string]*catalog.Release{},
	}
	strat := strategyByName(t, "track-driven discovery")

	candidates, err := strat.Run(context.Background(), conn, canonicalWithTracks(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 0 {
		t.Errorf("vanished albums should be skipped, got %d candidates", len(candidates))
	}
}
