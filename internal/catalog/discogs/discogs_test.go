package discogs

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/quillon/crossmatch/internal/catalog"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Discogs key=test-key, secret=test-secret" {
			t.Errorf("unexpected Authorization header %q", got)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/database/search":
			w.Write(loadFixture(t, "search_releases.json"))

		case r.URL.Path == "/releases/249504":
			w.Write(loadFixture(t, "release_discovery.json"))

		case strings.HasPrefix(r.URL.Path, "/releases/"):
			w.WriteHeader(http.StatusNotFound)

		case r.URL.Path == "/artists/1289":
			w.Write(loadFixture(t, "artist_daft_punk.json"))

		case strings.HasPrefix(r.URL.Path, "/artists/"):
			w.WriteHeader(http.StatusNotFound)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestConnector(t *testing.T, baseURL string) *Connector {
	t.Helper()
	limiter := catalog.NewRateLimiterMap()
	limiter.SetLimit(catalog.NameDiscogs, 1000)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := Config{
		Key:          "test-key",
		Secret:       "test-secret",
		PageSize:     100,
		RetryLimit:   3,
		RetryBackoff: time.Millisecond,
	}
	return NewWithBaseURL(cfg, limiter, logger, baseURL)
}

func TestPlatform(t *testing.T) {
	c := newTestConnector(t, "http://localhost")
	if c.Platform() != catalog.NameDiscogs {
		t.Errorf("expected %q, got %q", catalog.NameDiscogs, c.Platform())
	}
}

func TestSearchReleasesSplitsCombinedTitles(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestConnector(t, srv.URL)

	releases, err := c.SearchReleases(context.Background(), "Daft Punk Discovery", catalog.KindAlbum)
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}
	// The artist row in the response is dropped.
	if len(releases) != 2 {
		t.Fatalf("expected 2 releases, got %d", len(releases))
	}
	if releases[0].Name != "Discovery" {
		t.Errorf("expected title Discovery, got %q", releases[0].Name)
	}
	if len(releases[0].Artists) != 1 || releases[0].Artists[0].Name != "Daft Punk" {
		t.Errorf("expected artist Daft Punk, got %+v", releases[0].Artists)
	}
	if releases[0].UPC != "724384960650" {
		t.Errorf("expected normalized barcode, got %q", releases[0].UPC)
	}
	if releases[0].ReleaseDate != "2001" {
		t.Errorf("expected year 2001, got %q", releases[0].ReleaseDate)
	}
	// Disambiguation suffix stripped from "Daft Punk (2)".
	if releases[1].Artists[0].Name != "Daft Punk" {
		t.Errorf("expected disambiguation stripped, got %q", releases[1].Artists[0].Name)
	}
}

func TestSearchReleasesTrackUsesTrackField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("track") != "Daft Punk One More Time" {
			t.Errorf("expected track field query, got %q", r.URL.RawQuery)
		}
		if r.URL.Query().Has("q") {
			t.Errorf("expected no q param for track search, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(loadFixture(t, "search_releases.json"))
	}))
	defer srv.Close()
	c := newTestConnector(t, srv.URL)

	if _, err := c.SearchReleases(context.Background(), "Daft Punk One More Time", catalog.KindTrack); err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}
}

func TestGetRelease(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestConnector(t, srv.URL)

	release, err := c.GetRelease(context.Background(), "249504")
	if err != nil {
		t.Fatalf("GetRelease: %v", err)
	}
	if release.UPC != "724384960650" {
		t.Errorf("expected barcode identifier, got %q", release.UPC)
	}
	if release.ReleaseDate != "2001-03-12" {
		t.Errorf("expected release date 2001-03-12, got %q", release.ReleaseDate)
	}
	if release.NbTracks != 3 {
		t.Errorf("expected 3 tracks, got %d", release.NbTracks)
	}
	if release.Tracks[0].Duration != "5:20" {
		t.Errorf("expected duration 5:20, got %q", release.Tracks[0].Duration)
	}
}

func TestGetReleaseNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestConnector(t, srv.URL)

	_, err := c.GetRelease(context.Background(), "999999999")
	if !catalog.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGetReleaseTracks(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestConnector(t, srv.URL)

	tracks, err := c.GetReleaseTracks(context.Background(), "249504")
	if err != nil {
		t.Fatalf("GetReleaseTracks: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
}

func TestGetArtist(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestConnector(t, srv.URL)

	artist, err := c.GetArtist(context.Background(), "1289")
	if err != nil {
		t.Fatalf("GetArtist: %v", err)
	}
	if artist.ID != "1289" {
		t.Errorf("expected ID 1289, got %q", artist.ID)
	}
	if artist.Name != "Daft Punk" {
		t.Errorf("expected disambiguation suffix stripped, got %q", artist.Name)
	}
	if artist.Link != "https://www.discogs.com/artist/1289-Daft-Punk-2" {
		t.Errorf("unexpected link %q", artist.Link)
	}
}

func TestGetArtistNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestConnector(t, srv.URL)

	_, err := c.GetArtist(context.Background(), "424242")
	if !catalog.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCleanArtistName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Daft Punk", "Daft Punk"},
		{"Daft Punk (2)", "Daft Punk"},
		{"Future (4)", "Future"},
		{"Portal (Prog)", "Portal (Prog)"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := cleanArtistName(tc.in); got != tc.want {
			t.Errorf("cleanArtistName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
