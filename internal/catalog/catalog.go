package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// PlatformName uniquely identifies a catalog service.
type PlatformName string

// Known platform names.
const (
	NameDeezer  PlatformName = "deezer"
	NameSpotify PlatformName = "spotify"
	NameDiscogs PlatformName = "discogs"
)

// TargetPlatforms returns the platforms a canonical release is reconciled
// against, in display order. The source catalog is never a target.
func TargetPlatforms() []PlatformName {
	return []PlatformName{NameSpotify, NameDiscogs}
}

// DisplayName returns a human-readable name for the platform.
func (n PlatformName) DisplayName() string {
	switch n {
	case NameDeezer:
		return "Deezer"
	case NameSpotify:
		return "Spotify"
	case NameDiscogs:
		return "Discogs"
	default:
		return string(n)
	}
}

// SearchKind selects the result type of a catalog search.
type SearchKind string

// Search result kinds. KindAlbum asks the service for its precise album
// match, KindAlbumBroad uses the service's default ranking without exact
// name filtering, and KindTrack searches tracks but reports their parent
// albums.
const (
	KindAlbum      SearchKind = "album"
	KindAlbumBroad SearchKind = "album_broad"
	KindTrack      SearchKind = "track"
)

// Artist is a credited artist on a release or track.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Link string `json:"link,omitempty"`
}

// Track is a single recording on a release. Duration is "m:ss".
type Track struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ISRC     string   `json:"isrc,omitempty"`
	Duration string   `json:"duration,omitempty"`
	Link     string   `json:"link,omitempty"`
	Artists  []Artist `json:"artists,omitempty"`
}

// Release is the common shape every connector normalizes into. It serves
// both as the canonical reference record from the source catalog and as a
// candidate returned by a target catalog's search; Platform tags the origin.
type Release struct {
	Platform    PlatformName `json:"platform"`
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	ReleaseDate string       `json:"release_date,omitempty"` // ISO date or bare year
	Link        string       `json:"link,omitempty"`
	UPC         string       `json:"upc,omitempty"`
	NbTracks    int          `json:"nb_tracks"`
	Artists     []Artist     `json:"artists,omitempty"`
	Tracks      []Track      `json:"tracks,omitempty"`
}

// FormatDuration renders a track length in seconds as "m:ss".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// ParseDuration converts a "m:ss" track length back to seconds.
// Returns false for empty or malformed input.
func ParseDuration(s string) (int, bool) {
	mm, ss, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil {
		return 0, false
	}
	sec, err := strconv.Atoi(strings.TrimSpace(ss))
	if err != nil {
		return 0, false
	}
	return m*60 + sec, true
}
