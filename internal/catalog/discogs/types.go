package discogs

import (
	"strconv"
	"strings"

	"github.com/quillon/crossmatch/internal/catalog"
)

type pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// searchResult is one row of /database/search. Title is the combined
// "Artist - Title" string; Barcode holds zero or more identifiers with
// embedded spacing.
type searchResult struct {
	ID      int64    `json:"id"`
	Type    string   `json:"type"`
	Title   string   `json:"title"`
	Year    string   `json:"year"`
	URI     string   `json:"uri"`
	Barcode []string `json:"barcode"`
}

type searchResponse struct {
	Pagination pagination     `json:"pagination"`
	Results    []searchResult `json:"results"`
}

type releaseArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type releaseTrack struct {
	Position string          `json:"position"`
	Title    string          `json:"title"`
	Duration string          `json:"duration"` // already "m:ss"
	Artists  []releaseArtist `json:"artists"`
}

type identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type artistResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type releaseResponse struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Year        int             `json:"year"`
	Released    string          `json:"released"`
	URI         string          `json:"uri"`
	Artists     []releaseArtist `json:"artists"`
	Tracklist   []releaseTrack  `json:"tracklist"`
	Identifiers []identifier    `json:"identifiers"`
}

func mapReleaseArtists(artists []releaseArtist) []catalog.Artist {
	if len(artists) == 0 {
		return nil
	}
	out := make([]catalog.Artist, 0, len(artists))
	for _, a := range artists {
		out = append(out, catalog.Artist{
			ID:   strconv.FormatInt(a.ID, 10),
			Name: cleanArtistName(a.Name),
		})
	}
	return out
}

// cleanArtistName strips Discogs' disambiguation suffix, e.g. "Daft Punk (2)".
func cleanArtistName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, " ("); i > 0 && strings.HasSuffix(name, ")") {
		if _, err := strconv.Atoi(name[i+2 : len(name)-1]); err == nil {
			return name[:i]
		}
	}
	return name
}

// mapSearchResult converts a search row into a release summary. The
// combined "Artist - Title" string is split on its first separator; rows
// without one keep the whole string as the title.
func mapSearchResult(r *searchResult) catalog.Release {
	release := catalog.Release{
		Platform:    catalog.NameDiscogs,
		ID:          strconv.FormatInt(r.ID, 10),
		Name:        r.Title,
		ReleaseDate: r.Year,
		Link:        r.URI,
	}
	if artist, title, ok := strings.Cut(r.Title, " - "); ok {
		release.Name = strings.TrimSpace(title)
		release.Artists = []catalog.Artist{{Name: cleanArtistName(artist)}}
	}
	if len(r.Barcode) > 0 {
		release.UPC = normalizeBarcode(r.Barcode[0])
	}
	return release
}

func mapRelease(r *releaseResponse) catalog.Release {
	release := catalog.Release{
		Platform: catalog.NameDiscogs,
		ID:       strconv.FormatInt(r.ID, 10),
		Name:     r.Title,
		Link:     r.URI,
		Artists:  mapReleaseArtists(r.Artists),
	}
	if r.Released != "" {
		release.ReleaseDate = strings.ReplaceAll(r.Released, "-00", "")
	} else if r.Year > 0 {
		release.ReleaseDate = strconv.Itoa(r.Year)
	}
	for _, id := range r.Identifiers {
		if strings.EqualFold(id.Type, "Barcode") {
			release.UPC = normalizeBarcode(id.Value)
			break
		}
	}
	for _, t := range r.Tracklist {
		release.Tracks = append(release.Tracks, mapTrack(t))
	}
	release.NbTracks = len(release.Tracks)
	return release
}

func mapTrack(t releaseTrack) catalog.Track {
	return catalog.Track{
		ID:       t.Position,
		Name:     t.Title,
		Duration: t.Duration,
		Artists:  mapReleaseArtists(t.Artists),
	}
}

// normalizeBarcode strips the spacing Discogs preserves from the sleeve,
// e.g. "7 24384 96065 0" -> "724384960650".
func normalizeBarcode(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
}
