package spotify

import "github.com/quillon/crossmatch/internal/catalog"

// pagingObject is Spotify's cursor-less paging wrapper. Next carries the
// follow-up URL when more pages exist.
type pagingObject[T any] struct {
	Items  []T    `json:"items"`
	Next   string `json:"next"`
	Offset int    `json:"offset"`
	Total  int    `json:"total"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

type externalIDs struct {
	UPC  string `json:"upc"`
	EAN  string `json:"ean"`
	ISRC string `json:"isrc"`
}

type artistObject struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ExternalURLs externalURLs `json:"external_urls"`
}

type albumObject struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	AlbumType    string                     `json:"album_type"`
	TotalTracks  int                        `json:"total_tracks"`
	ReleaseDate  string                     `json:"release_date"`
	Artists      []artistObject             `json:"artists"`
	ExternalURLs externalURLs               `json:"external_urls"`
	ExternalIDs  *externalIDs               `json:"external_ids"`
	Tracks       *pagingObject[trackObject] `json:"tracks"`
}

type trackObject struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	DurationMs   int            `json:"duration_ms"`
	Artists      []artistObject `json:"artists"`
	ExternalURLs externalURLs   `json:"external_urls"`
	ExternalIDs  *externalIDs   `json:"external_ids"`
	Album        *albumObject   `json:"album"`
}

// searchResponse wraps /v1/search results; only the requested type is set.
type searchResponse struct {
	Albums *pagingObject[albumObject] `json:"albums"`
	Tracks *pagingObject[trackObject] `json:"tracks"`
}

func mapArtists(artists []artistObject) []catalog.Artist {
	if len(artists) == 0 {
		return nil
	}
	out := make([]catalog.Artist, 0, len(artists))
	for _, a := range artists {
		out = append(out, catalog.Artist{
			ID:   a.ID,
			Name: a.Name,
			Link: a.ExternalURLs.Spotify,
		})
	}
	return out
}

// mapTrack converts a Spotify track. Only full track objects carry
// external_ids; simplified album-track listings leave ISRC empty.
func mapTrack(t trackObject) catalog.Track {
	track := catalog.Track{
		ID:       t.ID,
		Name:     t.Name,
		Duration: catalog.FormatDuration(t.DurationMs / 1000),
		Link:     t.ExternalURLs.Spotify,
		Artists:  mapArtists(t.Artists),
	}
	if t.ExternalIDs != nil {
		track.ISRC = t.ExternalIDs.ISRC
	}
	return track
}

// mapAlbum converts a Spotify album into the common release shape. The
// barcode lives in external_ids, present only on full album objects; EAN
// is accepted as a fallback since Spotify files some barcodes there.
func mapAlbum(a *albumObject) catalog.Release {
	r := catalog.Release{
		Platform:    catalog.NameSpotify,
		ID:          a.ID,
		Name:        a.Name,
		ReleaseDate: a.ReleaseDate,
		Link:        a.ExternalURLs.Spotify,
		NbTracks:    a.TotalTracks,
		Artists:     mapArtists(a.Artists),
	}
	if a.ExternalIDs != nil {
		r.UPC = a.ExternalIDs.UPC
		if r.UPC == "" {
			r.UPC = a.ExternalIDs.EAN
		}
	}
	if a.Tracks != nil {
		for _, t := range a.Tracks.Items {
			r.Tracks = append(r.Tracks, mapTrack(t))
		}
		if r.NbTracks == 0 {
			r.NbTracks = len(r.Tracks)
		}
	}
	return r
}
