package deezer

import (
	"strconv"

	"github.com/quillon/crossmatch/internal/catalog"
)

// apiError is Deezer's embedded error object, returned with HTTP 200.
type apiError struct {
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Deezer error codes of interest.
const (
	codeQuota   = 4   // quota limit exceeded, maps to a rate-limit signal
	codeNoData  = 800 // no data available
	codeInvalid = 300 // invalid or expired token
)

type errorEnvelope struct {
	Error *apiError `json:"error"`
}

// listResponse is the paginated collection wrapper: /search/*, /artist/*/albums,
// /album/*/tracks all share it. Next carries the follow-up URL when more
// pages exist.
type listResponse[T any] struct {
	Data  []T    `json:"data"`
	Total int    `json:"total"`
	Next  string `json:"next,omitempty"`
}

type artistObject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Link string `json:"link"`
}

type albumObject struct {
	ID           int64                      `json:"id"`
	Title        string                     `json:"title"`
	UPC          string                     `json:"upc"`
	Link         string                     `json:"link"`
	ReleaseDate  string                     `json:"release_date"`
	NbTracks     int                        `json:"nb_tracks"`
	RecordType   string                     `json:"record_type"`
	Artist       *artistObject              `json:"artist"`
	Contributors []artistObject             `json:"contributors"`
	Tracks       *listResponse[trackObject] `json:"tracks"`
}

type trackObject struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	ISRC     string        `json:"isrc"`
	Link     string        `json:"link"`
	Duration int           `json:"duration"` // seconds
	Artist   *artistObject `json:"artist"`
	Album    *albumObject  `json:"album"`
}

func mapArtist(a *artistObject) catalog.Artist {
	if a == nil {
		return catalog.Artist{}
	}
	return catalog.Artist{
		ID:   strconv.FormatInt(a.ID, 10),
		Name: a.Name,
		Link: a.Link,
	}
}

func mapTrack(t trackObject) catalog.Track {
	track := catalog.Track{
		ID:       strconv.FormatInt(t.ID, 10),
		Name:     t.Title,
		ISRC:     t.ISRC,
		Link:     t.Link,
		Duration: catalog.FormatDuration(t.Duration),
	}
	if t.Artist != nil {
		track.Artists = []catalog.Artist{mapArtist(t.Artist)}
	}
	return track
}

// mapAlbum converts a Deezer album into the common release shape.
// Contributors are preferred over the single primary artist when present.
func mapAlbum(a *albumObject) catalog.Release {
	r := catalog.Release{
		Platform:    catalog.NameDeezer,
		ID:          strconv.FormatInt(a.ID, 10),
		Name:        a.Title,
		ReleaseDate: a.ReleaseDate,
		Link:        a.Link,
		UPC:         a.UPC,
		NbTracks:    a.NbTracks,
	}
	if len(a.Contributors) > 0 {
		for i := range a.Contributors {
			r.Artists = append(r.Artists, mapArtist(&a.Contributors[i]))
		}
	} else if a.Artist != nil {
		r.Artists = []catalog.Artist{mapArtist(a.Artist)}
	}
	if a.Tracks != nil {
		for _, t := range a.Tracks.Data {
			r.Tracks = append(r.Tracks, mapTrack(t))
		}
		if r.NbTracks == 0 {
			r.NbTracks = len(r.Tracks)
		}
	}
	return r
}
