package match

import (
	"math"
	"strings"
	"time"

	"github.com/quillon/crossmatch/internal/catalog"
)

// ScoreConfig holds every weight and tolerance of the similarity
// functions. The values are empirically tuned; they are configuration,
// not derivable constants.
type ScoreConfig struct {
	// BaseNumerator seeds the score with BaseNumerator/poolSize, so
	// larger candidate pools start lower.
	BaseNumerator float64 `yaml:"base_numerator"`

	UPCMatch float64 `yaml:"upc_match"`

	TitleExact            float64 `yaml:"title_exact"`
	TitleOverlapCanonical float64 `yaml:"title_overlap_canonical"`
	TitleOverlapCandidate float64 `yaml:"title_overlap_candidate"`
	TitleTrackHit         float64 `yaml:"title_track_hit"`
	TitleNoOverlap        float64 `yaml:"title_no_overlap"` // penalty, subtracted

	DateExact        float64 `yaml:"date_exact"`
	DateWindow       float64 `yaml:"date_window"`
	DateWindowMonths int     `yaml:"date_window_months"`

	TrackCountPerSide float64 `yaml:"track_count_per_side"`

	ArtistOverlapCanonical float64 `yaml:"artist_overlap_canonical"`
	ArtistOverlapCandidate float64 `yaml:"artist_overlap_candidate"`
	ArtistNone             float64 `yaml:"artist_none"` // penalty, subtracted
	VariousArtists         float64 `yaml:"various_artists"`
	ArtistMissing          float64 `yaml:"artist_missing"` // penalty, subtracted

	TrackMatched      float64 `yaml:"track_matched"`
	TrackArtists      float64 `yaml:"track_artists"`
	DurationTolerance int     `yaml:"duration_tolerance_seconds"`
}

// DefaultScoreConfig returns the tuned production weights.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		BaseNumerator:          30,
		UPCMatch:               100,
		TitleExact:             40,
		TitleOverlapCanonical:  20,
		TitleOverlapCandidate:  25,
		TitleTrackHit:          10,
		TitleNoOverlap:         40,
		DateExact:              20,
		DateWindow:             15,
		DateWindowMonths:       24,
		TrackCountPerSide:      10,
		ArtistOverlapCanonical: 20,
		ArtistOverlapCandidate: 15,
		ArtistNone:             30,
		VariousArtists:         20,
		ArtistMissing:          30,
		TrackMatched:           60,
		TrackArtists:           40,
		DurationTolerance:      10,
	}
}

// Scorer computes album- and track-level similarity. It performs no I/O;
// the only side channel is the Tracer.
type Scorer struct {
	cfg    ScoreConfig
	tracer Tracer
}

// NewScorer creates a Scorer. A nil tracer disables tracing.
func NewScorer(cfg ScoreConfig, tracer Tracer) *Scorer {
	if tracer == nil {
		tracer = NopTracer{}
	}
	return &Scorer{cfg: cfg, tracer: tracer}
}

// IsSameUPC applies the tolerant barcode-equality rule: equal raw strings,
// equal zero-stripped strings, or matching 10-character prefixes of the
// stripped forms. This tolerates UPC-A vs EAN-13 length differences and
// truncated storage.
func IsSameUPC(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	sa := strings.TrimLeft(a, "0")
	sb := strings.TrimLeft(b, "0")
	if sa == sb {
		return true
	}
	if len(sa) >= 10 && len(sb) >= 10 && sa[:10] == sb[:10] {
		return true
	}
	return false
}

// CompareAlbums scores how closely candidate resembles canonical. The
// result is unbounded above 100: a perfect barcode plus perfect metadata
// exceeds it. poolSize is the number of candidates under consideration;
// precision from a small pool is rewarded through the base term.
func (s *Scorer) CompareAlbums(canonical, candidate *catalog.Release, poolSize int) float64 {
	if poolSize < 1 {
		poolSize = 1
	}
	score := s.cfg.BaseNumerator / float64(poolSize)

	if IsSameUPC(canonical.UPC, candidate.UPC) {
		score += s.cfg.UPCMatch
		s.tracer.Trace("upc match", "candidate", candidate.ID, "points", s.cfg.UPCMatch)
	}

	score += s.titleScore(canonical, candidate)
	score += s.dateScore(canonical.ReleaseDate, candidate.ReleaseDate)
	score += s.trackCountScore(canonical.NbTracks, candidate.NbTracks)
	score += s.artistScore(canonical, candidate)

	s.tracer.Trace("album compared",
		"canonical", canonical.ID,
		"candidate", candidate.ID,
		"platform", string(candidate.Platform),
		"pool", poolSize,
		"score", score)
	return score
}

func (s *Scorer) titleScore(canonical, candidate *catalog.Release) float64 {
	if canonical.Name == "" || candidate.Name == "" {
		return 0
	}

	canonTitle := normalizeTitle(canonical.Name)
	candTitle := normalizeTitle(candidate.Name)

	if canonTitle == candTitle {
		s.tracer.Trace("title exact", "title", canonTitle, "points", s.cfg.TitleExact)
		return s.cfg.TitleExact
	}

	canonTokens := tokenize(canonical.Name)
	candTokens := tokenize(candidate.Name)
	canonCover := overlapScore(canonTokens, candTokens)
	candCover := overlapScore(candTokens, canonTokens)

	var pts float64
	if canonCover == 0 && candCover == 0 {
		pts = -s.cfg.TitleNoOverlap
	} else {
		pts = canonCover*s.cfg.TitleOverlapCanonical + candCover*s.cfg.TitleOverlapCandidate
	}

	// A candidate titled after one of the canonical tracks is often a
	// single or retitled edition of the same release.
	for _, t := range canonical.Tracks {
		if normalizeTitle(t.Name) == candTitle {
			pts += s.cfg.TitleTrackHit
			break
		}
	}

	s.tracer.Trace("title overlap",
		"canonical_cover", canonCover,
		"candidate_cover", candCover,
		"points", pts)
	return pts
}

func (s *Scorer) dateScore(canonical, candidate string) float64 {
	ca, okA := parseReleaseDate(canonical)
	cb, okB := parseReleaseDate(candidate)
	if !okA || !okB {
		return 0
	}
	if ca.Equal(cb) {
		return s.cfg.DateExact
	}
	months := monthsApart(ca, cb)
	window := s.cfg.DateWindowMonths
	if months >= window {
		return 0
	}
	return s.cfg.DateWindow * float64(window-months) / float64(window)
}

func (s *Scorer) trackCountScore(canonical, candidate int) float64 {
	delta := canonical - candidate
	if delta < 0 {
		delta = -delta
	}
	var pts float64
	if canonical > 0 {
		pts += s.cfg.TrackCountPerSide * math.Max(0, float64(canonical-delta)) / float64(canonical)
	}
	if candidate > 0 {
		pts += s.cfg.TrackCountPerSide * math.Max(0, float64(candidate-delta)) / float64(candidate)
	}
	return pts
}

func (s *Scorer) artistScore(canonical, candidate *catalog.Release) float64 {
	canonNames := artistNames(canonical.Artists)
	candNames := artistNames(candidate.Artists)

	// When both sides lack artist credits there is nothing to compare;
	// when only one side lacks them, the record is suspect.
	if len(canonNames) == 0 && len(candNames) == 0 {
		return 0
	}
	if len(canonNames) == 0 || len(candNames) == 0 {
		return -s.cfg.ArtistMissing
	}

	canonHits := containmentHits(canonNames, candNames)
	candHits := containmentHits(candNames, canonNames)

	if canonHits == 0 && candHits == 0 {
		if isVariousArtists(canonNames) || isVariousArtists(candNames) {
			s.tracer.Trace("various artists compilation", "points", s.cfg.VariousArtists)
			return s.cfg.VariousArtists
		}
		return -s.cfg.ArtistNone
	}

	return s.cfg.ArtistOverlapCanonical*float64(canonHits)/float64(len(canonNames)) +
		s.cfg.ArtistOverlapCandidate*float64(candHits)/float64(len(candNames))
}

// CompareTracks scores candidate against canonical by track-set
// similarity: matched tracks (duration within tolerance, titles equal or
// contained) and artist overlap on the matched pairs.
func (s *Scorer) CompareTracks(canonical, candidate *catalog.Release, poolSize int) float64 {
	if poolSize < 1 {
		poolSize = 1
	}
	score := s.cfg.BaseNumerator / float64(poolSize)
	if len(canonical.Tracks) == 0 {
		return score
	}

	var matched int
	var artistOverlap float64
	for _, ct := range canonical.Tracks {
		best, ok := s.findTrack(ct, candidate.Tracks)
		if !ok {
			continue
		}
		matched++
		artistOverlap += trackArtistOverlap(ct, best)
	}

	score += s.cfg.TrackMatched * float64(matched) / float64(len(canonical.Tracks))
	if matched > 0 {
		score += s.cfg.TrackArtists * artistOverlap / float64(matched)
	}

	s.tracer.Trace("tracks compared",
		"canonical", canonical.ID,
		"candidate", candidate.ID,
		"matched", matched,
		"of", len(canonical.Tracks),
		"score", score)
	return score
}

// findTrack locates a candidate track compatible with ct: duration within
// tolerance (or canonical duration unknown) and title equal or contained.
func (s *Scorer) findTrack(ct catalog.Track, candidates []catalog.Track) (catalog.Track, bool) {
	ctSec, ctKnown := catalog.ParseDuration(ct.Duration)
	ctTitle := normalizeTitle(ct.Name)

	for _, cand := range candidates {
		if ctKnown {
			candSec, ok := catalog.ParseDuration(cand.Duration)
			if ok {
				delta := ctSec - candSec
				if delta < 0 {
					delta = -delta
				}
				if delta > s.cfg.DurationTolerance {
					continue
				}
			}
		}
		candTitle := normalizeTitle(cand.Name)
		if ctTitle == candTitle ||
			(ctTitle != "" && candTitle != "" &&
				(strings.Contains(ctTitle, candTitle) || strings.Contains(candTitle, ctTitle))) {
			return cand, true
		}
	}
	return catalog.Track{}, false
}

// trackArtistOverlap is the bidirectional artist containment ratio for a
// matched track pair, in [0, 1].
func trackArtistOverlap(a, b catalog.Track) float64 {
	an := artistNames(a.Artists)
	bn := artistNames(b.Artists)
	if len(an) == 0 || len(bn) == 0 {
		return 0
	}
	fwd := float64(containmentHits(an, bn)) / float64(len(an))
	rev := float64(containmentHits(bn, an)) / float64(len(bn))
	return (fwd + rev) / 2
}

func artistNames(artists []catalog.Artist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if strings.TrimSpace(a.Name) != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// containmentHits counts how many names in a have a case-insensitive
// substring relationship with any name in b.
func containmentHits(a, b []string) int {
	var hits int
	for _, na := range a {
		la := strings.ToLower(na)
		for _, nb := range b {
			lb := strings.ToLower(nb)
			if strings.Contains(la, lb) || strings.Contains(lb, la) {
				hits++
				break
			}
		}
	}
	return hits
}

// parseReleaseDate accepts the date shapes catalogs emit: full ISO dates,
// year-month, or a bare year.
func parseReleaseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// monthsApart returns the absolute month distance between two dates.
func monthsApart(a, b time.Time) int {
	if a.After(b) {
		a, b = b, a
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if months < 0 {
		months = 0
	}
	return months
}
