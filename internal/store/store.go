package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/quillon/crossmatch/internal/catalog"
)

// MatchResult is the persisted outcome of one reconciliation: the best
// candidate found on a target platform for a canonical release, with the
// confidence score that selected it. At most one row exists per
// (canonical_id, platform).
type MatchResult struct {
	CanonicalID     string               `json:"canonical_id"`
	Platform        catalog.PlatformName `json:"platform"`
	ValidityScore   float64              `json:"validity_score"`
	ValidityPercent string               `json:"validity_percent"`
	Album           catalog.Release      `json:"album"`
	Tracks          []catalog.Track      `json:"tracks"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// NewMatchResult builds a MatchResult for a winning candidate. The
// validity score is stored unclamped; the percent representation is
// capped at 100 and formatted to two decimals.
func NewMatchResult(canonicalID string, winner *catalog.Release, score float64) *MatchResult {
	return &MatchResult{
		CanonicalID:     canonicalID,
		Platform:        winner.Platform,
		ValidityScore:   score,
		ValidityPercent: FormatPercent(score),
		Album:           *winner,
		Tracks:          winner.Tracks,
	}
}

// FormatPercent renders a validity score as its clamped percentage string.
func FormatPercent(score float64) string {
	return fmt.Sprintf("%.2f", math.Min(score, 100))
}

// Service provides match-result persistence. The underlying mechanics are
// deliberately narrow: find by key and upsert, nothing else.
type Service struct {
	db *sql.DB
}

// NewService creates a match-result store backed by db.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Find returns the stored result for (canonicalID, platform), or nil, nil
// when none exists.
func (s *Service) Find(ctx context.Context, canonicalID string, platform catalog.PlatformName) (*MatchResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT canonical_id, platform, validity_score, validity_percent,
		       album, tracks, created_at, updated_at
		FROM match_results
		WHERE canonical_id = ? AND platform = ?
	`, canonicalID, string(platform))

	res, err := scanMatchResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding match result: %w", err)
	}
	return res, nil
}

// Upsert writes a result, replacing any previous row for the same key.
// Concurrent writers for one key are not expected (each platform is
// single-owner per item); if they race, last write wins.
func (s *Service) Upsert(ctx context.Context, res *MatchResult) error {
	if res.CanonicalID == "" {
		return fmt.Errorf("canonical id is required")
	}
	if res.Platform == "" {
		return fmt.Errorf("platform is required")
	}

	album, err := json.Marshal(res.Album)
	if err != nil {
		return fmt.Errorf("encoding album snapshot: %w", err)
	}
	tracks, err := json.Marshal(res.Tracks)
	if err != nil {
		return fmt.Errorf("encoding track snapshots: %w", err)
	}

	now := time.Now().UTC()
	res.UpdatedAt = now
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_results
			(canonical_id, platform, validity_score, validity_percent, album, tracks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(canonical_id, platform) DO UPDATE SET
			validity_score = excluded.validity_score,
			validity_percent = excluded.validity_percent,
			album = excluded.album,
			tracks = excluded.tracks,
			updated_at = excluded.updated_at
	`,
		res.CanonicalID, string(res.Platform),
		res.ValidityScore, res.ValidityPercent,
		string(album), string(tracks),
		res.CreatedAt.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting match result: %w", err)
	}
	return nil
}

// ListByCanonical returns every stored result for one canonical release.
func (s *Service) ListByCanonical(ctx context.Context, canonicalID string) ([]*MatchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT canonical_id, platform, validity_score, validity_percent,
		       album, tracks, created_at, updated_at
		FROM match_results
		WHERE canonical_id = ?
		ORDER BY platform
	`, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("listing match results: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var results []*MatchResult
	for rows.Next() {
		res, err := scanMatchResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatchResult(row rowScanner) (*MatchResult, error) {
	var res MatchResult
	var platform, album, tracks, createdAt, updatedAt string

	if err := row.Scan(&res.CanonicalID, &platform, &res.ValidityScore,
		&res.ValidityPercent, &album, &tracks, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	res.Platform = catalog.PlatformName(platform)
	if err := json.Unmarshal([]byte(album), &res.Album); err != nil {
		return nil, fmt.Errorf("decoding album snapshot: %w", err)
	}
	if tracks != "" && tracks != "null" {
		if err := json.Unmarshal([]byte(tracks), &res.Tracks); err != nil {
			return nil, fmt.Errorf("decoding track snapshots: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		res.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		res.UpdatedAt = t
	}
	return &res, nil
}
