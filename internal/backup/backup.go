package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// snapshotPattern matches snapshot filenames: crossmatch-YYYYMMDD-HHMMSS.db
var snapshotPattern = regexp.MustCompile(`^crossmatch-\d{8}-\d{6}\.db$`)

// Snapshot describes one database snapshot file.
type Snapshot struct {
	Name      string
	Size      int64
	CreatedAt time.Time
}

// Service creates and prunes database snapshots.
type Service struct {
	db         *sql.DB
	dir        string
	keep       int
	maxAgeDays int
	logger     *slog.Logger
}

// NewService creates a snapshot service. keep is the number of snapshots
// retained by Prune; maxAgeDays prunes by age when positive.
func NewService(db *sql.DB, dir string, keep, maxAgeDays int, logger *slog.Logger) *Service {
	return &Service{
		db:         db,
		dir:        dir,
		keep:       keep,
		maxAgeDays: maxAgeDays,
		logger:     logger.With(slog.String("component", "backup")),
	}
}

// Create writes a snapshot of the database using VACUUM INTO.
func (s *Service) Create(ctx context.Context) (*Snapshot, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	now := time.Now().UTC()
	name := fmt.Sprintf("crossmatch-%s.db", now.Format("20060102-150405"))
	dest := filepath.Join(s.dir, name)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	s.logger.Info("snapshot written",
		slog.String("name", name),
		slog.Int64("size", info.Size()))

	return &Snapshot{Name: name, Size: info.Size(), CreatedAt: now}, nil
}

// List returns all snapshots in the directory, newest first.
func (s *Service) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !snapshotPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "crossmatch-"), ".db")
		ts, err := time.Parse("20060102-150405", stamp)
		if err != nil {
			ts = info.ModTime()
		}

		snaps = append(snaps, Snapshot{Name: entry.Name(), Size: info.Size(), CreatedAt: ts})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})

	return snaps, nil
}

// Prune removes snapshots beyond the retention count and, when maxAgeDays
// is positive, snapshots older than the cutoff.
func (s *Service) Prune() error {
	snaps, err := s.List()
	if err != nil {
		return err
	}

	var cutoff time.Time
	if s.maxAgeDays > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -s.maxAgeDays)
	}

	for i, snap := range snaps {
		tooMany := i >= s.keep
		tooOld := !cutoff.IsZero() && snap.CreatedAt.Before(cutoff)
		if !tooMany && !tooOld {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, snap.Name)); err != nil {
			s.logger.Warn("failed to remove snapshot",
				slog.String("name", snap.Name),
				slog.Any("error", err))
			continue
		}
		s.logger.Info("pruned snapshot", slog.String("name", snap.Name))
	}

	return nil
}
