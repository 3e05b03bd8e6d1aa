package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quillon/crossmatch/internal/backup"
	"github.com/quillon/crossmatch/internal/catalog"
	"github.com/quillon/crossmatch/internal/catalog/deezer"
	"github.com/quillon/crossmatch/internal/catalog/discogs"
	"github.com/quillon/crossmatch/internal/catalog/spotify"
	"github.com/quillon/crossmatch/internal/config"
	"github.com/quillon/crossmatch/internal/database"
	"github.com/quillon/crossmatch/internal/event"
	"github.com/quillon/crossmatch/internal/logging"
	"github.com/quillon/crossmatch/internal/match"
	"github.com/quillon/crossmatch/internal/store"
	"github.com/quillon/crossmatch/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  crossmatch album <deezer-album-id>...   reconcile specific albums
  crossmatch artist <deezer-artist-id>    reconcile an artist's discography
  crossmatch show <deezer-album-id>       print stored results for an album
  crossmatch backup [dir]                 snapshot the database and prune old copies

configuration is read from $CM_CONFIG_PATH (default /data/config.yaml),
with CM_* environment variables taking precedence.`)
}

func run() error {
	args := os.Args[1:]
	if len(args) < 1 {
		usage()
		return fmt.Errorf("missing command")
	}
	mode, ids := args[0], args[1:]
	switch mode {
	case "album", "artist", "show":
		if len(ids) == 0 {
			usage()
			return fmt.Errorf("%s requires at least one id", mode)
		}
	case "backup":
	default:
		usage()
		return fmt.Errorf("unknown command %q", mode)
	}

	configPath := os.Getenv("CM_CONFIG_PATH")
	if configPath == "" {
		configPath = "/data/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(
		logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File))
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	resultStore := store.NewService(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "show":
		return showResults(ctx, resultStore, ids)
	case "backup":
		return runBackup(ctx, db, cfg.Database.Path, ids, logger)
	}

	limiters := catalog.NewRateLimiterMap()
	applyRateLimits(limiters, cfg)

	source := deezer.New(deezer.Config{
		PageSize:     cfg.Catalogs.Deezer.PageSize,
		RetryLimit:   cfg.Catalogs.Deezer.RetryLimit,
		RetryBackoff: time.Duration(cfg.Catalogs.Deezer.RetryBackoffMs) * time.Millisecond,
	}, limiters, logger)

	targets := []match.Connector{
		spotify.New(spotify.Config{
			ClientID:     cfg.Catalogs.Spotify.ClientID,
			ClientSecret: cfg.Catalogs.Spotify.ClientSecret,
			PageSize:     cfg.Catalogs.Spotify.PageSize,
			RetryLimit:   cfg.Catalogs.Spotify.RetryLimit,
			RetryBackoff: time.Duration(cfg.Catalogs.Spotify.RetryBackoffMs) * time.Millisecond,
		}, limiters, logger),
		discogs.New(discogs.Config{
			Key:          cfg.Catalogs.Discogs.Key,
			Secret:       cfg.Catalogs.Discogs.Secret,
			PageSize:     cfg.Catalogs.Discogs.PageSize,
			RetryLimit:   cfg.Catalogs.Discogs.RetryLimit,
			RetryBackoff: time.Duration(cfg.Catalogs.Discogs.RetryBackoffMs) * time.Millisecond,
		}, limiters, logger),
	}

	eventBus := event.NewBus(logger, 256)
	go eventBus.Start()
	defer eventBus.Stop()

	eventBus.Subscribe(event.MatchFound, func(e event.Event) {
		logger.Info("match stored",
			"canonical_id", e.Data["canonical_id"],
			"platform", e.Data["platform"],
			"score", e.Data["score"])
	})

	// Config reloads adjust logging and request pacing on the fly; scoring
	// weights and the deadline are fixed for the lifetime of a pass.
	watcherService := watcher.NewService(configPath, func(next *config.Config) {
		logManager.Reconfigure(logging.FromSettings(
			next.Logging.Level, next.Logging.Format, next.Logging.File))
		applyRateLimits(limiters, next)
	}, eventBus, logger)
	go watcherService.Start(ctx)

	scorer := match.NewScorer(match.DefaultScoreConfig(), match.SlogTracer{Logger: logger})
	strategies := match.Strategies(match.StrategyConfig{
		AlbumSearchSample: cfg.Matching.AlbumSearchSample,
		TrackSearchSample: cfg.Matching.TrackSearchSample,
	})
	dispatcher := match.NewDispatcher(targets, resultStore, scorer, strategies, match.Config{
		Threshold: cfg.Matching.Threshold,
		Deadline:  time.Duration(cfg.Matching.DeadlineMs) * time.Millisecond,
	}, logger, eventBus)

	items, err := loadCanonicalItems(ctx, source, mode, ids)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no canonical releases to reconcile")
	}

	reports := dispatcher.ReconcilePass(ctx, items)
	printSummary(reports)

	for _, r := range reports {
		if r.Outcome == match.OutcomeFatal {
			return fmt.Errorf("pass finished with failures")
		}
	}
	return nil
}

// loadCanonicalItems fetches the canonical releases from the source
// catalog: either the given album IDs, or an artist's whole discography.
func loadCanonicalItems(ctx context.Context, source *deezer.Connector, mode string, ids []string) ([]*catalog.Release, error) {
	var albumIDs []string
	switch mode {
	case "album":
		albumIDs = ids
	case "artist":
		summaries, err := source.ListArtistReleases(ctx, ids[0])
		if err != nil {
			return nil, fmt.Errorf("listing artist releases: %w", err)
		}
		for _, s := range summaries {
			albumIDs = append(albumIDs, s.ID)
		}
	}

	items := make([]*catalog.Release, 0, len(albumIDs))
	for _, id := range albumIDs {
		release, err := source.GetRelease(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetching canonical album %s: %w", id, err)
		}
		if len(release.Tracks) == 0 {
			tracks, err := source.GetReleaseTracks(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("fetching canonical tracks for %s: %w", id, err)
			}
			release.Tracks = tracks
		}
		items = append(items, release)
	}
	return items, nil
}

// runBackup snapshots the database into dir (default: a backups directory
// next to the database file) and prunes old snapshots.
func runBackup(ctx context.Context, db *sql.DB, dbPath string, args []string, logger *slog.Logger) error {
	dir := filepath.Join(filepath.Dir(dbPath), "backups")
	if len(args) > 0 {
		dir = args[0]
	}

	svc := backup.NewService(db, dir, 5, 30, logger)
	snap, err := svc.Create(ctx)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	if err := svc.Prune(); err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}
	fmt.Printf("%s  %d bytes\n", filepath.Join(dir, snap.Name), snap.Size)
	return nil
}

// showResults prints the stored matches for the given canonical IDs.
func showResults(ctx context.Context, resultStore *store.Service, ids []string) error {
	for _, id := range ids {
		results, err := resultStore.ListByCanonical(ctx, id)
		if err != nil {
			return fmt.Errorf("listing results for %s: %w", id, err)
		}
		if len(results) == 0 {
			fmt.Printf("%s: no stored matches\n", id)
			continue
		}
		for _, r := range results {
			fmt.Printf("%s  %-8s  %s%%  %s  %q\n",
				r.CanonicalID, r.Platform, r.ValidityPercent, r.Album.ID, r.Album.Name)
		}
	}
	return nil
}

func printSummary(reports []match.Report) {
	counts := make(map[match.Outcome]int, 4)
	for _, r := range reports {
		counts[r.Outcome]++
		line := fmt.Sprintf("%s  %-8s  %-9s", r.CanonicalID, r.Platform, r.Outcome)
		if r.Outcome == match.OutcomeMatched {
			line += fmt.Sprintf("  score=%.1f", r.Score)
			if r.Skipped {
				line += "  (already stored)"
			} else if r.Strategy != "" {
				line += "  via " + r.Strategy
			}
		}
		if r.Err != nil {
			line += "  " + r.Err.Error()
		}
		fmt.Println(line)
	}
	fmt.Printf("matched=%d unmatched=%d timed_out=%d failed=%d\n",
		counts[match.OutcomeMatched], counts[match.OutcomeUnmatched],
		counts[match.OutcomeTimedOut], counts[match.OutcomeFatal])
}

func applyRateLimits(limiters *catalog.RateLimiterMap, cfg *config.Config) {
	limiters.SetLimit(catalog.NameDeezer, cfg.Catalogs.Deezer.RatePerSec)
	limiters.SetLimit(catalog.NameSpotify, cfg.Catalogs.Spotify.RatePerSec)
	limiters.SetLimit(catalog.NameDiscogs, cfg.Catalogs.Discogs.RatePerSec)
}
