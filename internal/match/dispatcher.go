package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillon/crossmatch/internal/catalog"
	"github.com/quillon/crossmatch/internal/event"
	"github.com/quillon/crossmatch/internal/store"
)

// ResultStore is the keyed persistence the dispatcher writes winners to.
type ResultStore interface {
	Find(ctx context.Context, canonicalID string, platform catalog.PlatformName) (*store.MatchResult, error)
	Upsert(ctx context.Context, res *store.MatchResult) error
}

// Outcome is the terminal state of one (item, platform) reconciliation.
type Outcome string

// Terminal outcomes. Unmatched is a normal result, not an error;
// TimedOut is retryable and distinct from Unmatched so operators can
// tell "no equivalent exists" from "search did not complete in time".
const (
	OutcomeMatched   Outcome = "matched"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFatal     Outcome = "fatal"
)

// Report describes how one (item, platform) pair concluded.
type Report struct {
	CanonicalID string
	Platform    catalog.PlatformName
	Outcome     Outcome
	Score       float64
	Strategy    string
	// Skipped marks an idempotent short-circuit: a stored result already
	// existed and no searching was performed.
	Skipped bool
	Err     error
}

// Config holds the dispatcher tunables.
type Config struct {
	// Threshold is the confidence score a candidate must exceed to be
	// persisted.
	Threshold float64
	// Deadline bounds one (item, platform) reconciliation end to end.
	Deadline time.Duration
}

// DefaultConfig returns the production dispatcher settings.
func DefaultConfig() Config {
	return Config{Threshold: 74, Deadline: 30 * time.Second}
}

// Dispatcher runs the ordered search strategies per canonical item, per
// target platform, under a deadline, and records the winner.
type Dispatcher struct {
	connectors []Connector
	store      ResultStore
	scorer     *Scorer
	strategies []Strategy
	cfg        Config
	logger     *slog.Logger
	bus        *event.Bus
}

// NewDispatcher creates a dispatcher. bus may be nil when no one is
// listening for outcome events.
func NewDispatcher(connectors []Connector, st ResultStore, scorer *Scorer, strategies []Strategy, cfg Config, logger *slog.Logger, bus *event.Bus) *Dispatcher {
	return &Dispatcher{
		connectors: connectors,
		store:      st,
		scorer:     scorer,
		strategies: strategies,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "dispatcher")),
		bus:        bus,
	}
}

// ReconcilePass evaluates every (item, target platform) pair of a batch
// concurrently and returns one report per pair. Failures are collected,
// never aborting sibling pairs.
func (d *Dispatcher) ReconcilePass(ctx context.Context, items []*catalog.Release) []Report {
	runID := uuid.New().String()
	logger := d.logger.With(slog.String("run_id", runID))
	logger.Info("reconciliation pass started",
		slog.Int("items", len(items)),
		slog.Int("platforms", len(d.connectors)))

	reports := make([]Report, 0, len(items)*len(d.connectors))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, item := range items {
		for _, conn := range d.connectors {
			wg.Add(1)
			go func(item *catalog.Release, conn Connector) {
				defer wg.Done()
				rep := d.reconcileItem(ctx, logger, item, conn)
				mu.Lock()
				reports = append(reports, rep)
				mu.Unlock()
			}(item, conn)
		}
	}
	wg.Wait()

	counts := make(map[Outcome]int, 4)
	for _, r := range reports {
		counts[r.Outcome]++
	}
	logger.Info("reconciliation pass completed",
		slog.Int("matched", counts[OutcomeMatched]),
		slog.Int("unmatched", counts[OutcomeUnmatched]),
		slog.Int("timed_out", counts[OutcomeTimedOut]),
		slog.Int("fatal", counts[OutcomeFatal]))
	d.publish(event.PassCompleted, map[string]any{
		"run_id":    runID,
		"matched":   counts[OutcomeMatched],
		"unmatched": counts[OutcomeUnmatched],
		"timed_out": counts[OutcomeTimedOut],
		"fatal":     counts[OutcomeFatal],
	})
	return reports
}

// reconcileItem walks the strategy sequence for one (item, platform)
// pair: Pending -> Searching(1..n) -> Matched | Unmatched | TimedOut |
// Fatal. An existing stored result short-circuits to Matched with zero
// fetches.
func (d *Dispatcher) reconcileItem(parent context.Context, logger *slog.Logger, item *catalog.Release, conn Connector) Report {
	platform := conn.Platform()
	rep := Report{CanonicalID: item.ID, Platform: platform}

	existing, err := d.store.Find(parent, item.ID, platform)
	if err != nil {
		rep.Outcome = OutcomeFatal
		rep.Err = fmt.Errorf("reconciling %s on %s: %w", item.ID, platform, err)
		return rep
	}
	if existing != nil {
		rep.Outcome = OutcomeMatched
		rep.Skipped = true
		rep.Score = existing.ValidityScore
		d.publish(event.MatchSkipped, map[string]any{
			"canonical_id": item.ID,
			"platform":     string(platform),
			"score":        existing.ValidityScore,
		})
		return rep
	}

	ctx, cancel := context.WithTimeout(parent, d.cfg.Deadline)
	defer cancel()

	for _, strat := range d.strategies {
		candidates, err := strat.Run(ctx, conn, item)
		if err != nil {
			return d.failure(ctx, rep, item, platform, strat.Name, err)
		}
		if len(candidates) == 0 {
			continue
		}

		compare := d.scorer.CompareAlbums
		if strat.Compare == CompareByTracks {
			compare = d.scorer.CompareTracks
		}

		won, score, err := d.checkResults(ctx, item, conn, candidates, compare)
		if err != nil {
			return d.failure(ctx, rep, item, platform, strat.Name, err)
		}
		if won {
			rep.Outcome = OutcomeMatched
			rep.Score = score
			rep.Strategy = strat.Name
			logger.Info("match found",
				slog.String("canonical_id", item.ID),
				slog.String("platform", string(platform)),
				slog.String("strategy", strat.Name),
				slog.Float64("score", score))
			d.publish(event.MatchFound, map[string]any{
				"canonical_id": item.ID,
				"platform":     string(platform),
				"strategy":     strat.Name,
				"score":        score,
			})
			return rep
		}
	}

	// Every strategy exhausted without a winner: a normal outcome.
	rep.Outcome = OutcomeUnmatched
	logger.Debug("no equivalent found",
		slog.String("canonical_id", item.ID),
		slog.String("platform", string(platform)))
	d.publish(event.MatchMissed, map[string]any{
		"canonical_id": item.ID,
		"platform":     string(platform),
	})
	return rep
}

// checkResults scores every candidate, keeps the maximum, and persists a
// MatchResult iff the maximum exceeds the confidence threshold. A winner
// found without a track list gets one fetched before persisting, so the
// stored snapshot is complete.
func (d *Dispatcher) checkResults(ctx context.Context, item *catalog.Release, conn Connector, candidates []catalog.Release, compare func(canonical, candidate *catalog.Release, poolSize int) float64) (bool, float64, error) {
	var winner *catalog.Release
	var best float64

	for i := range candidates {
		score := compare(item, &candidates[i], len(candidates))
		if winner == nil || score > best {
			best = score
			winner = &candidates[i]
		}
	}

	if winner == nil || best <= d.cfg.Threshold {
		return false, 0, nil
	}

	if len(winner.Tracks) == 0 {
		tracks, err := conn.GetReleaseTracks(ctx, winner.ID)
		if err != nil && !catalog.IsNotFound(err) {
			return false, 0, err
		}
		winner.Tracks = tracks
		if winner.NbTracks == 0 {
			winner.NbTracks = len(tracks)
		}
	}

	if err := d.store.Upsert(ctx, store.NewMatchResult(item.ID, winner, best)); err != nil {
		return false, 0, err
	}
	return true, best, nil
}

// failure classifies a strategy error: the item deadline elapsing is
// TimedOut (retryable, this platform only); everything else is Fatal and
// surfaced with the originating item identified.
func (d *Dispatcher) failure(ctx context.Context, rep Report, item *catalog.Release, platform catalog.PlatformName, strategy string, err error) Report {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		rep.Outcome = OutcomeTimedOut
		rep.Strategy = strategy
		rep.Err = fmt.Errorf("reconciling %s on %s: deadline elapsed", item.ID, platform)
		d.publish(event.MatchTimeout, map[string]any{
			"canonical_id": item.ID,
			"platform":     string(platform),
			"strategy":     strategy,
		})
		return rep
	}

	rep.Outcome = OutcomeFatal
	rep.Strategy = strategy
	rep.Err = fmt.Errorf("reconciling %s on %s: %w", item.ID, platform, err)
	d.publish(event.MatchFatal, map[string]any{
		"canonical_id": item.ID,
		"platform":     string(platform),
		"strategy":     strategy,
		"error":        err.Error(),
	})
	return rep
}

func (d *Dispatcher) publish(t event.Type, data map[string]any) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(event.Event{Type: t, Data: data})
}
