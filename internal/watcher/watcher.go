package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quillon/crossmatch/internal/config"
	"github.com/quillon/crossmatch/internal/event"
)

// ReloadFunc receives the freshly loaded configuration after the config
// file changes on disk.
type ReloadFunc func(cfg *config.Config)

// Service watches the config file for changes and reloads it. Editors and
// config management tools replace files through rename, so the watch is on
// the parent directory rather than the file itself.
type Service struct {
	path     string
	reload   ReloadFunc
	eventBus *event.Bus
	logger   *slog.Logger
	debounce time.Duration
}

// NewService creates a config file watcher.
func NewService(path string, reload ReloadFunc, eventBus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		path:     path,
		reload:   reload,
		eventBus: eventBus,
		logger:   logger.With("component", "config-watcher"),
		debounce: time.Second,
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Start blocks until ctx is canceled, watching the config file's directory
// and coalescing write bursts into a single reload.
func (s *Service) Start(ctx context.Context) {
	if s.path == "" {
		s.logger.Info("no config file, watcher idle")
		<-ctx.Done()
		return
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, config reload disabled", "error", err)
		<-ctx.Done()
		return
	}
	defer w.Close() //nolint:errcheck

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		s.logger.Warn("cannot watch config directory", "dir", dir, "error", err)
		<-ctx.Done()
		return
	}
	s.logger.Info("watching config file", "path", s.path)

	// Debounce timer for coalescing rapid writes into a single reload.
	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	reloadPending := false

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("config watcher stopping")
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !s.relevant(ev) {
				continue
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(s.debounce)
			reloadPending = true

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			if reloadPending {
				reloadPending = false
				s.doReload()
			}
		}
	}
}

// relevant reports whether an fsnotify event touches the config file.
func (s *Service) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Clean(ev.Name) == filepath.Clean(s.path)
}

func (s *Service) doReload() {
	cfg, err := config.Load(s.path)
	if err != nil {
		s.logger.Error("config reload failed, keeping previous settings", "error", err)
		return
	}

	s.logger.Info("config reloaded", "path", s.path)
	if s.reload != nil {
		s.reload(cfg)
	}
	if s.eventBus != nil {
		s.eventBus.Publish(event.Event{
			Type: event.ConfigReloaded,
			Data: map[string]any{"path": s.path},
		})
	}
}
