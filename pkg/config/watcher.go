package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads the config file into a Provider when it changes.
// A config that fails to load is rejected and the previous one stays active.
type Watcher struct {
	path     string
	provider *Provider
	events   events.Publisher
	logger   zerolog.Logger
}

// NewWatcher creates a watcher for path. publisher may be nil.
func NewWatcher(path string, provider *Provider, publisher events.Publisher) *Watcher {
	return &Watcher{
		path:     path,
		provider: provider,
		events:   publisher,
		logger:   log.WithComponent("config"),
	}
}

// Run watches the config file's directory until ctx is done. Watching the
// directory keeps working when editors replace the file by rename.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info().Str("path", w.path).Msg("Watching config for changes")

	base := filepath.Base(w.path)
	var reload <-chan time.Time

	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				reload = time.After(reloadDebounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")
		case <-reload:
			reload = nil
			_ = w.Reload()
		case <-ctx.Done():
			return nil
		}
	}
}

// Reload loads the file once and swaps it into the provider on success
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		metrics.ConfigReloadsTotal.WithLabelValues("rejected").Inc()
		w.logger.Error().Err(err).Msg("Rejected config reload, keeping previous config")
		events.Publish(w.events, events.EventConfigRejected, err.Error(), map[string]string{"path": w.path})
		return err
	}

	w.provider.Set(cfg)
	metrics.ConfigReloadsTotal.WithLabelValues("ok").Inc()
	w.logger.Info().
		Int("containers", len(cfg.Containers)).
		Int("proxies", len(cfg.Proxies)).
		Int("health_checks", len(cfg.HealthChecks)).
		Msg("Config reloaded")
	for _, warning := range cfg.Warnings() {
		w.logger.Warn().Msg(warning)
	}
	events.Publish(w.events, events.EventConfigReloaded, "config reloaded", map[string]string{"path": w.path})
	return nil
}
