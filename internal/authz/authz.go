// Package authz implements the operator allow-list that gates catalog
// administration.
package authz

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Allowlist answers whether an identity may administer the catalog. It
// merges a static set of operator IDs from config with an optional YAML
// file that can be edited (and reloaded) at runtime.
type Allowlist struct {
	mu     sync.RWMutex
	static map[int64]struct{}
	file   map[int64]struct{}

	path   string
	logger *slog.Logger
}

type allowlistFile struct {
	Operators []int64 `yaml:"operators"`
}

// New builds an allow-list from static IDs plus an optional file path.
// A missing or unreadable file is logged and treated as empty.
func New(ids []int64, path string, logger *slog.Logger) *Allowlist {
	a := &Allowlist{
		static: make(map[int64]struct{}, len(ids)),
		file:   make(map[int64]struct{}),
		path:   path,
		logger: logger,
	}
	for _, id := range ids {
		a.static[id] = struct{}{}
	}
	if path != "" {
		if err := a.Reload(); err != nil {
			logger.Warn("authz: initial load failed", slog.String("error", err.Error()))
		}
	}
	return a
}

// Authorized reports whether id appears in either the static or the
// file-based operator set.
func (a *Allowlist) Authorized(id int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, ok := a.static[id]; ok {
		return true
	}
	_, ok := a.file[id]
	return ok
}

// Reload re-reads the allow-list file and replaces the file-based set.
func (a *Allowlist) Reload() error {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("authz: read %s: %w", a.path, err)
	}
	var f allowlistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("authz: parse %s: %w", a.path, err)
	}

	next := make(map[int64]struct{}, len(f.Operators))
	for _, id := range f.Operators {
		next[id] = struct{}{}
	}

	a.mu.Lock()
	a.file = next
	a.mu.Unlock()

	a.logger.Info("authz: allow-list loaded", slog.Int("operators", len(next)))
	return nil
}

// Watch follows the allow-list file with fsnotify until ctx is cancelled,
// reloading after each write. The parent directory is watched so that
// editors doing rename-replace saves are still picked up; reloads are
// debounced.
func (a *Allowlist) Watch(ctx context.Context) error {
	if a.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(a.path)); err != nil {
		return fmt.Errorf("authz: watch %s: %w", a.path, err)
	}

	a.logger.Info("authz: watching allow-list", slog.String("path", a.path))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			a.logger.Info("authz: watcher stopped")
			return nil

		case <-reloadCh:
			if err := a.Reload(); err != nil {
				a.logger.Warn("authz: reload failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(a.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.Error("authz: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
