package registry

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultDebounce = 200 * time.Millisecond

// ReloadFunc is called after every reload attempt. On failure reg is nil and the previous
// snapshot stays current.
type ReloadFunc func(reg *Registry, err error)

// Watcher keeps a current snapshot and rebuilds it wholesale whenever an MRO file on the
// search path changes.
type Watcher struct {
	dirs     []string
	opts     []Option
	logger   *zap.Logger
	fsw      *fsnotify.Watcher
	current  atomic.Pointer[Registry]
	debounce time.Duration
}

// NewWatcher loads the initial snapshot and subscribes to every existing search path directory.
func NewWatcher(ctx context.Context, dirs []string, opts ...Option) (*Watcher, error) {
	reg, err := Load(ctx, dirs, opts...)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create file watcher")
	}

	w := &Watcher{
		dirs:     dirs,
		opts:     opts,
		logger:   newOptions(opts).logger,
		fsw:      fsw,
		debounce: defaultDebounce,
	}
	w.current.Store(reg)

	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("unable to watch search path directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	return w, nil
}

// Current returns the latest successfully loaded snapshot.
func (w *Watcher) Current() *Registry {
	return w.current.Load()
}

// Run processes file events until ctx is cancelled. Bursts of events are coalesced into a
// single reload.
func (w *Watcher) Run(ctx context.Context, onReload ReloadFunc) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("mro file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", zap.Error(err))

		case <-timer.C:
			reg, err := Load(ctx, w.dirs, w.opts...)
			if err != nil {
				w.logger.Error("registry reload failed, keeping previous snapshot", zap.Error(err))
			} else {
				w.current.Store(reg)
				w.logger.Info("registry reloaded", zap.Int("stages", len(reg.stages)))
			}
			if onReload != nil {
				onReload(reg, err)
			}
		}
	}
}

// Close releases the underlying file watcher.
func (w *Watcher) Close() error {
	return errors.Wrap(w.fsw.Close(), "unable to close file watcher")
}

func relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, Extension) {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
