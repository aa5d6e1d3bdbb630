package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/rules"
)

const defaultDebounce = 200 * time.Millisecond

// RulesWatcher holds the engine for a rules file and reloads it when the file
// changes. A reload that fails validation keeps the previous engine.
type RulesWatcher struct {
	path     string
	opts     []rules.Option
	debounce time.Duration
	logger   *zap.Logger
	engine   atomic.Pointer[rules.Engine]
}

// NewRulesWatcher loads the rules file at path. The file must be valid.
func NewRulesWatcher(path string, logger *zap.Logger, opts ...rules.Option) (*RulesWatcher, error) {
	w := &RulesWatcher{
		path:     filepath.Clean(path),
		opts:     opts,
		debounce: defaultDebounce,
		logger:   logger.Named("rules"),
	}
	engine, err := rules.LoadFile(w.path, w.opts...)
	if err != nil {
		return nil, err
	}
	w.engine.Store(engine)
	return w, nil
}

// Engine returns the most recently loaded engine.
func (w *RulesWatcher) Engine() *rules.Engine {
	return w.engine.Load()
}

// Reload reads the rules file again and swaps the engine on success.
func (w *RulesWatcher) Reload() error {
	engine, err := rules.LoadFile(w.path, w.opts...)
	if err != nil {
		w.logger.Error("rules reload failed, keeping previous rules", zap.String("path", w.path), zap.Error(err))
		return err
	}
	w.engine.Store(engine)
	w.logger.Info("rules reloaded", zap.String("path", w.path), zap.Int("rules", len(engine.Rules())))
	return nil
}

// Watch reloads the rules whenever the file is written, created or renamed
// into place, until ctx is done. The parent directory is watched so editors
// that replace the file are picked up.
func (w *RulesWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching rules file", zap.String("path", w.path))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("rules file event", zap.String("op", event.Op.String()))
			pending = time.After(w.debounce)

		case <-pending:
			pending = nil
			_ = w.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}
