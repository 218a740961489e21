package check

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avitech-lab/labsite/internal/tree"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default watch timings.
const (
	DefaultSettle      = 300 * time.Millisecond
	DefaultMinInterval = time.Second
)

// WatchOptions controls Watch.
type WatchOptions struct {
	Only        []string      // contributors to check, all when empty
	Settle      time.Duration // quiet period after the last event before rerunning
	MinInterval time.Duration // minimum time between two runs
	Logger      *zap.Logger
}

// Watch runs a check, then reruns it whenever a file under the
// bibliography or profile directories changes, until ctx is done.
// Templates are reloaded on every run. onReport is called from the
// watching goroutine.
func Watch(ctx context.Context, t *tree.Tree, opts WatchOptions, onReport func(*Report)) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range []string{t.BibsDir(), t.ProfilesDir()} {
		if err := addTree(w, dir); err != nil {
			return err
		}
	}

	run := func() error {
		report, err := NewChecker(t, logger).Run(ctx, opts.Only)
		if err != nil {
			return err
		}
		onReport(report)
		return nil
	}
	if err := run(); err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	limiter.Allow() // the initial run spends the first token

	tick := time.NewTicker(opts.Settle / 3)
	defer tick.Stop()

	var pending bool
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			logger.Debug("File changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						logger.Warn("Cannot watch directory", zap.String("path", ev.Name), zap.Error(err))
					}
				}
			}
			pending, last = true, time.Now()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))

		case <-tick.C:
			if !pending || time.Since(last) < opts.Settle {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			pending = false
			if err := run(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// addTree watches dir and every directory below it. A missing dir is
// skipped.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
