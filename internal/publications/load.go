package publications

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/avitech-lab/labsite/internal/bibtex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LoadFiles parses the given .bib files in parallel, returning them in
// the order given.
func LoadFiles(ctx context.Context, paths []string, logger *zap.Logger) ([]*bibtex.File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Loading bibliography files", zap.Int("count", len(paths)))

	files := make([]*bibtex.File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			logger.Debug("Processing file", zap.String("path", path))
			f, err := bibtex.ParseFile(path)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}
			for _, perr := range f.Errors {
				logger.Warn("Skipped malformed entry", zap.String("error", perr.Error()))
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// WriteMerged writes the merged bibliography: a comment header with the
// merge statistics, then each kept entry as it was written.
func WriteMerged(w io.Writer, res *Result, opts Options) error {
	s := res.Stats
	header := fmt.Sprintf(`%% Merged %s
%% Total entries: %d
%% Duplicates removed: %d
%% Filtered by year (< %d): %d
%% Filtered incomplete @misc: %d
%% Filtered no/invalid year: %d
%% Original total: %d

`, opts.Title, s.Kept, s.Duplicates, opts.MinYear, s.BeforeMinYear, s.IncompleteMisc, s.NoYear, s.Total)

	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	entries := make([]bibtex.Entry, len(res.Kept))
	for i, r := range res.Kept {
		entries[i] = r.Entry
	}
	return bibtex.Write(w, entries)
}

// WriteMergedFile writes the merged bibliography to path, creating parent
// directories as needed.
func WriteMergedFile(path string, res *Result, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteMerged(f, res, opts); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
