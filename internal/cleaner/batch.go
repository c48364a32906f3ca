package cleaner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"datacleaner/internal/source"
)

const (
	// DefaultWorkers is the batch concurrency when none is configured.
	DefaultWorkers = 4
	// MaxWorkers caps batch concurrency.
	MaxWorkers = 8
)

// ClampWorkers maps n into 1..MaxWorkers, using DefaultWorkers for n <= 0.
func ClampWorkers(n int) int {
	switch {
	case n <= 0:
		return DefaultWorkers
	case n > MaxWorkers:
		return MaxWorkers
	}
	return n
}

// FileResult is the outcome for one file of a batch.
type FileResult struct {
	Path    string
	Result  *Result
	Err     error
	Elapsed time.Duration
}

// Handler consumes a successful result, typically by writing it out. Its
// error is recorded on that file only.
type Handler func(ctx context.Context, path string, res *Result) error

// ProcessFiles cleans paths with at most workers files in flight. Results come
// back in input order. A failing file never stops the others; a cancelled
// context marks the files not yet finished as failed with ctx.Err().
func (e *Engine) ProcessFiles(ctx context.Context, paths []string, workers int, handle Handler) []FileResult {
	results := make([]FileResult, len(paths))

	var g errgroup.Group
	g.SetLimit(ClampWorkers(workers))
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			results[i] = e.processFile(ctx, p, handle)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) processFile(ctx context.Context, path string, handle Handler) (fr FileResult) {
	start := time.Now()
	fr.Path = path
	defer func() { fr.Elapsed = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		fr.Err = err
		return fr
	}
	src, err := source.Open(path)
	if err != nil {
		fr.Err = err
		return fr
	}
	res, err := e.Process(ctx, src)
	if err != nil {
		fr.Err = err
		return fr
	}
	if handle != nil {
		if err := handle(ctx, path, res); err != nil {
			fr.Err = fmt.Errorf("%s: %w", path, err)
			return fr
		}
	}
	fr.Result = res
	return fr
}

// Summarize counts successes and failures.
func Summarize(results []FileResult) (ok, failed int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}

// FindFiles returns the regular files in dir matching pattern, sorted.
func FindFiles(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.csv"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	files := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}
