package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"datacleaner/internal/cleaner"
	"datacleaner/internal/output"
	"datacleaner/internal/probe"
	"datacleaner/internal/quality"
	"datacleaner/internal/source"
)

// stdinName is the source name given to input read from stdin.
const stdinName = "stdin"

// runClean cleans one file. FILE "-" spools stdin to a temp file with -ext;
// "-o -" writes the dataset to stdout.
func runClean(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		c         common
		outPath   string
		format    string
		table     string
		force     bool
		withStats bool
		ext       string
	)
	fs := newFlagSet("clean", stderr, &c)
	fs.StringVar(&outPath, "o", "", `output path ("-" for stdout; default <input>_cleaned.<ext>)`)
	fs.StringVar(&format, "format", "", "output format: csv|jsonl|xlsx (default from -o, then config)")
	fs.StringVar(&table, "table", "", "clean the table with this name instead of the selected one")
	fs.BoolVar(&force, "force", false, "overwrite an existing output file")
	fs.BoolVar(&withStats, "quality", false, "print a data quality report")
	fs.StringVar(&ext, "ext", ".csv", `extension that decides how stdin is read when FILE is "-"`)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "clean: exactly one FILE is required")
		fs.Usage()
		return 2
	}
	input := fs.Arg(0)
	if input == "-" && outPath == "" {
		fmt.Fprintln(stderr, `clean: -o is required when reading stdin`)
		return 2
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	a, code := setup(ctx, c, stderr)
	if a == nil {
		return code
	}
	defer a.close()

	if format == "" && (outPath == "" || outPath == "-") {
		format = a.cfg.Output.Format
	}
	pathForFormat := outPath
	if outPath == "-" {
		pathForFormat = ""
	}
	f, err := output.FormatFor(pathForFormat, format)
	if err != nil {
		fmt.Fprintf(stderr, "clean: %v\n", err)
		return 2
	}
	if outPath == "" {
		outPath = output.DefaultPath(input, a.cfg.Output.Dir, f)
	}

	repo, err := a.openStorage(ctx)
	if err != nil {
		a.log.Printf("%v", err)
		return 1
	}

	clean := func(src source.RawSource) error {
		var res *cleaner.Result
		var err error
		if table != "" {
			res, err = a.engine.ProcessTable(ctx, src, table)
		} else {
			res, err = a.engine.Process(ctx, src)
		}
		if err != nil {
			return err
		}
		a.logDiagnostics(res)

		if outPath == "-" {
			if err := output.Write(stdout, res.Dataset, f); err != nil {
				return fmt.Errorf("write stdout: %w", err)
			}
		} else if err := output.WriteFile(outPath, res.Dataset, f, force); err != nil {
			return err
		}
		if repo != nil {
			if err := a.load(ctx, repo, res); err != nil {
				return err
			}
		}

		if withStats {
			w := stdout
			if outPath == "-" {
				w = stderr
			}
			if err := quality.Build(res.Dataset, res.Diagnostics).Write(w); err != nil {
				return err
			}
		}
		a.log.Printf("cleaned %s: table=%s rows=%d columns=%d warnings=%d -> %s",
			res.Source, res.Table, res.Dataset.Len(), res.Dataset.Width(), len(res.Diagnostics.Warnings()), outPath)
		if a.verbose {
			a.logRows()
		}
		return nil
	}

	if input == "-" {
		err = source.Spool(ctx, stdin, ext, func(p string) error {
			src, err := source.Open(p)
			if err != nil {
				return err
			}
			src.Name = stdinName + ext
			return clean(src)
		})
	} else {
		var src source.RawSource
		src, err = source.Open(input)
		if err == nil {
			err = clean(src)
		}
	}
	if err != nil {
		if errors.Is(err, output.ErrExists) {
			a.log.Printf("%v (use -force to overwrite)", err)
			return 1
		}
		a.log.Printf("clean %s: %v", input, err)
		return 1
	}
	return 0
}

// runBatch cleans every file matching -pattern in DIR. One file failing does
// not stop the others, but makes the exit code 1.
func runBatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		c       common
		pattern string
		workers int
		outDir  string
		format  string
		force   bool
	)
	fs := newFlagSet("batch", stderr, &c)
	fs.StringVar(&pattern, "pattern", "*.csv", "glob of files to clean inside DIR")
	fs.IntVar(&workers, "workers", 0, "files cleaned concurrently (default from config)")
	fs.StringVar(&outDir, "out", "", "output directory (default config output.dir, then DIR/cleaned)")
	fs.StringVar(&format, "format", "", "output format: csv|jsonl|xlsx (default from config)")
	fs.BoolVar(&force, "force", false, "overwrite existing output files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "batch: exactly one DIR is required")
		fs.Usage()
		return 2
	}
	if workers < 0 {
		fmt.Fprintln(stderr, "-workers must be >= 0")
		return 2
	}
	dir := fs.Arg(0)

	a, code := setup(ctx, c, stderr)
	if a == nil {
		return code
	}
	defer a.close()

	if format == "" {
		format = a.cfg.Output.Format
	}
	f, err := output.FormatFor("", format)
	if err != nil {
		fmt.Fprintf(stderr, "batch: %v\n", err)
		return 2
	}
	if outDir == "" {
		outDir = a.cfg.Output.Dir
	}
	if outDir == "" {
		outDir = filepath.Join(dir, "cleaned")
	}
	if workers == 0 {
		workers = a.cfg.Runtime.Workers
	}

	files, err := cleaner.FindFiles(dir, pattern)
	if err != nil {
		a.log.Printf("batch: %v", err)
		return 1
	}
	if len(files) == 0 {
		a.log.Printf("batch: no files matching %q in %s", pattern, dir)
		return 1
	}

	repo, err := a.openStorage(ctx)
	if err != nil {
		a.log.Printf("%v", err)
		return 1
	}
	// One load at a time keeps SQLite free of lock contention.
	var loadMu sync.Mutex

	outputs := make(map[string]string, len(files))
	for _, p := range files {
		outputs[p] = output.DefaultPath(p, outDir, f)
	}

	if a.verbose {
		a.log.Printf("batch: files=%d workers=%d out=%s format=%s", len(files), cleaner.ClampWorkers(workers), outDir, f)
	}
	results := a.engine.ProcessFiles(ctx, files, workers, func(ctx context.Context, path string, res *cleaner.Result) error {
		a.logDiagnostics(res)
		if err := output.WriteFile(outputs[path], res.Dataset, f, force); err != nil {
			return err
		}
		if repo == nil {
			return nil
		}
		loadMu.Lock()
		defer loadMu.Unlock()
		return a.load(ctx, repo, res)
	})

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(stdout, "FAIL\t%s\t%v\n", r.Path, r.Err)
			continue
		}
		fmt.Fprintf(stdout, "ok\t%s\t%s\trows=%d\t%s\n", r.Path, r.Result.Table, r.Result.Dataset.Len(), outputs[r.Path])
	}
	ok, failed := cleaner.Summarize(results)
	a.log.Printf("batch: processed %d files: ok=%d failed=%d", len(results), ok, failed)
	if a.verbose {
		a.logRows()
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// runInfo prints the tables found in FILE.
func runInfo(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		c      common
		asJSON bool
	)
	fs := newFlagSet("info", stderr, &c)
	fs.BoolVar(&asJSON, "json", false, "print JSON instead of text")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "info: exactly one FILE is required")
		fs.Usage()
		return 2
	}

	a, code := setup(ctx, c, stderr)
	if a == nil {
		return code
	}
	defer a.close()

	src, err := source.Open(fs.Arg(0))
	if err != nil {
		a.log.Printf("info: %v", err)
		return 1
	}
	tables, err := a.engine.Diagnose(ctx, src)
	if err != nil {
		a.log.Printf("info %s: %v", src.Name, err)
		return 1
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			a.log.Printf("encode: %v", err)
			return 1
		}
		return 0
	}

	for _, name := range cleaner.SortedTables(tables) {
		t := tables[name]
		fmt.Fprintf(stdout, "%s\trows=%d\tcolumns=%d", name, t.RowCount, t.ColumnCount)
		if t.Sheet != "" {
			fmt.Fprintf(stdout, "\tsheet=%s", t.Sheet)
		}
		fmt.Fprintf(stdout, "\n  %s\n", strings.Join(t.ColumnNames, ", "))
	}
	return 0
}

// runProbe profiles the tables in FILE and prints a suggested
// classification.
func runProbe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		c        common
		yamlOnly bool
	)
	fs := newFlagSet("probe", stderr, &c)
	fs.BoolVar(&yamlOnly, "yaml", false, "print only the suggested classification YAML")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "probe: exactly one FILE is required")
		fs.Usage()
		return 2
	}

	a, code := setup(ctx, c, stderr)
	if a == nil {
		return code
	}
	defer a.close()

	src, err := source.Open(fs.Arg(0))
	if err != nil {
		a.log.Printf("probe: %v", err)
		return 1
	}
	ex, err := a.engine.Extract(ctx, src)
	if err != nil {
		a.log.Printf("probe %s: %v", src.Name, err)
		return 1
	}
	profiles := probe.Profile(ex.Blocks)

	if !yamlOnly {
		if ex.Encoding != "" {
			fmt.Fprintf(stdout, "encoding: %s\tdelimiter: %q\n\n", ex.Encoding, ex.Delimiter)
		}
		if err := probe.WriteReport(stdout, profiles); err != nil {
			a.log.Printf("probe: %v", err)
			return 1
		}
		if len(profiles) == 0 {
			return 0
		}
		fmt.Fprintln(stdout, "\n# suggested classification")
	}
	y, err := probe.SuggestYAML(profiles)
	if err != nil {
		a.log.Printf("probe: %v", err)
		return 1
	}
	if _, err := stdout.Write(y); err != nil {
		return 1
	}
	return 0
}
