// Command datacleaner extracts the product table from messy vendor exports
// (CSV in any common Chinese encoding, xlsx/xls workbooks, HTML-table "xls"
// files) and writes it out as a clean, typed dataset.
//
// Usage:
//
//	datacleaner clean [-o OUT] [-format csv|jsonl|xlsx] [-table NAME] [-force] [-quality] FILE
//	datacleaner batch [-pattern GLOB] [-workers N] [-out DIR] [-format ...] DIR
//	datacleaner info [-json] FILE
//	datacleaner probe [-yaml] FILE
//	datacleaner version
//
// Every command accepts -config, -v, -metrics-backend, -storage-kind,
// -storage-dsn and -storage-table. A .env file in the working directory is
// loaded first; variables already set win.
//
// Exit codes:
//   - 0 on success
//   - 1 on operational errors, including any failed file in batch mode
//   - 2 on invalid CLI usage
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"datacleaner/internal/cleaner"
	"datacleaner/internal/config"
	"datacleaner/internal/metrics"
	"datacleaner/internal/metrics/datadog"
	"datacleaner/internal/storage"

	// register all backends with the storage factory.
	_ "datacleaner/internal/storage/all"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// defaultTable is the storage table when neither config nor flag names one.
const defaultTable = "cleaned_data"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is the testable entrypoint: it dispatches to a subcommand and returns
// the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "clean":
		return runClean(ctx, rest, stdin, stdout, stderr)
	case "batch":
		return runBatch(ctx, rest, stdout, stderr)
	case "info":
		return runInfo(ctx, rest, stdout, stderr)
	case "probe":
		return runProbe(ctx, rest, stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "datacleaner %s\n", version)
		return 0
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: datacleaner <command> [flags]

commands:
  clean    clean one file (FILE "-" reads stdin)
  batch    clean every matching file in a directory
  info     list the tables found in a file
  probe    profile the tables in a file and suggest a classification
  version  print the version

run "datacleaner <command> -h" for the flags of a command.
`)
}

// common holds the flags every command shares.
type common struct {
	configPath     string
	verbose        bool
	metricsBackend string
	storageKind    string
	storageDSN     string
	storageTable   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config YAML path (env "+config.EnvPath+", default "+config.DefaultPath+")")
	fs.BoolVar(&c.verbose, "v", false, "enable verbose logs")
	fs.StringVar(&c.metricsBackend, "metrics-backend", "", "metrics backend: none|datadog (overrides config)")
	fs.StringVar(&c.storageKind, "storage-kind", "", "load results into a database: sqlite|postgres|mssql (overrides config)")
	fs.StringVar(&c.storageDSN, "storage-dsn", "", "database DSN (overrides config and env "+config.EnvStorageDSN+")")
	fs.StringVar(&c.storageTable, "storage-table", "", "destination table (overrides config)")
}

// newFlagSet builds a subcommand flag set with the common flags registered.
func newFlagSet(name string, stderr io.Writer, c *common) *flag.FlagSet {
	fs := flag.NewFlagSet("datacleaner "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	c.register(fs)
	return fs
}

// app is the per-invocation wiring shared by the commands.
type app struct {
	cfg     config.Config
	log     *log.Logger
	verbose bool
	mem     *metrics.Memory
	metrics metrics.Backend
	engine  *cleaner.Engine
	closers []func()
}

// setup loads and validates the config, applies env and flag overrides,
// starts the metrics backend and builds the engine. On failure it has already
// reported to stderr and returns the exit code.
func setup(ctx context.Context, c common, stderr io.Writer) (*app, int) {
	logger := log.New(stderr, "datacleaner: ", log.LstdFlags)

	path, explicit := config.ResolvePath(c.configPath, os.Getenv)
	cfg, err := config.Load(path, explicit)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return nil, 1
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		fmt.Fprintf(stderr, "config env: %v\n", err)
		return nil, 1
	}
	if c.metricsBackend != "" {
		cfg.Metrics.Backend = c.metricsBackend
	}
	if c.storageKind != "" {
		cfg.Storage.Kind = c.storageKind
	}
	if c.storageDSN != "" {
		cfg.Storage.DSN = c.storageDSN
	}
	if c.storageTable != "" {
		cfg.Storage.Table = c.storageTable
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		if iss.Severity == config.SeverityError || c.verbose {
			fmt.Fprintln(stderr, iss.String())
		}
	}
	if config.HasErrors(issues) {
		logger.Printf("configuration is invalid: %s", path)
		return nil, 1
	}
	if c.verbose {
		logger.Printf("config: path=%s explicit=%t", path, explicit)
	}

	a := &app{cfg: cfg, log: logger, verbose: c.verbose, mem: metrics.NewMemory()}
	a.metrics = a.mem

	switch cfg.Metrics.Backend {
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName: cfg.Metrics.Job,
			Tags:    append(cfg.Metrics.Tags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...),
		})
		if err != nil {
			logger.Printf("metrics: failed to init datadog backend: %v; continuing without it", err)
			break
		}
		if c.verbose {
			logger.Printf("metrics: backend=datadog job=%s", cfg.Metrics.Job)
		}
		a.metrics = metrics.Fanout{a.mem, b}
		// Close stops the flush loop and submits what is left.
		a.closers = append(a.closers, func() {
			if err := b.Close(); err != nil {
				logger.Printf("metrics: datadog close/flush error: %v", err)
			}
		})
	case "", "none":
	}

	opts := cfg.EngineOptions()
	opts.Metrics = a.metrics
	if c.verbose {
		opts.Logger = logger
	}
	eng, err := cleaner.New(opts)
	if err != nil {
		a.close()
		fmt.Fprintf(stderr, "engine: %v\n", err)
		return nil, 1
	}
	a.engine = eng
	return a, 0
}

// close runs the closers in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openStorage opens the configured sink, or returns nil when none is set.
func (a *app) openStorage(ctx context.Context) (storage.Repository, error) {
	if a.cfg.Storage.Kind == "" {
		return nil, nil
	}
	repo, err := storage.New(ctx, storage.Config{Kind: a.cfg.Storage.Kind, DSN: a.cfg.Storage.DSN})
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", a.cfg.Storage.Kind, err)
	}
	a.closers = append(a.closers, repo.Close)
	return repo, nil
}

func (a *app) storageTable() string {
	if t := strings.TrimSpace(a.cfg.Storage.Table); t != "" {
		return t
	}
	return defaultTable
}

// load appends res to the sink.
func (a *app) load(ctx context.Context, repo storage.Repository, res *cleaner.Result) error {
	table := a.storageTable()
	n, err := storage.Load(ctx, repo, table, res.Dataset, storage.Lineage{SourceFile: res.Source, RunID: res.RunID}, a.cfg.Storage.BatchSize)
	if err != nil {
		return err
	}
	if a.verbose {
		a.log.Printf("storage: kind=%s table=%s rows=%d run=%s", a.cfg.Storage.Kind, table, n, res.RunID)
	}
	return nil
}

// logDiagnostics prints every recovered problem when verbose.
func (a *app) logDiagnostics(res *cleaner.Result) {
	if !a.verbose {
		return
	}
	for _, d := range res.Diagnostics {
		a.log.Printf("%s: %s", res.Source, d)
	}
}

// logRows prints the row totals collected by the in-memory backend.
func (a *app) logRows() {
	a.log.Printf("rows: in=%.0f out=%.0f",
		a.mem.Counter(metrics.RowsTotal, metrics.Labels{"kind": "in"}),
		a.mem.Counter(metrics.RowsTotal, metrics.Labels{"kind": "out"}))
}
