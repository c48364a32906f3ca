// Package cleaner wires the cleaning stages together and exposes the caller
// contract: Process turns one export into a cleaned dataset, Diagnose lists the
// tables it contains.
//
// An Engine is immutable once built and safe for concurrent use; every call
// works on its own copy of the data.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"datacleaner/internal/charset"
	"datacleaner/internal/dataset"
	"datacleaner/internal/diag"
	"datacleaner/internal/grid"
	"datacleaner/internal/metrics"
	"datacleaner/internal/project"
	"datacleaner/internal/segment"
	"datacleaner/internal/source"
)

var (
	// ErrNoTableFound means segmentation produced no table at all.
	ErrNoTableFound = errors.New("no table found")
	// ErrSchemaProjectionEmpty means the chosen table has no classified column.
	ErrSchemaProjectionEmpty = errors.New("no configured column in table")
	// ErrTableNotFound means ProcessTable was asked for a name that is not there.
	ErrTableNotFound = errors.New("table not found")
)

// Logger is the subset of *log.Logger the engine uses.
type Logger interface {
	Printf(format string, v ...any)
}

// Selection is the strategy for choosing the table Process cleans.
type Selection string

const (
	// SelectMostKeywords picks the table whose header matched the most
	// vocabulary keywords.
	SelectMostKeywords Selection = "keywords"
	// SelectPriority picks by known table title first.
	SelectPriority Selection = "priority"
)

// Options configures an Engine. Zero values fall back to the defaults.
type Options struct {
	Vocabulary     segment.Vocabulary
	Classification project.Classification
	// Mapping renames output columns (old -> new). Nil means no renaming.
	Mapping   map[string]string
	Selection Selection
	// Priority overrides segment.DefaultPriority for SelectPriority.
	Priority []string

	Logger  Logger
	Metrics metrics.Backend
}

// Engine runs the cleaning pipeline.
type Engine struct {
	opts     Options
	sniffer  *charset.Sniffer
	seg      *segment.Segmenter
	newRunID func() string
}

// New validates opts and builds an Engine.
func New(opts Options) (*Engine, error) {
	opts.Vocabulary = segment.DefaultVocabulary().Merge(opts.Vocabulary)
	if opts.Classification.Empty() {
		opts.Classification = project.DefaultClassification()
	}
	if err := opts.Classification.Validate(); err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}
	switch opts.Selection {
	case "":
		opts.Selection = SelectMostKeywords
	case SelectMostKeywords, SelectPriority:
	default:
		return nil, fmt.Errorf("unknown table selection %q", opts.Selection)
	}
	if len(opts.Priority) == 0 {
		opts.Priority = segment.DefaultPriority
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	return &Engine{
		opts:     opts,
		sniffer:  charset.NewSniffer(),
		seg:      segment.New(opts.Vocabulary),
		newRunID: uuid.NewString,
	}, nil
}

// Result is the outcome of cleaning one source.
type Result struct {
	RunID  string
	Source string
	// Table is the name of the cleaned table; Tables lists every table found.
	Table  string
	Tables []string
	// Encoding and Delimiter are empty for workbook input.
	Encoding  string
	Delimiter rune
	// RowsIn is the chosen table's data row count.
	RowsIn      int
	Dataset     *dataset.Dataset
	Diagnostics diag.List
}

// Extraction is everything found in a source before projection.
type Extraction struct {
	Encoding    string
	Delimiter   rune
	Blocks      []segment.Block
	Diagnostics diag.List
}

// TableInfo describes one table for Diagnose.
type TableInfo struct {
	Ordinal     int      `json:"ordinal"`
	Sheet       string   `json:"sheet,omitempty"`
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
	ColumnNames []string `json:"column_names"`
}

// Process cleans the table chosen by the engine's selection strategy.
func (e *Engine) Process(ctx context.Context, src source.RawSource) (*Result, error) {
	return e.process(ctx, src, "")
}

// ProcessTable cleans the table named table.
func (e *Engine) ProcessTable(ctx context.Context, src source.RawSource, table string) (*Result, error) {
	if table == "" {
		return nil, fmt.Errorf("%s: empty table name: %w", src.Name, ErrTableNotFound)
	}
	return e.process(ctx, src, table)
}

// Diagnose lists every table in src without cleaning it. A source with no
// table fails with ErrNoTableFound.
func (e *Engine) Diagnose(ctx context.Context, src source.RawSource) (map[string]TableInfo, error) {
	ex, err := e.Extract(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(ex.Blocks) == 0 {
		return nil, fmt.Errorf("%s: %w", src.Name, ErrNoTableFound)
	}
	out := make(map[string]TableInfo, len(ex.Blocks))
	for i, b := range ex.Blocks {
		out[b.Name] = TableInfo{
			Ordinal:     i + 1,
			Sheet:       b.Sheet,
			RowCount:    len(b.Rows),
			ColumnCount: len(b.Header),
			ColumnNames: append([]string(nil), b.Header...),
		}
	}
	return out, nil
}

// SortedTables returns the names of a Diagnose result in discovery order.
func SortedTables(tables map[string]TableInfo) []string {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return tables[names[i]].Ordinal < tables[names[j]].Ordinal })
	return names
}

// Extract decodes, tokenizes and segments src.
func (e *Engine) Extract(ctx context.Context, src source.RawSource) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		ex  *Extraction
		err error
	)
	if src.Kind == source.Spreadsheet {
		ex, err = e.extractSheets(ctx, src)
		if errors.Is(err, source.ErrNotSpreadsheet) {
			e.opts.Logger.Printf("%s: spreadsheet name but text content; reading as delimited text", src.Name)
			ex, err = e.extractText(ctx, src)
		}
	} else {
		ex, err = e.extractText(ctx, src)
	}
	metrics.ObserveStage(e.opts.Metrics, "extract", start, err)
	if err != nil {
		return nil, err
	}
	ex.Blocks = segment.Disambiguate(ex.Blocks)
	return ex, nil
}

func (e *Engine) extractText(ctx context.Context, src source.RawSource) (*Extraction, error) {
	res, diags := e.sniffer.Sniff(src.Data)
	text, err := charset.Decode(src.Data, res)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, delim := grid.Tokenize(charset.Lines(text))
	blocks, segDiags := e.seg.Segment(g, "")
	return &Extraction{
		Encoding:    res.Name,
		Delimiter:   delim,
		Blocks:      blocks,
		Diagnostics: append(diags, segDiags...),
	}, nil
}

func (e *Engine) extractSheets(ctx context.Context, src source.RawSource) (*Extraction, error) {
	sheets, err := source.ReadSheets(src)
	if err != nil {
		return nil, err
	}
	ex := &Extraction{}
	for _, sh := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sh.Err != nil {
			ex.Diagnostics = append(ex.Diagnostics, diag.Diagnostic{
				Severity: diag.Warning,
				Code:     diag.SheetUnreadable,
				Stage:    "source",
				Table:    sh.Name,
				Row:      -1,
				Message:  sh.Err.Error(),
			})
			continue
		}
		if len(sh.Rows) == 0 {
			continue
		}
		blocks, diags := e.seg.Segment(grid.FromRows(sh.Rows), sh.Name)
		ex.Blocks = append(ex.Blocks, blocks...)
		ex.Diagnostics = append(ex.Diagnostics, diags...)
	}
	return ex, nil
}

func (e *Engine) process(ctx context.Context, src source.RawSource, table string) (res *Result, err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		e.opts.Metrics.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"status": status, "reason": reason(err)})
	}()

	ex, err := e.Extract(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(ex.Blocks) == 0 {
		return nil, fmt.Errorf("%s: %w", src.Name, ErrNoTableFound)
	}

	block, err := e.choose(ex.Blocks, table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	ds, diags := project.Project(block, e.opts.Classification)
	if ds.Empty() {
		err = fmt.Errorf("%s: table %q: %w", src.Name, block.Name, ErrSchemaProjectionEmpty)
		metrics.ObserveStage(e.opts.Metrics, "project", start, err)
		return nil, err
	}
	diags = append(diags, project.Rename(ds, e.opts.Mapping)...)
	metrics.ObserveStage(e.opts.Metrics, "project", start, nil)

	all := append(ex.Diagnostics, diags...)
	e.record(ds, len(block.Rows), all)

	names := make([]string, len(ex.Blocks))
	for i, b := range ex.Blocks {
		names[i] = b.Name
	}
	e.opts.Logger.Printf("%s: table %q rows=%d columns=%d diagnostics=%d", src.Name, block.Name, ds.Len(), ds.Width(), len(all))

	return &Result{
		RunID:       e.newRunID(),
		Source:      src.Name,
		Table:       block.Name,
		Tables:      names,
		Encoding:    ex.Encoding,
		Delimiter:   ex.Delimiter,
		RowsIn:      len(block.Rows),
		Dataset:     ds,
		Diagnostics: all,
	}, nil
}

func (e *Engine) choose(blocks []segment.Block, table string) (segment.Block, error) {
	if table != "" {
		b, ok := segment.Find(blocks, table)
		if !ok {
			return segment.Block{}, fmt.Errorf("%q: %w", table, ErrTableNotFound)
		}
		return b, nil
	}
	var (
		b  segment.Block
		ok bool
	)
	if e.opts.Selection == SelectPriority {
		b, ok = segment.ByPriority(blocks, e.opts.Priority, segment.DefaultNameMarkers)
	} else {
		b, ok = segment.MostKeywords(blocks)
	}
	if !ok {
		return segment.Block{}, ErrNoTableFound
	}
	return b, nil
}

func (e *Engine) record(ds *dataset.Dataset, rowsIn int, diags diag.List) {
	m := e.opts.Metrics
	m.IncCounter(metrics.RowsTotal, float64(rowsIn), metrics.Labels{"kind": "in"})
	m.IncCounter(metrics.RowsTotal, float64(ds.Len()), metrics.Labels{"kind": "out"})
	codes, counts := diags.CountByCode()
	for _, c := range codes {
		m.IncCounter(metrics.DiagnosticsTotal, float64(counts[c]), metrics.Labels{"code": string(c)})
	}
}

// reason maps an error to a low-cardinality metric label.
func reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNoTableFound):
		return "no_table"
	case errors.Is(err, ErrSchemaProjectionEmpty):
		return "empty_projection"
	case errors.Is(err, ErrTableNotFound):
		return "table_not_found"
	case errors.Is(err, source.ErrUnsupportedContainer):
		return "unsupported_container"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "other"
}
