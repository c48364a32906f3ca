// Package quality summarizes a cleaned dataset: null counts, column types and
// basic statistics for numeric columns.
package quality

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"datacleaner/internal/dataset"
	"datacleaner/internal/diag"
)

// Summary describes the non-null values of one numeric column.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	StdDev float64 `json:"stddev"`
}

// Report is the quality overview of one dataset.
type Report struct {
	Table       string                  `json:"table"`
	Rows        int                     `json:"rows"`
	Columns     int                     `json:"columns"`
	Types       map[string]dataset.Type `json:"types"`
	Nulls       map[string]int          `json:"nulls"`
	Numeric     map[string]Summary      `json:"numeric"`
	Diagnostics map[diag.Code]int       `json:"diagnostics,omitempty"`

	order []string
}

// Build computes the report. diags may be nil.
func Build(ds *dataset.Dataset, diags diag.List) Report {
	r := Report{
		Table:   ds.Table,
		Rows:    ds.Len(),
		Columns: ds.Width(),
		Types:   make(map[string]dataset.Type, ds.Width()),
		Nulls:   make(map[string]int, ds.Width()),
		Numeric: make(map[string]Summary),
		order:   ds.Names(),
	}
	for _, c := range ds.Columns {
		r.Types[c.Name] = c.Type
		var values []float64
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				r.Nulls[c.Name]++
				continue
			}
			switch v := c.Value(i).(type) {
			case int64:
				values = append(values, float64(v))
			case float64:
				values = append(values, v)
			}
		}
		if c.Type != dataset.Text && len(values) > 0 {
			r.Numeric[c.Name] = summarize(values)
		}
	}
	if len(diags) > 0 {
		_, r.Diagnostics = diags.CountByCode()
	}
	return r
}

func summarize(values []float64) Summary {
	data := stats.Float64Data(values)
	s := Summary{Count: len(values)}
	// Errors only occur for empty input, which the caller rules out.
	s.Min, _ = stats.Min(data)
	s.Max, _ = stats.Max(data)
	s.Mean, _ = stats.Mean(data)
	s.Median, _ = stats.Median(data)
	s.P90, _ = stats.Percentile(data, 90)
	s.StdDev, _ = stats.StandardDeviation(data)
	return s
}

// NullRatio returns the share of null cells across the dataset.
func (r Report) NullRatio() float64 {
	if r.Rows == 0 || r.Columns == 0 {
		return 0
	}
	total := 0
	for _, n := range r.Nulls {
		total += n
	}
	return float64(total) / float64(r.Rows*r.Columns)
}

// Write prints a human-readable report.
func (r Report) Write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "table: %s\nrows: %d\ncolumns: %d\nnull ratio: %.2f%%\n", r.Table, r.Rows, r.Columns, r.NullRatio()*100)

	names := r.order
	if len(names) == 0 {
		for n := range r.Types {
			names = append(names, n)
		}
		sort.Strings(names)
	}
	for _, n := range names {
		fmt.Fprintf(&b, "  %-24s %-8s nulls=%d", n, r.Types[n], r.Nulls[n])
		if s, ok := r.Numeric[n]; ok {
			fmt.Fprintf(&b, " min=%g max=%g mean=%.4g median=%g p90=%g stddev=%.4g", s.Min, s.Max, s.Mean, s.Median, s.P90, s.StdDev)
		}
		b.WriteByte('\n')
	}
	if len(r.Diagnostics) > 0 {
		codes := make([]string, 0, len(r.Diagnostics))
		for c := range r.Diagnostics {
			codes = append(codes, string(c))
		}
		sort.Strings(codes)
		b.WriteString("diagnostics:\n")
		for _, c := range codes {
			fmt.Fprintf(&b, "  %s: %d\n", c, r.Diagnostics[diag.Code(c)])
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
