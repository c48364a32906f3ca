// Package project builds the cleaned dataset from one table block: it keeps
// the classified columns, casts or normalizes them, and applies the optional
// rename mapping.
package project

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"datacleaner/internal/dataset"
	"datacleaner/internal/diag"
	"datacleaner/internal/normalize"
	"datacleaner/internal/segment"
)

// Fuzzy range output suffixes.
const (
	SuffixMin = "_min"
	SuffixMax = "_max"
	SuffixAvg = "_avg"
)

var numericCleaner = strings.NewReplacer("%", "", "，", "", ",", "")

// Project builds a dataset from b using c. Columns appear in block header
// order; a fuzzy range column expands in place to its _min, _max and _avg
// columns.
//
// A block that matches no rule yields an empty dataset and no error; the
// caller decides whether that is fatal.
func Project(b segment.Block, c Classification) (*dataset.Dataset, diag.List) {
	ds := dataset.New(b.Name, len(b.Rows))
	var diags diag.List

	add := func(col dataset.Column) {
		if err := ds.Add(col); err != nil {
			diags = append(diags, diag.Diagnostic{
				Severity: diag.Warning,
				Code:     diag.ColumnCollision,
				Stage:    "project",
				Table:    b.Name,
				Column:   col.Name,
				Row:      -1,
				Message:  err.Error(),
			})
		}
	}

	for j, name := range b.Header {
		m := c.classify(name)
		if !m.found {
			continue
		}
		values := columnValues(b.Rows, j)

		switch m.set {
		case "fuzzy":
			nc, d := normalize.Normalize(name, values, m.kind)
			diags = append(diags, d...)
			if m.kind.Triple() {
				add(dataset.Column{Name: name + SuffixMin, Type: dataset.Float, Floats: nc.Min})
				add(dataset.Column{Name: name + SuffixMax, Type: dataset.Float, Floats: nc.Max})
				add(dataset.Column{Name: name + SuffixAvg, Type: dataset.Float, Floats: nc.Avg})
			} else {
				add(dataset.Column{Name: name, Type: dataset.Float, Floats: nc.Value})
			}
		case "numeric":
			col, d := castNumeric(name, values, m.typ)
			diags = append(diags, d...)
			add(col)
		default:
			add(dataset.Column{Name: name, Type: dataset.Text, Strings: values})
		}
	}
	return ds, diags.WithTable(b.Name)
}

// Rename applies an exact-match old -> new mapping. Unmapped columns keep
// their names. A rename onto an existing name is skipped and reported.
func Rename(ds *dataset.Dataset, mapping map[string]string) diag.List {
	if len(mapping) == 0 {
		return nil
	}
	var diags diag.List
	for _, old := range ds.Names() {
		to, ok := mapping[old]
		if !ok || to == "" || to == old {
			continue
		}
		if err := ds.Rename(old, to); err != nil {
			diags = append(diags, diag.Diagnostic{
				Severity: diag.Warning,
				Code:     diag.RenameCollision,
				Stage:    "rename",
				Table:    ds.Table,
				Column:   old,
				Row:      -1,
				Value:    to,
				Message:  err.Error(),
			})
		}
	}
	return diags
}

func columnValues(rows [][]string, j int) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		if j < len(r) {
			out[i] = r[j]
		}
	}
	return out
}

// castNumeric is the relaxed cast: percent signs and thousands separators are
// dropped, blanks become null, anything else that fails becomes null with a
// diagnostic.
func castNumeric(name string, values []string, typ dataset.Type) (dataset.Column, diag.List) {
	col := dataset.Column{Name: name, Type: typ}
	if typ == dataset.Integer {
		col.Ints = make([]sql.NullInt64, len(values))
	} else {
		col.Type = dataset.Float
		col.Floats = make([]sql.NullFloat64, len(values))
	}

	var diags diag.List
	for i, raw := range values {
		s := strings.TrimSpace(numericCleaner.Replace(raw))
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			err = fmt.Errorf("non-finite value")
		}
		if err == nil && col.Type == dataset.Integer && f != math.Trunc(f) {
			err = fmt.Errorf("not an integer")
		}
		if err != nil {
			diags = append(diags, diag.Diagnostic{
				Severity: diag.Warning,
				Code:     diag.ValueParseFailure,
				Stage:    "project",
				Column:   name,
				Row:      i,
				Value:    raw,
				Message:  fmt.Sprintf("cast to %s: %v", col.Type, err),
			})
			continue
		}
		if col.Type == dataset.Integer {
			col.Ints[i] = sql.NullInt64{Int64: int64(f), Valid: true}
		} else {
			col.Floats[i] = sql.NullFloat64{Float64: f, Valid: true}
		}
	}
	return col, diags
}
