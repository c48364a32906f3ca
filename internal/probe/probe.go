// Package probe profiles the raw tables found in a source and suggests a
// column classification for them.
//
// The probe is responsible for:
//   - Counting values and bounded distinct values per column
//   - Inferring how each column should be read (text, integer, float or one
//     of the fuzzy kinds)
//   - Rendering a uniqueness report and a classification YAML that can be
//     pasted into the config file and refined by hand
//
// All inference is best-effort. Malformed cells lower a column's parse ratio;
// they never fail the probe.
package probe

import (
	"strings"

	"datacleaner/internal/normalize"
	"datacleaner/internal/segment"
)

// ColumnKind is the inferred reading of a column.
type ColumnKind string

const (
	KindEmpty        ColumnKind = "empty"
	KindText         ColumnKind = "text"
	KindInteger      ColumnKind = "integer"
	KindFloat        ColumnKind = "float"
	KindNumber       ColumnKind = "number"
	KindPercent      ColumnKind = "percent"
	KindRange        ColumnKind = "range"
	KindPercentRange ColumnKind = "percent_range"
)

// Fuzzy reports whether the kind needs the fuzzy normalizer.
func (k ColumnKind) Fuzzy() bool {
	switch k {
	case KindNumber, KindPercent, KindRange, KindPercentRange:
		return true
	}
	return false
}

const (
	distinctCapPerColumn = 10000
	// minParsedRatio is the share of values that must parse before a column
	// is treated as numeric.
	minParsedRatio = 0.9
	maxExamples    = 3
)

// ColumnProfile describes one column of a raw table.
type ColumnProfile struct {
	Name string `json:"name"`
	// Values counts non-blank cells; it is the denominator for every ratio.
	Values   int  `json:"values"`
	Distinct int  `json:"distinct"`
	Capped   bool `json:"capped,omitempty"`

	Parsed   int `json:"parsed"`
	Ranges   int `json:"ranges"`
	Percents int `json:"percents"`
	Units    int `json:"units"`
	Decimals int `json:"decimals"`

	Kind     ColumnKind `json:"kind"`
	Examples []string   `json:"examples,omitempty"`
}

// Uniqueness is Distinct/Values, or 0 for an empty column.
func (c ColumnProfile) Uniqueness() float64 {
	if c.Values == 0 {
		return 0
	}
	return float64(c.Distinct) / float64(c.Values)
}

// ParsedRatio is the share of values the fuzzy parser accepted.
func (c ColumnProfile) ParsedRatio() float64 {
	if c.Values == 0 {
		return 0
	}
	return float64(c.Parsed) / float64(c.Values)
}

// TableProfile describes one raw table.
type TableProfile struct {
	Name    string          `json:"name"`
	Sheet   string          `json:"sheet,omitempty"`
	Rows    int             `json:"rows"`
	Columns []ColumnProfile `json:"columns"`
}

// Profile profiles every block in order.
func Profile(blocks []segment.Block) []TableProfile {
	out := make([]TableProfile, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, ProfileBlock(b))
	}
	return out
}

// ProfileBlock profiles one block. Rows shorter than the header contribute
// nothing for the missing cells.
func ProfileBlock(b segment.Block) TableProfile {
	tp := TableProfile{
		Name:    b.Name,
		Sheet:   b.Sheet,
		Rows:    len(b.Rows),
		Columns: make([]ColumnProfile, len(b.Header)),
	}
	for j, name := range b.Header {
		values := make([]string, 0, len(b.Rows))
		for _, r := range b.Rows {
			if j < len(r) {
				values = append(values, r[j])
			}
		}
		tp.Columns[j] = profileColumn(name, values)
	}
	return tp
}

func profileColumn(name string, values []string) ColumnProfile {
	c := ColumnProfile{Name: name}
	set := make(map[string]struct{})

	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		c.Values++

		if !c.Capped {
			set[v] = struct{}{}
			if len(set) >= distinctCapPerColumn {
				c.Capped = true
				set = nil
			}
		}
		if len(c.Examples) < maxExamples && !containsString(c.Examples, v) {
			c.Examples = append(c.Examples, v)
		}

		r, err := normalize.ParseValue(v)
		if err != nil || !r.Valid {
			continue
		}
		c.Parsed++
		if r.Min != r.Max || strings.ContainsAny(v, "~～〜") {
			c.Ranges++
		}
		if strings.ContainsAny(v, "%％") {
			c.Percents++
		}
		if strings.ContainsAny(v, "万wW") {
			c.Units++
		}
		if strings.Contains(v, ".") {
			c.Decimals++
		}
	}

	if c.Capped {
		c.Distinct = distinctCapPerColumn
	} else {
		c.Distinct = len(set)
	}
	c.Kind = inferKind(c)
	return c
}

// inferKind picks the most specific reading the parsed values support. Any
// range or percent sign makes the column fuzzy, since a single "1w~2w" cell
// would otherwise be lost by a plain numeric cast.
func inferKind(c ColumnProfile) ColumnKind {
	if c.Values == 0 {
		return KindEmpty
	}
	if c.ParsedRatio() < minParsedRatio {
		return KindText
	}
	switch {
	case c.Ranges > 0 && c.Percents > 0:
		return KindPercentRange
	case c.Ranges > 0:
		return KindRange
	case c.Percents > 0:
		return KindPercent
	case c.Units > 0, c.Parsed < c.Values:
		return KindNumber
	case c.Decimals > 0:
		return KindFloat
	}
	return KindInteger
}

func containsString(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
