// Package diag carries recovered, non-fatal findings out of the cleaning
// stages as plain values.
//
// Stages never log on their own. Each one returns the diagnostics it produced
// next to its result, and the caller decides whether to log, count or assert
// on them.
package diag

import (
	"fmt"
	"sort"
)

// Severity ranks a diagnostic. Neither level aborts processing.
type Severity string

const (
	Info    Severity = "info"
	Warning Severity = "warning"
)

// Code identifies the kind of recovered failure.
type Code string

const (
	EncodingUndetermined Code = "encoding_undetermined"
	ValueParseFailure    Code = "value_parse_failure"
	RelaxedHeader        Code = "relaxed_header"
	FallbackHeader       Code = "fallback_header"
	SheetUnreadable      Code = "sheet_unreadable"
	RenameCollision      Code = "rename_collision"
	ColumnCollision      Code = "column_collision"
)

// Diagnostic is one recovered finding.
//
// Row is the zero-based data row inside the table it refers to, or -1 when the
// finding is not tied to a row.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Stage    string
	Table    string
	Column   string
	Row      int
	Value    string
	Message  string
}

func (d Diagnostic) String() string {
	loc := d.Stage
	if d.Table != "" {
		loc += " table=" + d.Table
	}
	if d.Column != "" {
		loc += " column=" + d.Column
	}
	if d.Row >= 0 {
		loc += fmt.Sprintf(" row=%d", d.Row)
	}
	if d.Value != "" {
		return fmt.Sprintf("%s [%s] %s: %s (value=%q)", d.Severity, d.Code, loc, d.Message, d.Value)
	}
	return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, loc, d.Message)
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// Count returns how many diagnostics carry code.
func (l List) Count(code Code) int {
	n := 0
	for _, d := range l {
		if d.Code == code {
			n++
		}
	}
	return n
}

// Warnings returns only the warning-level diagnostics.
func (l List) Warnings() List {
	var out List
	for _, d := range l {
		if d.Severity == Warning {
			out = append(out, d)
		}
	}
	return out
}

// CountByCode groups the list by code. Keys are returned sorted so reports are
// stable.
func (l List) CountByCode() (codes []Code, counts map[Code]int) {
	counts = make(map[Code]int)
	for _, d := range l {
		if _, ok := counts[d.Code]; !ok {
			codes = append(codes, d.Code)
		}
		counts[d.Code]++
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes, counts
}

// WithTable stamps table onto every diagnostic that has no table yet.
func (l List) WithTable(table string) List {
	for i := range l {
		if l[i].Table == "" {
			l[i].Table = table
		}
	}
	return l
}
