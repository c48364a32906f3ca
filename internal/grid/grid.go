// Package grid turns decoded export lines into a rectangular grid of cells.
package grid

import (
	"encoding/csv"
	"strings"
)

// Kind tags a Cell.
type Kind uint8

const (
	Empty Kind = iota
	Text
)

// Cell is one grid cell. Text cells always hold trimmed, non-blank content;
// anything else is Empty. Cells never carry numbers: numeric meaning is
// assigned later by the normalizer.
type Cell struct {
	Kind  Kind
	Value string
}

// NewCell trims s and returns an Empty cell when nothing is left.
func NewCell(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: Text, Value: s}
}

func (c Cell) IsEmpty() bool  { return c.Kind == Empty }
func (c Cell) String() string { return c.Value }

// Row is an ordered run of cells.
type Row []Cell

// NonEmpty counts Text cells.
func (r Row) NonEmpty() int {
	n := 0
	for _, c := range r {
		if !c.IsEmpty() {
			n++
		}
	}
	return n
}

// Strings returns the cell values, with "" for Empty cells.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Value
	}
	return out
}

// Grid is a rectangular table: every row has Width cells.
type Grid struct {
	Rows  []Row
	Width int
}

// Len returns the number of rows.
func (g Grid) Len() int { return len(g.Rows) }

// FromRows builds a grid from raw string rows (a spreadsheet sheet, for
// example), trimming every cell and padding short rows with Empty cells.
func FromRows(rows [][]string) Grid {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	g := Grid{Rows: make([]Row, 0, len(rows)), Width: width}
	for _, r := range rows {
		row := make(Row, width)
		for j, s := range r {
			row[j] = NewCell(s)
		}
		g.Rows = append(g.Rows, row)
	}
	return g
}

// Strings returns the grid as plain string rows.
func (g Grid) Strings() [][]string {
	out := make([][]string, len(g.Rows))
	for i, r := range g.Rows {
		out[i] = r.Strings()
	}
	return out
}

// Lines serializes the grid back to delimited lines.
//
// Cells holding the delimiter or a quote are quoted so Tokenize reads them
// back unchanged.
func (g Grid) Lines(delim rune) []string {
	out := make([]string, len(g.Rows))
	var b strings.Builder
	for i, r := range g.Rows {
		b.Reset()
		for j, c := range r {
			if j > 0 {
				b.WriteRune(delim)
			}
			v := c.Value
			if strings.ContainsRune(v, delim) || strings.ContainsRune(v, '"') {
				v = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
			}
			b.WriteString(v)
		}
		out[i] = b.String()
	}
	return out
}

// splitLine splits one line on delim. Lines with quotes go through
// encoding/csv so quoted delimiters survive; a line csv cannot read is split
// plainly.
func splitLine(line string, delim rune) []string {
	if !strings.ContainsRune(line, '"') {
		return strings.Split(line, string(delim))
	}
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	rec, err := r.Read()
	if err != nil {
		return strings.Split(line, string(delim))
	}
	return rec
}
