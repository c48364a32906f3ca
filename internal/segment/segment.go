// Package segment finds the header rows inside one grid and cuts the grid
// into independent, named table blocks.
//
// Header detection is deliberately permissive. Export headers vary in which
// known column names they carry, so a row qualifies on any of several low
// thresholds. A false positive only opens an extra block that is usually
// empty and dropped.
package segment

import (
	"fmt"
	"strconv"
	"strings"

	"datacleaner/internal/diag"
	"datacleaner/internal/grid"
)

// Pass records which detection rule produced a block.
type Pass string

const (
	PassStrict   Pass = "strict"
	PassRelaxed  Pass = "relaxed"
	PassFallback Pass = "fallback"
)

// titleLookback is how many rows above a header are searched for a title.
const titleLookback = 3

// Block is one table found in a grid.
type Block struct {
	Name  string
	Sheet string
	// HeaderRow is the grid index of the header row.
	HeaderRow int
	// Header has unique names and the same length as every row.
	Header []string
	Rows   [][]string
	// KeywordMatches is the header row's keyword score.
	KeywordMatches int
	Pass           Pass
}

// Column returns the values of the named column, or false when the block has
// no such column.
func (b Block) Column(name string) ([]string, bool) {
	idx := -1
	for i, h := range b.Header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r[idx]
	}
	return out, true
}

// Score is the header evidence computed for one row.
type Score struct {
	KeywordMatches int
	CoreMatches    int
	NonEmpty       int
	Width          int
}

// Strict reports whether the score passes the first-pass header rule.
func (s Score) Strict() bool {
	ok := (s.KeywordMatches >= 2 && s.NonEmpty >= 4) ||
		(s.KeywordMatches >= 1 && s.NonEmpty >= 5) ||
		(s.CoreMatches >= 2 && s.NonEmpty >= 3)
	if !ok || s.Width == 0 {
		return false
	}
	return float64(s.NonEmpty)/float64(s.Width) > 0.4
}

// Relaxed is the second-pass rule, used only when no row passes Strict.
func (s Score) Relaxed() bool {
	return s.KeywordMatches >= 1 && s.NonEmpty >= 3
}

// Segmenter splits grids into blocks using a fixed vocabulary. It holds no
// mutable state and is safe for concurrent use.
type Segmenter struct {
	vocab    Vocabulary
	keywords map[string]struct{}
	core     map[string]struct{}
}

// New returns a Segmenter for v.
func New(v Vocabulary) *Segmenter {
	return &Segmenter{
		vocab:    v,
		keywords: toSet(v.HeaderKeywords),
		core:     toSet(v.CoreCombo),
	}
}

// Score computes header evidence for row in a grid of the given width.
func (s *Segmenter) Score(row grid.Row, width int) Score {
	sc := Score{Width: width}
	seen := make(map[string]struct{}, len(row))
	for _, c := range row {
		if c.IsEmpty() {
			continue
		}
		sc.NonEmpty++
		if _, dup := seen[c.Value]; dup {
			continue
		}
		seen[c.Value] = struct{}{}
		if _, ok := s.keywords[c.Value]; ok {
			sc.KeywordMatches++
		}
		if _, ok := s.core[c.Value]; ok {
			sc.CoreMatches++
		}
	}
	return sc
}

// Segment cuts g into blocks. sheet labels the blocks and their diagnostics.
//
// The result is in header order and may be empty; an empty result is not an
// error here.
func (s *Segmenter) Segment(g grid.Grid, sheet string) ([]Block, diag.List) {
	if g.Len() == 0 {
		return nil, nil
	}

	var diags diag.List
	scores := make([]Score, g.Len())
	var headers []int
	for i, r := range g.Rows {
		scores[i] = s.Score(r, g.Width)
		if scores[i].Strict() {
			headers = append(headers, i)
		}
	}
	pass := PassStrict

	if len(headers) == 0 {
		for i, sc := range scores {
			if sc.Relaxed() {
				headers = append(headers, i)
			}
		}
		pass = PassRelaxed
		if len(headers) > 0 {
			diags = append(diags, diag.Diagnostic{
				Severity: diag.Info,
				Code:     diag.RelaxedHeader,
				Stage:    "segment",
				Table:    sheet,
				Row:      headers[0],
				Message:  fmt.Sprintf("no strict header row; relaxed rule matched %d row(s)", len(headers)),
			})
		}
	}

	if len(headers) == 0 {
		b, ok := s.fallback(g, sheet)
		if !ok {
			return nil, diags
		}
		diags = append(diags, diag.Diagnostic{
			Severity: diag.Warning,
			Code:     diag.FallbackHeader,
			Stage:    "segment",
			Table:    sheet,
			Row:      b.HeaderRow,
			Message:  "no header row detected; using first row with 3+ values as header",
		})
		return []Block{b}, diags
	}

	blocks := make([]Block, 0, len(headers))
	for i, h := range headers {
		end := g.Len()
		if i+1 < len(headers) {
			end = headers[i+1]
		}
		rows := dataRows(g.Rows[h+1 : end])
		if len(rows) == 0 {
			continue
		}
		blocks = append(blocks, Block{
			Name:           s.title(g, h, "table_"+strconv.Itoa(i+1)),
			Sheet:          sheet,
			HeaderRow:      h,
			Header:         UniqueHeader(g.Rows[h].Strings()),
			Rows:           rows,
			KeywordMatches: scores[h].KeywordMatches,
			Pass:           pass,
		})
	}
	return blocks, diags
}

// fallback treats the first row with at least three values as the header of
// everything below it.
func (s *Segmenter) fallback(g grid.Grid, sheet string) (Block, bool) {
	for i, r := range g.Rows {
		if r.NonEmpty() < 3 {
			continue
		}
		rows := dataRows(g.Rows[i+1:])
		if len(rows) == 0 {
			return Block{}, false
		}
		return Block{
			Name:           "table_1",
			Sheet:          sheet,
			HeaderRow:      i,
			Header:         UniqueHeader(r.Strings()),
			Rows:           rows,
			KeywordMatches: s.Score(r, g.Width).KeywordMatches,
			Pass:           PassFallback,
		}, true
	}
	return Block{}, false
}

// title returns the first row among the titleLookback rows above header that
// names a known table, or def.
func (s *Segmenter) title(g grid.Grid, header int, def string) string {
	for j := max(0, header-titleLookback); j < header; j++ {
		var parts []string
		for _, c := range g.Rows[j] {
			if !c.IsEmpty() {
				parts = append(parts, c.Value)
			}
		}
		text := strings.TrimSpace(strings.Join(parts, " "))
		if text == "" {
			continue
		}
		if containsAny(text, s.vocab.TableTitles) || containsAny(text, s.vocab.TitleMarkers) {
			return text
		}
	}
	return def
}

// dataRows copies rows as strings, dropping fully blank ones.
func dataRows(rows []grid.Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		if r.NonEmpty() == 0 {
			continue
		}
		out = append(out, r.Strings())
	}
	return out
}

// UniqueHeader names blank cells col_<j> and suffixes repeats with _1, _2 ...
func UniqueHeader(cells []string) []string {
	out := make([]string, len(cells))
	for j, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			c = "col_" + strconv.Itoa(j)
		}
		out[j] = c
	}
	return Dedupe(out)
}

// Dedupe suffixes repeated names with an occurrence counter. A generated name
// that is already taken keeps counting.
func Dedupe(names []string) []string {
	out := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	counts := make(map[string]int, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		if !used[n] {
			used[n] = true
			out[i] = n
			continue
		}
		for {
			counts[n]++
			cand := n + "_" + strconv.Itoa(counts[n])
			if !used[cand] && !taken[cand] {
				used[cand] = true
				out[i] = cand
				break
			}
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, k := range subs {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
