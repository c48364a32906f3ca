// Package normalize converts fuzzy, human-written numbers from vendor exports
// ("7.5w~10w", "20%", "1w-2.5w", "3.2万") into numeric values.
//
// Values are parsed one at a time. A value that cannot be parsed becomes null
// and produces a diagnostic; it never aborts the column.
package normalize

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"datacleaner/internal/diag"
)

// TenThousand is the multiplier for the "w"/"万" unit marker.
const TenThousand = 10000

// ErrUnparsable is wrapped by every ParseValue failure.
var ErrUnparsable = errors.New("unparsable value")

var decimalRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

var unitReplacer = strings.NewReplacer(
	"万", "w",
	"W", "w",
	"～", "~",
	"〜", "~",
	"％", "%",
)

// Range is the numeric reading of one cell. When Valid is false all three
// bounds are null together.
type Range struct {
	Min, Max, Avg float64
	Valid         bool
}

func single(v float64) Range { return Range{Min: v, Max: v, Avg: v, Valid: true} }

// Div divides every bound by d.
func (r Range) Div(d float64) Range {
	if !r.Valid || d == 1 {
		return r
	}
	return Range{Min: r.Min / d, Max: r.Max / d, Avg: r.Avg / d, Valid: true}
}

// ParseValue reads one cell.
//
// Blank input returns an invalid Range and a nil error. "%" is accepted and
// dropped without scaling; callers that know the column is a percentage divide
// by 100 themselves. Range bounds keep their written order, so "10w~5w" gives
// Min > Max.
func ParseValue(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, nil
	}
	norm := strings.ReplaceAll(unitReplacer.Replace(s), "%", "")
	norm = strings.TrimSpace(norm)

	lo, hi, isRange, err := splitRange(norm)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: %v", ErrUnparsable, s, err)
	}
	if !isRange {
		v, err := ParseNumber(norm)
		if err != nil {
			return Range{}, fmt.Errorf("%w: %q: %v", ErrUnparsable, s, err)
		}
		return single(v), nil
	}

	a, err := ParseNumber(lo)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: lower bound: %v", ErrUnparsable, s, err)
	}
	b, err := ParseNumber(hi)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: upper bound: %v", ErrUnparsable, s, err)
	}
	return Range{Min: a, Max: b, Avg: (a + b) / 2, Valid: true}, nil
}

// splitRange separates "a~b" or "a-b". A tilde must split into exactly two
// non-blank parts. A hyphen counts as a separator only after the first
// character and not inside an exponent or right after another separator, so
// "-5" and "1e-3" stay single numbers.
func splitRange(s string) (lo, hi string, ok bool, err error) {
	if strings.Contains(s, "~") {
		parts := strings.Split(s, "~")
		if len(parts) != 2 {
			return "", "", false, fmt.Errorf("want 2 range parts, got %d", len(parts))
		}
		lo, hi = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if lo == "" || hi == "" {
			return "", "", false, errors.New("blank range bound")
		}
		return lo, hi, true, nil
	}

	for i := 1; i < len(s); i++ {
		if s[i] != '-' {
			continue
		}
		switch s[i-1] {
		case 'e', 'E', '-', '+':
			continue
		}
		lo, hi = strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		if lo == "" || hi == "" {
			return "", "", false, errors.New("blank range bound")
		}
		return lo, hi, true, nil
	}
	return "", "", false, nil
}

// ParseNumber parses a single number with an optional trailing "w" unit
// marker. Input is expected to be unit-normalized already.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	mult := 1.0
	if strings.HasSuffix(s, "w") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "w"))
		mult = TenThousand
	}
	if !decimalRe.MatchString(s) {
		return 0, fmt.Errorf("not a decimal: %q", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return v * mult, nil
}

// Kind declares how a column is read.
type Kind string

const (
	// KindNumber yields one value per cell (the midpoint for ranges).
	KindNumber Kind = "number"
	// KindPercent is KindNumber divided by 100.
	KindPercent Kind = "percent"
	// KindRange yields min/max/avg per cell.
	KindRange Kind = "range"
	// KindPercentRange is KindRange divided by 100.
	KindPercentRange Kind = "percent_range"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindNumber, KindPercent, KindRange, KindPercentRange:
		return k, nil
	}
	return "", fmt.Errorf("unknown fuzzy kind %q", s)
}

// Triple reports whether the kind produces min/max/avg columns.
func (k Kind) Triple() bool { return k == KindRange || k == KindPercentRange }

func (k Kind) divisor() float64 {
	if k == KindPercent || k == KindPercentRange {
		return 100
	}
	return 1
}

// Column is the normalized output of one input column. Single-valued kinds
// fill Value; triple kinds fill Min, Max and Avg.
type Column struct {
	Kind          Kind
	Value         []sql.NullFloat64
	Min, Max, Avg []sql.NullFloat64
}

// Normalize parses every value of column name according to kind. Failures
// become nulls and ValueParseFailure diagnostics; blanks become nulls
// silently.
func Normalize(name string, values []string, kind Kind) (Column, diag.List) {
	out := Column{Kind: kind}
	if kind.Triple() {
		out.Min = make([]sql.NullFloat64, len(values))
		out.Max = make([]sql.NullFloat64, len(values))
		out.Avg = make([]sql.NullFloat64, len(values))
	} else {
		out.Value = make([]sql.NullFloat64, len(values))
	}

	var diags diag.List
	d := kind.divisor()
	for i, raw := range values {
		r, err := ParseValue(raw)
		if err != nil {
			diags = append(diags, diag.Diagnostic{
				Severity: diag.Warning,
				Code:     diag.ValueParseFailure,
				Stage:    "normalize",
				Column:   name,
				Row:      i,
				Value:    raw,
				Message:  err.Error(),
			})
			continue
		}
		if !r.Valid {
			continue
		}
		r = r.Div(d)
		if kind.Triple() {
			out.Min[i] = sql.NullFloat64{Float64: r.Min, Valid: true}
			out.Max[i] = sql.NullFloat64{Float64: r.Max, Valid: true}
			out.Avg[i] = sql.NullFloat64{Float64: r.Avg, Valid: true}
			continue
		}
		out.Value[i] = sql.NullFloat64{Float64: r.Avg, Valid: true}
	}
	return out, diags
}
