package probe

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"datacleaner/internal/dataset"
	"datacleaner/internal/normalize"
	"datacleaner/internal/project"
)

// Suggest builds a classification covering every non-empty column of the
// given tables. A column name seen in several tables keeps its first
// inference. Empty columns are left out, so they are dropped on projection.
func Suggest(tables []TableProfile) project.Classification {
	var c project.Classification
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, col := range t.Columns {
			if col.Kind == KindEmpty || seen[col.Name] {
				continue
			}
			seen[col.Name] = true
			switch col.Kind {
			case KindText:
				c.Text = append(c.Text, col.Name)
			case KindInteger:
				c.Numeric = append(c.Numeric, project.NumericRule{Pattern: col.Name, Type: dataset.Integer})
			case KindFloat:
				c.Numeric = append(c.Numeric, project.NumericRule{Pattern: col.Name, Type: dataset.Float})
			default:
				c.Fuzzy = append(c.Fuzzy, project.FuzzyRule{Pattern: col.Name, Kind: normalize.Kind(col.Kind)})
			}
		}
	}
	return c
}

// SuggestYAML renders Suggest(tables) as a config fragment under the
// "classification" key. Column names that contain path.Match metacharacters
// are escaped so they match literally.
func SuggestYAML(tables []TableProfile) ([]byte, error) {
	c := Suggest(tables)
	for i, n := range c.Text {
		c.Text[i] = escapePattern(n)
	}
	for i := range c.Numeric {
		c.Numeric[i].Pattern = escapePattern(c.Numeric[i].Pattern)
	}
	for i := range c.Fuzzy {
		c.Fuzzy[i].Pattern = escapePattern(c.Fuzzy[i].Pattern)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Classification project.Classification `yaml:"classification"`
	}{c}); err != nil {
		return nil, fmt.Errorf("encode classification: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var patternEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)

func escapePattern(name string) string {
	return patternEscaper.Replace(name)
}

// WriteReport prints one section per table: the columns sorted by
// uniqueness, with their inferred kind and parse ratio.
func WriteReport(w io.Writer, tables []TableProfile) error {
	var b strings.Builder
	if len(tables) == 0 {
		b.WriteString("no tables found\n")
	}
	for i, t := range tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "table: %s", t.Name)
		if t.Sheet != "" {
			fmt.Fprintf(&b, "\tsheet=%s", t.Sheet)
		}
		fmt.Fprintf(&b, "\trows=%d\tcolumns=%d\n", t.Rows, len(t.Columns))
		fmt.Fprintf(&b, "  %-20s\t%-13s\t%-7s\t%-7s\tunique\tparsed\texamples\n", "col", "kind", "values", "distinct")

		cols := append([]ColumnProfile(nil), t.Columns...)
		sort.SliceStable(cols, func(i, j int) bool {
			ui, uj := cols[i].Uniqueness(), cols[j].Uniqueness()
			if ui == uj {
				return cols[i].Name < cols[j].Name
			}
			return ui < uj
		})
		for _, c := range cols {
			distinct := fmt.Sprint(c.Distinct)
			if c.Capped {
				distinct += "+"
			}
			fmt.Fprintf(&b, "  %-20s\t%-13s\t%-7d\t%-7s\t%.1f%%\t%.1f%%\t%s\n",
				c.Name, c.Kind, c.Values, distinct, c.Uniqueness()*100, c.ParsedRatio()*100,
				strings.Join(c.Examples, " | "))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
