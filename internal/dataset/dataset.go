// Package dataset holds the cleaned, typed output table.
package dataset

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Type is a column's value type.
type Type string

const (
	Text    Type = "text"
	Integer Type = "integer"
	Float   Type = "float"
)

// ParseType validates a type name. "int" and "number" are accepted aliases.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string":
		return Text, nil
	case "integer", "int":
		return Integer, nil
	case "float", "number", "double":
		return Float, nil
	}
	return "", fmt.Errorf("unknown column type %q", s)
}

// Column is one typed column. Exactly one of Strings, Ints or Floats is set,
// matching Type.
type Column struct {
	Name    string
	Type    Type
	Strings []string
	Ints    []sql.NullInt64
	Floats  []sql.NullFloat64
}

// Len returns the number of values.
func (c Column) Len() int {
	switch c.Type {
	case Integer:
		return len(c.Ints)
	case Float:
		return len(c.Floats)
	default:
		return len(c.Strings)
	}
}

// Value returns row i as a driver-friendly value: string, int64, float64 or
// nil for null numbers.
func (c Column) Value(i int) any {
	switch c.Type {
	case Integer:
		if !c.Ints[i].Valid {
			return nil
		}
		return c.Ints[i].Int64
	case Float:
		if !c.Floats[i].Valid {
			return nil
		}
		return c.Floats[i].Float64
	default:
		return c.Strings[i]
	}
}

// Format renders row i as text; nulls render as "".
func (c Column) Format(i int) string {
	switch v := c.Value(i).(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// IsNull reports whether row i is null. Empty text counts as null.
func (c Column) IsNull(i int) bool {
	switch c.Type {
	case Integer:
		return !c.Ints[i].Valid
	case Float:
		return !c.Floats[i].Valid
	default:
		return c.Strings[i] == ""
	}
}

// Dataset is an ordered set of equally long columns.
type Dataset struct {
	// Table names the source table the dataset was built from.
	Table   string
	Columns []Column
	rows    int
}

// New returns an empty dataset with a fixed row count.
func New(table string, rows int) *Dataset {
	return &Dataset{Table: table, rows: rows}
}

// Add appends c. Its length must match the dataset's row count and its name
// must be new.
func (d *Dataset) Add(c Column) error {
	if c.Len() != d.rows {
		return fmt.Errorf("column %q has %d values, dataset has %d rows", c.Name, c.Len(), d.rows)
	}
	if _, ok := d.index(c.Name); ok {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	d.Columns = append(d.Columns, c)
	return nil
}

// Len returns the row count.
func (d *Dataset) Len() int { return d.rows }

// Width returns the column count.
func (d *Dataset) Width() int { return len(d.Columns) }

// Empty reports whether the dataset has no columns.
func (d *Dataset) Empty() bool { return len(d.Columns) == 0 }

// Names returns column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.index(name)
	if !ok {
		return Column{}, false
	}
	return d.Columns[i], true
}

// Rename changes a column name. It fails when old is missing or new is taken.
func (d *Dataset) Rename(old, new string) error {
	i, ok := d.index(old)
	if !ok {
		return fmt.Errorf("no column %q", old)
	}
	if old == new {
		return nil
	}
	if _, taken := d.index(new); taken {
		return fmt.Errorf("column %q already exists", new)
	}
	d.Columns[i].Name = new
	return nil
}

// Row returns row i as driver-friendly values in column order.
func (d *Dataset) Row(i int) []any {
	out := make([]any, len(d.Columns))
	for j, c := range d.Columns {
		out[j] = c.Value(i)
	}
	return out
}

// Record returns row i formatted as text in column order.
func (d *Dataset) Record(i int) []string {
	out := make([]string, len(d.Columns))
	for j, c := range d.Columns {
		out[j] = c.Format(i)
	}
	return out
}

func (d *Dataset) index(name string) (int, bool) {
	for i, c := range d.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}
