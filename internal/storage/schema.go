package storage

import (
	"fmt"
	"strings"

	"datacleaner/internal/dataset"
)

// ColumnType is a portable column type. Each backend maps it to its own DDL.
type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeInteger ColumnType = "integer"
	TypeFloat   ColumnType = "float"
)

// Lineage column names appended to every loaded table.
const (
	SourceFileColumn = "_source_file"
	RunIDColumn      = "_run_id"
)

// TableSpec describes a destination table. Name may be schema-qualified
// ("schema.table") for backends that support schemas.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

type ColumnSpec struct {
	Name string
	Type ColumnType
}

// ColumnNames returns the column names in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate rejects an unnamed table, unnamed or untyped columns and
// duplicate names (compared case-insensitively, as most databases do).
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		n := strings.ToLower(strings.TrimSpace(c.Name))
		if n == "" {
			return fmt.Errorf("table %s: column name is empty", t.Name)
		}
		switch c.Type {
		case TypeText, TypeInteger, TypeFloat:
		default:
			return fmt.Errorf("table %s: column %s: unsupported type %q", t.Name, c.Name, c.Type)
		}
		if seen[n] {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
		}
		seen[n] = true
	}
	return nil
}

// TableFor derives the spec for loading ds into table: the dataset's columns
// in order, then the lineage columns.
func TableFor(table string, ds *dataset.Dataset) TableSpec {
	t := TableSpec{Name: table, Columns: make([]ColumnSpec, 0, ds.Width()+2)}
	for _, c := range ds.Columns {
		t.Columns = append(t.Columns, ColumnSpec{Name: c.Name, Type: columnType(c.Type)})
	}
	t.Columns = append(t.Columns,
		ColumnSpec{Name: SourceFileColumn, Type: TypeText},
		ColumnSpec{Name: RunIDColumn, Type: TypeText},
	)
	return t
}

func columnType(t dataset.Type) ColumnType {
	switch t {
	case dataset.Integer:
		return TypeInteger
	case dataset.Float:
		return TypeFloat
	}
	return TypeText
}
