// Package output writes a cleaned dataset as CSV, JSON Lines or an xlsx
// workbook.
//
// Files are written to a temporary name in the destination directory and
// renamed into place, so a failed run never leaves a half-written output.
package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"datacleaner/internal/dataset"
)

// Format is an output file format.
type Format string

const (
	CSV   Format = "csv"
	JSONL Format = "jsonl"
	XLSX  Format = "xlsx"
)

var (
	// ErrUnknownFormat is returned for an unsupported format name or extension.
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrExists is returned when the destination exists and overwrite is off.
	ErrExists = errors.New("output file exists")
)

// utf8BOM lets spreadsheet tools open the CSV as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, JSONL, XLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext is the file extension for f, with the dot.
func (f Format) Ext() string { return "." + string(f) }

// FormatFor resolves the format of path: an explicit name wins, otherwise the
// extension decides. A path with no extension is CSV.
func FormatFor(path, explicit string) (Format, error) {
	if strings.TrimSpace(explicit) != "" {
		return ParseFormat(explicit)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case "":
		return CSV, nil
	case ".json", ".ndjson":
		return JSONL, nil
	default:
		return ParseFormat(strings.TrimPrefix(ext, "."))
	}
}

// DefaultPath names the output for input: "<dir>/<stem>_cleaned.<ext>". An
// empty dir means next to the input.
func DefaultPath(input, dir string, f Format) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, stem+"_cleaned"+f.Ext())
}

// Write encodes ds to w in format f.
func Write(w io.Writer, ds *dataset.Dataset, f Format) error {
	switch f {
	case CSV:
		return WriteCSV(w, ds)
	case JSONL:
		return WriteJSONL(w, ds)
	case XLSX:
		return WriteXLSX(w, ds)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// WriteCSV writes a BOM, the header, then one record per row. Nulls are
// empty fields.
func WriteCSV(w io.Writer, ds *dataset.Dataset) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Names()); err != nil {
		return err
	}
	for i := 0; i < ds.Len(); i++ {
		if err := cw.Write(ds.Record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes one JSON object per row with keys in column order. Null
// numbers are JSON null; text stays a string even when empty.
func WriteJSONL(w io.Writer, ds *dataset.Dataset) error {
	bw := bufio.NewWriter(w)
	keys := make([][]byte, ds.Width())
	for j, name := range ds.Names() {
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[j] = k
	}

	for i := 0; i < ds.Len(); i++ {
		bw.WriteByte('{')
		for j, c := range ds.Columns {
			if j > 0 {
				bw.WriteByte(',')
			}
			bw.Write(keys[j])
			bw.WriteByte(':')
			v, err := json.Marshal(c.Value(i))
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", i, c.Name, err)
			}
			bw.Write(v)
		}
		bw.WriteString("}\n")
	}
	return bw.Flush()
}

// WriteXLSX writes ds to a single-sheet workbook named after the table.
// Numbers are stored as numbers and nulls as blank cells.
func WriteXLSX(w io.Writer, ds *dataset.Dataset) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := SheetName(ds.Table)
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("sheet name %q: %w", sheet, err)
		}
	}

	header := make([]any, ds.Width())
	for j, n := range ds.Names() {
		header[j] = n
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := 0; i < ds.Len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := ds.Row(i)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// SheetName makes table usable as a worksheet name: at most 31 characters,
// none of []:*?/\ and not blank.
func SheetName(table string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(table))
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if name == "" {
		return "Sheet1"
	}
	return name
}

// WriteFile writes ds to path atomically. The parent directory is created if
// needed. Without overwrite an existing path is left alone and ErrExists is
// returned.
func WriteFile(path string, ds *dataset.Dataset, f Format, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%q: %w", path, ErrExists)
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".datacleaner-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	writeErr := Write(tmp, ds, f)
	closeErr := tmp.Close()
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %q: %w", path, writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %q: %w", path, closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
