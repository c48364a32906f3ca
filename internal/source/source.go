// Package source loads export files into memory and, for spreadsheet
// containers, into per-sheet string rows.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Kind is the declared container kind of an input.
type Kind string

const (
	Delimited   Kind = "delimited"
	Spreadsheet Kind = "spreadsheet"
)

// ErrUnsupportedContainer is returned for spreadsheet formats that cannot be
// read (legacy binary .xls).
var ErrUnsupportedContainer = errors.New("unsupported spreadsheet container")

var spreadsheetExt = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xltx": true,
	".xls":  true,
}

// RawSource is one input file held in memory.
type RawSource struct {
	Name string
	Kind Kind
	Data []byte
}

// DetectKind classifies a file by extension. Unknown extensions are read as
// delimited text.
func DetectKind(name string) Kind {
	if spreadsheetExt[strings.ToLower(filepath.Ext(name))] {
		return Spreadsheet
	}
	return Delimited
}

// New wraps data read from name.
func New(name string, data []byte) RawSource {
	return RawSource{Name: name, Kind: DetectKind(name), Data: data}
}

// Open reads a file from disk.
func Open(path string) (RawSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RawSource{}, fmt.Errorf("read %q: %w", path, err)
	}
	return New(path, data), nil
}

// FromReader reads r to the end. name only drives kind detection.
func FromReader(name string, r io.Reader) (RawSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return RawSource{}, fmt.Errorf("read %q: %w", name, err)
	}
	return New(name, data), nil
}

// Spool copies r into a temporary file with the given extension, calls fn
// with its path, and removes the file on every return path. Cancelling ctx
// stops the copy.
func Spool(ctx context.Context, r io.Reader, ext string, fn func(path string) error) (err error) {
	f, err := os.CreateTemp("", "datacleaner-*"+ext)
	if err != nil {
		return fmt.Errorf("spool: %w", err)
	}
	path := f.Name()
	defer func() {
		_ = f.Close()
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = fmt.Errorf("spool cleanup: %w", rmErr)
		}
	}()

	if _, err := io.Copy(f, ctxReader{ctx: ctx, r: r}); err != nil {
		return fmt.Errorf("spool: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("spool: %w", err)
	}
	return fn(path)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
