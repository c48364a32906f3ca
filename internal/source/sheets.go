package source

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

// ErrNotSpreadsheet means a spreadsheet-named file holds plain text. Vendors
// ship tab-separated exports with an .xls name; callers read those as
// delimited text.
var ErrNotSpreadsheet = errors.New("content is not a spreadsheet")

// Sheet is one named grid of raw cell strings.
type Sheet struct {
	Name string
	Rows [][]string
	// Err is set when this sheet could not be read; other sheets are still
	// returned.
	Err error
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Container names the sniffed content of a spreadsheet source.
type Container string

const (
	ContainerWorkbook Container = "workbook"
	ContainerHTML     Container = "html"
	ContainerLegacy   Container = "legacy"
	ContainerText     Container = "text"
)

// Sniff looks at the leading bytes of data.
func Sniff(data []byte) Container {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return ContainerWorkbook
	case bytes.HasPrefix(data, oleMagic):
		return ContainerLegacy
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.TrimPrefix(head, []byte{0xEF, 0xBB, 0xBF})
	head = bytes.TrimSpace(head)
	if bytes.HasPrefix(head, []byte("<")) {
		return ContainerHTML
	}
	return ContainerText
}

// ReadSheets returns every sheet of a spreadsheet source in workbook order.
func ReadSheets(src RawSource) ([]Sheet, error) {
	switch Sniff(src.Data) {
	case ContainerWorkbook:
		return readWorkbook(src.Data)
	case ContainerHTML:
		return readHTMLTables(src.Data)
	case ContainerLegacy:
		return nil, fmt.Errorf("%s: %w (legacy binary .xls; save as .xlsx)", src.Name, ErrUnsupportedContainer)
	}
	return nil, fmt.Errorf("%s: %w", src.Name, ErrNotSpreadsheet)
}

func readWorkbook(data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			sheets = append(sheets, Sheet{Name: name, Err: fmt.Errorf("read sheet %q: %w", name, err)})
			continue
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

// readHTMLTables reads "xls" exports that are really HTML documents. Each
// <table> becomes a sheet; colspan is expanded with blank cells so columns
// stay aligned.
func readHTMLTables(data []byte) ([]Sheet, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var sheets []Sheet
	doc.Find("table").Each(func(i int, tbl *goquery.Selection) {
		var rows [][]string
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			// Nested tables are read on their own.
			if tr.ParentsFiltered("table").First().Get(0) != tbl.Get(0) {
				return
			}
			var row []string
			tr.ChildrenFiltered("th,td").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, strings.TrimSpace(cell.Text()))
				for n := colspan(cell); n > 1; n-- {
					row = append(row, "")
				}
			})
			rows = append(rows, row)
		})
		sheets = append(sheets, Sheet{Name: fmt.Sprintf("table%d", i+1), Rows: rows})
	})
	if len(sheets) == 0 {
		return nil, fmt.Errorf("html export: %w", ErrNotSpreadsheet)
	}
	return sheets, nil
}

func colspan(s *goquery.Selection) int {
	v, ok := s.Attr("colspan")
	if !ok {
		return 1
	}
	n := 0
	if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err != nil || n < 1 {
		return 1
	}
	if n > 256 {
		return 256
	}
	return n
}
