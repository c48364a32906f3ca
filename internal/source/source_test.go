package source

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDetectKind(t *testing.T) {
	t.Parallel()

	tests := map[string]Kind{
		"export.xlsx":     Spreadsheet,
		"EXPORT.XLS":      Spreadsheet,
		"a/b/c.xlsm":      Spreadsheet,
		"export.csv":      Delimited,
		"export.txt":      Delimited,
		"export.tsv":      Delimited,
		"export":          Delimited,
		"export.whatever": Delimited,
	}
	for name, want := range tests {
		if got := DetectKind(name); got != want {
			t.Fatalf("DetectKind(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSniff(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ContainerWorkbook, Sniff([]byte("PK\x03\x04rest")))
	assert.Equal(t, ContainerLegacy, Sniff([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0}))
	assert.Equal(t, ContainerHTML, Sniff([]byte("\xEF\xBB\xBF\n  <html><table>")))
	assert.Equal(t, ContainerText, Sniff([]byte("排名\t商品\n")))
}

func workbookBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	require.NoError(t, f.SetSheetName("Sheet1", "抖音销量榜"))
	require.NoError(t, f.SetSheetRow("抖音销量榜", "A1", &[]any{"抖音销量榜"}))
	require.NoError(t, f.SetSheetRow("抖音销量榜", "A2", &[]any{"排名", "商品", "佣金比例"}))
	require.NoError(t, f.SetSheetRow("抖音销量榜", "A3", &[]any{"1", "好物", "20%"}))
	_, err := f.NewSheet("说明")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("说明", "A1", &[]any{"readme"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadSheets_Workbook(t *testing.T) {
	t.Parallel()

	sheets, err := ReadSheets(New("x.xlsx", workbookBytes(t)))
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, "抖音销量榜", sheets[0].Name)
	assert.Equal(t, []string{"排名", "商品", "佣金比例"}, sheets[0].Rows[1])
	assert.Equal(t, "说明", sheets[1].Name)
	assert.NoError(t, sheets[0].Err)
}

func TestReadSheets_HTMLExport(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<table>
  <tr><td colspan="3">抖音销量榜</td></tr>
  <tr><th>排名</th><th>商品</th><th>佣金比例</th></tr>
  <tr><td>1</td><td> 好物 </td><td>20%</td></tr>
</table></body></html>`
	sheets, err := ReadSheets(New("export.xls", []byte(html)))
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, [][]string{
		{"抖音销量榜", "", ""},
		{"排名", "商品", "佣金比例"},
		{"1", "好物", "20%"},
	}, sheets[0].Rows)
}

func TestReadSheets_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadSheets(New("old.xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}))
	assert.True(t, errors.Is(err, ErrUnsupportedContainer), "err=%v", err)

	_, err = ReadSheets(New("tsv.xls", []byte("排名\t商品\n1\tx\n")))
	assert.True(t, errors.Is(err, ErrNotSpreadsheet), "err=%v", err)

	_, err = ReadSheets(New("broken.xlsx", []byte("PK\x03\x04garbage")))
	assert.Error(t, err)
}

func TestSpool_RemovesFile(t *testing.T) {
	t.Parallel()

	var seen string
	err := Spool(context.Background(), strings.NewReader("a,b\n"), ".csv", func(path string) error {
		seen = path
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "a,b\n", string(data))
		assert.True(t, strings.HasSuffix(path, ".csv"))
		return nil
	})
	require.NoError(t, err)
	_, statErr := os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr), "temp file must be removed")
}

func TestSpool_RemovesFileOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var seen string
	err := Spool(context.Background(), strings.NewReader("x"), "", func(path string) error {
		seen = path
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, statErr := os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSpool_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := Spool(ctx, strings.NewReader("x"), "", func(string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	_, err := Open("/definitely/not/here.csv")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
