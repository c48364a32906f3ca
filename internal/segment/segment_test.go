package segment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datacleaner/internal/diag"
	"datacleaner/internal/grid"
)

var header = []string{"排名", "商品", "佣金比例", "近30天销量", "店铺", "品牌"}

func dataRow(i int) []string {
	return []string{fmt.Sprint(i), fmt.Sprintf("好物%d", i), "20%", "1w~2w", fmt.Sprintf("店%d", i), "某品牌"}
}

func TestSegment_TwoHeadersSplitGrid(t *testing.T) {
	t.Parallel()

	rows := make([][]string, 15)
	rows[0] = []string{"抖音销量榜"}
	rows[1] = []string{"更新时间 2024-05-01"}
	rows[2] = header
	for i := 3; i <= 8; i++ {
		rows[i] = dataRow(i)
	}
	rows[9] = header
	for i := 10; i <= 14; i++ {
		rows[i] = dataRow(i)
	}

	blocks, diags := New(DefaultVocabulary()).Segment(grid.FromRows(rows), "main")
	require.Empty(t, diags)
	require.Len(t, blocks, 2)

	first, second := blocks[0], blocks[1]
	assert.Equal(t, "抖音销量榜", first.Name)
	assert.Equal(t, 2, first.HeaderRow)
	require.Len(t, first.Rows, 6)
	assert.Equal(t, "3", first.Rows[0][0])
	assert.Equal(t, "8", first.Rows[5][0])

	assert.Equal(t, "table_2", second.Name)
	assert.Equal(t, 9, second.HeaderRow)
	require.Len(t, second.Rows, 5)
	assert.Equal(t, "10", second.Rows[0][0])
	assert.Equal(t, "14", second.Rows[4][0])

	for _, b := range blocks {
		assert.Equal(t, PassStrict, b.Pass)
		assert.Equal(t, "main", b.Sheet)
		for _, r := range b.Rows {
			assert.Len(t, r, len(b.Header))
		}
	}
}

func TestSegment_DropsBlankRowsAndEmptyBlocks(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		header,
		header, // immediately followed by another header: empty block
		dataRow(1),
		{"", "", "", "", "", ""},
		dataRow(2),
	}
	blocks, _ := New(DefaultVocabulary()).Segment(grid.FromRows(rows), "")
	require.Len(t, blocks, 1)
	assert.Equal(t, 1, blocks[0].HeaderRow)
	assert.Equal(t, "table_2", blocks[0].Name)
	assert.Len(t, blocks[0].Rows, 2)
}

func TestSegment_HeaderNamesBlankAndDuplicate(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"排名", "商品", "", "商品", "佣金比例", "商品"},
		dataRow(1),
	}
	blocks, _ := New(DefaultVocabulary()).Segment(grid.FromRows(rows), "")
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{"排名", "商品", "col_2", "商品_1", "佣金比例", "商品_2"}, blocks[0].Header)
}

func TestUniqueHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"商品", "商品", "商品"}, []string{"商品", "商品_1", "商品_2"}},
		{[]string{" a ", "", "a"}, []string{"a", "col_1", "a_1"}},
		{[]string{"a", "a", "a_1"}, []string{"a", "a_2", "a_1"}},
		{nil, []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UniqueHeader(tt.in), "UniqueHeader(%q)", tt.in)
	}
}

func TestScore_Rules(t *testing.T) {
	t.Parallel()

	s := New(DefaultVocabulary())
	tests := []struct {
		name   string
		cells  []string
		width  int
		strict bool
	}{
		{"two keywords four cells", []string{"商品", "销量", "x", "y"}, 4, true},
		{"two keywords three cells", []string{"商品", "销量", "x"}, 3, false},
		{"one keyword five cells", []string{"店铺", "a", "b", "c", "d"}, 5, true},
		{"core combo three cells", []string{"排名", "佣金比例", "x"}, 3, true},
		{"core combo too sparse for width", []string{"排名", "佣金比例", "x"}, 8, false},
		{"ratio boundary excluded", []string{"商品", "销量", "x", "y"}, 10, false},
		{"duplicates count once", []string{"商品", "商品", "x", "y"}, 4, false},
		{"no keywords", []string{"a", "b", "c", "d", "e"}, 5, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			row := make(grid.Row, tt.width)
			for i, c := range tt.cells {
				row[i] = grid.NewCell(c)
			}
			sc := s.Score(row, tt.width)
			assert.Equal(t, tt.strict, sc.Strict(), "score=%+v", sc)
		})
	}
}

func TestSegment_RelaxedPass(t *testing.T) {
	t.Parallel()

	// One keyword and three values: fails every strict rule.
	rows := [][]string{
		{"店铺", "地区", "评分"},
		{"店A", "杭州", "4.8"},
	}
	blocks, diags := New(DefaultVocabulary()).Segment(grid.FromRows(rows), "s")
	require.Len(t, blocks, 1)
	assert.Equal(t, PassRelaxed, blocks[0].Pass)
	assert.Equal(t, 1, diags.Count(diag.RelaxedHeader))
}

func TestScore_Relaxed(t *testing.T) {
	t.Parallel()

	s := New(DefaultVocabulary())
	tests := []struct {
		name  string
		cells []string
		want  bool
	}{
		{"one keyword three cells", []string{"店铺", "地区", "评分"}, true},
		{"repeated cells still count", []string{"店铺", "店铺", "x"}, true},
		{"two cells", []string{"店铺", "地区"}, false},
		{"no keyword", []string{"a", "b", "c", "d"}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			row := make(grid.Row, len(tt.cells))
			for i, c := range tt.cells {
				row[i] = grid.NewCell(c)
			}
			sc := s.Score(row, len(row))
			assert.Equal(t, tt.want, sc.Relaxed(), "score=%+v", sc)
		})
	}
}

func TestSegment_FallbackToFirstWideRow(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"report"},
		{"id", "name", "score"},
		{"1", "x", "9"},
		{"2", "y", "8"},
	}
	blocks, diags := New(DefaultVocabulary()).Segment(grid.FromRows(rows), "s")
	require.Len(t, blocks, 1)
	b := blocks[0]
	assert.Equal(t, PassFallback, b.Pass)
	assert.Equal(t, "table_1", b.Name)
	assert.Equal(t, []string{"id", "name", "score"}, b.Header)
	assert.Len(t, b.Rows, 2)
	assert.Equal(t, 0, b.KeywordMatches)
	assert.Equal(t, 1, diags.Count(diag.FallbackHeader))
}

func TestSegment_NothingFound(t *testing.T) {
	t.Parallel()

	s := New(DefaultVocabulary())
	blocks, _ := s.Segment(grid.FromRows([][]string{{"a", "b"}, {"c"}}), "")
	assert.Empty(t, blocks)

	blocks, _ = s.Segment(grid.Grid{}, "")
	assert.Empty(t, blocks)

	// A fallback header with nothing under it yields no block either.
	blocks, _ = s.Segment(grid.FromRows([][]string{{"a", "b", "c"}}), "")
	assert.Empty(t, blocks)
}

func TestSegment_TitleLookback(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"直播销量榜"},
		{"note 1"},
		{"note 2"},
		{"note 3"},
		header,
		dataRow(1),
	}
	blocks, _ := New(DefaultVocabulary()).Segment(grid.FromRows(rows), "")
	require.Len(t, blocks, 1)
	assert.Equal(t, "table_1", blocks[0].Name, "title four rows up is out of reach")

	rows[1] = []string{"SKU", "商品库", "2024"}
	blocks, _ = New(DefaultVocabulary()).Segment(grid.FromRows(rows), "")
	require.Len(t, blocks, 1)
	assert.Equal(t, "SKU 商品库 2024", blocks[0].Name)
}

func TestSelection(t *testing.T) {
	t.Parallel()

	blocks := []Block{
		{Name: "table_1", KeywordMatches: 0},
		{Name: "商品卡销量榜", KeywordMatches: 3},
		{Name: "直播销量榜", KeywordMatches: 2},
	}

	b, ok := MostKeywords(blocks)
	require.True(t, ok)
	assert.Equal(t, "商品卡销量榜", b.Name)

	b, ok = ByPriority(blocks, DefaultPriority, DefaultNameMarkers)
	require.True(t, ok)
	assert.Equal(t, "直播销量榜", b.Name)

	b, ok = ByPriority([]Block{{Name: "table_1", KeywordMatches: 1}, {Name: "table_2", KeywordMatches: 4}}, DefaultPriority, DefaultNameMarkers)
	require.True(t, ok)
	assert.Equal(t, "table_2", b.Name)

	_, ok = MostKeywords(nil)
	assert.False(t, ok)
}

func TestDisambiguateAndFind(t *testing.T) {
	t.Parallel()

	blocks := Disambiguate([]Block{{Name: "table_1"}, {Name: "table_1"}, {Name: "抖音销量榜"}})
	assert.Equal(t, "table_1_1", blocks[1].Name)

	b, ok := Find(blocks, "抖音销量榜")
	require.True(t, ok)
	assert.Equal(t, "抖音销量榜", b.Name)
	_, ok = Find(blocks, "missing")
	assert.False(t, ok)
}

func TestBlock_Column(t *testing.T) {
	t.Parallel()

	b := Block{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}, {"3", "4"}}}
	col, ok := b.Column("b")
	require.True(t, ok)
	assert.Equal(t, []string{"2", "4"}, col)
	_, ok = b.Column("z")
	assert.False(t, ok)
}

func BenchmarkSegment(b *testing.B) {
	rows := [][]string{{"抖音销量榜"}, header}
	for i := 0; i < 5000; i++ {
		rows = append(rows, dataRow(i))
	}
	g := grid.FromRows(rows)
	s := New(DefaultVocabulary())
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = s.Segment(g, "")
	}
}

func TestSegment_TitleLikeDataRowStaysInBlock(t *testing.T) {
	t.Parallel()

	rows := make([][]string, 15)
	rows[0] = []string{"销量榜"}
	rows[1] = []string{"更新时间 2024-05-01"}
	rows[2] = header
	for i := 3; i <= 8; i++ {
		rows[i] = dataRow(i)
	}
	rows[6] = []string{"4", "抖音同款T恤", "20%", "1w~2w", "店", ""}
	rows[9] = header
	for i := 10; i <= 14; i++ {
		rows[i] = dataRow(i)
	}

	blocks, _ := New(DefaultVocabulary()).Segment(grid.FromRows(rows), "")
	require.Len(t, blocks, 2)
	require.Len(t, blocks[0].Rows, 6, "rows 3..8 belong to the first block")
	assert.Equal(t, "抖音同款T恤", blocks[0].Rows[3][1])
	assert.Equal(t, "8", blocks[0].Rows[5][0])

	assert.Equal(t, "4 抖音同款T恤 20% 1w~2w 店", blocks[1].Name)
	require.Len(t, blocks[1].Rows, 5)
	assert.Equal(t, "10", blocks[1].Rows[0][0])
}

func TestSegment_BlockRunsToNextHeader(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"抖音销量榜"},
		header,
		dataRow(1),
		dataRow(2),
		{"直播销量榜"},
		header,
		dataRow(3),
	}
	blocks, _ := New(DefaultVocabulary()).Segment(grid.FromRows(rows), "")
	require.Len(t, blocks, 2)
	assert.Equal(t, "抖音销量榜", blocks[0].Name)
	require.Len(t, blocks[0].Rows, 3)
	assert.Equal(t, "直播销量榜", blocks[0].Rows[2][0])
	assert.Equal(t, "直播销量榜", blocks[1].Name)
	assert.Len(t, blocks[1].Rows, 1)
}
