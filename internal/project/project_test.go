package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datacleaner/internal/dataset"
	"datacleaner/internal/diag"
	"datacleaner/internal/normalize"
	"datacleaner/internal/segment"
)

func vendorBlock() segment.Block {
	return segment.Block{
		Name:   "抖音销量榜",
		Header: []string{"排名", "商品", "佣金比例", "近30天销量", "转化率", "备注", "直播销售额"},
		Rows: [][]string{
			{"1", "好物A", "20%", "7.5w~10w", "1%~2%", "x", "1,200.5"},
			{"2", "好物B", "5%", "1w-2.5w", "3%", "y", "N/A"},
			{"", "好物C", "", "N/A", "", "z", ""},
		},
	}
}

func TestProject_DefaultClassification(t *testing.T) {
	t.Parallel()

	ds, diags := Project(vendorBlock(), DefaultClassification())

	assert.Equal(t, []string{
		"排名", "商品", "佣金比例",
		"近30天销量_min", "近30天销量_max", "近30天销量_avg",
		"转化率_min", "转化率_max", "转化率_avg",
		"直播销售额",
	}, ds.Names(), "备注 is unlisted and must be dropped; raw fuzzy text must not survive")
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, "抖音销量榜", ds.Table)

	rank, _ := ds.Column("排名")
	assert.Equal(t, dataset.Integer, rank.Type)
	assert.Equal(t, int64(2), rank.Ints[1].Int64)
	assert.False(t, rank.Ints[2].Valid)

	ratio, _ := ds.Column("佣金比例")
	assert.Equal(t, 0.2, ratio.Floats[0].Float64)
	assert.Equal(t, 0.05, ratio.Floats[1].Float64)

	avg, _ := ds.Column("近30天销量_avg")
	assert.Equal(t, 87500.0, avg.Floats[0].Float64)
	assert.Equal(t, 17500.0, avg.Floats[1].Float64)
	assert.False(t, avg.Floats[2].Valid)

	conv, _ := ds.Column("转化率_max")
	assert.InDelta(t, 0.02, conv.Floats[0].Float64, 1e-12)

	live, _ := ds.Column("直播销售额")
	assert.Equal(t, 1200.5, live.Floats[0].Float64)
	assert.False(t, live.Floats[1].Valid)

	// One bad fuzzy cell and one bad numeric cell; blanks are silent.
	assert.Equal(t, 2, diags.Count(diag.ValueParseFailure))
	for _, d := range diags {
		assert.Equal(t, "抖音销量榜", d.Table)
	}
}

func TestProject_TextOnlyRoundTrip(t *testing.T) {
	t.Parallel()

	b := segment.Block{
		Name:   "t",
		Header: []string{"商品", "品牌", "小店"},
		Rows: [][]string{
			{"a", "b", "c"},
			{"", "  spaced  ", "x"},
			{"d", "e", ""},
		},
	}
	ds, diags := Project(b, Classification{Text: []string{"商品", "品牌", "小店"}})
	require.Empty(t, diags)
	require.Equal(t, b.Header, ds.Names())
	require.Equal(t, len(b.Rows), ds.Len())
	for i, row := range b.Rows {
		assert.Equal(t, row, ds.Record(i), "row %d", i)
	}
}

func TestProject_NoMatchingColumnsIsEmptyNotError(t *testing.T) {
	t.Parallel()

	b := segment.Block{Name: "t", Header: []string{"id", "name"}, Rows: [][]string{{"1", "x"}}}
	ds, diags := Project(b, DefaultClassification())
	assert.True(t, ds.Empty())
	assert.Empty(t, diags)
}

func TestProject_PatternsAndPrecedence(t *testing.T) {
	t.Parallel()

	c := Classification{
		Text:    []string{"*"},
		Numeric: []NumericRule{{Pattern: "*销售额", Type: dataset.Float}},
		Fuzzy:   []FuzzyRule{{Pattern: "近*销量", Kind: normalize.KindNumber}},
	}
	require.NoError(t, c.Validate())

	b := segment.Block{
		Name:   "t",
		Header: []string{"近7天销量", "直播销售额", "店铺"},
		Rows:   [][]string{{"1w~3w", "100", "s"}},
	}
	ds, _ := Project(b, c)
	require.Equal(t, []string{"近7天销量", "直播销售额", "店铺"}, ds.Names())

	sales, _ := ds.Column("近7天销量")
	assert.Equal(t, dataset.Float, sales.Type)
	assert.Equal(t, 20000.0, sales.Floats[0].Float64)

	shop, _ := ds.Column("店铺")
	assert.Equal(t, dataset.Text, shop.Type)
}

func TestProject_OutputNameCollision(t *testing.T) {
	t.Parallel()

	c := Classification{
		Text:  []string{"周销量_min"},
		Fuzzy: []FuzzyRule{{Pattern: "周销量", Kind: normalize.KindRange}},
	}
	b := segment.Block{Name: "t", Header: []string{"周销量_min", "周销量"}, Rows: [][]string{{"a", "1~2"}}}
	ds, diags := Project(b, c)
	assert.Equal(t, []string{"周销量_min", "周销量_max", "周销量_avg"}, ds.Names())
	assert.Equal(t, 1, diags.Count(diag.ColumnCollision))
}

func TestCastNumeric(t *testing.T) {
	t.Parallel()

	col, diags := castNumeric("排名", []string{"3", "4.0", "4.5", "", "x", "1，000"}, dataset.Integer)
	assert.Equal(t, int64(3), col.Ints[0].Int64)
	assert.Equal(t, int64(4), col.Ints[1].Int64)
	assert.False(t, col.Ints[2].Valid)
	assert.False(t, col.Ints[3].Valid)
	assert.False(t, col.Ints[4].Valid)
	assert.Equal(t, int64(1000), col.Ints[5].Int64)
	assert.Equal(t, 2, diags.Count(diag.ValueParseFailure))
}

func TestRename(t *testing.T) {
	t.Parallel()

	ds, _ := Project(vendorBlock(), DefaultClassification())
	diags := Rename(ds, map[string]string{
		"商品":         "product",
		"排名":         "rank",
		"近30天销量_avg": "sales_30d_avg",
		"佣金比例":       "product", // collides with the rename above
		"missing":    "ignored",
	})

	names := ds.Names()
	assert.Equal(t, "rank", names[0])
	assert.Equal(t, "product", names[1])
	assert.Equal(t, "佣金比例", names[2])
	assert.Contains(t, names, "sales_30d_avg")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.RenameCollision, diags[0].Code)

	assert.Nil(t, Rename(ds, nil))
}

func TestClassification_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultClassification().Validate())

	tests := []struct {
		name string
		c    Classification
	}{
		{"bad pattern", Classification{Text: []string{"[abc"}}},
		{"overlap", Classification{Text: []string{"排名"}, Numeric: []NumericRule{{Pattern: "排名", Type: dataset.Integer}}}},
		{"text numeric type", Classification{Numeric: []NumericRule{{Pattern: "x", Type: dataset.Text}}}},
		{"bad kind", Classification{Fuzzy: []FuzzyRule{{Pattern: "x", Kind: "ratio"}}}},
		{"empty pattern", Classification{Text: []string{""}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, tt.c.Validate())
		})
	}
}
