package grid

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		wantKind  Kind
		wantValue string
	}{
		{"  商品 ", Text, "商品"},
		{"", Empty, ""},
		{" \t ", Empty, ""},
		{"0", Text, "0"},
	}
	for _, tt := range tests {
		got := NewCell(tt.in)
		if got.Kind != tt.wantKind || got.Value != tt.wantValue {
			t.Fatalf("NewCell(%q) = %+v, want kind=%v value=%q", tt.in, got, tt.wantKind, tt.wantValue)
		}
	}
}

func TestDetectDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lines []string
		want  rune
	}{
		{"tab", []string{"a\tb\tc", "1\t2\t3"}, '\t'},
		{"comma", []string{"title", "排名,商品,销量", "1,x,1w~2w"}, ','},
		{"semicolon", []string{"a;b;c;d", "1;2;3;4"}, ';'},
		{"pipe", []string{"a|b|c", "1|2|3"}, '|'},
		{"none defaults to tab", []string{"just a title", "another"}, '\t'},
		{"empty", nil, '\t'},
		// The comma line is mostly blank, so tab wins on the fill ratio.
		{"fill ratio matters", []string{"a,,,,,", "x\ty\tz", "1\t2\t3"}, '\t'},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectDelimiter(tt.lines); got != tt.want {
				t.Fatalf("DetectDelimiter(%q) = %q, want %q", tt.lines, got, tt.want)
			}
		})
	}
}

func TestDetectDelimiter_OnlyFirstTenLines(t *testing.T) {
	t.Parallel()

	lines := make([]string, 0, 30)
	for i := 0; i < 10; i++ {
		lines = append(lines, "a;b;c")
	}
	for i := 0; i < 20; i++ {
		lines = append(lines, "a,b,c,d,e,f,g")
	}
	if got := DetectDelimiter(lines); got != ';' {
		t.Fatalf("DetectDelimiter = %q, want ';'", got)
	}
}

func TestTokenize_PadsAndKeepsTitleRows(t *testing.T) {
	t.Parallel()

	lines := []string{
		"抖音销量榜",
		"排名,商品,销量,佣金比例",
		"1,好物,1w~2w",
		`2,"A, B",3w,20%`,
	}
	g, d := Tokenize(lines)
	if d != ',' {
		t.Fatalf("delimiter = %q, want ','", d)
	}
	if g.Width != 4 {
		t.Fatalf("Width = %d, want 4", g.Width)
	}
	want := [][]string{
		{"抖音销量榜", "", "", ""},
		{"排名", "商品", "销量", "佣金比例"},
		{"1", "好物", "1w~2w", ""},
		{"2", "A, B", "3w", "20%"},
	}
	if got := g.Strings(); !reflect.DeepEqual(got, want) {
		t.Fatalf("grid = %q, want %q", got, want)
	}
	for i, r := range g.Rows {
		if len(r) != g.Width {
			t.Fatalf("row %d has %d cells, want %d", i, len(r), g.Width)
		}
	}
	if !g.Rows[0][1].IsEmpty() {
		t.Fatalf("padding cell should be Empty")
	}
}

func TestTokenize_LeadingDelimiterKeepsEmptyCell(t *testing.T) {
	t.Parallel()

	g := TokenizeWith([]string{"a\tb\tc", "\tx\ty"}, '\t')
	if got := g.Rows[1].Strings(); !reflect.DeepEqual(got, []string{"", "x", "y"}) {
		t.Fatalf("row = %q", got)
	}
}

func TestTokenize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := [][]string{
		{"title only", "a,b,c", "1,,3", `x,"q, r",z`},
		{"排名\t商品\t佣金比例", "1\t好物\t20%", "2\t\t"},
		{"单行"},
	}
	for _, lines := range inputs {
		g1, d := Tokenize(lines)
		g2 := TokenizeWith(g1.Lines(d), d)
		if !reflect.DeepEqual(g1, g2) {
			t.Fatalf("re-tokenize changed grid:\n first=%q\nsecond=%q", g1.Strings(), g2.Strings())
		}
	}
}

func TestFromRows_Rectangular(t *testing.T) {
	t.Parallel()

	g := FromRows([][]string{{"a"}, {"b", " c ", "d"}, nil})
	if g.Width != 3 || g.Len() != 3 {
		t.Fatalf("got width=%d len=%d", g.Width, g.Len())
	}
	if g.Rows[1][1].Value != "c" {
		t.Fatalf("cell not trimmed: %q", g.Rows[1][1].Value)
	}
	if n := g.Rows[2].NonEmpty(); n != 0 {
		t.Fatalf("NonEmpty = %d, want 0", n)
	}
}

func BenchmarkTokenize(b *testing.B) {
	lines := strings.Split(strings.Repeat("1\t好物\t1w~2w\t20%\t店铺\n", 2000), "\n")
	lines = lines[:len(lines)-1]
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Tokenize(lines)
	}
}
