package project

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"datacleaner/internal/dataset"
	"datacleaner/internal/normalize"
)

// NumericRule casts matching columns to Type (Integer or Float).
type NumericRule struct {
	Pattern string       `yaml:"pattern"`
	Type    dataset.Type `yaml:"type"`
}

// FuzzyRule routes matching columns through the fuzzy normalizer.
type FuzzyRule struct {
	Pattern string         `yaml:"pattern"`
	Kind    normalize.Kind `yaml:"kind"`
}

// Classification says which source columns are kept and how.
//
// Patterns use path.Match syntax; most entries are plain column names. When a
// column matches more than one set, fuzzy wins over numeric and numeric over
// text. Columns that match nothing are dropped.
type Classification struct {
	Text    []string      `yaml:"text"`
	Numeric []NumericRule `yaml:"numeric"`
	Fuzzy   []FuzzyRule   `yaml:"fuzzy"`
}

// DefaultClassification returns the field lists for the vendor's product
// ranking exports.
func DefaultClassification() Classification {
	c := Classification{
		Text: []string{
			"商品", "商品链接", "商品分类", "商品头图链接", "蝉妈妈商品链接",
			"抖音商品链接", "小店", "品牌", "蝉妈妈链接",
		},
		Numeric: []NumericRule{
			{Pattern: "排名", Type: dataset.Integer},
			{Pattern: "直播销售额", Type: dataset.Float},
			{Pattern: "商品卡销售额", Type: dataset.Float},
		},
		Fuzzy: []FuzzyRule{
			{Pattern: "佣金比例", Kind: normalize.KindPercent},
			{Pattern: "转化率", Kind: normalize.KindPercentRange},
			{Pattern: "30天转化率", Kind: normalize.KindPercentRange},
		},
	}
	for _, name := range []string{
		"近30天销量", "周销量", "近1年销量", "销售额", "近30天销售额",
		"近1年销售额", "昨日销量", "近90天销量", "同期销量", "周带货达人", "关联达人",
	} {
		c.Fuzzy = append(c.Fuzzy, FuzzyRule{Pattern: name, Kind: normalize.KindRange})
	}
	return c
}

// Empty reports whether no rule is configured.
func (c Classification) Empty() bool {
	return len(c.Text) == 0 && len(c.Numeric) == 0 && len(c.Fuzzy) == 0
}

// Validate checks patterns, types and kinds, and rejects a plain column name
// listed in more than one set.
func (c Classification) Validate() error {
	var errs []error
	owner := map[string]string{}
	claim := func(set, pattern string) {
		if pattern == "" {
			errs = append(errs, fmt.Errorf("%s: empty pattern", set))
			return
		}
		if _, err := path.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("%s: pattern %q: %w", set, pattern, err))
			return
		}
		if strings.ContainsAny(pattern, `*?[\`) {
			return
		}
		if prev, ok := owner[pattern]; ok && prev != set {
			errs = append(errs, fmt.Errorf("column %q listed as both %s and %s", pattern, prev, set))
			return
		}
		owner[pattern] = set
	}

	for _, p := range c.Text {
		claim("text", p)
	}
	for _, r := range c.Numeric {
		if r.Type != dataset.Integer && r.Type != dataset.Float {
			errs = append(errs, fmt.Errorf("numeric %q: type must be integer or float, got %q", r.Pattern, r.Type))
		}
		claim("numeric", r.Pattern)
	}
	for _, r := range c.Fuzzy {
		if _, err := normalize.ParseKind(string(r.Kind)); err != nil {
			errs = append(errs, fmt.Errorf("fuzzy %q: %w", r.Pattern, err))
		}
		claim("fuzzy", r.Pattern)
	}
	return errors.Join(errs...)
}

// match is the resolved treatment of one column.
type match struct {
	set   string
	typ   dataset.Type
	kind  normalize.Kind
	found bool
}

func (c Classification) classify(column string) match {
	for _, r := range c.Fuzzy {
		if matches(r.Pattern, column) {
			return match{set: "fuzzy", kind: r.Kind, found: true}
		}
	}
	for _, r := range c.Numeric {
		if matches(r.Pattern, column) {
			return match{set: "numeric", typ: r.Type, found: true}
		}
	}
	for _, p := range c.Text {
		if matches(p, column) {
			return match{set: "text", typ: dataset.Text, found: true}
		}
	}
	return match{}
}

func matches(pattern, name string) bool {
	if pattern == name {
		return true
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}
