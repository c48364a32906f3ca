package segment

// Vocabulary holds the fixed word lists the segmenter scores rows with.
type Vocabulary struct {
	// HeaderKeywords are column names known to appear in export headers.
	HeaderKeywords []string `yaml:"header_keywords"`
	// CoreCombo is the high-confidence subset: two of these are enough.
	CoreCombo []string `yaml:"core_combo"`
	// TableTitles are known table title fragments.
	TableTitles []string `yaml:"table_titles"`
	// TitleMarkers are generic "ranking"/"library" substrings.
	TitleMarkers []string `yaml:"title_markers"`
}

// DefaultVocabulary returns the vocabulary for the vendor's Douyin exports.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		HeaderKeywords: []string{
			"商品", "销量", "销售额", "佣金", "转化率", "链接", "分类",
			"商品标题", "商品链接", "商品价格", "店铺", "品牌", "类目",
			"佣金比例", "直播销售额", "商品卡销售额", "近30天销量", "周销量",
			"近1年销量", "30天转化率", "上架时间", "达人昵称", "排名",
		},
		CoreCombo: []string{"排名", "商品", "佣金比例"},
		TableTitles: []string{
			"销量榜", "商品库", "SKU", "抖音", "直播",
			"热推榜", "潜力爆品榜", "持续好货榜", "历史同期榜",
		},
		TitleMarkers: []string{"榜", "库"},
	}
}

// Merge returns v with every non-empty list in o replacing its counterpart.
func (v Vocabulary) Merge(o Vocabulary) Vocabulary {
	if len(o.HeaderKeywords) > 0 {
		v.HeaderKeywords = o.HeaderKeywords
	}
	if len(o.CoreCombo) > 0 {
		v.CoreCombo = o.CoreCombo
	}
	if len(o.TableTitles) > 0 {
		v.TableTitles = o.TableTitles
	}
	if len(o.TitleMarkers) > 0 {
		v.TitleMarkers = o.TitleMarkers
	}
	return v
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w != "" {
			m[w] = struct{}{}
		}
	}
	return m
}
