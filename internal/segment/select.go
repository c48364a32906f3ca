package segment

import "strings"

// DefaultPriority is the vendor's main-table order used by ByPriority.
var DefaultPriority = []string{"抖音销量榜", "SKU商品库", "直播销量榜", "商品卡销量榜"}

// DefaultNameMarkers are second-tier substrings tried by ByPriority.
var DefaultNameMarkers = []string{"销量", "商品", "榜", "库"}

// Disambiguate renames blocks whose names repeat (across sheets, or two
// untitled tables with the same title row) so every name is unique. The first
// occurrence keeps its name.
func Disambiguate(blocks []Block) []Block {
	names := make([]string, len(blocks))
	for i, b := range blocks {
		names[i] = b.Name
	}
	for i, n := range Dedupe(names) {
		blocks[i].Name = n
	}
	return blocks
}

// Find returns the block named name.
func Find(blocks []Block, name string) (Block, bool) {
	for _, b := range blocks {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}

// MostKeywords returns the block whose header matched the most keywords. Ties
// go to the earlier block.
func MostKeywords(blocks []Block) (Block, bool) {
	if len(blocks) == 0 {
		return Block{}, false
	}
	best := 0
	for i := 1; i < len(blocks); i++ {
		if blocks[i].KeywordMatches > blocks[best].KeywordMatches {
			best = i
		}
	}
	return blocks[best], true
}

// ByPriority picks the first block whose name contains a priority title, then
// the first whose name contains a marker, then falls back to MostKeywords.
func ByPriority(blocks []Block, priority, markers []string) (Block, bool) {
	for _, p := range priority {
		for _, b := range blocks {
			if strings.Contains(b.Name, p) {
				return b, true
			}
		}
	}
	for _, b := range blocks {
		if containsAny(b.Name, markers) {
			return b, true
		}
	}
	return MostKeywords(blocks)
}
