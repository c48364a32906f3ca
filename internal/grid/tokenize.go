package grid

import "strings"

// Delimiters are the candidate field separators, in tie-break order.
var Delimiters = []rune{'\t', ',', ';', '|'}

// DefaultDelimiter is used when no candidate occurs in the scanned lines.
const DefaultDelimiter = '\t'

// scanLines is how many leading lines delimiter inference looks at.
const scanLines = 10

// DetectDelimiter picks the delimiter with the best average score over the
// first lines. A line scores fields * (non-blank fields / fields) for every
// candidate that splits it into more than one field.
func DetectDelimiter(lines []string) rune {
	if len(lines) > scanLines {
		lines = lines[:scanLines]
	}

	best := DefaultDelimiter
	bestScore := 0.0
	for _, d := range Delimiters {
		sep := string(d)
		total, n := 0.0, 0
		for _, ln := range lines {
			if !strings.Contains(ln, sep) {
				continue
			}
			parts := strings.Split(ln, sep)
			if len(parts) <= 1 {
				continue
			}
			filled := 0
			for _, p := range parts {
				if strings.TrimSpace(p) != "" {
					filled++
				}
			}
			total += float64(len(parts)) * (float64(filled) / float64(len(parts)))
			n++
		}
		if n == 0 {
			continue
		}
		if avg := total / float64(n); avg > bestScore {
			best, bestScore = d, avg
		}
	}
	return best
}

// Tokenize infers the delimiter and builds the grid.
func Tokenize(lines []string) (Grid, rune) {
	d := DetectDelimiter(lines)
	return TokenizeWith(lines, d), d
}

// TokenizeWith builds a rectangular grid using delim. Lines without the
// delimiter become single-cell rows, which is how title rows usually look.
func TokenizeWith(lines []string, delim rune) Grid {
	rows := make([][]string, 0, len(lines))
	for _, ln := range lines {
		if !strings.ContainsRune(ln, delim) {
			rows = append(rows, []string{ln})
			continue
		}
		rows = append(rows, splitLine(ln, delim))
	}
	return FromRows(rows)
}
