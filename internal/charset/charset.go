// Package charset works out the text encoding of a vendor export and decodes
// it into lines.
//
// Exports arrive as UTF-8 (with or without BOM) or as one of the Chinese
// national encodings. Detection combines a statistical guess with a fixed list
// of likely encodings, and accepts the first one that decodes the leading lines
// cleanly, preferring one that reveals a domain keyword.
package charset

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"datacleaner/internal/diag"
)

const (
	// SampleSize is how many leading bytes are inspected.
	SampleSize = 10240
	// SampleLines is how many leading lines each candidate must decode.
	SampleLines = 10

	UTF8    = "utf-8"
	UTF8BOM = "utf-8-sig"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// DefaultCandidates is the try order before the statistically detected
// encoding is appended.
var DefaultCandidates = []string{UTF8BOM, UTF8, "gbk", "gb2312", "gb18030"}

// DefaultKeywords are substrings that show up in almost every export header or
// title. A candidate that reveals one of them is preferred.
var DefaultKeywords = []string{"商品", "销量", "榜", "库", "抖音"}

// Result describes the chosen encoding.
type Result struct {
	// Name is the canonical name of the accepted candidate.
	Name string
	// Detected and Confidence come from the statistical detector. Detected is
	// empty when the detector gave up.
	Detected   string
	Confidence int
	// KeywordHit reports whether the decoded sample contained a keyword.
	KeywordHit bool
	// Lossy is set when no candidate decoded cleanly and invalid bytes were
	// replaced.
	Lossy bool

	enc encoding.Encoding
}

// detectFunc returns a charset name and a 0..100 confidence.
type detectFunc func(sample []byte) (string, int, error)

// Sniffer picks an encoding for a byte buffer. The zero value is not usable;
// call NewSniffer.
type Sniffer struct {
	Candidates []string
	Keywords   []string

	detect detectFunc
}

// NewSniffer returns a Sniffer with the default candidates and keywords,
// backed by chardet.
func NewSniffer() *Sniffer {
	td := chardet.NewTextDetector()
	return &Sniffer{
		Candidates: DefaultCandidates,
		Keywords:   DefaultKeywords,
		detect: func(sample []byte) (string, int, error) {
			r, err := td.DetectBest(sample)
			if err != nil {
				return "", 0, err
			}
			return r.Charset, r.Confidence, nil
		},
	}
}

// Sniff inspects up to SampleSize leading bytes of data.
//
// It never fails: when nothing decodes cleanly it falls back to lossy UTF-8
// and reports an EncodingUndetermined warning.
func (s *Sniffer) Sniff(data []byte) (Result, diag.List) {
	sample := data
	if len(sample) > SampleSize {
		sample = sample[:SampleSize]
		// Keep whole lines only so a multi-byte rune is never cut in half.
		if i := bytes.LastIndexByte(sample, '\n'); i > 0 {
			sample = sample[:i+1]
		}
	}

	var res Result
	if s.detect != nil {
		if name, conf, err := s.detect(sample); err == nil {
			res.Detected = name
			res.Confidence = conf
		}
	}

	var firstClean *Result
	for _, name := range candidateList(s.Candidates, res.Detected) {
		enc, err := lookup(name)
		if err != nil {
			continue
		}
		text, ok := trySample(sample, name, enc)
		if !ok {
			continue
		}
		cand := res
		cand.Name = name
		cand.enc = enc
		if containsAny(text, s.Keywords) {
			cand.KeywordHit = true
			return cand, nil
		}
		if firstClean == nil {
			firstClean = &cand
		}
	}
	if firstClean != nil {
		return *firstClean, nil
	}

	res.Name = UTF8
	res.Lossy = true
	return res, diag.List{{
		Severity: diag.Warning,
		Code:     diag.EncodingUndetermined,
		Stage:    "charset",
		Row:      -1,
		Value:    res.Detected,
		Message:  "no candidate encoding decoded the sample cleanly; using lossy utf-8",
	}}
}

// Decode converts the whole buffer to a UTF-8 string using r. A leading BOM is
// removed.
func Decode(data []byte, r Result) (string, error) {
	if r.enc == nil {
		data = bytes.TrimPrefix(data, bom)
		return string(bytes.ToValidUTF8(data, []byte("\uFFFD"))), nil
	}
	out, _, err := transform.Bytes(r.enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", r.Name, err)
	}
	return strings.TrimPrefix(string(out), "\uFEFF"), nil
}

// Lines splits decoded text into lines, dropping blank ones. Line content is
// kept as-is apart from a BOM and the trailing carriage return, so leading
// delimiters still mark empty cells.
func Lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, ln := range raw {
		ln = strings.TrimSuffix(ln, "\r")
		ln = strings.ReplaceAll(ln, "\uFEFF", "")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		out = append(out, ln)
	}
	return out
}

// Canonical normalizes an encoding label so equivalent spellings dedupe.
func Canonical(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	switch n {
	case "utf8":
		return UTF8
	case "utf-8-bom", "utf8-sig":
		return UTF8BOM
	case "gb-18030":
		return "gb18030"
	case "gb-2312", "euc-cn":
		return "gb2312"
	}
	return n
}

func candidateList(base []string, detected string) []string {
	seen := make(map[string]bool, len(base)+1)
	out := make([]string, 0, len(base)+1)
	for _, c := range append(append([]string(nil), base...), detected) {
		c = Canonical(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

var errUnknownEncoding = errors.New("unknown encoding")

// lookup resolves a canonical name. UTF-8 variants return a nil encoding and
// are validated directly.
func lookup(name string) (encoding.Encoding, error) {
	switch name {
	case UTF8, UTF8BOM:
		return nil, nil
	case "gbk", "gb2312":
		return simplifiedchinese.GBK, nil
	case "gb18030":
		return simplifiedchinese.GB18030, nil
	case "big5":
		return traditionalchinese.Big5, nil
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errUnknownEncoding, name)
	}
	return enc, nil
}

// trySample decodes the first SampleLines lines and reports whether the
// result is clean.
func trySample(sample []byte, name string, enc encoding.Encoding) (string, bool) {
	if name == UTF8BOM {
		if !bytes.HasPrefix(sample, bom) {
			return "", false
		}
		sample = sample[len(bom):]
	}
	head := firstLines(sample, SampleLines)

	if enc == nil {
		if !utf8.Valid(head) {
			return "", false
		}
		return string(head), true
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), head)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.Contains(head, []byte("\uFFFD")) {
		return "", false
	}
	return string(out), true
}

func firstLines(b []byte, n int) []byte {
	end := 0
	for i := 0; i < n; i++ {
		j := bytes.IndexByte(b[end:], '\n')
		if j < 0 {
			return b
		}
		end += j + 1
	}
	return b[:end]
}

func containsAny(s string, subs []string) bool {
	for _, k := range subs {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
