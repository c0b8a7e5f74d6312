// internal/analytics/parser.go
package analytics

import (
	"bufio"
	"cmp"
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"shoe-size-analytics/internal/models"
)

const defaultMaxLineBytes = 1 << 20

var (
	// Noise that must never be read as a customer or a size.
	isoDateRe   = regexp.MustCompile(`\b\d{4}[-/.]\d{1,2}[-/.]\d{1,2}\b`)
	dateRe      = regexp.MustCompile(`\b\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}\b`)
	timeRe      = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	moneySymRe  = regexp.MustCompile(`[$€£₦¥₵]\s?\d[\d,]*(?:\.\d+)?`)
	moneyCodeRe = regexp.MustCompile(`(?i)\b(?:\d[\d,]*(?:\.\d+)?\s?(?:usd|eur|gbp|ghs|ngn|kes|cedis?|naira|dollars?)|(?:usd|eur|gbp|ghs|ngn|kes|rs\.?)\s?\d[\d,]*(?:\.\d+)?)\b`)
	orderRefRe  = regexp.MustCompile(`(?i)\b(?:order|invoice|inv|ref|receipt|waybill|tracking)\b\s*(?:no\.?|number|id|#)?\s*[:#.\-]?\s*[A-Za-z\-]*\d[A-Za-z0-9\-]*`)

	// Half sizes written as fractions are rewritten to decimals first.
	fractionRe = regexp.MustCompile(`(\d{1,2})(?:\s+|-)1/2\b`)

	sizeKeywordRe = regexp.MustCompile(`(?i)\b(?:shoe\s+)?(?:sizes?|sz)\b\.?`)
	sizeLeadRe    = regexp.MustCompile(`^[\s:=#\-]*`)
	sizeNumRe     = regexp.MustCompile(`(?i)^(\d{1,2}(?:\.\d+)?)(?:\s?(?:us|uk)\b|\b)`)
	sizeSepRe     = regexp.MustCompile(`(?i)^(?:\s*(?:,|/|&|\+|\band\b)\s*|\s+)`)
	quantityRe    = regexp.MustCompile(`(?i)^\s*(?:pairs?|prs|pcs|pieces|qty)\b`)
	unitSuffixRe  = regexp.MustCompile(`(?i)\b(\d{1,2}(?:\.\d+)?)\s?(?:us|uk)\b`)
	unitPrefixRe  = regexp.MustCompile(`(?i)\b(?:us|uk)\s?(\d{1,2}(?:\.\d+)?)\b`)

	idLabelRe    = regexp.MustCompile(`(?i)\b(?:customer|cust\.?|client|buyer|account|acct)(?:\s+(?:id|no\.?|number|#))?\s*[:#.\-]?\s*#?\s*([A-Za-z]{0,6}-?\d[A-Za-z0-9\-]*)`)
	phoneLabelRe = regexp.MustCompile(`(?i)\b(?:phone|mobile|tel(?:ephone)?|whatsapp|contact)(?:\s+(?:no\.?|number|#))?\s*[:#.\-]?\s*(\+?\d[\d\s\-().]{5,}\d)`)
	barePhoneRe  = regexp.MustCompile(`\+?\b\d{10,13}\b`)
	bareIDRe     = regexp.MustCompile(`\b([A-Za-z]{0,6}-?\d{3,})\b`)
)

var noiseRes = []*regexp.Regexp{isoDateRe, dateRe, timeRe, moneySymRe, moneyCodeRe, orderRefRe}

// LineStats describes how the lines of one document were classified.
type LineStats struct {
	Lines    int `json:"lines"`
	Matched  int `json:"matched"`
	Unparsed int `json:"unparsed"`
	NoSize   int `json:"noSize"`
	Records  int `json:"records"`
	Rejected int `json:"rejected"`
}

func (s *LineStats) add(o LineStats) {
	s.Lines += o.Lines
	s.Matched += o.Matched
	s.Unparsed += o.Unparsed
	s.NoSize += o.NoSize
	s.Records += o.Records
	s.Rejected += o.Rejected
}

// Parser turns raw document text into order records. It holds no state
// between calls and is safe for concurrent use.
type Parser struct {
	maxLineBytes int
}

func NewParser() *Parser {
	return &Parser{maxLineBytes: defaultMaxLineBytes}
}

// Scan is a single pass over one document. Records may be ranged over once;
// Stats and Err are complete after the range finishes.
type Scan struct {
	parser   *Parser
	filename string
	lines    *bufio.Scanner
	stats    LineStats
	err      error
	consumed bool
}

func (p *Parser) Scan(filename, text string) *Scan {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, min(64*1024, p.maxLineBytes)), p.maxLineBytes)
	return &Scan{parser: p, filename: filename, lines: sc}
}

// Records yields one OrderRecord per size mention in document order.
func (s *Scan) Records() iter.Seq[models.OrderRecord] {
	return func(yield func(models.OrderRecord) bool) {
		if s.consumed {
			return
		}
		s.consumed = true

		for s.lines.Scan() {
			line := s.lines.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			s.stats.Lines++

			items := parseLine(line)
			var named, matched bool
			for _, item := range items {
				s.stats.Rejected += item.rejected
				named = named || item.customer != ""
				matched = matched || item.ok()
			}
			switch {
			case !named:
				s.stats.Unparsed++
				continue
			case !matched:
				s.stats.NoSize++
				continue
			}

			s.stats.Matched++
			for _, item := range items {
				if !item.ok() {
					continue
				}
				for _, size := range item.sizes {
					s.stats.Records++
					if !yield(models.OrderRecord{
						CustomerID: item.customer,
						Size:       size,
						SourceFile: s.filename,
					}) {
						return
					}
				}
			}
		}
		s.err = s.lines.Err()
	}
}

func (s *Scan) Stats() LineStats { return s.stats }

func (s *Scan) Err() error { return s.err }

// LineOrder is what one customer ordered on one line.
type LineOrder struct {
	Customer string
	Sizes    []float64
}

// ParseLine exposes the single-line recognizer for diagnostics and tests.
func ParseLine(line string) []LineOrder {
	items := parseLine(line)
	out := make([]LineOrder, len(items))
	for i, item := range items {
		out[i] = LineOrder{Customer: item.customer, Sizes: item.sizes}
	}
	return out
}

type lineItem struct {
	customer string
	sizes    []float64
	rejected int
}

func (i lineItem) ok() bool { return i.customer != "" && len(i.sizes) > 0 }

type span struct{ start, end int }

// parseLine cuts a line before every labelled customer after the first, so
// "Customer 1001 size 7, Customer 2002 size 8" gives each customer only the
// sizes written after its own label.
func parseLine(raw string) []lineItem {
	buf := []byte(normalizeFractions(raw))
	for _, re := range noiseRes {
		maskAll(buf, re)
	}

	cuts := []int{0}
	for i, m := range idLabelRe.FindAllIndex(buf, -1) {
		if i > 0 {
			cuts = append(cuts, m[0])
		}
	}

	items := make([]lineItem, 0, len(cuts))
	for i, start := range cuts {
		end := len(buf)
		if i+1 < len(cuts) {
			end = cuts[i+1]
		}
		items = append(items, parseSegment(buf[start:end]))
	}
	return items
}

func parseSegment(buf []byte) lineItem {
	var item lineItem
	taken := extractSizes(string(buf), &item)
	for _, sp := range taken {
		blank(buf, sp)
	}
	item.customer = findCustomer(string(buf))
	return item
}

func normalizeFractions(line string) string {
	line = strings.ReplaceAll(line, "½", ".5")
	return fractionRe.ReplaceAllString(line, "$1.5")
}

// extractSizes collects keyword lists first, then unit-marked numbers that
// are not already part of a list. It returns the consumed spans.
func extractSizes(line string, item *lineItem) []span {
	var taken []span
	accept := func(tok string, sp span) {
		taken = append(taken, sp)
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || !models.ValidSize(v) {
			item.rejected++
			return
		}
		item.sizes = append(item.sizes, v)
	}

	for _, kw := range sizeKeywordRe.FindAllStringIndex(line, -1) {
		if overlaps(taken, span{kw[0], kw[1]}) {
			continue
		}
		pos := kw[1]
		pos += len(sizeLeadRe.FindString(line[pos:]))
		for pos < len(line) {
			m := sizeNumRe.FindStringSubmatchIndex(line[pos:])
			if m == nil {
				break
			}
			end := pos + m[1]
			if quantityRe.MatchString(line[end:]) {
				break
			}
			accept(line[pos+m[2]:pos+m[3]], span{pos, end})
			pos = end
			sep := sizeSepRe.FindString(line[pos:])
			if sep == "" {
				break
			}
			pos += len(sep)
		}
	}

	type unitHit struct {
		tok string
		sp  span
	}
	var hits []unitHit
	for _, re := range []*regexp.Regexp{unitSuffixRe, unitPrefixRe} {
		for _, m := range re.FindAllStringSubmatchIndex(line, -1) {
			sp := span{m[0], m[1]}
			if overlaps(taken, sp) || quantityRe.MatchString(line[sp.end:]) {
				continue
			}
			hits = append(hits, unitHit{tok: line[m[2]:m[3]], sp: sp})
		}
	}
	// keep document order across both unit forms
	slices.SortStableFunc(hits, func(a, b unitHit) int { return cmp.Compare(a.sp.start, b.sp.start) })
	for _, h := range hits {
		if overlaps(taken, h.sp) {
			continue
		}
		accept(h.tok, h.sp)
	}
	return taken
}

func findCustomer(line string) string {
	if m := idLabelRe.FindStringSubmatch(line); m != nil {
		if id := normalizeID(m[1]); id != "" {
			return id
		}
	}
	if m := phoneLabelRe.FindStringSubmatch(line); m != nil {
		if digits := onlyDigits(m[1]); len(digits) >= 7 && len(digits) <= 15 {
			return digits
		}
	}
	if m := barePhoneRe.FindString(line); m != "" {
		return onlyDigits(m)
	}
	if m := bareIDRe.FindStringSubmatch(line); m != nil {
		return normalizeID(m[1])
	}
	return ""
}

func normalizeID(tok string) string {
	tok = strings.TrimRight(tok, "-")
	return strings.ToUpper(strings.ReplaceAll(tok, "-", ""))
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func maskAll(buf []byte, re *regexp.Regexp) {
	for _, m := range re.FindAllIndex(buf, -1) {
		blank(buf, span{m[0], m[1]})
	}
}

func blank(buf []byte, sp span) {
	for i := sp.start; i < sp.end; i++ {
		buf[i] = ' '
	}
}

func overlaps(spans []span, sp span) bool {
	for _, t := range spans {
		if sp.start < t.end && t.start < sp.end {
			return true
		}
	}
	return false
}
