// Package match compiles a ranked keyword list into a multi-pattern
// matcher and classifies post text by keyword tier, competitor mentions,
// and locale markers.
package match

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Tier is the priority classification of a keyword.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
)

// Strategy selects the keyword scanning implementation. Both strategies
// produce identical results; the automaton scans the text once
// regardless of keyword count.
type Strategy string

const (
	StrategyScan      Strategy = "scan"
	StrategyAutomaton Strategy = "automaton"
)

// Entry is one keyword with its search volume.
type Entry struct {
	Term   string
	Volume int
}

// Result is the outcome of matching one text.
type Result struct {
	Keywords    []string `json:"keywords"`
	Competitors []string `json:"competitors"`
	Priority    Tier     `json:"priority"`
	LocaleFlag  bool     `json:"locale_flag"`
}

// Options configures the matcher build.
type Options struct {
	Strategy Strategy
	// PrimaryCount is how many top-volume terms form the primary tier.
	PrimaryCount int
	// SecondaryScanLimit caps how many secondary terms are compiled into
	// the matcher. Guards throughput on very large keyword files.
	SecondaryScanLimit int
}

// Matcher holds the compiled keyword set and auxiliary detectors.
type Matcher struct {
	primary   []Entry // descending volume, ties in input order
	secondary []Entry // descending volume, capped at SecondaryScanLimit
	scanner   scanner
	comp      *regexp.Regexp
	locale    *regexp.Regexp
}

// scanner reports which of the compiled keywords occur in folded text.
// The returned slice is keyed by rank: primary terms first, then
// secondary, both in descending-volume order.
type scanner interface {
	scan(text string) []bool
}

// Build compiles entries into a Matcher. Terms are normalized
// (whitespace-trimmed, case-folded); empty, single-character, and "nan"
// sentinel terms are dropped; duplicates keep the highest volume.
func Build(entries []Entry, opts Options) (*Matcher, error) {
	if opts.PrimaryCount <= 0 {
		opts.PrimaryCount = 10
	}
	if opts.SecondaryScanLimit <= 0 {
		opts.SecondaryScanLimit = 200
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyAutomaton
	}

	cleaned := normalizeEntries(entries)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no usable keywords after normalization")
	}

	primary := cleaned
	var secondary []Entry
	if len(cleaned) > opts.PrimaryCount {
		primary = cleaned[:opts.PrimaryCount]
		secondary = cleaned[opts.PrimaryCount:]
	}

	m := &Matcher{
		primary:   primary,
		secondary: secondary,
		comp:      competitorPattern(),
		locale:    localePattern(),
	}

	// Only the top SecondaryScanLimit secondary terms are compiled into
	// the scanner; the full tier stays available for cycle rotation.
	scanned := secondary
	if len(scanned) > opts.SecondaryScanLimit {
		scanned = scanned[:opts.SecondaryScanLimit]
	}

	ranked := make([]string, 0, len(primary)+len(scanned))
	for _, e := range primary {
		ranked = append(ranked, e.Term)
	}
	for _, e := range scanned {
		ranked = append(ranked, e.Term)
	}

	switch opts.Strategy {
	case StrategyAutomaton:
		m.scanner = newAutomaton(ranked)
	case StrategyScan:
		m.scanner = newListScanner(ranked)
	default:
		return nil, fmt.Errorf("unknown matcher strategy %q", opts.Strategy)
	}

	return m, nil
}

// normalizeEntries folds, deduplicates (max volume wins), and rank-sorts
// entries: descending volume, input order on ties.
func normalizeEntries(entries []Entry) []Entry {
	type ranked struct {
		Entry
		pos int
	}

	best := make(map[string]ranked)
	order := 0
	for _, e := range entries {
		term := Fold(strings.TrimSpace(e.Term))
		if term == "" || utf8.RuneCountInString(term) <= 1 || term == "nan" {
			continue
		}
		vol := e.Volume
		if vol < 0 {
			vol = 0
		}
		cur, ok := best[term]
		if !ok {
			best[term] = ranked{Entry{Term: term, Volume: vol}, order}
			order++
		} else if vol > cur.Volume {
			cur.Volume = vol
			best[term] = cur
		}
	}

	out := make([]ranked, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].pos < out[j].pos
	})

	res := make([]Entry, len(out))
	for i, r := range out {
		res[i] = r.Entry
	}
	return res
}

// Fold normalizes text for matching: NFKC form, lowercased.
func Fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// PrimaryTerms returns the primary tier in rank order.
func (m *Matcher) PrimaryTerms() []string {
	terms := make([]string, len(m.primary))
	for i, e := range m.primary {
		terms[i] = e.Term
	}
	return terms
}

// SecondaryTerms returns the compiled secondary tier in rank order.
func (m *Matcher) SecondaryTerms() []string {
	terms := make([]string, len(m.secondary))
	for i, e := range m.secondary {
		terms[i] = e.Term
	}
	return terms
}

// FindMatches classifies text. Empty text yields the zero result.
// Deterministic: matched keywords come back in rank order, deduplicated.
func (m *Matcher) FindMatches(text string) Result {
	res := Result{Priority: TierSecondary}
	if strings.TrimSpace(text) == "" {
		return res
	}

	folded := Fold(text)
	hits := m.scanner.scan(folded)

	for i, hit := range hits {
		if !hit {
			continue
		}
		if i < len(m.primary) {
			res.Keywords = append(res.Keywords, m.primary[i].Term)
			res.Priority = TierPrimary
		} else {
			res.Keywords = append(res.Keywords, m.secondary[i-len(m.primary)].Term)
		}
	}

	res.Competitors = findDistinct(m.comp, folded)
	res.LocaleFlag = m.locale.MatchString(folded)
	return res
}

// containsWord reports whether term occurs in text. Terms of three or
// fewer characters must not sit inside a longer alphanumeric run; longer
// terms match as plain substrings.
func containsWord(text, term string) bool {
	if utf8.RuneCountInString(term) > 3 {
		return strings.Contains(text, term)
	}
	return containsBounded(text, term)
}

// containsBounded requires non-alphanumeric characters (or the text
// edge) on both sides of the occurrence.
func containsBounded(text, term string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		if boundedAt(text, i, i+len(term)) {
			return true
		}
		start = i + 1
	}
}

// boundedAt reports whether the byte range [lo, hi) in text has
// non-alphanumeric neighbors on both sides.
func boundedAt(text string, lo, hi int) bool {
	if lo > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:lo])
		if isWordRune(r) {
			return false
		}
	}
	if hi < len(text) {
		r, _ := utf8.DecodeRuneInString(text[hi:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// findDistinct returns deduplicated capture-group matches in
// first-occurrence order.
func findDistinct(re *regexp.Regexp, text string) []string {
	raw := re.FindAllString(text, -1)
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, s := range raw {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// listScanner checks each keyword against the text in turn. Keeps the
// naive per-keyword containment behavior as the reference strategy.
type listScanner struct {
	terms []string
}

func newListScanner(ranked []string) *listScanner {
	return &listScanner{terms: ranked}
}

func (l *listScanner) scan(text string) []bool {
	hits := make([]bool, len(l.terms))
	for i, term := range l.terms {
		hits[i] = containsWord(text, term)
	}
	return hits
}
