// Package keyword loads the ranked keyword file and selects which terms
// each scan cycle searches for.
package keyword

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"seoradar/pkg/match"
)

var (
	keywordAliases = []string{"keyword", "keywords", "term"}
	volumeAliases  = []string{"volume", "search volume"}
)

// Load parses a CSV keyword file into raw entries. The keyword column
// is matched case-insensitively against a small alias list, falling
// back to the first column; a missing volume column yields zero volumes.
func Load(path string) ([]match.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyword file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read keyword header: %w", err)
	}

	kwCol := findColumn(header, keywordAliases)
	if kwCol < 0 {
		kwCol = 0
	}
	volCol := findColumn(header, volumeAliases)

	var entries []match.Entry
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row: skip, never fatal.
			continue
		}
		if kwCol >= len(row) {
			continue
		}

		e := match.Entry{Term: row[kwCol]}
		if volCol >= 0 && volCol < len(row) {
			e.Volume = parseVolume(row[volCol])
		}
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("keyword file %s has no data rows", path)
	}
	return entries, nil
}

func findColumn(header []string, aliases []string) int {
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		for _, alias := range aliases {
			if name == alias {
				return i
			}
		}
	}
	return -1
}

// parseVolume coerces a volume cell to a non-negative int. Missing or
// malformed values become zero.
func parseVolume(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || strings.EqualFold(s, "nan") {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(v)
}

// Source owns the compiled matcher and the per-cycle keyword selection.
// Reload swaps the matcher atomically; the rotation cursor survives
// reloads (modulo the new tier size).
type Source struct {
	mu              sync.Mutex
	path            string
	opts            match.Options
	primaryPerRun   int
	secondaryPerRun int
	matcher         *match.Matcher
	cursor          int
}

// NewSource creates a Source for the given keyword file.
func NewSource(path string, opts match.Options, primaryPerRun, secondaryPerRun int) *Source {
	if primaryPerRun <= 0 {
		primaryPerRun = 10
	}
	if secondaryPerRun <= 0 {
		secondaryPerRun = 20
	}
	return &Source{
		path:            path,
		opts:            opts,
		primaryPerRun:   primaryPerRun,
		secondaryPerRun: secondaryPerRun,
	}
}

// Reload re-reads the keyword file and rebuilds the matcher.
func (s *Source) Reload() error {
	entries, err := Load(s.path)
	if err != nil {
		return err
	}
	m, err := match.Build(entries, s.opts)
	if err != nil {
		return fmt.Errorf("build matcher: %w", err)
	}

	s.mu.Lock()
	s.matcher = m
	s.mu.Unlock()
	return nil
}

// Matcher returns the current compiled matcher.
func (s *Source) Matcher() *match.Matcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matcher
}

// Path returns the watched keyword file path.
func (s *Source) Path() string { return s.path }

// Counts returns (primary, secondary) tier sizes.
func (s *Source) Counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matcher == nil {
		return 0, 0
	}
	return len(s.matcher.PrimaryTerms()), len(s.matcher.SecondaryTerms())
}

// SelectForCycle returns the keywords to search this cycle: the whole
// primary tier (up to the per-run cap) plus a round-robin window of
// secondary terms. The cursor wraps, so every secondary term gets
// searched within ceil(len/secondaryPerRun) cycles.
func (s *Source) SelectForCycle() (primary, secondary []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matcher == nil {
		return nil, nil
	}

	primary = s.matcher.PrimaryTerms()
	if len(primary) > s.primaryPerRun {
		primary = primary[:s.primaryPerRun]
	}

	all := s.matcher.SecondaryTerms()
	if len(all) == 0 {
		return primary, nil
	}
	if len(all) <= s.secondaryPerRun {
		return primary, all
	}

	s.cursor %= len(all)
	for i := 0; i < s.secondaryPerRun; i++ {
		secondary = append(secondary, all[(s.cursor+i)%len(all)])
	}
	s.cursor = (s.cursor + s.secondaryPerRun) % len(all)
	return primary, secondary
}
