// Package stats aggregates the day's opportunities and renders the
// daily summary report.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"seoradar/internal/store"
	"seoradar/pkg/alert"
)

// reportWindow is how close to the configured report time a cycle must
// land for the report to go out.
const reportWindow = 30 * time.Minute

// Summary is one day's aggregate counts.
type Summary struct {
	Day           string         `json:"day"`
	Total         int            `json:"total"`
	Primary       int            `json:"primary"`
	LocaleRelated int            `json:"locale_related"`
	Keywords      map[string]int `json:"keywords"`
	Competitors   map[string]int `json:"competitors"`
}

// Summarize folds opportunity rows into a Summary.
func Summarize(day string, opps []store.Opportunity) Summary {
	sum := Summary{
		Day:         day,
		Keywords:    make(map[string]int),
		Competitors: make(map[string]int),
	}
	for _, opp := range opps {
		sum.Total++
		if opp.Priority == "primary" {
			sum.Primary++
		}
		if opp.LocaleFlag {
			sum.LocaleRelated++
		}
		for _, kw := range opp.Keywords {
			sum.Keywords[kw]++
		}
		for _, c := range opp.Competitors {
			sum.Competitors[c]++
		}
	}
	return sum
}

// Storage persists and lists opportunity rows.
type Storage interface {
	AddOpportunity(ctx context.Context, opp *store.Opportunity) error
	ListOpportunities(ctx context.Context, opts store.OpportunityListOpts) ([]store.Opportunity, error)
	DeleteOpportunitiesBefore(ctx context.Context, day string) (int64, error)
}

// Tracker records opportunities and reads daily aggregates.
type Tracker struct {
	store Storage
}

// NewTracker creates a stats tracker.
func NewTracker(s Storage) *Tracker {
	return &Tracker{store: s}
}

// Record persists one opportunity. Re-recording the same post is a
// no-op at the storage layer.
func (t *Tracker) Record(ctx context.Context, opp *store.Opportunity) error {
	return t.store.AddOpportunity(ctx, opp)
}

// Day returns the summary for the given date (format 2006-01-02).
func (t *Tracker) Day(ctx context.Context, day string) (Summary, error) {
	opps, err := t.store.ListOpportunities(ctx, store.OpportunityListOpts{Day: day, Limit: 10000})
	if err != nil {
		return Summary{}, fmt.Errorf("load day %s: %w", day, err)
	}
	return Summarize(day, opps), nil
}

// Archive drops rows from days before the given one. Called after the
// daily report has gone out.
func (t *Tracker) Archive(ctx context.Context, keepDay string) error {
	_, err := t.store.DeleteOpportunitiesBefore(ctx, keepDay)
	return err
}

// ShouldSendReport reports whether now is within the send window of the
// configured report time (format "15:04").
func ShouldSendReport(now time.Time, reportTime string) bool {
	target, err := time.Parse("15:04", reportTime)
	if err != nil {
		return false
	}
	nowMin := now.Hour()*60 + now.Minute()
	targetMin := target.Hour()*60 + target.Minute()
	diff := nowMin - targetMin
	if diff < 0 {
		diff = -diff
	}
	return time.Duration(diff)*time.Minute <= reportWindow
}

// Report renders a Summary as a MarkdownV2 message.
func Report(sum Summary, now time.Time) string {
	var b strings.Builder
	rule := strings.Repeat("\\=", 20) + "\n"

	fmt.Fprintf(&b, "\U0001F4CA *Daily SEO Report %s*\n", alert.EscapeMarkdownV2(sum.Day))
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "*Total Opportunities:* %d\n", sum.Total)
	fmt.Fprintf(&b, "• High\\-Priority: %d\n", sum.Primary)
	fmt.Fprintf(&b, "• Locale\\-Related: %d\n\n", sum.LocaleRelated)

	if len(sum.Keywords) > 0 {
		b.WriteString("*\U0001F3AF Top Keywords:*\n")
		for _, kv := range topCounts(sum.Keywords, 5) {
			fmt.Fprintf(&b, " • %s: %d\n", alert.EscapeMarkdownV2(kv.key), kv.count)
		}
		b.WriteString("\n")
	}

	if len(sum.Competitors) > 0 {
		b.WriteString("*\U0001F440 Competitor Mentions:*\n")
		for _, kv := range topCounts(sum.Competitors, 5) {
			fmt.Fprintf(&b, " • %s: %d\n", alert.EscapeMarkdownV2(kv.key), kv.count)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule)
	fmt.Fprintf(&b, "_Report generated at %s_", alert.EscapeMarkdownV2(now.Format("15:04")))
	return b.String()
}

type keyCount struct {
	key   string
	count int
}

// topCounts returns the n highest counts, ties broken alphabetically so
// the report is stable.
func topCounts(m map[string]int, n int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, v := range m {
		out = append(out, keyCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
