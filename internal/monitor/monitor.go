// Package monitor runs the scan cycle: it walks the selected keywords,
// pulls fresh posts from the feed, filters them through the dedup
// ledger and spam checks, classifies survivors, and fires alerts.
package monitor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"seoradar/internal/control"
	"seoradar/internal/keyword"
	"seoradar/internal/ledger"
	"seoradar/internal/stats"
	"seoradar/internal/store"
	"seoradar/pkg/alert"
	"seoradar/pkg/feed"
	"seoradar/pkg/match"
)

const errorBackoff = 60 * time.Second

// Options wires the monitor's collaborators and tuning knobs.
type Options struct {
	Feed     feed.Feed
	Keywords *keyword.Source
	Ledger   *ledger.Ledger
	Control  *control.State
	Notifier alert.Notifier
	Tracker  *stats.Tracker

	ScanInterval      time.Duration
	CommandInterval   time.Duration
	KeywordBudget     time.Duration
	ItemTimeout       time.Duration
	ResultsPerKeyword int
	Freshness         time.Duration

	ExcludedSubreddits []string
	ReportTime         string
}

// CycleStats counts what one scan cycle did.
type CycleStats struct {
	Keywords int `json:"keywords"`
	Scanned  int `json:"scanned"`
	Matched  int `json:"matched"`
	Alerted  int `json:"alerted"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Monitor owns the scan loop.
type Monitor struct {
	feed     feed.Feed
	keywords *keyword.Source
	ledger   *ledger.Ledger
	control  *control.State
	notifier alert.Notifier
	tracker  *stats.Tracker

	scanInterval      time.Duration
	commandInterval   time.Duration
	keywordBudget     time.Duration
	itemTimeout       time.Duration
	resultsPerKeyword int
	freshness         time.Duration
	excluded          map[string]bool
	reportTime        string

	// Delays pace the feed requests. Zeroed in tests.
	itemDelay    time.Duration
	keywordDelay time.Duration

	mu            sync.Mutex
	lastCycle     time.Time
	lastStats     CycleStats
	lastReportDay string

	now func() time.Time
}

// New creates a Monitor from Options, filling in defaults.
func New(opts Options) *Monitor {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 5 * time.Minute
	}
	if opts.CommandInterval <= 0 {
		opts.CommandInterval = 10 * time.Second
	}
	if opts.KeywordBudget <= 0 {
		opts.KeywordBudget = 45 * time.Second
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 10 * time.Second
	}
	if opts.ResultsPerKeyword <= 0 {
		opts.ResultsPerKeyword = 15
	}
	if opts.Freshness <= 0 {
		opts.Freshness = 24 * time.Hour
	}

	excluded := make(map[string]bool, len(opts.ExcludedSubreddits))
	for _, sub := range opts.ExcludedSubreddits {
		excluded[strings.ToLower(sub)] = true
	}

	return &Monitor{
		feed:              opts.Feed,
		keywords:          opts.Keywords,
		ledger:            opts.Ledger,
		control:           opts.Control,
		notifier:          opts.Notifier,
		tracker:           opts.Tracker,
		scanInterval:      opts.ScanInterval,
		commandInterval:   opts.CommandInterval,
		keywordBudget:     opts.KeywordBudget,
		itemTimeout:       opts.ItemTimeout,
		resultsPerKeyword: opts.ResultsPerKeyword,
		freshness:         opts.Freshness,
		excluded:          excluded,
		reportTime:        opts.ReportTime,
		itemDelay:         200 * time.Millisecond,
		keywordDelay:      time.Second,
		now:               time.Now,
	}
}

// Run executes scan cycles until ctx is cancelled. While stopped via the
// control state it idles on short control polls instead of scanning.
func (m *Monitor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			m.flush()
			return
		}

		if !m.control.ShouldRun(ctx) {
			if !sleep(ctx, m.commandInterval) {
				m.flush()
				return
			}
			continue
		}

		cycleStats, err := m.Cycle(ctx)
		wait := m.scanInterval
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scan cycle error: %v\n", err)
			wait = errorBackoff
		} else {
			fmt.Fprintf(os.Stderr, "cycle done: %d keywords, %d scanned, %d matched, %d alerted\n",
				cycleStats.Keywords, cycleStats.Scanned, cycleStats.Matched, cycleStats.Alerted)
		}

		m.maybeDailyReport(ctx)

		if !sleep(ctx, wait) {
			m.flush()
			return
		}
	}
}

// Cycle runs one full scan over this cycle's keyword selection and
// persists the ledger afterwards.
func (m *Monitor) Cycle(ctx context.Context) (CycleStats, error) {
	primary, secondary := m.keywords.SelectForCycle()
	if len(primary)+len(secondary) == 0 {
		return CycleStats{}, fmt.Errorf("no keywords loaded")
	}

	cycleStats := m.Scan(ctx, primary, secondary)

	if err := m.ledger.Save(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "persist ledger: %v\n", err)
	}

	m.mu.Lock()
	m.lastCycle = m.now()
	m.lastStats = cycleStats
	m.mu.Unlock()
	return cycleStats, nil
}

// Scan searches each keyword in turn and processes the results. The
// keyword order is primary tier first, then the secondary rotation.
// Stops early when cancelled or remotely stopped.
func (m *Monitor) Scan(ctx context.Context, primary, secondary []string) CycleStats {
	var cs CycleStats
	matcher := m.keywords.Matcher()
	if matcher == nil {
		return cs
	}

	terms := make([]string, 0, len(primary)+len(secondary))
	terms = append(terms, primary...)
	terms = append(terms, secondary...)

	for i, term := range terms {
		if ctx.Err() != nil || !m.control.ShouldRun(ctx) {
			break
		}
		cs.Keywords++

		// One keyword never gets more than the budget, slow feed or not.
		kwCtx, cancel := context.WithTimeout(ctx, m.keywordBudget)
		m.scanKeyword(kwCtx, matcher, term, &cs)
		cancel()

		if i < len(terms)-1 {
			if !sleep(ctx, m.keywordDelay) {
				break
			}
		}
	}
	return cs
}

func (m *Monitor) scanKeyword(ctx context.Context, matcher *match.Matcher, term string, cs *CycleStats) {
	items, err := m.feed.Search(ctx, term, feed.SearchOpts{
		Sort:       "new",
		TimeFilter: "day",
		Limit:      m.resultsPerKeyword,
	})
	if err != nil {
		cs.Errors++
		if ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "search %q: %v\n", term, err)
		}
		return
	}

	for _, item := range items {
		if ctx.Err() != nil || !m.control.ShouldRun(ctx) {
			return
		}
		cs.Scanned++

		itemCtx, cancel := context.WithTimeout(ctx, m.itemTimeout)
		err := m.processItem(itemCtx, matcher, item, cs)
		cancel()
		if err != nil {
			cs.Errors++
			// Do not retry a failing item forever.
			m.ledger.MarkSeen(item.ID)
			if ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "process %s: %v\n", item.ID, err)
			}
		}

		if !sleep(ctx, m.itemDelay) {
			return
		}
	}
}

// processItem runs one post through the filter pipeline. Posts with no
// keyword or competitor match are left unmarked so a later edit can
// still alert; everything consumed or rejected for content is marked.
func (m *Monitor) processItem(ctx context.Context, matcher *match.Matcher, item feed.Item, cs *CycleStats) error {
	if m.ledger.IsSeen(item.ID) {
		cs.Skipped++
		return nil
	}

	if !item.CreatedAt.IsZero() && m.now().Sub(item.CreatedAt) > m.freshness {
		m.ledger.MarkSeen(item.ID)
		cs.Skipped++
		return nil
	}

	if m.excluded[strings.ToLower(item.Subreddit)] {
		m.ledger.MarkSeen(item.ID)
		cs.Skipped++
		return nil
	}

	text := item.Title + " " + item.Body
	if match.IsSpam(text) {
		m.ledger.MarkSeen(item.ID)
		cs.Skipped++
		return nil
	}

	res := matcher.FindMatches(text)
	if len(res.Keywords) == 0 && len(res.Competitors) == 0 {
		cs.Skipped++
		return nil
	}
	cs.Matched++

	if m.control.LocaleOnly(ctx) && !res.LocaleFlag {
		cs.Skipped++
		return nil
	}

	m.ledger.MarkSeen(item.ID)

	now := m.now()
	opp := &store.Opportunity{
		PostID:      item.ID,
		Title:       item.Title,
		Permalink:   item.Permalink,
		Excerpt:     excerpt(item.Body, 200),
		Author:      item.Author,
		Subreddit:   item.Subreddit,
		Keywords:    res.Keywords,
		Competitors: res.Competitors,
		Priority:    string(res.Priority),
		LocaleFlag:  res.LocaleFlag,
		Score:       item.Score,
		Comments:    item.Comments,
		PostedAt:    item.CreatedAt,
		FoundAt:     now,
		Day:         now.Format("2006-01-02"),
	}
	if err := m.tracker.Record(ctx, opp); err != nil {
		fmt.Fprintf(os.Stderr, "record opportunity %s: %v\n", opp.PostID, err)
	}

	// Alert failures are logged, never fatal: the find is already
	// recorded and deduplicated.
	if err := m.notifier.SendAlert(ctx, opp); err != nil {
		fmt.Fprintf(os.Stderr, "alert %s via %s: %v\n", opp.PostID, m.notifier.Name(), err)
	} else {
		cs.Alerted++
	}
	return nil
}

// maybeDailyReport sends the daily summary when a cycle lands inside the
// report window, at most once per day, then archives older rows.
func (m *Monitor) maybeDailyReport(ctx context.Context) {
	now := m.now()
	day := now.Format("2006-01-02")

	m.mu.Lock()
	sent := m.lastReportDay == day
	m.mu.Unlock()
	if sent || !stats.ShouldSendReport(now, m.reportTime) {
		return
	}

	sum, err := m.tracker.Day(ctx, day)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daily report: %v\n", err)
		return
	}
	if err := m.notifier.SendText(ctx, stats.Report(sum, now)); err != nil {
		fmt.Fprintf(os.Stderr, "send daily report: %v\n", err)
		return
	}
	if err := m.tracker.Archive(ctx, day); err != nil {
		fmt.Fprintf(os.Stderr, "archive opportunities: %v\n", err)
	}

	m.mu.Lock()
	m.lastReportDay = day
	m.mu.Unlock()
}

// Status is a point-in-time view for the HTTP API.
type Status struct {
	Running           bool       `json:"running"`
	LocaleOnly        bool       `json:"locale_only"`
	PrimaryKeywords   int        `json:"primary_keywords"`
	SecondaryKeywords int        `json:"secondary_keywords"`
	SeenPosts         int        `json:"seen_posts"`
	LastCycle         time.Time  `json:"last_cycle"`
	LastCycleStats    CycleStats `json:"last_cycle_stats"`
}

// Status reports the monitor's current state.
func (m *Monitor) Status(ctx context.Context) Status {
	rec := m.control.Snapshot(ctx)
	primaryN, secondaryN := m.keywords.Counts()

	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Running:           rec.Running,
		LocaleOnly:        rec.LocaleOnly,
		PrimaryKeywords:   primaryN,
		SecondaryKeywords: secondaryN,
		SeenPosts:         m.ledger.Len(),
		LastCycle:         m.lastCycle,
		LastCycleStats:    m.lastStats,
	}
}

// flush persists the ledger on shutdown with a short grace window.
func (m *Monitor) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.ledger.Save(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flush ledger: %v\n", err)
	}
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func excerpt(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
