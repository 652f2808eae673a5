package alert

import (
	"context"
	"fmt"
	"io"
	"os"

	"seoradar/internal/store"
)

// Log writes alerts to a writer instead of a chat. Used when Telegram
// credentials are absent so the monitor still runs end to end.
type Log struct {
	out io.Writer
}

// NewLog creates a log-only notifier writing to stderr.
func NewLog() *Log {
	return &Log{out: os.Stderr}
}

func (l *Log) Name() string { return "log" }

func (l *Log) SendAlert(_ context.Context, opp *store.Opportunity) error {
	fmt.Fprintf(l.out, "ALERT [%s] %s (r/%s, keywords: %v)\n",
		opp.Priority, truncate(opp.Title, 60), opp.Subreddit, opp.Keywords)
	return nil
}

func (l *Log) SendText(_ context.Context, text string) error {
	fmt.Fprintf(l.out, "REPORT:\n%s\n", text)
	return nil
}
