package alert

import (
	"context"

	"seoradar/internal/store"
)

// Notifier delivers opportunity alerts and plain-text reports.
type Notifier interface {
	Name() string
	SendAlert(ctx context.Context, opp *store.Opportunity) error
	SendText(ctx context.Context, text string) error
}
