package feed

import (
	"context"
	"time"
)

// Item is the standardized shape of one platform post. Feed
// implementations convert their wire formats to it immediately so the
// rest of the system never touches platform-specific objects.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Subreddit string    `json:"subreddit"`
	Permalink string    `json:"permalink"`
	Score     int       `json:"score"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchOpts bounds a single keyword search.
type SearchOpts struct {
	Sort       string // "new", "hot", "relevance"
	TimeFilter string // "hour", "day", "week"
	Limit      int
}

// Feed yields posts matching a search term.
type Feed interface {
	Name() string
	Search(ctx context.Context, term string, opts SearchOpts) ([]Item, error)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
