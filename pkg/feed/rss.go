package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSS searches Reddit through the public search Atom feed. It needs no
// credentials, at the cost of missing score/comment counts. Used as the
// fallback when OAuth credentials are absent.
type RSS struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
}

// NewRSS creates the credential-free search feed.
func NewRSS(userAgent string) *RSS {
	if userAgent == "" {
		userAgent = "seoradar/1.0"
	}
	return &RSS{
		client:    &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
	}
}

func (r *RSS) Name() string { return "reddit-rss" }

func (r *RSS) Search(ctx context.Context, term string, opts SearchOpts) ([]Item, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("sort", defaultStr(opts.Sort, "new"))
	q.Set("t", defaultStr(opts.TimeFilter, "day"))

	reqURL := "https://www.reddit.com/search.rss?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch search rss %q: %w", term, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search rss %q status %d", term, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search rss %q: %w", term, err)
	}

	limit := defaultInt(opts.Limit, 15)

	var items []Item
	for _, entry := range parsed.Items {
		if len(items) >= limit {
			break
		}

		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		author := ""
		if entry.Author != nil {
			author = strings.TrimPrefix(entry.Author.Name, "/u/")
		}

		items = append(items, Item{
			ID:        "reddit_" + entryID(entry),
			Title:     truncate(entry.Title, 200),
			Body:      truncate(entry.Description, 500),
			Author:    author,
			Subreddit: subredditFromLink(entry.Link),
			Permalink: entry.Link,
			CreatedAt: published,
		})
	}

	return items, nil
}

// entryID extracts the post id from an Atom entry. Reddit GUIDs look
// like "t3_abc123".
func entryID(entry *gofeed.Item) string {
	id := entry.GUID
	if id == "" {
		id = entry.Link
	}
	if i := strings.LastIndex(id, "_"); i >= 0 && strings.HasPrefix(id, "t3_") {
		return id[i+1:]
	}
	return id
}

// subredditFromLink pulls the subreddit name out of a permalink of the
// form https://www.reddit.com/r/<sub>/comments/...
func subredditFromLink(link string) string {
	const marker = "/r/"
	i := strings.Index(link, marker)
	if i < 0 {
		return ""
	}
	rest := link[i+len(marker):]
	if j := strings.Index(rest, "/"); j >= 0 {
		return rest[:j]
	}
	return rest
}
