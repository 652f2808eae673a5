package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"seoradar/internal/store"
)

// minSendInterval spaces Telegram sends to stay under the bot API rate
// limit.
const minSendInterval = 2 * time.Second

// Telegram sends alerts to a chat via the bot API.
type Telegram struct {
	client   *http.Client
	botToken string
	chatID   string

	mu       sync.Mutex
	lastSend time.Time
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		client:   &http.Client{Timeout: 10 * time.Second},
		botToken: botToken,
		chatID:   chatID,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// SendAlert formats and delivers one opportunity.
func (t *Telegram) SendAlert(ctx context.Context, opp *store.Opportunity) error {
	return t.send(ctx, FormatOpportunity(opp), false)
}

// SendText delivers a pre-formatted MarkdownV2 message.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	return t.send(ctx, text, true)
}

func (t *Telegram) send(ctx context.Context, text string, disablePreview bool) error {
	t.throttle()

	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": disablePreview,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// throttle enforces the minimum spacing between sends.
func (t *Telegram) throttle() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if wait := minSendInterval - time.Since(t.lastSend); wait > 0 {
		time.Sleep(wait)
	}
	t.lastSend = time.Now()
}

var mdV2Replacer = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
	"(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
	">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
	".", "\\.", "!", "\\!",
)

// EscapeMarkdownV2 escapes the characters Telegram's MarkdownV2 parser
// treats as markup.
func EscapeMarkdownV2(text string) string {
	return mdV2Replacer.Replace(text)
}

// FormatOpportunity renders one opportunity as a MarkdownV2 message.
func FormatOpportunity(opp *store.Opportunity) string {
	marker := "\U0001F4E2" // loudspeaker
	if opp.Priority == "primary" {
		marker = "⭐" // star
	}
	if opp.LocaleFlag {
		marker += " \U0001F1EE\U0001F1F3" // flag of India
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *New Opportunity on REDDIT*\n\n", marker)
	fmt.Fprintf(&b, "\U0001F4DD *Title:* %s\n\n", EscapeMarkdownV2(truncate(opp.Title, 150)))

	if opp.Subreddit != "" {
		fmt.Fprintf(&b, "\U0001F4CD *Subreddit:* r/%s\n", EscapeMarkdownV2(opp.Subreddit))
	}
	fmt.Fprintf(&b, "\U0001F464 *Author:* u/%s\n", EscapeMarkdownV2(opp.Author))
	fmt.Fprintf(&b, "\U0001F517 [View Post](%s)\n\n", opp.Permalink)

	if len(opp.Keywords) > 0 {
		shown := opp.Keywords
		if len(shown) > 5 {
			shown = shown[:5]
		}
		escaped := make([]string, len(shown))
		for i, kw := range shown {
			escaped[i] = EscapeMarkdownV2(kw)
		}
		line := strings.Join(escaped, ", ")
		if extra := len(opp.Keywords) - len(shown); extra > 0 {
			line += fmt.Sprintf(" \\+%d more", extra)
		}
		fmt.Fprintf(&b, "\U0001F3AF *Keywords:* %s\n", line)
	}

	if len(opp.Competitors) > 0 {
		shown := opp.Competitors
		if len(shown) > 3 {
			shown = shown[:3]
		}
		escaped := make([]string, len(shown))
		for i, c := range shown {
			escaped[i] = EscapeMarkdownV2(c)
		}
		fmt.Fprintf(&b, "\U0001F440 *Competitor Mentions:* %s\n", strings.Join(escaped, ", "))
	}

	fmt.Fprintf(&b, "\U0001F4AC *Engagement:* ↑%d \\| %d comments\n", opp.Score, opp.Comments)
	fmt.Fprintf(&b, "\n⏰ *Posted:* %s", EscapeMarkdownV2(relativeTime(opp.PostedAt)))
	return b.String()
}

// relativeTime renders a post age for humans.
func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
