// Package command polls the Telegram chat for remote control commands
// and applies them to the control state.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"seoradar/internal/control"
	"seoradar/internal/stats"
	"seoradar/internal/store"
)

const defaultAPIBase = "https://api.telegram.org"

// TextSender delivers command replies and reports to the chat.
type TextSender interface {
	SendText(ctx context.Context, text string) error
}

// CursorStore persists the update cursor across restarts.
type CursorStore interface {
	LoadCursor(ctx context.Context) (*store.Cursor, error)
	SaveCursor(ctx context.Context, cur *store.Cursor) error
}

// Handler long-polls getUpdates and dispatches recognized commands.
// Updates from other chats, and messages at or before the last
// processed command timestamp, are ignored — the latter prevents stale
// commands replaying after a restart.
type Handler struct {
	client   *http.Client
	apiBase  string
	botToken string
	chatID   string
	control  *control.State
	tracker  *stats.Tracker
	sender   TextSender
	store    CursorStore

	lastUpdateID    int64
	lastCommandTime time.Time

	now func() time.Time
}

// New creates a command handler. Call Load before Run.
func New(botToken, chatID string, ctl *control.State, tracker *stats.Tracker,
	sender TextSender, st CursorStore) *Handler {
	return &Handler{
		client:   &http.Client{Timeout: 40 * time.Second},
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		control:  ctl,
		tracker:  tracker,
		sender:   sender,
		store:    st,
		now:      time.Now,
	}
}

// Load restores the persisted update cursor.
func (h *Handler) Load(ctx context.Context) error {
	cur, err := h.store.LoadCursor(ctx)
	if err != nil {
		return err
	}
	if cur != nil {
		h.lastUpdateID = cur.LastUpdateID
		h.lastCommandTime = cur.LastCommandTime
	}
	return nil
}

// ClearWebhook removes any registered webhook so getUpdates polling
// works, dropping pending updates. Best effort.
func ClearWebhook(ctx context.Context, botToken string) {
	if botToken == "" {
		return
	}
	client := &http.Client{Timeout: 10 * time.Second}
	reqURL := fmt.Sprintf("%s/bot%s/deleteWebhook?drop_pending_updates=true", defaultAPIBase, botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// Run polls for commands until ctx is cancelled.
func (h *Handler) Run(ctx context.Context, interval time.Duration) {
	for {
		if err := h.CheckCommands(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "command poll error: %v\n", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Date int64  `json:"date"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// CheckCommands fetches pending updates once and dispatches them.
func (h *Handler) CheckCommands(ctx context.Context) error {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(h.lastUpdateID+1, 10))
	q.Set("timeout", "30")
	q.Set("allowed_updates", `["message"]`)

	reqURL := fmt.Sprintf("%s/bot%s/getUpdates?%s", h.apiBase, h.botToken, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("getUpdates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		// Another instance is polling the same bot.
		return fmt.Errorf("getUpdates conflict: another instance is running")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("getUpdates status %d", resp.StatusCode)
	}

	var body struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode updates: %w", err)
	}
	if !body.OK {
		return fmt.Errorf("getUpdates not ok")
	}

	for _, u := range body.Result {
		h.lastUpdateID = u.UpdateID

		if strconv.FormatInt(u.Message.Chat.ID, 10) != h.chatID {
			continue
		}
		msgTime := time.Unix(u.Message.Date, 0)
		if !msgTime.After(h.lastCommandTime) {
			continue
		}

		text := strings.ToLower(strings.TrimSpace(u.Message.Text))
		if h.dispatch(ctx, text) {
			h.lastCommandTime = msgTime
		}
		h.saveCursor(ctx)
	}
	return nil
}

// dispatch runs one command. Returns false for unrecognized text.
func (h *Handler) dispatch(ctx context.Context, text string) bool {
	switch text {
	case "/start", "start":
		h.handleStart(ctx)
	case "/stop", "stop":
		h.handleStop(ctx)
	case "/status", "status":
		h.handleStatus(ctx)
	case "/help", "help", "/commands":
		h.handleHelp(ctx)
	case "/india", "india":
		h.handleLocaleOnly(ctx)
	case "/global", "global":
		h.handleGlobal(ctx)
	default:
		return false
	}
	return true
}

func (h *Handler) saveCursor(ctx context.Context) {
	err := h.store.SaveCursor(ctx, &store.Cursor{
		LastUpdateID:    h.lastUpdateID,
		LastCommandTime: h.lastCommandTime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "save command cursor: %v\n", err)
	}
}

func (h *Handler) reply(ctx context.Context, text string) {
	if err := h.sender.SendText(ctx, text); err != nil {
		fmt.Fprintf(os.Stderr, "command reply error: %v\n", err)
	}
}

func (h *Handler) handleStart(ctx context.Context) {
	if h.control.ShouldRun(ctx) {
		h.reply(ctx, "⚠️ *Monitor is already running*")
		return
	}
	if err := h.control.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start command: %v\n", err)
		return
	}
	h.reply(ctx, "✅ *Monitoring Started*\n\nReal\\-time alerts are active\\. Send /stop to pause\\.")

	// Starting also pushes the current daily report.
	day := h.now().Format("2006-01-02")
	if sum, err := h.tracker.Day(ctx, day); err == nil {
		h.reply(ctx, stats.Report(sum, h.now()))
	}
}

func (h *Handler) handleStop(ctx context.Context) {
	if !h.control.ShouldRun(ctx) {
		h.reply(ctx, "⚠️ *Monitor is already stopped*")
		return
	}
	if err := h.control.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "stop command: %v\n", err)
		return
	}
	h.reply(ctx, "⏸️ *Monitoring Stopped*\n\nNo new alerts will be sent\\. Send /start to resume\\.")
}

func (h *Handler) handleStatus(ctx context.Context) {
	rec := h.control.Snapshot(ctx)

	status := "\U0001F534 Stopped"
	if rec.Running {
		status = "\U0001F7E2 Running"
	}
	mode := "global"
	if rec.LocaleOnly {
		mode = "locale\\-only"
	}

	msg := fmt.Sprintf(
		"\U0001F4CA *Monitor Status*\n\n*Status:* %s\n*Mode:* %s\n*Last Command:* /%s\n*Command Time:* %s",
		status, mode, rec.LastCommand,
		escapeTime(rec.LastCommandTime.Format("2006-01-02 15:04")),
	)
	h.reply(ctx, msg)
}

func (h *Handler) handleHelp(ctx context.Context) {
	h.reply(ctx,
		"\U0001F916 *SEO Monitor Bot Commands*\n\n"+
			"/start \\- Start monitoring and receive daily report\n"+
			"/stop \\- Stop monitoring\n"+
			"/status \\- Check current status\n"+
			"/india \\- Alert only on India\\-related posts\n"+
			"/global \\- Alert on all matching posts\n"+
			"/help \\- Show this help message")
}

func (h *Handler) handleLocaleOnly(ctx context.Context) {
	if err := h.control.SetLocaleOnly(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "india command: %v\n", err)
		return
	}
	h.reply(ctx, "\U0001F1EE\U0001F1F3 *Locale\\-only mode enabled* \\- alerting only on India\\-related posts")
}

func (h *Handler) handleGlobal(ctx context.Context) {
	if err := h.control.SetGlobal(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "global command: %v\n", err)
		return
	}
	h.reply(ctx, "\U0001F310 *Global mode enabled* \\- alerting on all matching posts")
}

func escapeTime(s string) string {
	s = strings.ReplaceAll(s, "-", "\\-")
	return strings.ReplaceAll(s, ":", "\\:")
}
