package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seoradar/internal/command"
	"seoradar/internal/config"
	"seoradar/internal/control"
	"seoradar/internal/keyword"
	"seoradar/internal/ledger"
	"seoradar/internal/monitor"
	"seoradar/internal/stats"
	"seoradar/internal/store"
	"seoradar/pkg/alert"
	"seoradar/pkg/feed"
	"seoradar/pkg/match"
	"seoradar/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// buildFeed picks the OAuth search client when credentials are present,
// falling back to the public search feed otherwise.
func buildFeed(cfg *config.Config) feed.Feed {
	if cfg.Reddit.ClientID != "" && cfg.Reddit.ClientSecret != "" {
		return feed.NewReddit(cfg.Reddit.ClientID, cfg.Reddit.ClientSecret, cfg.Reddit.UserAgent)
	}
	fmt.Fprintln(os.Stderr, "no reddit credentials, using public search feed")
	return feed.NewRSS(cfg.Reddit.UserAgent)
}

// buildNotifier picks Telegram when credentials are present, falling
// back to log-only alerts otherwise.
func buildNotifier(cfg *config.Config) alert.Notifier {
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		return alert.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	fmt.Fprintln(os.Stderr, "no telegram credentials, alerts go to stderr")
	return alert.NewLog()
}

func buildKeywords(cfg *config.Config) (*keyword.Source, error) {
	src := keyword.NewSource(cfg.Keywords.Path, match.Options{
		Strategy:           match.Strategy(cfg.Matcher.Strategy),
		SecondaryScanLimit: cfg.Matcher.SecondaryScanLimit,
	}, cfg.Keywords.PrimaryPerRun, cfg.Keywords.SecondaryPerRun)

	if err := src.Reload(); err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	p, s := src.Counts()
	fmt.Fprintf(os.Stderr, "keywords loaded: %d primary, %d secondary\n", p, s)
	return src, nil
}

func buildMonitor(cfg *config.Config, kw *keyword.Source,
	led *ledger.Ledger, ctl *control.State, notifier alert.Notifier, tracker *stats.Tracker) *monitor.Monitor {
	return monitor.New(monitor.Options{
		Feed:               buildFeed(cfg),
		Keywords:           kw,
		Ledger:             led,
		Control:            ctl,
		Notifier:           notifier,
		Tracker:            tracker,
		ScanInterval:       cfg.Schedule.ParseScanInterval(),
		CommandInterval:    cfg.Schedule.ParseCommandInterval(),
		KeywordBudget:      cfg.Scan.ParseKeywordBudget(),
		ItemTimeout:        cfg.Scan.ParseItemTimeout(),
		ResultsPerKeyword:  cfg.Scan.ResultsPerKeyword,
		Freshness:          cfg.Ledger.ParseRetention(),
		ExcludedSubreddits: cfg.Scan.ExcludedSubreddits,
		ReportTime:         cfg.Report.Time,
	})
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kw, err := buildKeywords(cfg)
	if err != nil {
		return err
	}

	led := ledger.New(db, cfg.Ledger.Capacity, cfg.Ledger.ParseRetention())
	if err := led.Load(ctx); err != nil {
		return err
	}

	ctl := control.New(db, cfg.Scan.ParseControlTTL())
	if err := ctl.Load(ctx); err != nil {
		return err
	}

	notifier := buildNotifier(cfg)
	tracker := stats.NewTracker(db)
	mon := buildMonitor(cfg, kw, led, ctl, notifier, tracker)

	if cfg.Keywords.WatchFile {
		go func() {
			if err := kw.Watch(ctx); err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "keyword watcher: %v\n", err)
			}
		}()
	}

	// The command poller needs real Telegram credentials; the HTTP
	// control endpoints cover remote control without them.
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		command.ClearWebhook(ctx, cfg.Telegram.BotToken)
		handler := command.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			ctl, tracker, notifier, db)
		if err := handler.Load(ctx); err != nil {
			return fmt.Errorf("load command cursor: %w", err)
		}
		go handler.Run(ctx, cfg.Schedule.ParseCommandInterval())
	}

	go mon.Run(ctx)

	srv := server.New(mon, ctl, db, port)
	fmt.Fprintf(os.Stderr, "listening on :%d\n", port)
	return srv.Start(ctx)
}

func runScan() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kw, err := buildKeywords(cfg)
	if err != nil {
		return err
	}

	led := ledger.New(db, cfg.Ledger.Capacity, cfg.Ledger.ParseRetention())
	if err := led.Load(ctx); err != nil {
		return err
	}

	ctl := control.New(db, cfg.Scan.ParseControlTTL())
	if err := ctl.Load(ctx); err != nil {
		return err
	}

	tracker := stats.NewTracker(db)
	mon := buildMonitor(cfg, kw, led, ctl, buildNotifier(cfg), tracker)

	cs, err := mon.Cycle(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "scanned %d posts across %d keywords: %d matched, %d alerted, %d skipped\n",
		cs.Scanned, cs.Keywords, cs.Matched, cs.Alerted, cs.Skipped)
	return nil
}

func runStatus(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	rec, err := db.LoadControl(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &store.ControlRecord{Running: true, LastCommand: "start"}
	}

	tracker := stats.NewTracker(db)
	day := time.Now().Format("2006-01-02")
	sum, err := tracker.Day(ctx, day)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"control": rec,
			"today":   sum,
		})
	}

	state := "stopped"
	if rec.Running {
		state = "running"
	}
	mode := "global"
	if rec.LocaleOnly {
		mode = "locale-only"
	}
	fmt.Printf("state: %s\nmode: %s\nlast command: /%s at %s\n",
		state, mode, rec.LastCommand, rec.LastCommandTime.Format(time.RFC3339))
	fmt.Printf("today: %d opportunities (%d primary, %d locale-related)\n",
		sum.Total, sum.Primary, sum.LocaleRelated)
	return nil
}

func runKeywords(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	kw, err := buildKeywords(cfg)
	if err != nil {
		return err
	}
	m := kw.Matcher()

	printTier := func(name string, terms []string) {
		fmt.Printf("%s (%d):\n", name, len(terms))
		shown := terms
		if len(shown) > limit {
			shown = shown[:limit]
		}
		for _, t := range shown {
			fmt.Printf("  %s\n", t)
		}
		if extra := len(terms) - len(shown); extra > 0 {
			fmt.Printf("  ... and %d more\n", extra)
		}
	}

	printTier("primary", m.PrimaryTerms())
	printTier("secondary", m.SecondaryTerms())
	return nil
}

func runReport() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	tracker := stats.NewTracker(db)
	now := time.Now()
	sum, err := tracker.Day(context.Background(), now.Format("2006-01-02"))
	if err != nil {
		return err
	}

	fmt.Println(stats.Report(sum, now))
	return nil
}
