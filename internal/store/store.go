package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Opportunity is one fully-formed hit: a post that survived spam,
// dedup, and mode filtering with its match classification.
type Opportunity struct {
	ID              int64     `db:"id" json:"id"`
	PostID          string    `db:"post_id" json:"post_id"`
	Title           string    `db:"title" json:"title"`
	Permalink       string    `db:"permalink" json:"permalink"`
	Excerpt         string    `db:"excerpt" json:"excerpt"`
	Author          string    `db:"author" json:"author"`
	Subreddit       string    `db:"subreddit" json:"subreddit"`
	Keywords        []string  `db:"-" json:"keywords"`
	Competitors     []string  `db:"-" json:"competitors"`
	Priority        string    `db:"priority" json:"priority"`
	LocaleFlag      bool      `db:"locale_flag" json:"locale_flag"`
	Score           int       `db:"score" json:"score"`
	Comments        int       `db:"comments" json:"comments"`
	PostedAt        time.Time `db:"posted_at" json:"posted_at"`
	FoundAt         time.Time `db:"found_at" json:"found_at"`
	Day             string    `db:"day" json:"day"`
	KeywordsJSON    string    `db:"keywords" json:"-"`
	CompetitorsJSON string    `db:"competitors" json:"-"`
}

// ControlRecord is the persisted run/mode state.
type ControlRecord struct {
	Running         bool      `db:"running"`
	LocaleOnly      bool      `db:"locale_only"`
	LastCommand     string    `db:"last_command"`
	LastCommandTime time.Time `db:"last_command_time"`
}

// Cursor is the persisted command-channel position.
type Cursor struct {
	LastUpdateID    int64     `db:"last_update_id"`
	LastCommandTime time.Time `db:"last_command_time"`
}

// OpportunityListOpts controls opportunity listing.
type OpportunityListOpts struct {
	Day   string
	Since time.Time
	Limit int
}

// Store is the persistence interface.
type Store interface {
	LoadSeen(ctx context.Context, cutoff time.Time) (map[string]time.Time, error)
	ReplaceSeen(ctx context.Context, entries map[string]time.Time) error

	LoadControl(ctx context.Context) (*ControlRecord, error)
	SaveControl(ctx context.Context, rec *ControlRecord) error

	LoadCursor(ctx context.Context) (*Cursor, error)
	SaveCursor(ctx context.Context, cur *Cursor) error

	AddOpportunity(ctx context.Context, opp *Opportunity) error
	ListOpportunities(ctx context.Context, opts OpportunityListOpts) ([]Opportunity, error)
	DeleteOpportunitiesBefore(ctx context.Context, day string) (int64, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadSeen returns seen entries newer than cutoff. Older rows are
// dropped from the database in the same call so they never come back.
func (s *SQLiteStore) LoadSeen(ctx context.Context, cutoff time.Time) (map[string]time.Time, error) {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM seen_posts WHERE seen_at < ?", cutoff); err != nil {
		return nil, fmt.Errorf("prune seen posts: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, "SELECT post_id, seen_at FROM seen_posts")
	if err != nil {
		return nil, fmt.Errorf("load seen posts: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var seenAt time.Time
		if err := rows.Scan(&id, &seenAt); err != nil {
			return nil, err
		}
		entries[id] = seenAt
	}
	return entries, rows.Err()
}

// ReplaceSeen writes a full snapshot of the ledger in one transaction.
func (s *SQLiteStore) ReplaceSeen(ctx context.Context, entries map[string]time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seen snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM seen_posts"); err != nil {
		return fmt.Errorf("clear seen posts: %w", err)
	}
	for id, seenAt := range entries {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO seen_posts (post_id, seen_at) VALUES (?, ?)", id, seenAt); err != nil {
			return fmt.Errorf("insert seen post %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadControl returns the persisted control state, or nil when the
// process has never written one.
func (s *SQLiteStore) LoadControl(ctx context.Context) (*ControlRecord, error) {
	var rec ControlRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT running, locale_only, last_command, last_command_time FROM control_state WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load control state: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) SaveControl(ctx context.Context, rec *ControlRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO control_state (id, running, locale_only, last_command, last_command_time)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			running = excluded.running,
			locale_only = excluded.locale_only,
			last_command = excluded.last_command,
			last_command_time = excluded.last_command_time
	`, rec.Running, rec.LocaleOnly, rec.LastCommand, rec.LastCommandTime)
	if err != nil {
		return fmt.Errorf("save control state: %w", err)
	}
	return nil
}

// LoadCursor returns the persisted command cursor, or nil when absent.
func (s *SQLiteStore) LoadCursor(ctx context.Context) (*Cursor, error) {
	var cur Cursor
	err := s.db.GetContext(ctx, &cur,
		"SELECT last_update_id, last_command_time FROM command_cursor WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load command cursor: %w", err)
	}
	return &cur, nil
}

func (s *SQLiteStore) SaveCursor(ctx context.Context, cur *Cursor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_cursor (id, last_update_id, last_command_time)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_update_id = excluded.last_update_id,
			last_command_time = excluded.last_command_time
	`, cur.LastUpdateID, cur.LastCommandTime)
	if err != nil {
		return fmt.Errorf("save command cursor: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddOpportunity(ctx context.Context, opp *Opportunity) error {
	kwJSON, _ := json.Marshal(opp.Keywords)
	compJSON, _ := json.Marshal(opp.Competitors)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities (post_id, title, permalink, excerpt, author, subreddit,
			keywords, competitors, priority, locale_flag, score, comments, posted_at, found_at, day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO NOTHING
	`, opp.PostID, opp.Title, opp.Permalink, opp.Excerpt, opp.Author, opp.Subreddit,
		string(kwJSON), string(compJSON), opp.Priority, opp.LocaleFlag,
		opp.Score, opp.Comments, opp.PostedAt, opp.FoundAt, opp.Day)
	if err != nil {
		return fmt.Errorf("insert opportunity %s: %w", opp.PostID, err)
	}
	opp.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListOpportunities(ctx context.Context, opts OpportunityListOpts) ([]Opportunity, error) {
	query := "SELECT * FROM opportunities WHERE 1=1"
	var args []any

	if opts.Day != "" {
		query += " AND day = ?"
		args = append(args, opts.Day)
	}
	if !opts.Since.IsZero() {
		query += " AND found_at >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY found_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var opps []Opportunity
	if err := s.db.SelectContext(ctx, &opps, query, args...); err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}

	for i := range opps {
		json.Unmarshal([]byte(opps[i].KeywordsJSON), &opps[i].Keywords)
		json.Unmarshal([]byte(opps[i].CompetitorsJSON), &opps[i].Competitors)
	}
	return opps, nil
}

// DeleteOpportunitiesBefore archives by deletion: rows from days before
// the given day are removed after the daily report goes out.
func (s *SQLiteStore) DeleteOpportunitiesBefore(ctx context.Context, day string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM opportunities WHERE day < ?", day)
	if err != nil {
		return 0, fmt.Errorf("delete old opportunities: %w", err)
	}
	return res.RowsAffected()
}
