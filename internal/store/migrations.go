package store

const schema = `
CREATE TABLE IF NOT EXISTS seen_posts (
    post_id TEXT PRIMARY KEY,
    seen_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_seen_posts_seen_at ON seen_posts(seen_at);

CREATE TABLE IF NOT EXISTS control_state (
    id                INTEGER PRIMARY KEY CHECK (id = 1),
    running           BOOLEAN NOT NULL DEFAULT 1,
    locale_only       BOOLEAN NOT NULL DEFAULT 0,
    last_command      TEXT NOT NULL DEFAULT 'start',
    last_command_time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS command_cursor (
    id                INTEGER PRIMARY KEY CHECK (id = 1),
    last_update_id    INTEGER NOT NULL DEFAULT 0,
    last_command_time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS opportunities (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id     TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    permalink   TEXT NOT NULL DEFAULT '',
    excerpt     TEXT NOT NULL DEFAULT '',
    author      TEXT NOT NULL DEFAULT '',
    subreddit   TEXT NOT NULL DEFAULT '',
    keywords    TEXT NOT NULL DEFAULT '[]',
    competitors TEXT NOT NULL DEFAULT '[]',
    priority    TEXT NOT NULL DEFAULT 'secondary',
    locale_flag BOOLEAN NOT NULL DEFAULT 0,
    score       INTEGER NOT NULL DEFAULT 0,
    comments    INTEGER NOT NULL DEFAULT 0,
    posted_at   DATETIME NOT NULL,
    found_at    DATETIME NOT NULL,
    day         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_opportunities_day ON opportunities(day);
CREATE INDEX IF NOT EXISTS idx_opportunities_found_at ON opportunities(found_at);
`
