package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStorage is the single-host backend. Timestamps are stored as unix
// microseconds; string lists as JSON arrays.
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reddit_bots (
    id                TEXT PRIMARY KEY,
    credential_handle TEXT    NOT NULL DEFAULT '',
    keywords          TEXT    NOT NULL DEFAULT '[]',
    fixed_subs        TEXT    NOT NULL DEFAULT '[]',
    prompt            TEXT    NOT NULL DEFAULT '',
    max_replies       INTEGER NOT NULL DEFAULT 10,
    max_upvotes       INTEGER NOT NULL DEFAULT 20,
    max_subs          INTEGER NOT NULL DEFAULT 3,
    active            INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS excluded_subreddits (
    subreddit    TEXT PRIMARY KEY,
    display_name TEXT    NOT NULL,
    reason       TEXT    NOT NULL DEFAULT '',
    added_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subreddit_history (
    bot_id            TEXT    NOT NULL,
    subreddit         TEXT    NOT NULL,
    last_commented_at INTEGER NOT NULL,
    PRIMARY KEY (bot_id, subreddit)
);

CREATE TABLE IF NOT EXISTS interaction_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT    NOT NULL,
    bot_id     TEXT    NOT NULL,
    subreddit  TEXT    NOT NULL DEFAULT '',
    post_id    TEXT    NOT NULL DEFAULT '',
    action     TEXT    NOT NULL,
    verdict    TEXT    NOT NULL DEFAULT '',
    reason     TEXT    NOT NULL DEFAULT '',
    reply      TEXT    NOT NULL DEFAULT '',
    reply_hash TEXT    NOT NULL DEFAULT '',
    upvotes    INTEGER NOT NULL DEFAULT 0,
    dry_run    INTEGER NOT NULL DEFAULT 0,
    detail     TEXT    NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS interaction_log_bot_action_idx ON interaction_log (bot_id, action);
`

// NewSQLiteStorage opens (or creates) the database at path and applies the schema.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}
	// One writer keeps upserts serialized inside the process; the
	// busy timeout covers other processes sharing the file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing sqlite schema: %w", err)
	}

	logger.Info("SQLite storage ready", zap.String("path", path))
	return &SQLiteStorage{db: db, logger: logger}, nil
}

func toMicros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(us int64) time.Time { return time.UnixMicro(us).UTC() }

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	return string(b), err
}

func decodeList(raw string) ([]string, error) {
	var list []string
	if raw == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}

func (s *SQLiteStorage) GetBot(ctx context.Context, id string) (*models.BotIdentity, error) {
	var (
		bot                 models.BotIdentity
		keywords, fixedSubs string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, credential_handle, keywords, fixed_subs, prompt,
		       max_replies, max_upvotes, max_subs, active
		FROM reddit_bots WHERE id = ?`, id).Scan(
		&bot.ID, &bot.CredentialHandle, &keywords, &fixedSubs, &bot.Prompt,
		&bot.MaxReplies, &bot.MaxUpvotes, &bot.MaxSubreddits, &bot.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading bot %s: %w", id, err)
	}
	if bot.Keywords, err = decodeList(keywords); err != nil {
		return nil, fmt.Errorf("error decoding keywords for %s: %w", id, err)
	}
	if bot.FixedSubs, err = decodeList(fixedSubs); err != nil {
		return nil, fmt.Errorf("error decoding fixed subs for %s: %w", id, err)
	}
	return &bot, nil
}

func (s *SQLiteStorage) SaveBot(ctx context.Context, bot *models.BotIdentity) error {
	keywords, err := encodeList(bot.Keywords)
	if err != nil {
		return fmt.Errorf("error encoding keywords: %w", err)
	}
	fixedSubs, err := encodeList(bot.FixedSubs)
	if err != nil {
		return fmt.Errorf("error encoding fixed subs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reddit_bots (id, credential_handle, keywords, fixed_subs, prompt,
		                         max_replies, max_upvotes, max_subs, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			credential_handle = excluded.credential_handle,
			keywords          = excluded.keywords,
			fixed_subs        = excluded.fixed_subs,
			prompt            = excluded.prompt,
			max_replies       = excluded.max_replies,
			max_upvotes       = excluded.max_upvotes,
			max_subs          = excluded.max_subs,
			active            = excluded.active`,
		bot.ID, bot.CredentialHandle, keywords, fixedSubs, bot.Prompt,
		bot.MaxReplies, bot.MaxUpvotes, bot.MaxSubreddits, bot.Active,
	)
	if err != nil {
		return fmt.Errorf("error saving bot %s: %w", bot.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) ListActiveBots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM reddit_bots WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying active bots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning bot id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStorage) IsExcluded(ctx context.Context, subreddit string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM excluded_subreddits WHERE subreddit = ?`,
		models.NormalizeSubreddit(subreddit)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("error checking exclusion for %s: %w", subreddit, err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) ListExclusions(ctx context.Context) ([]models.ExclusionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT display_name, reason, added_at FROM excluded_subreddits ORDER BY subreddit`)
	if err != nil {
		return nil, fmt.Errorf("error querying exclusions: %w", err)
	}
	defer rows.Close()

	var out []models.ExclusionEntry
	for rows.Next() {
		var (
			e  models.ExclusionEntry
			at int64
		)
		if err := rows.Scan(&e.Subreddit, &e.Reason, &at); err != nil {
			return nil, fmt.Errorf("error scanning exclusion: %w", err)
		}
		e.AddedAt = fromMicros(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) AddExclusion(ctx context.Context, entry models.ExclusionEntry) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO excluded_subreddits (subreddit, display_name, reason, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (subreddit) DO NOTHING`,
		models.NormalizeSubreddit(entry.Subreddit), entry.Subreddit, entry.Reason, toMicros(entry.AddedAt))
	if err != nil {
		return fmt.Errorf("error adding exclusion %s: %w", entry.Subreddit, err)
	}
	return nil
}

func (s *SQLiteStorage) GetLastCommented(ctx context.Context, botID, subreddit string) (time.Time, bool, error) {
	var at int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_commented_at FROM subreddit_history WHERE bot_id = ? AND subreddit = ?`,
		botID, models.NormalizeSubreddit(subreddit)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("error loading history for %s/%s: %w", botID, subreddit, err)
	}
	return fromMicros(at), true, nil
}

func (s *SQLiteStorage) UpsertHistory(ctx context.Context, botID, subreddit string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subreddit_history (bot_id, subreddit, last_commented_at)
		VALUES (?, ?, ?)
		ON CONFLICT (bot_id, subreddit) DO UPDATE SET
			last_commented_at = MAX(subreddit_history.last_commented_at, excluded.last_commented_at)`,
		botID, models.NormalizeSubreddit(subreddit), toMicros(at))
	if err != nil {
		return fmt.Errorf("error upserting history for %s/%s: %w", botID, subreddit, err)
	}
	return nil
}

func (s *SQLiteStorage) ListHistory(ctx context.Context, botID string) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bot_id, subreddit, last_commented_at
		FROM subreddit_history
		WHERE bot_id = ?
		ORDER BY last_commented_at DESC`, botID)
	if err != nil {
		return nil, fmt.Errorf("error querying history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var (
			h  models.HistoryEntry
			at int64
		)
		if err := rows.Scan(&h.BotID, &h.Subreddit, &at); err != nil {
			return nil, fmt.Errorf("error scanning history: %w", err)
		}
		h.LastCommentedAt = fromMicros(at)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) Record(ctx context.Context, runID string, entry models.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interaction_log (run_id, bot_id, subreddit, post_id, action, verdict,
		                             reason, reply, reply_hash, upvotes, dry_run, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, entry.BotID, entry.Subreddit, entry.PostID,
		string(entry.Action), string(entry.Verdict), string(entry.Reason),
		entry.Reply, entry.ReplyHash, entry.Upvotes, entry.DryRun, entry.Detail,
		toMicros(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("error recording interaction: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) RepliedPostIDs(ctx context.Context, botID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT post_id FROM interaction_log
		WHERE bot_id = ? AND action = ? AND dry_run = 0 AND post_id <> ''`,
		botID, string(models.ActionReply))
	if err != nil {
		return nil, fmt.Errorf("error querying replied posts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning post id: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
