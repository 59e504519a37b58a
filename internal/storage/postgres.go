package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// URL takes precedence over the individual fields when set.
	URL string
}

func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("PostgreSQL storage ready", zap.String("host", config.Host), zap.String("dbname", config.DBName))
	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetBot(ctx context.Context, id string) (*models.BotIdentity, error) {
	query := `
		SELECT id, credential_handle, keywords, fixed_subs, prompt,
		       max_replies, max_upvotes, max_subs, active
		FROM reddit_bots
		WHERE id = $1`

	bot := &models.BotIdentity{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&bot.ID,
		&bot.CredentialHandle,
		pq.Array(&bot.Keywords),
		pq.Array(&bot.FixedSubs),
		&bot.Prompt,
		&bot.MaxReplies,
		&bot.MaxUpvotes,
		&bot.MaxSubreddits,
		&bot.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading bot %s: %w", id, err)
	}
	return bot, nil
}

func (s *PostgresStorage) SaveBot(ctx context.Context, bot *models.BotIdentity) error {
	query := `
		INSERT INTO reddit_bots (id, credential_handle, keywords, fixed_subs, prompt,
		                         max_replies, max_upvotes, max_subs, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			credential_handle = EXCLUDED.credential_handle,
			keywords          = EXCLUDED.keywords,
			fixed_subs        = EXCLUDED.fixed_subs,
			prompt            = EXCLUDED.prompt,
			max_replies       = EXCLUDED.max_replies,
			max_upvotes       = EXCLUDED.max_upvotes,
			max_subs          = EXCLUDED.max_subs,
			active            = EXCLUDED.active`

	_, err := s.db.ExecContext(ctx, query,
		bot.ID,
		bot.CredentialHandle,
		pq.Array(bot.Keywords),
		pq.Array(bot.FixedSubs),
		bot.Prompt,
		bot.MaxReplies,
		bot.MaxUpvotes,
		bot.MaxSubreddits,
		bot.Active,
	)
	if err != nil {
		return fmt.Errorf("error saving bot %s: %w", bot.ID, err)
	}
	return nil
}

func (s *PostgresStorage) ListActiveBots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM reddit_bots WHERE active ORDER BY id`)
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

func (s *PostgresStorage) IsExcluded(ctx context.Context, subreddit string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM excluded_subreddits WHERE subreddit = $1)`,
		models.NormalizeSubreddit(subreddit),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking exclusion for %s: %w", subreddit, err)
	}
	return exists, nil
}

func (s *PostgresStorage) ListExclusions(ctx context.Context) ([]models.ExclusionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT display_name, reason, added_at FROM excluded_subreddits ORDER BY subreddit`)
	if err != nil {
		return nil, fmt.Errorf("error querying exclusions: %w", err)
	}
	defer rows.Close()

	var out []models.ExclusionEntry
	for rows.Next() {
		var e models.ExclusionEntry
		if err := rows.Scan(&e.Subreddit, &e.Reason, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("error scanning exclusion: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) AddExclusion(ctx context.Context, entry models.ExclusionEntry) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO excluded_subreddits (subreddit, display_name, reason, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subreddit) DO NOTHING`,
		models.NormalizeSubreddit(entry.Subreddit),
		entry.Subreddit,
		entry.Reason,
		entry.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("error adding exclusion %s: %w", entry.Subreddit, err)
	}
	return nil
}

func (s *PostgresStorage) GetLastCommented(ctx context.Context, botID, subreddit string) (time.Time, bool, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_commented_at FROM subreddit_history WHERE bot_id = $1 AND subreddit = $2`,
		botID, models.NormalizeSubreddit(subreddit),
	).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("error loading history for %s/%s: %w", botID, subreddit, err)
	}
	return at, true, nil
}

// UpsertHistory relies on ON CONFLICT for atomicity across concurrent bots;
// GREATEST keeps the timestamp monotonic.
func (s *PostgresStorage) UpsertHistory(ctx context.Context, botID, subreddit string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subreddit_history (bot_id, subreddit, last_commented_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (bot_id, subreddit) DO UPDATE SET
			last_commented_at = GREATEST(subreddit_history.last_commented_at, EXCLUDED.last_commented_at)`,
		botID, models.NormalizeSubreddit(subreddit), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error upserting history for %s/%s: %w", botID, subreddit, err)
	}
	return nil
}

func (s *PostgresStorage) ListHistory(ctx context.Context, botID string) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bot_id, subreddit, last_commented_at
		FROM subreddit_history
		WHERE bot_id = $1
		ORDER BY last_commented_at DESC`, botID)
	if err != nil {
		return nil, fmt.Errorf("error querying history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.BotID, &h.Subreddit, &h.LastCommentedAt); err != nil {
			return nil, fmt.Errorf("error scanning history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) Record(ctx context.Context, runID string, entry models.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interaction_log (run_id, bot_id, subreddit, post_id, action, verdict,
		                             reason, reply, reply_hash, upvotes, dry_run, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		runID,
		entry.BotID,
		entry.Subreddit,
		entry.PostID,
		string(entry.Action),
		string(entry.Verdict),
		string(entry.Reason),
		entry.Reply,
		entry.ReplyHash,
		entry.Upvotes,
		entry.DryRun,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error recording interaction: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RepliedPostIDs(ctx context.Context, botID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT post_id FROM interaction_log
		WHERE bot_id = $1 AND action = $2 AND NOT dry_run AND post_id <> ''`,
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

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
