package storage

import (
	"context"
	"time"

	"github.com/xaenox/subreddit-bot/internal/models"
)

type Storage interface {
	BotStore
	ExclusionStore
	HistoryStore
	InteractionLog
	Close() error
}

// BotStore holds the per-bot configuration records.
type BotStore interface {
	GetBot(ctx context.Context, id string) (*models.BotIdentity, error)
	SaveBot(ctx context.Context, bot *models.BotIdentity) error
	ListActiveBots(ctx context.Context) ([]string, error)
}

// ExclusionStore is the global, append-only list of forbidden subreddits.
// Names compare case-insensitively.
type ExclusionStore interface {
	IsExcluded(ctx context.Context, subreddit string) (bool, error)
	ListExclusions(ctx context.Context) ([]models.ExclusionEntry, error)
	AddExclusion(ctx context.Context, entry models.ExclusionEntry) error
}

// HistoryStore tracks the last comment time per (bot, subreddit). Upserts
// are atomic and never move a timestamp backwards.
type HistoryStore interface {
	GetLastCommented(ctx context.Context, botID, subreddit string) (time.Time, bool, error)
	UpsertHistory(ctx context.Context, botID, subreddit string, at time.Time) error
	ListHistory(ctx context.Context, botID string) ([]models.HistoryEntry, error)
}

// InteractionLog is the append-only record of per-post decisions.
type InteractionLog interface {
	Record(ctx context.Context, runID string, entry models.LogEntry) error
	RepliedPostIDs(ctx context.Context, botID string) (map[string]struct{}, error)
}
