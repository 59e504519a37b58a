package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/subreddit-bot/internal/models"
)

type historyKey struct {
	botID     string
	subreddit string
}

type MemoryStorage struct {
	mu         sync.RWMutex
	bots       map[string]*models.BotIdentity
	exclusions map[string]models.ExclusionEntry
	history    map[historyKey]models.HistoryEntry
	log        []models.LogEntry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		bots:       make(map[string]*models.BotIdentity),
		exclusions: make(map[string]models.ExclusionEntry),
		history:    make(map[historyKey]models.HistoryEntry),
	}
}

// Bot methods
func (s *MemoryStorage) GetBot(ctx context.Context, id string) (*models.BotIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bot, exists := s.bots[id]
	if !exists {
		return nil, models.ErrBotNotFound
	}
	out := bot.WithLimits(models.Limits{})
	return &out, nil
}

func (s *MemoryStorage) SaveBot(ctx context.Context, bot *models.BotIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := bot.WithLimits(models.Limits{})
	s.bots[bot.ID] = &stored
	return nil
}

func (s *MemoryStorage) ListActiveBots(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.bots))
	for id, bot := range s.bots {
		if bot.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Exclusion methods
func (s *MemoryStorage) IsExcluded(ctx context.Context, subreddit string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.exclusions[models.NormalizeSubreddit(subreddit)]
	return exists, nil
}

func (s *MemoryStorage) ListExclusions(ctx context.Context) ([]models.ExclusionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ExclusionEntry, 0, len(s.exclusions))
	for _, e := range s.exclusions {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return models.NormalizeSubreddit(out[i].Subreddit) < models.NormalizeSubreddit(out[j].Subreddit)
	})
	return out, nil
}

func (s *MemoryStorage) AddExclusion(ctx context.Context, entry models.ExclusionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NormalizeSubreddit(entry.Subreddit)
	// Check if the subreddit is already excluded
	if _, exists := s.exclusions[key]; exists {
		return nil
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}
	s.exclusions[key] = entry
	return nil
}

// History methods
func (s *MemoryStorage) GetLastCommented(ctx context.Context, botID, subreddit string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.history[historyKey{botID, models.NormalizeSubreddit(subreddit)}]
	if !exists {
		return time.Time{}, false, nil
	}
	return entry.LastCommentedAt, true, nil
}

func (s *MemoryStorage) UpsertHistory(ctx context.Context, botID, subreddit string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey{botID, models.NormalizeSubreddit(subreddit)}
	if entry, exists := s.history[key]; exists && !at.After(entry.LastCommentedAt) {
		return nil
	}
	s.history[key] = models.HistoryEntry{
		BotID:           botID,
		Subreddit:       key.subreddit,
		LastCommentedAt: at.UTC(),
	}
	return nil
}

func (s *MemoryStorage) ListHistory(ctx context.Context, botID string) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.HistoryEntry
	for key, entry := range s.history {
		if key.botID == botID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastCommentedAt.After(out[j].LastCommentedAt)
	})
	return out, nil
}

// Interaction log methods
func (s *MemoryStorage) Record(ctx context.Context, runID string, entry models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.RunID = runID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.log = append(s.log, entry)
	return nil
}

func (s *MemoryStorage) RepliedPostIDs(ctx context.Context, botID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{})
	for _, entry := range s.log {
		if entry.BotID == botID && entry.Action == models.ActionReply && !entry.DryRun && entry.PostID != "" {
			out[entry.PostID] = struct{}{}
		}
	}
	return out, nil
}

// Entries returns a copy of the interaction log, oldest first.
func (s *MemoryStorage) Entries() []models.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.LogEntry(nil), s.log...)
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
