package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/subreddit-bot/internal/metrics"
	"github.com/xaenox/subreddit-bot/internal/models"
	"github.com/xaenox/subreddit-bot/internal/storage"
	"github.com/xaenox/subreddit-bot/pkg/config"
	"go.uber.org/zap"
)

func testEnv(t *testing.T, cfg *config.Config) *env {
	return &env{cfg: cfg, logger: zap.NewNop(), store: storage.NewMemoryStorage(), metrics: metrics.New()}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	cfg := &config.Config{
		Bots: []models.BotIdentity{
			{ID: "slime-bot", Keywords: []string{"slime"}, MaxReplies: 3, Active: true},
		},
		Exclusions: []config.ExclusionConfig{
			{Subreddit: "r/AskReddit", Reason: "rules"},
			{Subreddit: "  "},
		},
	}
	require.NoError(t, seed(ctx, store, cfg, now))
	// seeding twice changes nothing
	require.NoError(t, seed(ctx, store, cfg, now.Add(time.Hour)))

	b, err := store.GetBot(ctx, "slime-bot")
	require.NoError(t, err)
	assert.Equal(t, 3, b.MaxReplies)

	excluded, err := store.IsExcluded(ctx, "askreddit")
	require.NoError(t, err)
	assert.True(t, excluded)

	list, err := store.ListExclusions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, now, list[0].AddedAt)
}

func TestOpenStorageMemory(t *testing.T) {
	s, err := openStorage(config.DatabaseConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, s)
}

func TestOpenStorageSQLite(t *testing.T) {
	path := t.TempDir() + "/bots.db"
	s, err := openStorage(config.DatabaseConfig{Driver: "sqlite", SQLitePath: path}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	assert.IsType(t, &storage.SQLiteStorage{}, s)
}

func TestRedditClientNeedsAccount(t *testing.T) {
	e := testEnv(t, &config.Config{})
	_, err := e.redditClient("nobody")
	assert.True(t, models.IsConfigurationError(err))

	e.cfg.Reddit.Accounts = map[string]config.AccountConfig{"main": {ClientID: "cid"}}
	c, err := e.redditClient("Main")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestGeneratorAndGate(t *testing.T) {
	ctx := context.Background()

	e := testEnv(t, &config.Config{Generator: config.GeneratorConfig{Provider: "openai"}})
	_, _, err := e.generatorAndGate(ctx)
	assert.True(t, models.IsConfigurationError(err))

	e.cfg.Generator.Provider = "gemini"
	_, _, err = e.generatorAndGate(ctx)
	assert.True(t, models.IsConfigurationError(err))

	e.cfg.Generator.Provider = "openai"
	e.cfg.OpenAI = config.OpenAIConfig{APIKey: "k", Model: "m"}
	gen, g, err := e.generatorAndGate(ctx)
	require.NoError(t, err)
	assert.NotNil(t, gen)
	assert.Equal(t, "topicality", g.Topicality.Name())

	e.cfg.Gate.ModelTopicality = true
	_, g, err = e.generatorAndGate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "model:topicality", g.Topicality.Name())
	assert.Equal(t, "sentiment", g.Sentiment.Name())
}

func TestRunBotUnknownID(t *testing.T) {
	e := testEnv(t, &config.Config{})
	_, err := e.runBot(context.Background(), "ghost", runFlags{dryRun: true})
	assert.ErrorIs(t, err, models.ErrBotNotFound)
}

func TestCredentials(t *testing.T) {
	c := credentials(config.AccountConfig{ClientID: "a", ClientSecret: "b", Username: "u", Password: "p"})
	assert.True(t, c.CanAct())
	assert.Equal(t, "a", c.ClientID)
}
