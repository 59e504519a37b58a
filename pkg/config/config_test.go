package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/subreddit-bot/internal/models"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"DATABASE_URL", "GROQ_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
		"TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID", "PUSHGATEWAY_URL",
		"REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET", "REDDIT_USERNAME",
		"REDDIT_PASSWORD", "REDDIT_REFRESH_TOKEN", "REDDIT_USER_AGENT",
	} {
		t.Setenv(k, "")
	}
}

const sample = `
database:
  driver: sqlite
  sqlite_path: /tmp/bots.db
generator:
  provider: gemini
gate:
  model_topicality: true
reddit:
  accounts:
    SlimeMain:
      client_id: cid
      client_secret: secret
      refresh_token: rt
run:
  cooldown: 48h
  posts_per_subreddit: 8
bots:
  - id: slime-bot
    credential_handle: SlimeMain
    keywords: [slime, fluffy slime]
    prompt: You love slime.
    max_replies: 3
    max_upvotes: 10
    max_subs: 2
    active: true
exclusions:
  - subreddit: r/AskReddit
    reason: strict rules
`

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/bots.db", cfg.Database.SQLitePath)
	assert.Equal(t, "gemini", cfg.Generator.Provider)
	assert.True(t, cfg.Gate.ModelTopicality)
	assert.Equal(t, 48*time.Hour, cfg.Run.Cooldown)
	assert.Equal(t, 8, cfg.Run.PostsPerSubreddit)
	assert.Equal(t, 3, cfg.Run.CommentsToUpvote)

	require.Len(t, cfg.Bots, 1)
	assert.Equal(t, models.BotIdentity{
		ID:               "slime-bot",
		CredentialHandle: "SlimeMain",
		Keywords:         []string{"slime", "fluffy slime"},
		Prompt:           "You love slime.",
		MaxReplies:       3,
		MaxUpvotes:       10,
		MaxSubreddits:    2,
		Active:           true,
	}, cfg.Bots[0])

	require.Len(t, cfg.Exclusions, 1)
	assert.Equal(t, "r/AskReddit", cfg.Exclusions[0].Subreddit)

	acct, ok := cfg.Account("SlimeMain")
	require.True(t, ok)
	assert.Equal(t, "cid", acct.ClientID)
	assert.Equal(t, "rt", acct.RefreshToken)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "openai", cfg.Generator.Provider)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "llama3-8b-8192", cfg.OpenAI.Model)
	assert.Equal(t, 72*time.Hour, cfg.Run.Cooldown)
	assert.Equal(t, "rising", cfg.Run.Sort)
	assert.Empty(t, cfg.Bots)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://bot:pw@db.internal:6543/reddit?sslmode=require")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("TELEGRAM_TOKEN", "tg")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("REDDIT_CLIENT_ID", "envcid")
	t.Setenv("REDDIT_CLIENT_SECRET", "envsecret")
	t.Setenv("REDDIT_USERNAME", "slimebot")
	t.Setenv("REDDIT_PASSWORD", "pw")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DatabaseConfig{
		Driver:   "postgres",
		Host:     "db.internal",
		Port:     6543,
		User:     "bot",
		Password: "pw",
		DBName:   "reddit",
		SSLMode:  "require",
		URL:      "postgres://bot:pw@db.internal:6543/reddit?sslmode=require",
	}, cfg.Database)
	assert.Equal(t, "gsk_test", cfg.OpenAI.APIKey)
	assert.Equal(t, "tg", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)

	acct, ok := cfg.Account("")
	require.True(t, ok)
	assert.Equal(t, "envcid", acct.ClientID)
	assert.Equal(t, "slimebot", acct.Username)
}

func TestLoadConfigValidation(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(writeConfig(t, "database:\n  driver: mongo\n"))
	assert.True(t, models.IsConfigurationError(err))

	_, err = LoadConfig(writeConfig(t, "generator:\n  provider: markov\n"))
	assert.True(t, models.IsConfigurationError(err))

	_, err = LoadConfig(writeConfig(t, "bots:\n  - keywords: [slime]\n"))
	assert.True(t, models.IsConfigurationError(err))
}

func TestLoadConfigBotLimitDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(writeConfig(t, "bots:\n  - id: bare\n    fixed_subs: [slime]\n    active: true\n    max_replies: 4\n"))
	require.NoError(t, err)
	require.Len(t, cfg.Bots, 1)

	b := cfg.Bots[0]
	assert.Equal(t, 4, b.MaxReplies)
	assert.Equal(t, models.DefaultMaxUpvotes, b.MaxUpvotes)
	assert.Equal(t, models.DefaultMaxSubreddits, b.MaxSubreddits)
}

func TestInMemoryFlag(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(writeConfig(t, "database:\n  use_in_memory: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
}
