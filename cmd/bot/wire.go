package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/subreddit-bot/internal/bot"
	"github.com/xaenox/subreddit-bot/internal/classifier"
	"github.com/xaenox/subreddit-bot/internal/gate"
	"github.com/xaenox/subreddit-bot/internal/generator"
	"github.com/xaenox/subreddit-bot/internal/metrics"
	"github.com/xaenox/subreddit-bot/internal/models"
	"github.com/xaenox/subreddit-bot/internal/notify"
	"github.com/xaenox/subreddit-bot/internal/reddit"
	"github.com/xaenox/subreddit-bot/internal/storage"
	"github.com/xaenox/subreddit-bot/pkg/config"
	"go.uber.org/zap"
)

// env holds what every command shares.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Storage
	metrics  *metrics.Runs
	notifier *notify.Telegram
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStorage(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		logger.Info("Using SQLite storage", zap.String("path", cfg.SQLitePath))
		s, err := storage.NewSQLiteStorage(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Host))
		s, err := storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
			URL:      cfg.URL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// seed copies the bots and exclusions declared in the config file into the
// store. Bots are upserted; exclusions are only ever added.
func seed(ctx context.Context, store storage.Storage, cfg *config.Config, now time.Time) error {
	for i := range cfg.Bots {
		b := cfg.Bots[i]
		if err := store.SaveBot(ctx, &b); err != nil {
			return fmt.Errorf("save bot %s: %w", b.ID, err)
		}
	}
	for _, ex := range cfg.Exclusions {
		entry := models.ExclusionEntry{
			Subreddit: models.CleanSubreddit(ex.Subreddit),
			Reason:    ex.Reason,
			AddedAt:   now,
		}
		if entry.Subreddit == "" {
			continue
		}
		if err := store.AddExclusion(ctx, entry); err != nil {
			return fmt.Errorf("add exclusion %s: %w", ex.Subreddit, err)
		}
	}
	return nil
}

func credentials(acct config.AccountConfig) reddit.Credentials {
	return reddit.Credentials{
		ClientID:     acct.ClientID,
		ClientSecret: acct.ClientSecret,
		Username:     acct.Username,
		Password:     acct.Password,
		RefreshToken: acct.RefreshToken,
		UserAgent:    acct.UserAgent,
	}
}

func (e *env) redditClient(handle string) (*reddit.Client, error) {
	acct, ok := e.cfg.Account(handle)
	if !ok {
		return nil, models.Configurationf("no reddit account configured for handle %q", handle)
	}
	hc := reddit.NewHTTPClient(e.logger, e.cfg.Reddit.RetryMax, e.cfg.Reddit.Timeout)
	return reddit.NewClient(credentials(acct), e.logger, reddit.WithHTTPClient(hc)), nil
}

// generatorAndGate builds the reply generator for the configured provider
// and the gate that judges its output.
func (e *env) generatorAndGate(ctx context.Context) (bot.Generator, *gate.Gate, error) {
	g := gate.New()

	var chat *generator.OpenAI
	if e.cfg.OpenAI.APIKey != "" {
		var err error
		chat, err = generator.NewOpenAI(generator.OpenAIConfig{
			APIKey:      e.cfg.OpenAI.APIKey,
			BaseURL:     e.cfg.OpenAI.BaseURL,
			Model:       e.cfg.OpenAI.Model,
			MaxTokens:   e.cfg.OpenAI.MaxTokens,
			Temperature: e.cfg.OpenAI.Temperature,
		}, e.logger)
		if err != nil {
			return nil, nil, err
		}
	}

	if e.cfg.Gate.ModelTopicality {
		if chat == nil {
			e.logger.Warn("Model topicality needs an OpenAI-compatible key, using the lexical check")
		} else {
			g.Topicality = classifier.NewModelCheck(chat.Client(), chat.Model(), g.Topicality, e.logger)
		}
	}

	switch e.cfg.Generator.Provider {
	case "gemini":
		gem, err := generator.NewGemini(ctx, generator.GeminiConfig{
			APIKey:      e.cfg.Gemini.APIKey,
			Model:       e.cfg.Gemini.Model,
			MaxTokens:   e.cfg.Gemini.MaxTokens,
			Temperature: e.cfg.Gemini.Temperature,
		}, e.logger)
		if err != nil {
			return nil, nil, err
		}
		return gem, g, nil
	default:
		if chat == nil {
			return nil, nil, models.Configurationf("openai-compatible generator needs an API key")
		}
		return chat, g, nil
	}
}

type runFlags struct {
	dryRun  bool
	noDelay bool
	limits  models.Limits
	posts   int
	seed    int64
}

// runBot loads one identity and drives it through a full run. The result is
// observed and reported even when the run aborts.
func (e *env) runBot(ctx context.Context, botID string, rf runFlags) (*models.RunResult, error) {
	stored, err := e.store.GetBot(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("load bot %s: %w", botID, err)
	}
	identity := stored.WithLimits(rf.limits)

	client, err := e.redditClient(identity.CredentialHandle)
	if err != nil {
		return nil, err
	}
	gen, g, err := e.generatorAndGate(ctx)
	if err != nil {
		return nil, err
	}

	var pacer bot.Pacer = bot.NoPacer{}
	if !rf.dryRun && !rf.noDelay && e.cfg.Run.ActionInterval > 0 {
		pacer = bot.NewRatePacer(e.cfg.Run.ActionInterval, e.cfg.Run.ActionJitter)
	}

	posts := rf.posts
	if posts <= 0 {
		posts = e.cfg.Run.PostsPerSubreddit
	}

	runner, err := bot.New(bot.Deps{
		Store:     e.store,
		Discovery: client,
		Posts:     client,
		Generator: gen,
		Sink:      client,
		Gate:      g,
		Pacer:     pacer,
	}, bot.Options{
		DryRun:            rf.dryRun,
		PostsPerSubreddit: posts,
		CommentsToUpvote:  e.cfg.Run.CommentsToUpvote,
		Sort:              e.cfg.Run.Sort,
		Cooldown:          e.cfg.Run.Cooldown,
		Seed:              rf.seed,
	}, e.logger)
	if err != nil {
		return nil, err
	}

	if e.cfg.Run.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Run.Timeout)
		defer cancel()
	}

	res, runErr := runner.Run(ctx, identity)
	if res != nil {
		e.report(res)
	}
	return res, runErr
}

// report feeds a finished run to metrics and the notifier. Failures here
// never change the outcome of the run.
func (e *env) report(res *models.RunResult) {
	e.metrics.Observe(res)
	if e.notifier != nil {
		if err := e.notifier.NotifyRun(res); err != nil {
			e.logger.Warn("Failed to send run summary", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}
}

func (e *env) pushMetrics(ctx context.Context) {
	if e.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.metrics.Push(ctx, e.cfg.Metrics.PushgatewayURL, e.cfg.Metrics.Job); err != nil {
		e.logger.Warn("Failed to push metrics", zap.Error(err))
	}
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("Failed to close storage", zap.Error(err))
	}
	_ = e.logger.Sync()
}
