package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"github.com/xaenox/subreddit-bot/internal/metrics"
	"github.com/xaenox/subreddit-bot/internal/models"
	"github.com/xaenox/subreddit-bot/internal/notify"
	"github.com/xaenox/subreddit-bot/internal/rotation"
	"github.com/xaenox/subreddit-bot/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "subreddit-bot",
		Usage:   "rotate Reddit bots across subreddits and post gated replies",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to the YAML config file",
			Value:   "config.yaml",
			EnvVars: []string{"BOT_CONFIG"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "human-readable debug logging",
			EnvVars: []string{"BOT_DEBUG"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		runAllCmd,
		selectCmd,
		excludeCmd,
		exclusionsCmd,
		historyCmd,
	}

	return app.Run(args)
}

var limitFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "dry-run",
		Usage: "decide and log replies without posting or voting",
	},
	&cli.BoolFlag{
		Name:  "no-delay",
		Usage: "do not pace actions",
	},
	&cli.IntFlag{
		Name:  "max-replies",
		Usage: "override the bot's reply budget for this run",
	},
	&cli.IntFlag{
		Name:  "max-upvotes",
		Usage: "override the bot's upvote budget for this run",
	},
	&cli.IntFlag{
		Name:  "max-subs",
		Usage: "override how many subreddits the bot visits",
	},
	&cli.IntFlag{
		Name:  "max-posts",
		Usage: "posts to read per subreddit",
	},
	&cli.Int64Flag{
		Name:  "seed",
		Usage: "fix the subreddit shuffle (0 seeds from the clock)",
	},
}

func runFlagsFrom(cctx *cli.Context) runFlags {
	return runFlags{
		dryRun:  cctx.Bool("dry-run"),
		noDelay: cctx.Bool("no-delay"),
		limits: models.Limits{
			MaxReplies:    cctx.Int("max-replies"),
			MaxUpvotes:    cctx.Int("max-upvotes"),
			MaxSubreddits: cctx.Int("max-subs"),
		},
		posts: cctx.Int("max-posts"),
		seed:  cctx.Int64("seed"),
	}
}

// setup loads the config, opens storage and seeds it.
func setup(cctx *cli.Context) (*env, error) {
	logger, err := newLogger(cctx.Bool("debug"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	path := cctx.String("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err), zap.String("path", path))
		return nil, err
	}

	store, err := openStorage(cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", zap.Error(err))
		return nil, err
	}

	e := &env{cfg: cfg, logger: logger, store: store, metrics: metrics.New()}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Warn("Telegram notifications disabled", zap.Error(err))
		} else {
			e.notifier = tg
		}
	}

	if err := seed(cctx.Context, store, cfg, time.Now().UTC()); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run one bot once",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:     "bot-id",
			Usage:    "identity to run",
			Required: true,
			EnvVars:  []string{"BOT_ID"},
		},
	}, limitFlags...),
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.close()

		ctx, cancel := signalContext(cctx.Context)
		defer cancel()

		res, err := e.runBot(ctx, cctx.String("bot-id"), runFlagsFrom(cctx))
		e.pushMetrics(ctx)
		if err != nil {
			e.logger.Error("Run aborted", zap.String("bot_id", cctx.String("bot-id")), zap.Error(err))
			return cli.Exit(err.Error(), 1)
		}
		printResult(res)
		return nil
	},
}

var runAllCmd = &cli.Command{
	Name:  "run-all",
	Usage: "run every active bot once",
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "bots to run at the same time (0 uses the config value)",
		},
	}, limitFlags...),
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.close()

		ctx, cancel := signalContext(cctx.Context)
		defer cancel()

		ids, err := e.store.ListActiveBots(ctx)
		if err != nil {
			return fmt.Errorf("list active bots: %w", err)
		}
		if len(ids) == 0 {
			e.logger.Info("No active bots")
			return nil
		}

		parallel := cctx.Int("parallel")
		if parallel <= 0 {
			parallel = e.cfg.Run.Parallel
		}
		if parallel <= 0 {
			parallel = 1
		}

		rf := runFlagsFrom(cctx)
		var (
			mu      sync.Mutex
			aborted []string
		)
		var g errgroup.Group
		g.SetLimit(parallel)
		for _, id := range ids {
			g.Go(func() error {
				res, err := e.runBot(ctx, id, rf)
				if err != nil {
					e.logger.Error("Run aborted", zap.String("bot_id", id), zap.Error(err))
					mu.Lock()
					aborted = append(aborted, id)
					mu.Unlock()
					return nil
				}
				printResult(res)
				return nil
			})
		}
		_ = g.Wait()
		e.pushMetrics(ctx)

		if len(aborted) > 0 {
			return cli.Exit(fmt.Sprintf("%d of %d runs aborted: %s", len(aborted), len(ids), strings.Join(aborted, ", ")), 1)
		}
		return nil
	},
}

var selectCmd = &cli.Command{
	Name:  "select",
	Usage: "preview the subreddits a bot would visit, without acting",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "bot-id",
			Required: true,
			EnvVars:  []string{"BOT_ID"},
		},
		&cli.IntFlag{
			Name:  "max-subs",
			Usage: "override how many subreddits to pick",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "fix the shuffle (0 seeds from the clock)",
		},
	},
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.close()
		ctx := cctx.Context

		stored, err := e.store.GetBot(ctx, cctx.String("bot-id"))
		if err != nil {
			return err
		}
		identity := stored.WithLimits(models.Limits{MaxSubreddits: cctx.Int("max-subs")})

		client, err := e.redditClient(identity.CredentialHandle)
		if err != nil {
			return err
		}
		candidates, err := rotation.NewGatherer(client, e.logger).Gather(ctx, identity)
		if err != nil {
			return err
		}

		s := rotation.NewSelector(e.store, e.logger)
		if e.cfg.Run.Cooldown > 0 {
			s.Cooldown = e.cfg.Run.Cooldown
		}
		seedValue := cctx.Int64("seed")
		if seedValue == 0 {
			seedValue = time.Now().UnixNano()
		}
		picked, err := s.Select(ctx, candidates, identity.ID, identity.MaxSubreddits, time.Now(), rand.New(rand.NewSource(seedValue)))
		if err != nil {
			return err
		}

		fmt.Printf("candidates (%d): %s\n", len(candidates), strings.Join(candidates, ", "))
		fmt.Printf("selected (%d): %s\n", len(picked), strings.Join(picked, ", "))
		return nil
	},
}

var excludeCmd = &cli.Command{
	Name:      "exclude",
	Usage:     "add subreddits to the global exclusion list",
	ArgsUsage: "<subreddit>...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "reason",
			Usage: "why the subreddit is off limits",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() == 0 {
			return cli.Exit("at least one subreddit is required", 2)
		}
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.close()

		now := time.Now().UTC()
		for _, name := range cctx.Args().Slice() {
			sub := models.CleanSubreddit(name)
			if sub == "" {
				continue
			}
			err := e.store.AddExclusion(cctx.Context, models.ExclusionEntry{
				Subreddit: sub,
				Reason:    cctx.String("reason"),
				AddedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("exclude %s: %w", sub, err)
			}
			e.logger.Info("Subreddit excluded", zap.String("subreddit", sub))
		}
		return nil
	},
}

var exclusionsCmd = &cli.Command{
	Name:  "exclusions",
	Usage: "list the global exclusion list",
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.close()

		list, err := e.store.ListExclusions(cctx.Context)
		if err != nil {
			return err
		}
		for _, ex := range list {
			fmt.Printf("%s\t%s\t%s\n", ex.Subreddit, ex.AddedAt.Format(time.RFC3339), ex.Reason)
		}
		return nil
	},
}

var historyCmd = &cli.Command{
	Name:  "history",
	Usage: "show when a bot last commented in each subreddit",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "bot-id",
			Required: true,
			EnvVars:  []string{"BOT_ID"},
		},
	},
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.close()

		entries, err := e.store.ListHistory(cctx.Context, cctx.String("bot-id"))
		if err != nil {
			return err
		}
		for _, h := range entries {
			fmt.Printf("%s\t%s\n", h.Subreddit, h.LastCommentedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func printResult(res *models.RunResult) {
	if res == nil {
		return
	}
	fmt.Printf("%s %s state=%s replies=%d upvotes=%d subreddits=%d dry_run=%t\n",
		res.BotID, res.RunID, res.State, res.Replies, res.Upvotes, res.SubredditsUsed(), res.DryRun)
}
