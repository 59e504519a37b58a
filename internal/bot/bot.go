package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/subreddit-bot/internal/gate"
	"github.com/xaenox/subreddit-bot/internal/models"
	"github.com/xaenox/subreddit-bot/internal/rotation"
	"github.com/xaenox/subreddit-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultPostsPerSubreddit = 5
	DefaultCommentsToUpvote  = 3
	SortRising               = "rising"
	SortNew                  = "new"
)

type Options struct {
	DryRun            bool
	PostsPerSubreddit int
	CommentsToUpvote  int
	// Sort is the listing to read; "rising" falls back to "new" when empty.
	Sort     string
	Cooldown time.Duration
	// Seed fixes the rotation shuffle. Zero seeds from the clock.
	Seed int64
	Now  func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PostsPerSubreddit <= 0 {
		o.PostsPerSubreddit = DefaultPostsPerSubreddit
	}
	if o.CommentsToUpvote < 0 {
		o.CommentsToUpvote = 0
	} else if o.CommentsToUpvote == 0 {
		o.CommentsToUpvote = DefaultCommentsToUpvote
	}
	if o.Sort == "" {
		o.Sort = SortRising
	}
	if o.Cooldown <= 0 {
		o.Cooldown = rotation.DefaultCooldown
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Deps are the collaborators of one run. Recorder defaults to Store, Gate
// to the lexical gate and Pacer to NoPacer.
type Deps struct {
	Store     storage.Storage
	Discovery Discovery
	Posts     PostSource
	Generator Generator
	Sink      ActionSink
	Recorder  Recorder
	Gate      *gate.Gate
	Pacer     Pacer
}

// Runner drives one bot identity through INIT, SELECTING, PROCESSING and
// DONE. It holds no state between runs.
type Runner struct {
	deps     Deps
	opts     Options
	gatherer *rotation.Gatherer
	selector *rotation.Selector
	logger   *zap.Logger
}

func New(deps Deps, opts Options, logger *zap.Logger) (*Runner, error) {
	if deps.Store == nil || deps.Posts == nil || deps.Generator == nil {
		return nil, models.Configurationf("runner needs a store, a post source and a generator")
	}
	if deps.Sink == nil && !opts.DryRun {
		return nil, models.Configurationf("runner needs an action sink unless dry-run is set")
	}
	if deps.Recorder == nil {
		deps.Recorder = deps.Store
	}
	if deps.Gate == nil {
		deps.Gate = gate.New()
	}
	if deps.Pacer == nil {
		deps.Pacer = NoPacer{}
	}
	opts = opts.withDefaults()

	selector := rotation.NewSelector(deps.Store, logger)
	selector.Cooldown = opts.Cooldown

	return &Runner{
		deps:     deps,
		opts:     opts,
		gatherer: rotation.NewGatherer(deps.Discovery, logger),
		selector: selector,
		logger:   logger,
	}, nil
}

// run is the per-run mutable state.
type run struct {
	identity models.BotIdentity
	result   *models.RunResult
	replied  map[string]struct{}
	logger   *zap.Logger
}

// Run executes one pass for identity. Only failures before processing
// starts are returned as errors, together with an ABORTED result. A
// cancelled context ends the run as DONE with Interrupted set.
func (r *Runner) Run(ctx context.Context, identity models.BotIdentity) (*models.RunResult, error) {
	identity = identity.WithDefaults()
	res := &models.RunResult{
		RunID:     uuid.New().String(),
		BotID:     identity.ID,
		State:     models.StateInit,
		DryRun:    r.opts.DryRun,
		StartedAt: r.opts.Now().UTC(),
	}
	st := &run{
		identity: identity,
		result:   res,
		logger: r.logger.With(
			zap.String("run_id", res.RunID),
			zap.String("bot_id", identity.ID),
			zap.Bool("dry_run", r.opts.DryRun)),
	}
	st.logger.Info("Run started")

	// INIT
	if err := r.init(ctx, st); err != nil {
		return r.abort(ctx, st, err)
	}

	// SELECTING
	res.State = models.StateSelecting
	selected, err := r.selectSubreddits(ctx, st)
	if err != nil {
		return r.abort(ctx, st, err)
	}
	if len(selected) == 0 {
		st.logger.Info("No eligible subreddits")
		return r.finish(ctx, st), nil
	}

	// PROCESSING
	res.State = models.StateProcessing
	r.process(ctx, st, selected)
	return r.finish(ctx, st), nil
}

func (r *Runner) init(ctx context.Context, st *run) error {
	if st.identity.ID == "" {
		return models.Configurationf("bot identity has no id")
	}
	if !st.identity.Active {
		return models.Configurationf("bot %q is not active", st.identity.ID)
	}
	if !r.opts.DryRun {
		if err := r.deps.Sink.Authenticate(ctx); err != nil {
			return fmt.Errorf("authenticate bot %q: %w", st.identity.ID, err)
		}
	}
	replied, err := r.deps.Store.RepliedPostIDs(ctx, st.identity.ID)
	if err != nil {
		return fmt.Errorf("load replied posts: %w", err)
	}
	st.replied = replied
	return nil
}

func (r *Runner) selectSubreddits(ctx context.Context, st *run) ([]string, error) {
	candidates, err := r.gatherer.Gather(ctx, st.identity)
	if err != nil {
		var ext *models.ExternalServiceError
		if errors.As(err, &ext) {
			st.logger.Warn("Discovery unavailable, nothing to select", zap.Error(err))
			return nil, nil
		}
		return nil, err
	}

	seed := r.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	return r.selector.Select(ctx, candidates, st.identity.ID, st.identity.MaxSubreddits, r.opts.Now(), rng)
}

func (r *Runner) abort(ctx context.Context, st *run, err error) (*models.RunResult, error) {
	res := st.result
	res.State = models.StateAborted
	res.AbortReason = err.Error()
	res.FinishedAt = r.opts.Now().UTC()

	st.logger.Error("Run aborted", zap.Error(err))
	r.recordSummary(ctx, st)
	return res, err
}

func (r *Runner) finish(ctx context.Context, st *run) *models.RunResult {
	res := st.result
	res.State = models.StateDone
	res.FinishedAt = r.opts.Now().UTC()

	st.logger.Info("Run finished",
		zap.Int("replies", res.Replies),
		zap.Int("upvotes", res.Upvotes),
		zap.Strings("subreddits", res.Subreddits),
		zap.Int("skips", len(res.SkipReasons)),
		zap.Bool("interrupted", res.Interrupted))
	r.recordSummary(ctx, st)
	return res
}

func (r *Runner) recordSummary(ctx context.Context, st *run) {
	res := st.result
	detail := fmt.Sprintf("state=%s replies=%d upvotes=%d subreddits=%d skips=%d interrupted=%t",
		res.State, res.Replies, res.Upvotes, res.SubredditsUsed(), len(res.SkipReasons), res.Interrupted)
	if res.AbortReason != "" {
		detail += " reason=" + res.AbortReason
	}
	r.record(ctx, st, models.LogEntry{
		Action:  models.ActionSummary,
		Upvotes: res.Upvotes,
		Detail:  detail,
	})
}

// record appends to the interaction log. A cancelled run still gets its
// records, and a log failure never fails the run.
func (r *Runner) record(ctx context.Context, st *run, entry models.LogEntry) {
	entry.RunID = st.result.RunID
	entry.BotID = st.identity.ID
	entry.DryRun = r.opts.DryRun
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.opts.Now().UTC()
	}
	if err := r.deps.Recorder.Record(context.WithoutCancel(ctx), st.result.RunID, entry); err != nil {
		st.logger.Error("Failed to record interaction",
			zap.Error(err),
			zap.String("action", string(entry.Action)),
			zap.String("post_id", entry.PostID))
	}
}
