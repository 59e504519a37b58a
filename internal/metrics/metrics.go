package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/xaenox/subreddit-bot/internal/models"
)

// Runs holds the per-run metrics. Bot runs are short-lived, so instead of
// being scraped the registry is pushed to a Pushgateway when a run ends.
type Runs struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	replies     *prometheus.CounterVec
	upvotes     *prometheus.CounterVec
	skips       *prometheus.CounterVec
	subreddits  *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func New() *Runs {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Runs{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subreddit_bot_runs_total",
			Help: "Number of finished runs by final state",
		}, []string{"bot_id", "state"}),
		replies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subreddit_bot_replies_total",
			Help: "Number of replies posted (or simulated in dry run)",
		}, []string{"bot_id", "dry_run"}),
		upvotes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subreddit_bot_upvotes_total",
			Help: "Number of upvotes cast (or simulated in dry run)",
		}, []string{"bot_id", "dry_run"}),
		skips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subreddit_bot_skips_total",
			Help: "Number of skipped posts by reason",
		}, []string{"bot_id", "reason"}),
		subreddits: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subreddit_bot_subreddits_used",
			Help: "Subreddits entered by the last run",
		}, []string{"bot_id"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subreddit_bot_run_duration_seconds",
			Help:    "Wall time of a run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"bot_id"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subreddit_bot_last_success_timestamp_seconds",
			Help: "Unix time of the last run that reached DONE",
		}, []string{"bot_id"}),
	}
}

// Observe folds a finished run into the metrics.
func (m *Runs) Observe(res *models.RunResult) {
	dry := strconv.FormatBool(res.DryRun)

	m.runs.WithLabelValues(res.BotID, string(res.State)).Inc()
	m.replies.WithLabelValues(res.BotID, dry).Add(float64(res.Replies))
	m.upvotes.WithLabelValues(res.BotID, dry).Add(float64(res.Upvotes))
	for reason, n := range res.SkipCounts() {
		m.skips.WithLabelValues(res.BotID, string(reason)).Add(float64(n))
	}
	m.subreddits.WithLabelValues(res.BotID).Set(float64(res.SubredditsUsed()))
	if !res.FinishedAt.IsZero() && !res.StartedAt.IsZero() {
		m.duration.WithLabelValues(res.BotID).Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	}
	if res.State == models.StateDone {
		m.lastSuccess.WithLabelValues(res.BotID).Set(float64(res.FinishedAt.Unix()))
	}
}

func (m *Runs) Registry() *prometheus.Registry { return m.registry }

// Push sends everything observed so far to the Pushgateway at url.
func (m *Runs) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
