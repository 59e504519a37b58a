package rotation

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

// Discovery finds subreddits matching a keyword.
type Discovery interface {
	SearchSubreddits(ctx context.Context, keyword string) ([]string, error)
}

// Gatherer builds the candidate pool for one bot identity.
type Gatherer struct {
	Discovery Discovery
	Logger    *zap.Logger
}

func NewGatherer(discovery Discovery, logger *zap.Logger) *Gatherer {
	return &Gatherer{Discovery: discovery, Logger: logger}
}

// Gather returns the identity's fixed subreddits when it has any, otherwise
// the union of keyword discovery results. Names are deduplicated
// case-insensitively and the result is sorted, so keyword order never
// affects the output.
func (g *Gatherer) Gather(ctx context.Context, identity models.BotIdentity) ([]string, error) {
	if fixed := nonBlank(identity.FixedSubs); len(fixed) > 0 {
		return dedupe(fixed), nil
	}

	keywords := nonBlank(identity.Keywords)
	if len(keywords) == 0 {
		return nil, models.Configurationf("bot %q has neither fixed subreddits nor keywords", identity.ID)
	}
	if g.Discovery == nil {
		return nil, models.Configurationf("bot %q needs keyword discovery but none is configured", identity.ID)
	}

	var (
		found    []string
		failures []error
	)
	for _, kw := range keywords {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		names, err := g.Discovery.SearchSubreddits(ctx, kw)
		if err != nil {
			g.logger().Warn("Subreddit discovery failed",
				zap.String("bot_id", identity.ID),
				zap.String("keyword", kw),
				zap.Error(err))
			failures = append(failures, err)
			continue
		}
		found = append(found, names...)
	}

	if len(failures) == len(keywords) {
		return nil, models.External("discover subreddits", errors.Join(failures...))
	}

	out := dedupe(found)
	g.logger().Debug("Gathered candidates",
		zap.String("bot_id", identity.ID),
		zap.Int("keywords", len(keywords)),
		zap.Strings("candidates", out))
	return out, nil
}

func (g *Gatherer) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// dedupe folds names case-insensitively. When several spellings of the same
// subreddit appear, the lexicographically smallest one is kept so the result
// does not depend on input order.
func dedupe(names []string) []string {
	canonical := make(map[string]string, len(names))
	for _, name := range names {
		clean := models.CleanSubreddit(name)
		if clean == "" {
			continue
		}
		key := strings.ToLower(clean)
		if prev, ok := canonical[key]; !ok || clean < prev {
			canonical[key] = clean
		}
	}

	keys := make([]string, 0, len(canonical))
	for k := range canonical {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = canonical[k]
	}
	return out
}
