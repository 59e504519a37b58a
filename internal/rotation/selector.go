package rotation

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

// DefaultCooldown is how long a bot stays away from a subreddit it
// commented in.
const DefaultCooldown = 72 * time.Hour

// Store is the part of the persistent store the selector reads.
type Store interface {
	IsExcluded(ctx context.Context, subreddit string) (bool, error)
	GetLastCommented(ctx context.Context, botID, subreddit string) (time.Time, bool, error)
}

type Selector struct {
	Store    Store
	Cooldown time.Duration
	Logger   *zap.Logger
}

func NewSelector(store Store, logger *zap.Logger) *Selector {
	return &Selector{Store: store, Cooldown: DefaultCooldown, Logger: logger}
}

// Select snapshots exclusions and history for the candidates, then picks the
// working set with Pick.
func (s *Selector) Select(ctx context.Context, candidates []string, botID string, maxSubs int, now time.Time, rng *rand.Rand) ([]string, error) {
	hard := make(map[string]bool)
	last := make(map[string]time.Time)

	for _, name := range candidates {
		key := models.NormalizeSubreddit(name)
		if key == "" {
			continue
		}
		excluded, err := s.Store.IsExcluded(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("check exclusion %s: %w", name, err)
		}
		if excluded {
			hard[key] = true
			continue
		}
		at, ok, err := s.Store.GetLastCommented(ctx, botID, name)
		if err != nil {
			return nil, fmt.Errorf("load history %s: %w", name, err)
		}
		if ok {
			last[key] = at
		}
	}

	cooldown := s.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	out := Pick(candidates, hard, last, maxSubs, now, cooldown, rng)

	if s.Logger != nil {
		s.Logger.Info("Selected subreddits",
			zap.String("bot_id", botID),
			zap.Int("candidates", len(candidates)),
			zap.Int("hard_excluded", len(hard)),
			zap.Int("max_subs", maxSubs),
			zap.Strings("selected", out))
	}
	return out, nil
}

// Pick chooses up to maxSubs subreddits from candidates.
//
// hard and lastCommented are keyed by NormalizeSubreddit. Hard-excluded
// names are dropped for good. Names commented in within cooldown of now are
// held back and only used, in random order, to fill slots the fresh names
// could not. The random source is a parameter so callers can seed it.
func Pick(candidates []string, hard map[string]bool, lastCommented map[string]time.Time, maxSubs int, now time.Time, cooldown time.Duration, rng *rand.Rand) []string {
	if maxSubs <= 0 {
		return nil
	}

	var fresh, cooling []string
	seen := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		key := models.NormalizeSubreddit(name)
		if key == "" || seen[key] || hard[key] {
			continue
		}
		seen[key] = true

		if at, ok := lastCommented[key]; ok && now.Sub(at) < cooldown {
			cooling = append(cooling, name)
		} else {
			fresh = append(fresh, name)
		}
	}

	shuffle(fresh, rng)
	out := take(nil, fresh, maxSubs)

	if len(out) < maxSubs && len(cooling) > 0 {
		shuffle(cooling, rng)
		out = take(out, cooling, maxSubs)
	}
	return out
}

func take(dst, src []string, limit int) []string {
	for _, name := range src {
		if len(dst) >= limit {
			break
		}
		dst = append(dst, name)
	}
	return dst
}

func shuffle(names []string, rng *rand.Rand) {
	if rng == nil {
		rand.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
		return
	}
	rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
}
