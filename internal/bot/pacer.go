package bot

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out actions against the platform.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NoPacer never waits.
type NoPacer struct{}

func (NoPacer) Wait(ctx context.Context) error { return ctx.Err() }

// RatePacer allows one action per interval plus a random extra delay of up
// to jitter.
type RatePacer struct {
	limiter *rate.Limiter
	jitter  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRatePacer(interval, jitter time.Duration) *RatePacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RatePacer{
		limiter: rate.NewLimiter(limit, 1),
		jitter:  jitter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.jitter <= 0 {
		return nil
	}

	p.mu.Lock()
	extra := time.Duration(p.rng.Int63n(int64(p.jitter)))
	p.mu.Unlock()

	t := time.NewTimer(extra)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
