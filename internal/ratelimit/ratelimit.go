package ratelimit

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles requests per key (a store id).
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// StoreLimiter keeps one token bucket per store so that concurrent scrapes of
// different stores do not slow each other down.
type StoreLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	perSecond rate.Limit
	burst     int
	maxJitter time.Duration
}

func NewStoreLimiter(perSecond float64, burst int, maxJitter time.Duration) *StoreLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &StoreLimiter{
		limiters:  make(map[string]*rate.Limiter),
		perSecond: limit,
		burst:     burst,
		maxJitter: maxJitter,
	}
}

func (s *StoreLimiter) Wait(ctx context.Context, key string) error {
	if err := s.limiter(key).Wait(ctx); err != nil {
		return err
	}

	if s.maxJitter <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(s.maxJitter)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

func (s *StoreLimiter) limiter(key string) *rate.Limiter {
	key = strings.ToLower(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.perSecond, s.burst)
		s.limiters[key] = l
	}
	return l
}

// Noop never waits.
type Noop struct{}

func (Noop) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
