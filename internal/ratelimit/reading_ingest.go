package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tirta/internal/config"
)

var ErrRateLimited = errors.New("rate_limited")

// ReadingIngestLimiter throttles meter reading submissions per apartment.
// A nil limiter allows everything.
type ReadingIngestLimiter struct {
	bucket *TokenBucket
	prefix string
	rate   float64
	burst  int
}

func NewReadingIngestLimiter(cfg config.Config, client *redis.Client) (*ReadingIngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("reading ingest rate limit requires redis")
	}
	if limitCfg.ReadingIngestRate <= 0 || limitCfg.ReadingIngestBurst <= 0 {
		return nil, errors.New("reading ingest rate limit must be positive")
	}

	prefix := strings.TrimSpace(limitCfg.ReadingIngestPrefix)
	if prefix == "" {
		prefix = "reading:ingest"
	}
	return &ReadingIngestLimiter{
		bucket: NewTokenBucket(client),
		prefix: prefix,
		rate:   limitCfg.ReadingIngestRate,
		burst:  limitCfg.ReadingIngestBurst,
	}, nil
}

func (l *ReadingIngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *ReadingIngestLimiter) AllowApartment(ctx context.Context, apartmentID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf("%s:apartment:%s", l.prefix, strings.TrimSpace(apartmentID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
