package ratelimit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// GeminiRateLimiter serializes outbound model requests under a per-minute
// budget shared by every generation task in the process.
type GeminiRateLimiter struct {
	log     *logrus.Logger
	limiter *rate.Limiter
}

func NewGeminiRateLimiter(maxRequestPerMinute int, log *logrus.Logger) *GeminiRateLimiter {
	if maxRequestPerMinute <= 0 {
		maxRequestPerMinute = 15
	}
	interval := time.Minute / time.Duration(maxRequestPerMinute)
	return &GeminiRateLimiter{
		log:     log,
		limiter: rate.NewLimiter(rate.Every(interval), maxRequestPerMinute),
	}
}

// Wait blocks until a request slot is available or ctx is done.
func (g *GeminiRateLimiter) Wait(ctx context.Context) error {
	if g.limiter.Allow() {
		return nil
	}
	g.log.WithFields(logrus.Fields{
		"tokens": g.limiter.Tokens(),
	}).Debug("Gemini rate limit reached, waiting for slot")
	return g.limiter.Wait(ctx)
}
