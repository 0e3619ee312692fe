package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages request rate limits per session
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewLimiter creates a new rate limiter.
// requestsPerMinute: workflow-advancing requests allowed per minute per
// session; burst: max requests in a burst.
func NewLimiter(requestsPerMinute int, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
	}
}

// getLimiter returns the rate limiter for a session, creating it on
// first use.
func (l *Limiter) getLimiter(sessionID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[sessionID]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[sessionID] = limiter
	}
	return limiter
}

// Allow checks if a request is allowed for the given session
func (l *Limiter) Allow(sessionID string) bool {
	return l.getLimiter(sessionID).Allow()
}

// Tokens returns the current number of available tokens for a session
func (l *Limiter) Tokens(sessionID string) float64 {
	return l.getLimiter(sessionID).Tokens()
}

// Forget drops the limiter state for a closed session.
func (l *Limiter) Forget(sessionID string) {
	l.mu.Lock()
	delete(l.limiters, sessionID)
	l.mu.Unlock()
}
