package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"slotswap/pkg/auth"
	apperrors "slotswap/pkg/errors"
	"slotswap/pkg/logger"
)

// KeyExtractor picks the rate limit bucket for a request.
type KeyExtractor func(r *http.Request) string

// PrincipalRateLimiter is a sliding-window limiter keyed by caller.
type PrincipalRateLimiter struct {
	mu           sync.Mutex
	requests     map[string][]time.Time
	limit        int
	window       time.Duration
	keyExtractor KeyExtractor
	log          *logger.Logger
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewPrincipalRateLimiter(limit int, window time.Duration, extractor KeyExtractor, log *logger.Logger) *PrincipalRateLimiter {
	if extractor == nil {
		extractor = PrincipalKey
	}
	limiter := &PrincipalRateLimiter{
		requests:     make(map[string][]time.Time),
		limit:        limit,
		window:       window,
		keyExtractor: extractor,
		log:          log,
		stopCh:       make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *PrincipalRateLimiter) cleanup() {
	ticker := time.NewTicker(max(rl.window, time.Minute))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *PrincipalRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow records a hit for key and reports whether it is within the limit.
// The check and the record happen under one lock so concurrent requests from
// the same caller cannot overshoot.
func (rl *PrincipalRateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

func RateLimit(limiter *PrincipalRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiter.keyExtractor(r)
			if !limiter.Allow(key) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestIDFromContext(r.Context()),
					"key", key,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", "60")
				_ = apperrors.WriteError(w, apperrors.New(
					"RATE_LIMITED",
					"Rate limit exceeded",
					http.StatusTooManyRequests,
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalKey buckets by authenticated principal, falling back to the client
// address for anonymous requests.
func PrincipalKey(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return "principal:" + p.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
