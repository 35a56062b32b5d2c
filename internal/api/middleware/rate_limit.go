package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"alawein/internal/pkg/errors"
	"alawein/internal/platform/config"
	"alawein/internal/platform/metrics"
)

const (
	LimitFunctions = "functions"
	LimitRestRead  = "rest_read"
	LimitRestWrite = "rest_write"
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per caller and limit class.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	perMin   map[string]int
	burst    int
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		perMin: map[string]int{
			LimitFunctions: positive(cfg.FunctionsPerMinute, 60),
			LimitRestRead:  positive(cfg.RestReadPerMinute, 600),
			LimitRestWrite: positive(cfg.RestWritePerMinute, 120),
		},
		burst: burst,
	}
}

// Run evicts idle callers until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, e := range rl.limiters {
				if now.Sub(e.lastAccess) > 10*time.Minute {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Allow(caller, class string) bool {
	key := caller + ":" + class

	rl.mu.Lock()
	e, ok := rl.limiters[key]
	if !ok {
		limit := rl.perMin[class]
		if limit == 0 {
			limit = 100
		}
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), rl.burst)}
		rl.limiters[key] = e
	}
	e.lastAccess = time.Now()
	rl.mu.Unlock()

	return e.limiter.Allow()
}

// Limit rejects callers over their budget for class with 429.
func (rl *RateLimiter) Limit(class string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(callerKey(r), class) {
				metrics.RateLimited.WithLabelValues(class).Inc()
				w.Header().Set("Retry-After", "60")
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}
			next(w, r)
		}
	}
}

// LimitByMethod applies the read class to GET and the write class to everything else.
func (rl *RateLimiter) LimitByMethod(next http.HandlerFunc) http.HandlerFunc {
	read := rl.Limit(LimitRestRead)(next)
	write := rl.Limit(LimitRestWrite)(next)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			read(w, r)
			return
		}
		write(w, r)
	}
}

// callerKey identifies the caller by user id when authenticated, otherwise by client IP.
func callerKey(r *http.Request) string {
	if claims := ClaimsFrom(r.Context()); claims != nil {
		return "user:" + claims.UserID()
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return "ip:" + strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func positive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
