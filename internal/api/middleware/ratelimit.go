package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

const (
	rateWindow       = time.Hour
	rateCleanupEvery = 5 * time.Minute
)

// GenerateRateTracker budgets key generation per client IP over a sliding
// hour. State is per-process; this is an abuse valve, not a quota system.
type GenerateRateTracker struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	limit    int
}

func NewGenerateRateTracker(limit int) *GenerateRateTracker {
	tracker := &GenerateRateTracker{
		attempts: make(map[string][]time.Time),
		limit:    limit,
	}

	go tracker.startCleanup()

	return tracker
}

func (t *GenerateRateTracker) startCleanup() {
	ticker := time.NewTicker(rateCleanupEvery)
	defer ticker.Stop()

	for range ticker.C {
		t.dropStale(time.Now())
	}
}

func (t *GenerateRateTracker) dropStale(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-rateWindow)
	for ip, stamps := range t.attempts {
		kept := stamps[:0]
		for _, stamp := range stamps {
			if stamp.After(cutoff) {
				kept = append(kept, stamp)
			}
		}
		if len(kept) == 0 {
			delete(t.attempts, ip)
		} else {
			t.attempts[ip] = kept
		}
	}
}

// Allow records one attempt and reports whether the client is still inside
// its budget.
func (t *GenerateRateTracker) Allow(ip string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-rateWindow)
	kept := t.attempts[ip][:0]
	for _, stamp := range t.attempts[ip] {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}

	if len(kept) >= t.limit {
		t.attempts[ip] = kept
		return false
	}

	t.attempts[ip] = append(kept, now)
	return true
}

type RateLimitMiddleware struct {
	tracker *GenerateRateTracker // nil disables the limit
	logger  *zap.Logger
}

func NewRateLimitMiddleware(limit int, logger *zap.Logger) *RateLimitMiddleware {
	rl := &RateLimitMiddleware{logger: logger}
	if limit > 0 {
		rl.tracker = NewGenerateRateTracker(limit)
	}
	return rl
}

// LimitGenerate rejects clients over their hourly generation budget.
func (rl *RateLimitMiddleware) LimitGenerate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.tracker == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if !rl.tracker.Allow(ip, time.Now()) {
			rl.logger.Warn("Key generation rate limit hit", zap.String("client_ip", ip))
			abortWithError(c, http.StatusTooManyRequests, keyerrors.KindRateLimited, "Key generation limit reached, try again later")
			return
		}
		c.Next()
	}
}
