package app

/*
				Porter Rate Limit Middleware
	Enforces global and per-IP request rate limits using token buckets,
	with a separate allowance for health check endpoints and automatic
	cleanup of stale per-IP limiters. This is plain request-rate hygiene
	at the edge; streaming admission control is the chat service's job.

	References:
	- https://pkg.go.dev/golang.org/x/time/rate
*/

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/thushan/porter/internal/config"
	"github.com/thushan/porter/internal/logger"
	"github.com/thushan/porter/internal/util"
)

type RateLimiter struct {
	logger *logger.StyledLogger

	globalLimiter           *rate.Limiter
	cleanupTicker           *time.Ticker
	stopCleanup             chan struct{}
	ipLimiters              sync.Map
	trustedCIDRs            []*net.IPNet
	globalRequestsPerMinute int
	perIPRequestsPerMinute  int
	burstSize               int
	healthRequestsPerMinute int
	stopOnce                sync.Once
	trustProxyHeaders       bool
}

type ipLimiterInfo struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.RWMutex
}

func NewRateLimiter(limits config.ServerRateLimits, logger *logger.StyledLogger) *RateLimiter {
	rl := &RateLimiter{
		globalRequestsPerMinute: limits.GlobalRequestsPerMinute,
		perIPRequestsPerMinute:  limits.PerIPRequestsPerMinute,
		burstSize:               limits.BurstSize,
		healthRequestsPerMinute: limits.HealthRequestsPerMinute,
		trustProxyHeaders:       limits.TrustProxyHeaders,
		trustedCIDRs:            limits.TrustedProxyCIDRsParsed,
		logger:                  logger,
		stopCleanup:             make(chan struct{}),
	}

	if limits.GlobalRequestsPerMinute > 0 {
		globalRate := rate.Limit(float64(limits.GlobalRequestsPerMinute) / 60.0)
		rl.globalLimiter = rate.NewLimiter(globalRate, limits.BurstSize)
	}

	if limits.CleanupInterval > 0 {
		rl.cleanupTicker = time.NewTicker(limits.CleanupInterval)
		go rl.cleanupRoutine()
	}

	return rl
}

// Middleware wraps a handler with rate limiting. Health endpoints get
// their own allowance so monitoring doesn't eat into user quota.
func (rl *RateLimiter) Middleware(isHealthEndpoint bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var limit int
			if isHealthEndpoint {
				limit = rl.healthRequestsPerMinute
			} else {
				limit = rl.perIPRequestsPerMinute
			}

			if limit <= 0 {
				// limiting disabled for this class of endpoint
				next.ServeHTTP(w, r)
				return
			}

			clientIP := util.GetClientIP(r, rl.trustProxyHeaders, rl.trustedCIDRs)
			allowed, retryAfter := rl.allow(clientIP, limit, isHealthEndpoint)

			// we need to make sure we _always_ send these headers
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				rl.logger.Warn("Rate limit exceeded",
					"client_ip", clientIP,
					"method", r.Method,
					"path", r.URL.Path,
					"limit", limit,
					"retry_after", retryAfter)

				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(clientIP string, limit int, isHealthEndpoint bool) (bool, int) {
	if rl.globalLimiter != nil {
		reservation := rl.globalLimiter.Reserve()
		if !reservation.OK() || reservation.Delay() > 0 {
			if reservation.Delay() > 0 {
				reservation.Cancel()
			}
			return false, 60
		}
	}

	bucketKey := clientIP
	if isHealthEndpoint {
		bucketKey = clientIP + ":health"
	}

	info := rl.getOrCreateLimiter(bucketKey, limit)
	info.mu.Lock()
	info.lastAccess = time.Now()
	limiter := info.limiter
	info.mu.Unlock()

	reservation := limiter.Reserve()
	if !reservation.OK() {
		return false, 60 / limit
	}

	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return false, int(delay.Seconds()) + 1
	}

	return true, 0
}

func (rl *RateLimiter) getOrCreateLimiter(key string, limit int) *ipLimiterInfo {
	newInfo := &ipLimiterInfo{
		limiter:    rate.NewLimiter(rate.Limit(float64(limit)/60.0), rl.burstSize),
		lastAccess: time.Now(),
	}

	actual, _ := rl.ipLimiters.LoadOrStore(key, newInfo)

	if info, ok := actual.(*ipLimiterInfo); ok {
		return info
	}
	// shouldn't happen but keeps golangci-lint happy
	return newInfo
}

func (rl *RateLimiter) cleanupRoutine() {
	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-rl.cleanupTicker.C:
			rl.cleanupOldLimiters()
		}
	}
}

// cleanupOldLimiters removes per-IP entries that haven't been seen
// recently. Called periodically from a background goroutine.
func (rl *RateLimiter) cleanupOldLimiters() {
	cutoff := time.Now().Add(-10 * time.Minute)

	rl.ipLimiters.Range(func(key, value interface{}) bool {
		info, ok := value.(*ipLimiterInfo)
		if !ok {
			return true
		}
		info.mu.RLock()
		lastAccess := info.lastAccess
		info.mu.RUnlock()

		if lastAccess.Before(cutoff) {
			rl.ipLimiters.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		if rl.cleanupTicker != nil {
			rl.cleanupTicker.Stop()
		}
		close(rl.stopCleanup)
	})
}
