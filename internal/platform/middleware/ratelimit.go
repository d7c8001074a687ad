package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds per-client rate limiting settings. A non-positive
// RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops limiters of clients that have been quiet this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig suits a dashboard polled by a handful of browsers.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		IdleTTL:           10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one limiter per client key.
type limiterStore struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	config  RateLimitConfig
	lastGC  time.Time
	now     func() time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	return &limiterStore{
		clients: make(map[string]*clientLimiter),
		config:  cfg,
		now:     time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.config.IdleTTL > 0 && now.Sub(s.lastGC) > s.config.IdleTTL {
		for k, cl := range s.clients {
			if now.Sub(cl.lastSeen) > s.config.IdleTTL {
				delete(s.clients, k)
			}
		}
		s.lastGC = now
	}

	cl, ok := s.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.BurstSize)}
		s.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// RateLimit rejects requests beyond the per-IP budget with 429.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(cfg, newLimiterStore(cfg))
}

func rateLimit(cfg RateLimitConfig, store *limiterStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if cfg.RequestsPerSecond <= 0 {
			return next
		}
		limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)
		return func(c echo.Context) error {
			lim := store.get(c.RealIP())
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			r := lim.Reserve()
			if delay := r.Delay(); delay > 0 {
				r.Cancel()
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
