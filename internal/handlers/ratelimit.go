package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// AuthLimiter throttles the unauthenticated auth endpoints with one token
// bucket per endpoint and client address. A nil *AuthLimiter lets
// everything through.
type AuthLimiter struct {
	register *clientLimiter
	login    *clientLimiter
}

// NewAuthLimiter returns nil when perSecond is not positive.
func NewAuthLimiter(perSecond float64, burst int) *AuthLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &AuthLimiter{
		register: newClientLimiter(rate.Limit(perSecond), burst),
		login:    newClientLimiter(rate.Limit(perSecond), burst),
	}
}

func (l *AuthLimiter) Register() func(http.Handler) http.Handler {
	if l == nil {
		return passthrough
	}
	return l.register.middleware
}

func (l *AuthLimiter) Login() func(http.Handler) http.Handler {
	if l == nil {
		return passthrough
	}
	return l.login.middleware
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientEntry
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*clientEntry),
		now:     time.Now,
	}
}

func (c *clientLimiter) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) > limiterIdleTTL {
		for k, e := range c.clients {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(c.clients, k)
			}
		}
		c.lastSweep = now
	}

	e, ok := c.clients[key]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (c *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the caller's host. middleware.RealIP has already rewritten
// RemoteAddr when a proxy header is present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func passthrough(next http.Handler) http.Handler {
	return next
}
