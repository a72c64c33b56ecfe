package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/leca/cardvault/internal/session"
	"golang.org/x/time/rate"
)

type contextKey string

const claimsKey contextKey = "session_claims"

// TokenParser validates a bearer token.
type TokenParser interface {
	Parse(token string) (*session.Claims, error)
}

// AuthMiddleware returns middleware that requires a valid Bearer session
// token and stores its claims in the request context.
func AuthMiddleware(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) {
				Unauthorized(w, "")
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(header[len(prefix):]))
			if err != nil {
				Unauthorized(w, "Session expired or invalid, please log in again")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the session claims stored by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*session.Claims)
	return c, ok
}

// UserID returns the authenticated user id, or "" outside AuthMiddleware.
func UserID(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID()
	}
	return ""
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

// RateLimiter keeps one token bucket per key and forgets idle keys.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	maxAge time.Duration

	mu    sync.Mutex
	store map[string]*limiterEntry
}

type limiterEntry struct {
	limiter *rate.Limiter
	updated time.Time
}

// NewRateLimiter allows reqPerSec sustained requests per key with the given burst.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:  rate.Limit(reqPerSec),
		burst:  burst,
		maxAge: 10 * time.Minute,
		store:  make(map[string]*limiterEntry),
	}
}

func (l *RateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, ok := l.store[key]; ok {
		entry.updated = now
		return entry.limiter
	}

	for k, entry := range l.store {
		if now.Sub(entry.updated) > l.maxAge {
			delete(l.store, k)
		}
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	l.store[key] = &limiterEntry{limiter: lim, updated: now}
	return lim
}

// ByIP limits requests per client IP, taken from r.RemoteAddr. Forwarding
// headers are honoured only when chi's RealIP middleware runs first.
func (l *RateLimiter) ByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(clientIP(r)).Allow() {
			TooManyRequests(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
