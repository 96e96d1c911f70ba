package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/vehicle-service-log/internal/auth"
	"github.com/ukydev/vehicle-service-log/internal/httpx"
	"github.com/ukydev/vehicle-service-log/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	UserContextKey contextKey = "user"
)

// publicPaths are served without a token.
var publicPaths = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/health",
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authService *auth.Service
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate validates JWT tokens and adds the claims to the context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipAuth(r.URL.Path) {
			// A valid token is still attached so public handlers can
			// grant more to authenticated callers.
			if claims, err := m.authService.ValidateToken(r.Header.Get("Authorization")); err == nil {
				r = r.WithContext(WithUser(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httpx.Error(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			httpx.Error(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		claims, err := m.authService.ValidateToken(authHeader)
		if err != nil {
			httpx.Error(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects requests whose role may not perform action.
func RequirePermission(action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetUserFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "User context not found")
			return
		}
		if !claims.Role.HasPermission(action) {
			httpx.Error(w, http.StatusForbidden, "Insufficient permissions")
			return
		}
		next(w, r)
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

// WithUser returns a copy of ctx carrying claims.
func WithUser(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

func shouldSkipAuth(path string) bool {
	for _, p := range publicPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// RateLimitMiddleware limits requests per client IP in a sliding window.
type RateLimitMiddleware struct {
	maxRequests int
	window      time.Duration
	trustProxy  bool
	now         func() time.Time

	mu        sync.Mutex
	requests  map[string][]time.Time
	lastSweep time.Time
}

// NewRateLimitMiddleware allows maxRequests per window for each client.
func NewRateLimitMiddleware(maxRequests int, window time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		requests:    make(map[string][]time.Time),
	}
}

// TrustProxyHeaders makes the limiter identify clients by X-Forwarded-For
// or X-Real-IP instead of the connection address.
func (m *RateLimitMiddleware) TrustProxyHeaders(trust bool) *RateLimitMiddleware {
	m.trustProxy = trust
	return m
}

// RateLimit applies rate limiting based on IP address
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.allow(getClientIP(r, m.trustProxy)) {
			httpx.Error(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) allow(client string) bool {
	now := m.now()
	windowStart := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= m.window {
		m.sweep(windowStart)
		m.lastSweep = now
	}

	recent := m.requests[client][:0]
	for _, ts := range m.requests[client] {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= m.maxRequests {
		m.requests[client] = recent
		return false
	}
	m.requests[client] = append(recent, now)
	return true
}

// sweep drops clients with no request after windowStart. Callers hold mu.
func (m *RateLimitMiddleware) sweep(windowStart time.Time) {
	for client, times := range m.requests {
		if len(times) == 0 || !times[len(times)-1].After(windowStart) {
			delete(m.requests, client)
		}
	}
}

// getClientIP extracts the client IP from the request. Forwarding headers
// are only honored when trustProxy is set.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			return strings.TrimSpace(strings.Split(ip, ",")[0])
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
