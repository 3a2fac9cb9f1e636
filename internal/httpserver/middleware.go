package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/audit"
	"github.com/kwccc073/vuetify-shop-back/internal/auth"
	"github.com/kwccc073/vuetify-shop-back/internal/config"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = newRequestID()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", clientIP(r),
		)
	})
}

type requestIDKey struct{}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDKey{}).(string); ok {
		return s
	}
	return ""
}

// clientIP prefers forwarding headers and is only trustworthy behind a proxy
// that sets them.
func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// rateLimiter allows each client IP a burst of requests refilled evenly over
// window. Clients are keyed by socket address unless trustProxy is set.
type rateLimiter struct {
	limit      rate.Limit
	burst      int
	idleTTL    time.Duration
	trustProxy bool
	nowFunc    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
	swept   time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(limits config.RateLimitConfig) *rateLimiter {
	if limits.Requests <= 0 || limits.Window <= 0 {
		return nil
	}
	return &rateLimiter{
		limit:      rate.Limit(float64(limits.Requests) / limits.Window.Seconds()),
		burst:      limits.Requests,
		idleTTL:    limits.Window,
		trustProxy: limits.TrustProxy,
		nowFunc:    time.Now,
		clients:    make(map[string]*clientLimiter),
	}
}

func (l *rateLimiter) key(r *http.Request) string {
	if l.trustProxy {
		return clientIP(r)
	}
	return remoteIP(r)
}

func (l *rateLimiter) allow(ip string) bool {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.swept) > l.idleTTL {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > l.idleTTL {
				delete(l.clients, key)
			}
		}
		l.swept = now
	}
	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// middleware is a no-op on a nil limiter.
func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(l.key(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s session)

// session is the account behind the request's bearer token.
type session struct {
	account account.Account
	token   string
}

// withSession resolves the bearer token before calling next. Expired tokens
// are let through only when allowExpired is set.
func (h *handler) withSession(allowExpired bool, next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			h.fail(w, r, errMissingToken)
			return
		}
		acc, err := h.Auth.Authenticate(r.Context(), token, allowExpired)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next(w, r, session{account: acc, token: token})
	}
}

func (h *handler) admin(next sessionHandler) http.HandlerFunc {
	return h.withSession(false, func(w http.ResponseWriter, r *http.Request, s session) {
		if err := auth.RequireAdmin(s.account); err != nil {
			h.fail(w, r, err)
			return
		}
		next(w, r, s)
	})
}

func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func (h *handler) record(r *http.Request, actor, action, target string, err error) {
	if h.Audit == nil {
		return
	}
	detail := "rid=" + requestIDFromContext(r.Context()) + " | ip=" + clientIP(r)
	if err != nil {
		_, msg := statusFor(err)
		detail += " | error=" + msg
	}
	e := audit.Event{
		Actor:   actor,
		Action:  action,
		Target:  target,
		Outcome: audit.Outcome(err),
		Detail:  detail,
	}
	if rerr := h.Audit.Record(e); rerr != nil {
		h.logger.Warn("audit record failed", "action", action, "error", rerr)
	}
}
