package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ecmdash/internal/identity"
)

type api struct {
	store  caseStore
	tokens *tokens
	log    *zap.Logger
	bus    *EventBus
	// rate limiting buckets per IP:key
	rlMu sync.Mutex
	rl   map[string]*rateBucket
}

func newAPI(store caseStore, tok *tokens, log *zap.Logger) *api {
	return &api{store: store, tokens: tok, log: log, bus: NewEventBus(), rl: map[string]*rateBucket{}}
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

func (a *api) allow(ip, key string, max int, window time.Duration) bool {
	now := time.Now()
	rk := ip + ":" + key
	a.rlMu.Lock()
	defer a.rlMu.Unlock()
	b, ok := a.rl[rk]
	if !ok || now.After(b.resetAt) {
		b = &rateBucket{resetAt: now.Add(window)}
		a.rl[rk] = b
	}
	if b.count >= max {
		return false
	}
	b.count++
	return true
}

func (a *api) withRateLimit(name string, max int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !a.allow(ip, name, max, window) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

type claimsKey struct{}

func claimsFrom(ctx context.Context) (identity.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(identity.Claims)
	return c, ok
}

// bearer verifies the Authorization header.
func (a *api) bearer(r *http.Request) (identity.Claims, bool) {
	h := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return identity.Claims{}, false
	}
	c, err := a.tokens.Verify(strings.TrimSpace(raw))
	if err != nil {
		a.log.Debug("reject token", zap.Error(err))
		return identity.Claims{}, false
	}
	return c, true
}

// requireAuth wraps a handler and enforces a valid bearer token
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := a.bearer(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, c)))
	}
}

func (a *api) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		c, _ := claimsFrom(r.Context())
		if identity.ParseRole(c.Role) != identity.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	})
}

func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Int64("dur_ms", time.Since(start).Milliseconds()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

// Implement http.Flusher if underlying writer supports it (needed for SSE)
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
