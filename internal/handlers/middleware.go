package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"quad/internal/auth"
	"quad/internal/security"
	"quad/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey  ContextKey = "user"
	TokenContextKey ContextKey = "access_token"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	sessions   *service.SessionService
	limiter    security.RateLimiter
	csrf       *security.CSRFGenerator
	// trustProxy allows client addresses from X-Forwarded-For and X-Real-IP
	trustProxy bool
	logger     *zap.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(sessions *service.SessionService, limiter security.RateLimiter, csrf *security.CSRFGenerator, trustProxy bool, logger *zap.Logger) *Middleware {
	return &Middleware{
		sessions:   sessions,
		limiter:    limiter,
		csrf:       csrf,
		trustProxy: trustProxy,
		logger:     logger.Named("http"),
	}
}

// RequireSession is middleware that requires a valid session
func (m *Middleware) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, service.PathSignIn, http.StatusSeeOther)
			return
		}

		user, err := m.sessions.CurrentUser(r.Context(), cookie.Value)
		if err != nil {
			if !service.IsUnauthorized(err) {
				m.logger.Warn("failed to validate session", zap.Error(err))
			}
			// Clear invalid cookie
			http.SetCookie(w, security.CreateDeleteCookie(r, SessionCookieName))
			http.Redirect(w, r, service.PathSignIn, http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, TokenContextKey, cookie.Value)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole is middleware that requires a session whose account has role.
// Users with another role are sent to their own dashboard.
func (m *Middleware) RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return m.RequireSession(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user.Metadata.Role != role {
			target, ok := service.DashboardPath(user.Metadata.Role)
			if !ok {
				target = service.PathSignIn
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next(w, r)
	})
}

// RateLimit is middleware that limits requests per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r, m.trustProxy)
		allowed, err := m.limiter.Allow(r.Context(), ip)
		if err != nil {
			// Fail open when the limiter's backing store is unavailable
			m.logger.Warn("rate limiter unavailable", zap.Error(err))
			allowed = true
		}
		if !allowed {
			m.logger.Info("rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
			http.Error(w, ErrTooManyRequests, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// CSRFProtect is middleware that checks the csrf_token form field against the
// session. Requests without a session have nothing to protect and pass.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			next(w, r)
			return
		}

		token := r.FormValue("csrf_token")
		if token == "" {
			token = r.Header.Get("X-CSRF-Token")
		}
		if !m.csrf.ValidateToken(cookie.Value, token) {
			m.logger.Warn("CSRF validation failed", zap.String("path", r.URL.Path))
			http.Error(w, ErrInvalidCSRFToken, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// CSRFToken returns the token forms must echo for the request's session
func (m *Middleware) CSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(TokenContextKey).(string)
	if token == "" {
		return ""
	}
	csrfToken, err := m.csrf.GenerateToken(token)
	if err != nil {
		return ""
	}
	return csrfToken
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware logs HTTP requests
func Logging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// Recover turns a panic in a handler into a 500 response
func Recover(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("handler panic", zap.Any("panic", v), zap.String("path", r.URL.Path), zap.Stack("stack"))
				http.Error(w, ErrInternalServerError, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *auth.User {
	user, ok := ctx.Value(UserContextKey).(*auth.User)
	if !ok {
		return nil
	}
	return user
}

// GetTokenFromContext retrieves the session token from the request context
func GetTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenContextKey).(string)
	return token
}
