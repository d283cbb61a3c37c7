// Package httpapi exposes the engine over JSON HTTP with cookie sessions.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe"
	"github.com/MrEthical07/staysafe/middleware"
	"github.com/MrEthical07/staysafe/permission"
)

// Options configures the HTTP surface around the engine.
type Options struct {
	AllowedOrigins []string
	TrustProxy     bool

	// RateLimitMax requests per RateLimitWindow are allowed for each client
	// IP across the whole API. Zero disables the limiter.
	RateLimitMax    int
	RateLimitWindow time.Duration

	MaxBodyBytes int64

	// Metrics is optional.
	Metrics *Metrics
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{
		RateLimitMax:    100,
		RateLimitWindow: 15 * time.Minute,
		MaxBodyBytes:    10 << 10,
	}
}

// API routes requests to the engine.
type API struct {
	engine  *staysafe.Engine
	logger  *zap.Logger
	opts    Options
	mux     *http.ServeMux
	limiter *middleware.RateLimiter
	now     func() time.Time
}

// New builds the routes. A nil logger disables logging.
func New(engine *staysafe.Engine, logger *zap.Logger, opts Options) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &API{
		engine:  engine,
		logger:  logger,
		opts:    opts,
		mux:     http.NewServeMux(),
		limiter: middleware.NewRateLimiter(opts.RateLimitMax, opts.RateLimitWindow, opts.TrustProxy),
		now:     time.Now,
	}
	a.routes()
	return a
}

func (a *API) routes() {
	guard := middleware.Guard(a.engine, staysafe.AuthOptions{})
	expiredOK := middleware.Guard(a.engine, staysafe.AuthOptions{AllowExpiredPassword: true})
	profileRead := middleware.RequirePermission(a.engine.Roles(), permission.ProfileRead)
	profileWrite := middleware.RequirePermission(a.engine.Roles(), permission.ProfileWrite)
	auditRead := middleware.RequirePermission(a.engine.Roles(), permission.AuditRead)

	a.mux.HandleFunc("GET /health", a.handleHealth)

	a.mux.HandleFunc("POST /api/auth/signup", a.handleSignup)
	a.mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /api/auth/verify-mfa", a.handleVerifyMFA)
	a.mux.HandleFunc("POST /api/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("POST /api/auth/password-strength", a.handlePasswordStrength)
	a.mux.HandleFunc("GET /api/auth/csrf-token", a.handleCSRFToken)
	a.mux.Handle("GET /api/auth/me", guard(profileRead(http.HandlerFunc(a.handleProfile))))

	a.mux.Handle("POST /api/users/change-password", expiredOK(http.HandlerFunc(a.handleChangePassword)))
	a.mux.Handle("GET /api/users/profile", guard(profileRead(http.HandlerFunc(a.handleProfile))))
	a.mux.Handle("PUT /api/users/profile", guard(profileWrite(http.HandlerFunc(a.handleUpdateProfile))))

	a.mux.Handle("GET /api/admin/audit", guard(auditRead(http.HandlerFunc(a.handleAuditTrail))))

	a.mux.HandleFunc("/", a.handleNotFound)
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	cookies := a.engine.Cookies()

	var h http.Handler = a.mux
	h = middleware.CSRF(cookies)(h)
	h = middleware.ClientInfo(a.opts.TrustProxy)(h)
	h = MaxBodyBytes(a.opts.MaxBodyBytes, h)
	h = a.limiter.Handler(h)
	h = CORS(a.opts.AllowedOrigins, cookies.CSRFHeader, h)
	h = SecurityHeaders(cookies.Secure, h)
	h = AccessLog(a.logger, h)
	h = a.opts.Metrics.Instrument(a.route, h)
	return h
}

// route returns the matched mux pattern, which keeps metric labels bounded.
func (a *API) route(r *http.Request) string {
	_, pattern := a.mux.Handler(r)
	if pattern == "" || pattern == "/" {
		return "unmatched"
	}
	return pattern
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Ping(r.Context()); err != nil {
		a.logger.Warn("health check failed", zap.Error(err))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "unavailable",
			"timestamp": a.now().UTC().Format(time.RFC3339),
		})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": a.now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleNotFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusNotFound, map[string]string{
		"message": "Route not found",
		"path":    r.URL.Path,
	})
}

// decode reads a JSON body into v and answers 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
