package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"despesas/internal/cache"
	applog "despesas/internal/log"
	"despesas/internal/middleware/ratelimit"
	"despesas/internal/middleware/security"
	"despesas/internal/middleware/trace"
	"despesas/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API serves.
type Deps struct {
	Expenses *services.ExpenseService
	Variants *services.VariantService
	Users    *services.UserService
	// Demo is optional; without it the demo routes answer 404.
	Demo  *services.DemoService
	Store Pinger
}

// Options tune the HTTP surface.
type Options struct {
	Logger             *applog.Logger
	AllowedOrigins     []string
	TrustedProxies     []string
	RateLimitPerMinute int
	CookieSecure       bool
	UserCacheTTL       time.Duration
	UserCacheSize      int
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server

	expenses *services.ExpenseService
	variants *services.VariantService
	users    *services.UserService
	demo     *services.DemoService
	store    Pinger

	logger          *applog.Logger
	rateLimiter     *ratelimit.Limiter
	detector        *security.Detector
	traceMiddleware *trace.Middleware
	userCache       *cache.LRUCache[bool]
	cacheManager    *cache.Manager
	cookieSecure    bool
	now             func() time.Time
	startedAt       time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.UserCacheTTL <= 0 {
		opts.UserCacheTTL = 5 * time.Minute
	}
	if opts.UserCacheSize <= 0 {
		opts.UserCacheSize = 1000
	}

	s := &Server{
		expenses:     deps.Expenses,
		variants:     deps.Variants,
		users:        deps.Users,
		demo:         deps.Demo,
		store:        deps.Store,
		logger:       opts.Logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:     security.NewDetector(),
		userCache:    cache.NewLRUCache[bool](opts.UserCacheSize, opts.UserCacheTTL),
		cacheManager: cache.NewManager(),
		cookieSecure: opts.CookieSecure,
		now:          opts.Now,
		startedAt:    opts.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)
	s.cacheManager.Register(s.userCache)
	s.cacheManager.StartCleanup(opts.UserCacheTTL)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.CORSMiddleware(security.DefaultCORSConfig(opts.AllowedOrigins))(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/users/register", s.handleRegister)
	mux.HandleFunc("POST /api/users/login", s.handleLogin)
	mux.HandleFunc("POST /api/users/logout", s.handleLogout)
	mux.HandleFunc("GET /api/users/profile", s.requireAuth(s.handleProfile))

	mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/monthly", s.requireAuth(s.handleListMonth))
	mux.HandleFunc("GET /api/expenses/summary", s.requireAuth(s.handleMonthSummary))
	mux.HandleFunc("GET /api/expenses/has-any", s.requireAuth(s.handleHasAny))
	mux.HandleFunc("GET /api/expenses/{id}/months/{month}", s.requireAuth(s.handleResolveMonth))
	mux.HandleFunc("GET /api/expenses/{id}/variants", s.requireAuth(s.handleListVariants))
	mux.HandleFunc("PATCH /api/expenses/{id}/edit", s.requireAuth(s.handleEditExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}/delete", s.requireAuth(s.handleDeleteExpense))

	mux.HandleFunc("POST /api/variants/{id}/variant", s.requireAuth(s.handleSaveVariant))
	mux.HandleFunc("PATCH /api/variants/{id}/update-scope", s.requireAuth(s.handleSpreadVariant))

	mux.HandleFunc("POST /api/payments/{id}/pay", s.requireAuth(s.handleMarkPaid))
	mux.HandleFunc("DELETE /api/payments/{id}/unpay", s.requireAuth(s.handleUnmarkPaid))

	mux.HandleFunc("GET /api/demo/credentials", s.handleDemoCredentials)
	mux.HandleFunc("POST /api/demo/reset", s.handleDemoReset)
	mux.HandleFunc("POST /api/demo/initialize", s.handleDemoInitialize)
	mux.HandleFunc("POST /api/demo/update-password", s.handleDemoUpdatePassword)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Muitas requisições, tente novamente mais tarde", "").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		err := s.Server.Shutdown(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		shutdownErr = err
	})
	return shutdownErr
}
