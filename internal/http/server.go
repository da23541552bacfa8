package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"finanzas/internal/core"
	applog "finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/services"
)

// Authenticator is the auth service as seen by the handlers.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (core.User, error)
	Login(ctx context.Context, username, password string) (core.User, string, error)
	VerifyToken(token string) *core.Claim
	Logout(ctx context.Context, token string)
}

// Probe reports on the database for the liveness and readiness routes.
type Probe interface {
	Now(ctx context.Context) (time.Time, error)
	Ping(ctx context.Context) error
}

type UserLister interface {
	List(ctx context.Context) ([]core.User, error)
}

// Deps are the collaborators the server routes to. All are required.
type Deps struct {
	Auth   Authenticator
	Ledger *services.Ledger
	Users  UserLister
	Probe  Probe
}

// Options tunes the server.
type Options struct {
	Addr               string
	CORSAllowedOrigins []string
	// ExposeErrorDetails adds the underlying cause to 500 responses.
	ExposeErrorDetails bool
	// AuthRatePerMinute limits login and register attempts per client IP.
	AuthRatePerMinute int
	TrustedProxies    []string
	Logger            *applog.Logger
}

type Server struct {
	http.Server
	deps          Deps
	logger        *applog.Logger
	exposeDetails bool

	clientIP    *security.IPExtractor
	tracer      *trace.Middleware
	authLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(deps Deps, opts Options) (*Server, error) {
	if deps.Auth == nil || deps.Ledger == nil || deps.Users == nil || deps.Probe == nil {
		return nil, errors.New("http server: missing dependency")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}

	clientIP, err := security.NewIPExtractor(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		deps:          deps,
		logger:        logger.WithComponent(applog.ComponentHTTP),
		exposeDetails: opts.ExposeErrorDetails,
		clientIP:      clientIP,
		authLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerWindow: opts.AuthRatePerMinute,
			Window:            time.Minute,
		}),
	}
	s.tracer = trace.NewMiddleware(logger, clientIP.ClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.withClaim(handler)
	handler = trace.Recover(s.handlePanic)(handler)
	handler = security.NewCORS(opts.CORSAllowedOrigins).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	limited := s.authLimiter.Middleware(s.clientIP.ClientIP, s.handleRateLimited)
	mux.Handle("POST /register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /login", limited(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /protected", s.handleProtected)
	mux.HandleFunc("GET /usuarios", s.handleListUsers)

	ledger := s.deps.Ledger
	mountResource[core.Named, core.NamedInput](s, mux, ledger.Categories)
	paymentMethods := mountResource[core.Named, core.NamedInput](s, mux, ledger.PaymentMethods)
	incomeTypes := mountResource[core.Named, core.NamedInput](s, mux, ledger.IncomeTypes)
	expenses := mountResource[core.Expense, core.ExpenseInput](s, mux, ledger.Expenses)
	mountResource[core.Income, core.IncomeInput](s, mux, ledger.Incomes)
	mountResource[core.SavingsGoal, core.SavingsGoalInput](s, mux, ledger.SavingsGoals)

	// Paths the first web client was written against.
	mux.HandleFunc("POST /agregargasto", expenses.create)
	mux.HandleFunc("PUT /editargasto/{id}", expenses.update)
	mux.HandleFunc("GET /metodopago", paymentMethods.list)
	mux.HandleFunc("GET /tipos_ingreso", incomeTypes.list)

	mux.HandleFunc("/", handleNotFound)
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.authLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// RejectedAuthAttempts is the number of rate limited login and register calls.
func (s *Server) RejectedAuthAttempts() int64 {
	return s.authLimiter.Rejected()
}

type claimKey struct{}

// withClaim verifies the bearer token, when present, and stores the claim
// in the request context. Invalid tokens are treated as absent.
func (s *Server) withClaim(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if claim := s.deps.Auth.VerifyToken(token); claim != nil {
				ctx := context.WithValue(r.Context(), claimKey{}, claim)
				ctx = applog.IntoContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, claim.ID))
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimFromContext returns the verified identity of the request, or nil.
func ClaimFromContext(ctx context.Context) *core.Claim {
	claim, _ := ctx.Value(claimKey{}).(*core.Claim)
	return claim
}

func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request) {
	InternalServerError("internal server error").Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Auth rate limit exceeded",
		applog.FieldClientIP, s.clientIP.ClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "too many requests, try again later").Write(w)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusNotFound, "route not found").Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Probe.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	now, err := s.deps.Probe.Now(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(struct {
		Message string    `json:"message"`
		Time    time.Time `json:"time"`
	}{"Backend server is running correctly.", now}).Write(w)
}
