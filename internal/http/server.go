// Package http exposes the household ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fintrack/internal/auth"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API.
type Deps struct {
	DB         Pinger
	Users      *services.UserService
	Households *services.HouseholdService
	Setup      *services.SetupService
	Ledger     *services.LedgerService
	Tokens     *auth.TokenManager
}

// Options tune the middleware stack.
type Options struct {
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
	})(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = log.RequestIDMiddleware(trace.FromRequest)(h)
	h = log.Middleware(logger, s.detector.ClientIP)(h)
	h = trace.Middleware(h)
	h = otelhttp.NewHandler(h, "fintrack.http")

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/token", s.handleToken)
	mux.Handle("GET /api/auth/profile", s.authed(s.handleProfile))

	mux.Handle("GET /api/households", s.authed(s.handleListHouseholds))
	mux.Handle("POST /api/households", s.authed(s.handleCreateHousehold))
	mux.Handle("POST /api/households/setup", s.authed(s.handleSetupHousehold))
	mux.Handle("GET /api/invites", s.authed(s.handleListInvites))

	mux.Handle("GET /api/households/{householdID}/members", s.owner(s.handleListMembers))
	mux.Handle("POST /api/households/{householdID}/invites", s.owner(s.handleInvite))
	mux.Handle("DELETE /api/households/{householdID}/members/{userID}", s.owner(s.handleRemoveMember))
	mux.Handle("POST /api/households/{householdID}/invites/accept", s.authed(s.handleAcceptInvite))
	mux.Handle("POST /api/households/{householdID}/invites/reject", s.authed(s.handleRejectInvite))

	mux.Handle("GET /api/households/{householdID}/recurring-expenses", s.member(s.handleListRecurringExpenses))
	mux.Handle("POST /api/households/{householdID}/recurring-expenses", s.member(s.handleCreateRecurringExpense))
	mux.Handle("GET /api/households/{householdID}/recurring-expenses/{id}", s.member(s.handleGetRecurringExpense))
	mux.Handle("PUT /api/households/{householdID}/recurring-expenses/{id}", s.member(s.handleUpdateRecurringExpense))
	mux.Handle("DELETE /api/households/{householdID}/recurring-expenses/{id}", s.member(s.handleDeleteRecurringExpense))

	mux.Handle("GET /api/households/{householdID}/expenses", s.member(s.handleListExpenses))
	mux.Handle("POST /api/households/{householdID}/expenses", s.member(s.handleCreateExpense))
	mux.Handle("DELETE /api/households/{householdID}/expenses/{id}", s.member(s.handleDeleteExpense))

	mux.Handle("GET /api/households/{householdID}/buckets", s.member(s.handleListBuckets))
	mux.Handle("POST /api/households/{householdID}/buckets", s.member(s.handleCreateBucket))
	mux.Handle("PUT /api/households/{householdID}/buckets/{id}", s.member(s.handleUpdateBucket))
	mux.Handle("DELETE /api/households/{householdID}/buckets/{id}", s.member(s.handleDeleteBucket))

	mux.Handle("GET /api/households/{householdID}/incomes", s.member(s.handleListIncomes))
	mux.Handle("POST /api/households/{householdID}/incomes/recurring", s.member(s.handleCreateRecurringIncome))
	mux.Handle("POST /api/households/{householdID}/incomes/one-time", s.member(s.handleCreateOneTimeIncome))
	mux.Handle("DELETE /api/households/{householdID}/incomes/{kind}/{id}", s.member(s.handleDeleteIncome))

	mux.Handle("GET /api/households/{householdID}/summary", s.member(s.handleSummary))
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status := http.StatusOK

	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, checks)
}
