// Package http exposes the budget ledger as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	applog "budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
)

// Deps are the services behind the API.
type Deps struct {
	Ledger     *services.LedgerService
	Periods    *services.PeriodService
	Reporting  *services.ReportingService
	Reconciler *services.Reconciler
	Rollover   *services.RolloverProcessor
	Template   services.TemplateSource

	// Ready reports whether the store is reachable.
	Ready func(context.Context) error
}

// Options tune the server. Zero values use defaults.
type Options struct {
	RateLimitPerMinute int
	// TrustedProxies are CIDRs whose X-Forwarded-For is believed, on top
	// of loopback and the private ranges.
	TrustedProxies []string
	Logger         *applog.Logger
	Now            func() time.Time
}

type Server struct {
	http.Server
	deps    Deps
	now     func() time.Time
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer builds the router and the middleware chain: tracing and
// request logging first, then security headers and the per-client limit
// on writes.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentHTTP)
	}

	resolver := security.NewIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := resolver.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "error", err)
		}
	}

	s := &Server{
		deps:    deps,
		now:     opts.Now,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(logger, resolver.ClientIP),
	}

	r := mux.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.limiter.Middleware(resolver.ClientIP, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	}))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such route"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
	s.routes(r)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// routes registers every path on r itself. Subrouters would answer a wrong
// method on a known path with 404 instead of 405.
func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.HandleFunc("/api/accounts", s.handleListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	r.HandleFunc("/api/accounts/{id:[0-9]+}/balance", s.handleUpdateAccountBalance).Methods(http.MethodPut)
	r.HandleFunc("/api/accounts/{id:[0-9]+}", s.handleDeleteAccount).Methods(http.MethodDelete)

	r.HandleFunc("/api/periods", s.handleListPeriods).Methods(http.MethodGet)
	r.HandleFunc("/api/periods/generate", s.handleGeneratePeriods).Methods(http.MethodPost)
	r.HandleFunc("/api/periods/{id:[0-9]+}/activate", s.handleActivatePeriod).Methods(http.MethodPost)
	r.HandleFunc("/api/periods/{id:[0-9]+}/categories", s.handlePeriodCategories).Methods(http.MethodGet)
	r.HandleFunc("/api/periods/{id:[0-9]+}/summary", s.handlePeriodSummary).Methods(http.MethodGet)

	r.HandleFunc("/api/categories", s.handleListCategories).Methods(http.MethodGet)
	r.HandleFunc("/api/categories", s.handleCreateCategory).Methods(http.MethodPost)
	r.HandleFunc("/api/categories/{id:[0-9]+}/budget", s.handleUpdateBudget).Methods(http.MethodPut)

	r.HandleFunc("/api/purchases", s.handleListPurchases).Methods(http.MethodGet)
	r.HandleFunc("/api/purchases", s.handleCreatePurchase).Methods(http.MethodPost)
	r.HandleFunc("/api/purchases/sync", s.handleSyncPurchases).Methods(http.MethodPost)
	r.HandleFunc("/api/purchases/{id:[0-9]+}", s.handleDeletePurchase).Methods(http.MethodDelete)
	r.HandleFunc("/api/income", s.handleCreateIncome).Methods(http.MethodPost)

	r.HandleFunc("/api/transfers", s.handleListTransfers).Methods(http.MethodGet)
	r.HandleFunc("/api/transfers", s.handleCreateTransfer).Methods(http.MethodPost)

	r.HandleFunc("/admin/populate_budget", s.handlePopulateBudget).Methods(http.MethodPost)
	r.HandleFunc("/admin/preview", s.handlePreview).Methods(http.MethodGet)
	r.HandleFunc("/admin/reconcile", s.handleReconcile).Methods(http.MethodGet)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(s.limiter.Stop)
	if err := s.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
