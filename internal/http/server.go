package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-chi/chi/v5"

	"walletd/internal/config"
	"walletd/internal/services"
)

// Server wires the HTTP surface around the wallet and transaction
// services. Authenticated, rate limited, with a short-lived home view
// cache invalidated on every mutation.
type Server struct {
	http.Server

	wallets      *services.WalletService
	transactions *services.TransactionService
	limiter      *rateLimiter
	homeCache    *ristretto.Cache
	cacheTTL     time.Duration
	jwtSecret    []byte
	dev          bool
	now          func() time.Time
}

func NewServer(cfg *config.Config, wallets *services.WalletService, transactions *services.TransactionService) (*Server, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating home view cache: %w", err)
	}

	s := &Server{
		wallets:      wallets,
		transactions: transactions,
		limiter:      newRateLimiter(cfg.RequestsPerMinute),
		homeCache:    cache,
		cacheTTL:     cfg.HomeCacheTTL,
		jwtSecret:    []byte(cfg.JWTSecret),
		dev:          cfg.IsDevelopment(),
		now:          time.Now,
	}

	s.Addr = ":" + cfg.Port
	s.Handler = s.routes()
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second

	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(securityHeaders)
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(s.limitMutations)

		r.Get("/wallet", s.handleHomeView)
		r.Put("/wallet/budget", s.handleUpdateBudget)
		r.Get("/wallet/history", s.handleWalletHistory)

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.handleCreateTransaction)
			r.Get("/", s.handleListTransactions)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ok(w, map[string]string{"status": "healthy"}, "Success")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.wallets.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Success: false,
			Message: "Service unavailable",
		})
		return
	}
	ok(w, map[string]string{"status": "ready"}, "Success")
}

// homeCacheKey scopes cached views to the owner's current period, so an
// entry cached just before a month rollover can never be served for the
// new month.
func (s *Server) homeCacheKey(ownerID int64) string {
	now := s.now()
	return fmt.Sprintf("home:%d:%d-%d", ownerID, now.Year(), int(now.Month()))
}

// cachedHomeView returns the cached view for an owner if present.
func (s *Server) cachedHomeView(ownerID int64) (homeViewJSON, bool) {
	if s.cacheTTL <= 0 {
		return homeViewJSON{}, false
	}
	raw, found := s.homeCache.Get(s.homeCacheKey(ownerID))
	if !found {
		return homeViewJSON{}, false
	}
	view, ok := raw.(homeViewJSON)
	return view, ok
}

func (s *Server) storeHomeView(ownerID int64, view homeViewJSON) {
	if s.cacheTTL <= 0 {
		return
	}
	s.homeCache.SetWithTTL(s.homeCacheKey(ownerID), view, 1, s.cacheTTL)
}

// invalidateHome drops the owner's cached home view after a mutation.
func (s *Server) invalidateHome(ownerID int64) {
	s.homeCache.Del(s.homeCacheKey(ownerID))
}

// Shutdown drains in-flight requests and releases the cache.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.homeCache.Close()
	return err
}
