// Package http exposes the JSON API over net/http.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"divvy/internal/auth"
	"divvy/internal/billing"
	"divvy/internal/cache"
	"divvy/internal/log"
	"divvy/internal/services"
	"divvy/internal/usage"
)

const (
	requestsPerMinute = 60
	balanceCacheSize  = 500
	balanceCacheTTL   = time.Minute
)

// Server wires the HTTP surface onto the service layer.
type Server struct {
	http.Server

	groups        *services.GroupService
	ledger        *services.LedgerService
	authenticator *auth.PasswordAuthenticator
	tokens        *auth.JWTManager
	gate          *usage.Gate
	billing       *billing.Client

	rateLimiter  *rateLimiter
	balanceCache *cache.LRUCache[*services.BalanceSheet]
	cacheManager *cache.Manager

	logger     *log.Logger
	httpLogger *log.HTTPLogger

	shutdownOnce sync.Once
}

// Deps carries everything the server needs. Billing may be nil when
// checkout is not configured.
type Deps struct {
	Groups        *services.GroupService
	Ledger        *services.LedgerService
	Authenticator *auth.PasswordAuthenticator
	Tokens        *auth.JWTManager
	Gate          *usage.Gate
	Billing       *billing.Client
	Logger        *log.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		groups:        deps.Groups,
		ledger:        deps.Ledger,
		authenticator: deps.Authenticator,
		tokens:        deps.Tokens,
		gate:          deps.Gate,
		billing:       deps.Billing,
		rateLimiter:   newRateLimiter(requestsPerMinute),
		balanceCache:  cache.NewLRUCache[*services.BalanceSheet](balanceCacheSize, balanceCacheTTL),
		cacheManager:  cache.NewManager(),
		logger:        logger,
		httpLogger:    log.NewHTTPLogger(logger),
	}
	s.cacheManager.Register(s.balanceCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	authed := func(h http.HandlerFunc) http.Handler { return s.withAuth(h) }

	mux.Handle("GET /api/groups", authed(s.handleListGroups))
	mux.Handle("POST /api/groups", authed(s.handleCreateGroup))
	mux.Handle("GET /api/groups/{id}", authed(s.handleGetGroup))
	mux.Handle("PATCH /api/groups/{id}", authed(s.handleRenameGroup))
	mux.Handle("DELETE /api/groups/{id}", authed(s.handleDeleteGroup))

	mux.Handle("POST /api/groups/{id}/join", authed(s.handleJoinGroup))
	mux.Handle("GET /api/groups/{id}/members", authed(s.handleListMembers))
	mux.Handle("POST /api/groups/{id}/members", authed(s.handleAddGuest))
	mux.Handle("DELETE /api/groups/{id}/members/{memberID}", authed(s.handleRemoveMember))

	mux.Handle("GET /api/groups/{id}/transactions", authed(s.handleListTransactions))
	mux.Handle("POST /api/groups/{id}/expenses", authed(s.handleCreateExpense))
	mux.Handle("POST /api/groups/{id}/incomes", authed(s.handleCreateIncome))
	mux.Handle("PATCH /api/transactions/{id}", authed(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", authed(s.handleDeleteTransaction))

	mux.Handle("GET /api/groups/{id}/balances", authed(s.handleGetBalances))

	mux.Handle("GET /api/usage", authed(s.handleUsageSummary))
	mux.Handle("POST /api/billing/checkout", authed(s.handleCheckout))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withObservability(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops background goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) invalidateGroup(groupID string) {
	s.balanceCache.DeletePrefix("group:" + groupID + ":")
}

func balanceCacheKey(groupID string) string {
	return "group:" + groupID + ":balances"
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
