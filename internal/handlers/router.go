package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"wallet/internal/config"
	"wallet/internal/middleware"
	"wallet/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"
)

const healthTimeout = 3 * time.Second

type Handler struct {
	cfg         config.Config
	accounts    AccountService
	wallets     WalletService
	store       Pinger
	verifier    middleware.IdentityVerifier
	idempotency middleware.IdempotencyCache
	hub         *websocket.Hub
	upgrader    *gorillaws.Upgrader
	logger      *slog.Logger
}

// New wires the HTTP surface. idempotency may be nil, in which case
// Idempotency-Key headers are ignored.
func New(cfg config.Config, accounts AccountService, wallets WalletService, store Pinger, verifier middleware.IdentityVerifier, idempotency middleware.IdempotencyCache, hub *websocket.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:         cfg,
		accounts:    accounts,
		wallets:     wallets,
		store:       store,
		verifier:    verifier,
		idempotency: idempotency,
		hub:         hub,
		upgrader:    websocket.NewUpgrader(cfg.Origins()),
		logger:      logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{middleware.IdempotencyHitHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.verifier)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
			r.With(authenticated).Get("/me", h.Me)
		})
		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/wallet", h.GetWallet)
			r.Get("/wallet/verify", h.VerifyWallet)
			r.Get("/transactions", h.ListTransactions)
			r.Get("/ws/wallet", h.WSWallet)
			r.Group(func(r chi.Router) {
				if h.idempotency != nil {
					r.Use(middleware.Idempotency(h.idempotency, h.cfg.IdempotencyTTL, h.logger))
				}
				r.Post("/wallet/recharge", h.Recharge)
				r.Post("/wallet/pay", h.Pay)
			})
		})
	})

	router.Get("/health", h.Health)
	return router
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "unhealthy",
			"message": "Database connection failed",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
