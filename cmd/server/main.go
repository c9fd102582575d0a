package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet/internal/auth"
	"wallet/internal/cache"
	"wallet/internal/codec"
	"wallet/internal/config"
	"wallet/internal/db"
	"wallet/internal/handlers"
	"wallet/internal/logging"
	"wallet/internal/middleware"
	"wallet/internal/migrations"
	"wallet/internal/services"
	"wallet/internal/store"
	"wallet/internal/store/memory"
	"wallet/internal/websocket"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	balanceCodec, err := codec.New(cfg.EncryptionSecret)
	if err != nil {
		logger.Error("failed to build balance codec", "error", err)
		os.Exit(1)
	}

	var ledger store.LedgerStore
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		ledger = memory.New()
	default:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		database, err := db.Connect(connectCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		if *migrate {
			if err := migrations.Up(ctx, database.DB); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		ledger = store.NewPostgresLedger(database)
	}

	var idempotency middleware.IdempotencyCache
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		idempotency = cache.NewIdempotencyStore(client, "wallet:idem")
	}

	policy := services.Policy{
		MaxAmount:      cfg.MaxAmount,
		OverdraftLimit: cfg.OverdraftLimit,
		StoreTimeout:   cfg.StoreTimeout,
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.TokenTTL)
	hub := websocket.NewHub()
	accounts := services.NewAccountService(ledger, balanceCodec, verifier, policy, logger)
	wallets := services.NewWalletService(ledger, balanceCodec, hub, policy, logger)

	handler := handlers.New(cfg, accounts, wallets, ledger, verifier, idempotency, hub, logger)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("wallet API listening", "addr", server.Addr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("wallet API stopped")
}
