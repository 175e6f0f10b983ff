package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/api"
	"github.com/ai-learning-tracker/tracker/internal/config"
	"github.com/ai-learning-tracker/tracker/internal/core"
	"github.com/ai-learning-tracker/tracker/internal/logging"
	"github.com/ai-learning-tracker/tracker/internal/session"
	"github.com/ai-learning-tracker/tracker/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Command line flag for loading sample data
	seedFlag := flag.Bool("seed", false, "Load sample gurus, posts and documents and exit")
	forgetFlag := flag.String("forget", "", "Drop the cached chat answer for this query and exit")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer dbStore.Close()

	if *seedFlag {
		res, err := dbStore.Seed(time.Now())
		if err != nil {
			logger.Fatal("seeding failed", zap.Error(err))
		}
		logger.Info("seed complete",
			zap.Int("gurus", res.Gurus),
			zap.Int("posts", res.Posts),
			zap.Int("documents", res.Documents))
		return
	}

	if *forgetFlag != "" {
		removed, err := core.NewChatService(dbStore, nil, cfg.CacheTTL, logger).Forget(*forgetFlag)
		if err != nil {
			logger.Fatal("cache invalidation failed", zap.Error(err))
		}
		logger.Info("cache invalidation complete", zap.String("query_hash", core.QueryHash(*forgetFlag)), zap.Bool("removed", removed))
		return
	}

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	answerer, err := core.NewGeminiAnswerer(context.Background(), cfg.GeminiAPIKey, logger)
	if err != nil {
		logger.Fatal("failed to initialize answerer", zap.Error(err))
	}
	defer answerer.Close()

	apiHandler := api.NewAPIHandler(
		core.NewFeedService(dbStore),
		core.NewUserService(dbStore),
		core.NewChatService(dbStore, answerer, cfg.CacheTTL, logger),
		logger,
	)

	opts := api.RouterOptions{}
	if cfg.JWTSecret != "" {
		signer, err := session.NewSigner(cfg.JWTSecret, session.DefaultTokenTTL)
		if err != nil {
			logger.Fatal("failed to initialize token verifier", zap.Error(err))
		}
		opts = api.RouterOptions{Tokens: signer, Users: dbStore}
		logger.Info("follow-set writes require a session token")
	}
	router := api.NewRouter(apiHandler, opts)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ChatTimeout + 5*time.Second, // chat answers wait on the model
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("server exiting gracefully")
}
