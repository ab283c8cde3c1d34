package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/livetranslate/internal/api"
	"github.com/nikhilbhutani/livetranslate/internal/audit"
	"github.com/nikhilbhutani/livetranslate/internal/cache"
	"github.com/nikhilbhutani/livetranslate/internal/config"
	"github.com/nikhilbhutani/livetranslate/internal/database"
	"github.com/nikhilbhutani/livetranslate/internal/modelstore"
	"github.com/nikhilbhutani/livetranslate/internal/queue"
	"github.com/nikhilbhutani/livetranslate/internal/translation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx := context.Background()
	deps := api.Deps{Config: cfg, Logger: logger}

	// Model list: file first, then database, then the built-in default.
	var stores modelstore.Chain
	if cfg.Translation.ModelsFile != "" {
		stores = append(stores, modelstore.NewFileStore(cfg.Translation.ModelsFile))
	}

	// Database connection (optional)
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without DB", "error", err)
		} else {
			defer db.Close()
			if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
				slog.Warn("migrations failed", "error", err)
			}
			deps.DB = db
			deps.Usage = audit.NewService(db)
			stores = append(stores, modelstore.NewPostgresStore(db))
		}
	}
	stores = append(stores, modelstore.Default(cfg.LLM))
	deps.Models = stores

	// Redis connection (optional)
	var recorder translation.UsageRecorder
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	redisUp := rdb.Ping(ctx).Err() == nil
	if redisUp {
		deps.Redis = rdb
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		recorder = queue.NewUsageRecorder(qc)
	} else {
		slog.Warn("redis unavailable, running without cache and usage accounting")
	}

	var translator translation.Translator
	switch cfg.Translation.Backend {
	case config.BackendStub:
		translator = translation.NewStubTranslator(nil)
	default:
		llmT, err := translation.NewLLMTranslator(translation.LLMTranslatorConfig{
			Fallback:       cfg.LLM,
			PromptTemplate: cfg.Translation.PromptTemplate,
			Recorder:       recorder,
			Logger:         logger,
		})
		if err != nil {
			slog.Error("failed to create translator", "error", err)
			os.Exit(1)
		}
		translator = llmT
	}
	if redisUp && cfg.Translation.CacheTTL > 0 {
		translator = translation.NewCachedTranslator(translator, cache.NewCache(rdb, "translation:"), cfg.Translation.CacheTTL, logger)
	}
	deps.Translator = translator

	router := api.NewRouter(deps)
	handler := router.Setup()

	// No WriteTimeout: live sessions hold the connection open.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "backend", cfg.Translation.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
