package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/pricegrove/wishlist-tracker/internal/api"
	"github.com/pricegrove/wishlist-tracker/internal/browser"
	"github.com/pricegrove/wishlist-tracker/internal/config"
	"github.com/pricegrove/wishlist-tracker/internal/database"
	"github.com/pricegrove/wishlist-tracker/internal/events"
	"github.com/pricegrove/wishlist-tracker/internal/ingest"
	"github.com/pricegrove/wishlist-tracker/internal/jobs"
	"github.com/pricegrove/wishlist-tracker/internal/ratelimit"
	"github.com/pricegrove/wishlist-tracker/internal/scraper"
	"github.com/pricegrove/wishlist-tracker/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	b, err := browser.New(&browser.Options{
		Headless: cfg.Scraper.Headless,
		Timeout:  cfg.Scraper.Timeout(),
	})
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	var archive *storage.FailureArchive
	if cfg.Scraper.SnapshotDir != "" {
		archive, err = storage.NewFailureArchive(filepath.Join(cfg.Scraper.SnapshotDir, "scrape_failures.json"))
		if err != nil {
			logger.Error("failed to open failure archive", "error", err)
			os.Exit(1)
		}
	}

	extractor := scraper.NewExtractor(cfg.Scraper.MarketplaceHost, logger)
	scrapeService := scraper.NewService(b, extractor, cfg.Scraper.Timeout(), logger)
	reconciler := ingest.NewReconciler(db, logger)
	publisher := events.NewPublisher(db, logger)

	manager := jobs.NewManager(jobs.ManagerOptions{
		Scraper:   scrapeService,
		Ingestor:  reconciler,
		Publisher: publisher,
		Namer:     db,
		Limiter: ratelimit.NewAdaptiveRateLimiter(
			time.Duration(cfg.Scraper.RateLimitMinMS)*time.Millisecond,
			time.Duration(cfg.Scraper.RateLimitMaxMS)*time.Millisecond,
		),
		Archive: archive,
		Logger:  logger,
	})
	manager.StartWorkers(ctx, cfg.Scraper.ConcurrentWorkers)
	defer manager.Close()

	handlers := api.NewHandlers(db, manager, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		pendingCount, _ := relay.GetPendingCount(r.Context())
		deadLetterCount, _ := relay.GetDeadLetterCount(r.Context())

		health := map[string]interface{}{
			"status": "ok",
			"queue":  manager.QueueSize(),
			"outbox": map[string]interface{}{
				"pending":     pendingCount,
				"dead_letter": deadLetterCount,
			},
		}

		status := http.StatusOK
		if err := db.Ping(r.Context()); err != nil {
			health["status"] = "error"
			health["message"] = "database unreachable"
			status = http.StatusServiceUnavailable
		} else if deadLetterCount > 100 {
			health["status"] = "error"
			health["message"] = "high number of dead letter events"
			status = http.StatusServiceUnavailable
		} else if pendingCount > 1000 {
			health["status"] = "warning"
			health["message"] = "high number of pending outbox events"
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/wishlists/scrape", handlers.ScrapeWishlist)

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", handlers.ListCollections)
			r.Delete("/{collectionID}", handlers.DeleteCollection)
			r.Get("/{collectionID}/products", handlers.ListProducts)
			r.Get("/{collectionID}/products/{asin}/history", handlers.GetProductHistory)
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
