package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/cors"

	"github.com/DanielZ1337/finance-index-trackers/internal/analytics"
	"github.com/DanielZ1337/finance-index-trackers/internal/cache"
	"github.com/DanielZ1337/finance-index-trackers/internal/catalog"
	"github.com/DanielZ1337/finance-index-trackers/internal/collectors"
	"github.com/DanielZ1337/finance-index-trackers/internal/config"
	"github.com/DanielZ1337/finance-index-trackers/internal/database"
	"github.com/DanielZ1337/finance-index-trackers/internal/handlers"
	"github.com/DanielZ1337/finance-index-trackers/internal/logger"
	"github.com/DanielZ1337/finance-index-trackers/internal/middleware"
	"github.com/DanielZ1337/finance-index-trackers/internal/monitoring"
	"github.com/DanielZ1337/finance-index-trackers/internal/timeseries"
	"github.com/DanielZ1337/finance-index-trackers/internal/views"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.App.Env, cfg.App.Debug)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logg.Sync()

	ctx := context.Background()

	db, err := database.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		logg.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logg.Fatalw("failed to migrate schema", "error", err)
	}

	cat := catalog.New(db)
	if err := cat.EnsureSeed(ctx); err != nil {
		logg.Fatalw("failed to seed indicator catalog", "error", err)
	}

	var listingCache cache.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logg.Fatalw("failed to connect to redis", "error", err)
		}
		listingCache = cache.NewRedis(client, logg)
		logg.Infow("using redis listing cache", "addr", cfg.Redis.Addr)
	} else {
		listingCache = cache.NewMemory()
		logg.Info("using in-memory listing cache")
	}

	metrics := monitoring.New("index_trackers")

	store := timeseries.NewStore(db, logg)
	ledger := views.NewLedger(db)
	analyticsSvc := analytics.NewService(db, listingCache, cfg.Cache.ListingTTL, logg)

	fetcher := collectors.NewFetcher(cfg.Collectors.FetchTimeout, logg)
	cnn := collectors.NewCNNCollector(fetcher, store, cfg.Collectors.CNNGraphURL, logg)
	crypto := collectors.NewCryptoFGICollector(fetcher, store, cfg.Collectors.CryptoFGIURL, logg)
	vix := collectors.NewVIXCollector(fetcher, store, cfg.Collectors.AlphaVantageURL, cfg.Collectors.AlphaVantageKey, logg)

	handler := handlers.New(cat, store, ledger, analyticsSvc, cnn, crypto, vix, metrics, logg)

	identity := middleware.NewIdentity(cfg.Auth.JWTSecret)
	rateLimiter := middleware.NewRateLimiter(float64(cfg.App.RateLimit), cfg.App.RateLimit*2)

	router := handler.Router(db,
		middleware.Recovery(logg),
		middleware.RequestLogger(logg, metrics),
		rateLimiter.RateLimit,
		identity.Extract,
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.App.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Infow("server starting", "port", cfg.App.Port, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Fatalw("forced shutdown", "error", err)
	}

	logg.Info("server stopped")
}
