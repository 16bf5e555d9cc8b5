package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stockfolio/portfolio-engine/internal/achievements"
	"github.com/stockfolio/portfolio-engine/internal/analytics"
	"github.com/stockfolio/portfolio-engine/internal/dashboard"
	"github.com/stockfolio/portfolio-engine/internal/marketdata"
	"github.com/stockfolio/portfolio-engine/internal/metrics"
	"github.com/stockfolio/portfolio-engine/internal/pricecache"
	"github.com/stockfolio/portfolio-engine/internal/pricing"
	"github.com/stockfolio/portfolio-engine/internal/rewards"
	"github.com/stockfolio/portfolio-engine/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := envOr("PORT", "8080")

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Price cache ---
	var cache pricecache.Cache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		cache = pricecache.NewRedisCache(rdb)
		slog.Info("Redis price cache enabled")
	} else {
		slog.Warn("REDIS_URL not set, using in-memory price cache")
		cache = pricecache.NewMemoryCache()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Upstream clients ---
	domestic := marketdata.NewDomesticClient(envOr("CRAWLER_URL", "http://localhost:8001"))
	international := marketdata.NewInternationalClient(envOr("MARKET_DATA_URL", "http://localhost:8002"))
	analyticsClient := analytics.NewClient(envOr("ANALYTICS_URL", "http://localhost:8003"))
	chain := rewards.NewBlockchainClient(envOr("BLOCKCHAIN_URL", "http://localhost:8004"))

	resolver := pricing.NewResolver(cache, domestic, international)

	// --- WebSocket hub ---
	hub := rewards.NewHub()
	go hub.Run()

	// --- Services ---
	rewardSvc := rewards.NewService(st, chain, hub)
	detector := achievements.NewDetector(st, resolver, rewardSvc)
	dashboardSvc := dashboard.NewService(st, resolver, analyticsClient, rewardSvc, detector, chain)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Wallet-Address")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"portfolio-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time mint notifications.
		r.Get("/ws", hub.HandleWS)

		// Portfolio management.
		r.Post("/users/{userID}/portfolios", dashboardSvc.CreatePortfolio)
		r.Get("/users/{userID}/portfolios", dashboardSvc.ListPortfolios)
		r.Post("/users/{userID}/assets", dashboardSvc.AddAsset)
		r.Put("/assets/{assetID}", dashboardSvc.UpdateAsset)

		// Valuation.
		r.Get("/users/{userID}/dashboard/stats", dashboardSvc.GetStats)

		// Risk analysis.
		r.Post("/users/{userID}/risk", dashboardSvc.SubmitRisk)
		r.Get("/risk/{jobID}", dashboardSvc.PollRisk)
		r.Get("/users/{userID}/risk/sync", dashboardSvc.GetRiskSync)

		// Reward and achievement history.
		r.Get("/users/{userID}/rewards", dashboardSvc.ListRewards)
		r.Get("/users/{userID}/achievements", dashboardSvc.ListAchievements)
		r.Get("/wallet/{address}/balance", dashboardSvc.GetWalletBalance)
		r.Get("/wallet/{address}/nfts", dashboardSvc.GetWalletNFTs)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("portfolio-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down portfolio-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("portfolio-engine stopped")
}
