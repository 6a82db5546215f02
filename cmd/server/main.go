package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"nearby/config"
	"nearby/internal/database"
	"nearby/internal/domain"
	"nearby/internal/logger"
	"nearby/internal/metrics"
	"nearby/internal/middleware"
	"nearby/internal/provider"
	"nearby/internal/repository"
	"nearby/internal/router"
	"nearby/internal/service"
	"nearby/internal/tracking"
	"nearby/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	zl, err := logger.New(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir, closeDir := openDirectory(ctx, cfg, zl)
	defer closeDir()

	src, err := provider.New(cfg.GPS, zl)
	if err != nil {
		zl.Fatal("gps source", zap.Error(err))
	}
	go func() {
		if err := src.Run(ctx); err != nil {
			zl.Error("gps source stopped", zap.String("source", src.Name), zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tracker := tracking.NewTracker(src.Location, cfg.Location.TrackingOptions(),
		tracking.WithPermissions(src.Permissions),
		tracking.WithLogger(zl.Named("tracking")),
		tracking.WithObserver(metrics.NewTrackerMetrics(reg)),
	)
	hub := ws.NewTrackingHub(zl.Named("ws"))
	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()
	go hub.Run(ctx, updates)
	tracker.Start(ctx)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go limiter.Run(ctx.Done())

	engine := router.Setup(ctx, cfg, router.Deps{
		Tracker:  tracker,
		Nearby:   service.NewNearbyService(tracker, dir, cfg.Location, zl.Named("nearby")),
		Hub:      hub,
		Limiter:  limiter,
		Gatherer: reg,
		Logger:   zl.Named("http"),
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr), zap.String("gps_source", src.Name))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down...")
	tracker.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
		os.Exit(1)
	}
	zl.Info("server stopped")
}

func openDirectory(ctx context.Context, cfg *config.Config, zl *zap.Logger) (service.Directory, func()) {
	switch cfg.Location.Directory {
	case domain.DirectoryRedis:
		rdb, err := database.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			zl.Fatal("redis", zap.Error(err))
		}
		return repository.NewGeoDirectory(rdb), func() { rdb.Close() }
	default:
		db, err := database.NewDB(&cfg.Database)
		if err != nil {
			zl.Fatal("database", zap.Error(err))
		}
		if err := database.AutoMigrate(db); err != nil {
			zl.Fatal("migrate", zap.Error(err))
		}
		return repository.NewPeopleRepository(db), func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
	}
}
