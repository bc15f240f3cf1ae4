package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"itsec-data/internal/config"
	"itsec-data/internal/database"
	httpapi "itsec-data/internal/http"
	"itsec-data/internal/logger"
	"itsec-data/internal/msapi"
	"itsec-data/internal/repository"
	"itsec-data/internal/scheduler"
	"itsec-data/internal/service"
	"itsec-data/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "itsec-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	kv := store.NewRedisKV(redisClient)

	// Repositories
	managedDevicesRepo := repository.NewPostgresManagedDevicesRepo(db)
	defenderDevicesRepo := repository.NewPostgresDefenderDevicesRepo(db)
	syncMetadataRepo := repository.NewPostgresSyncMetadataRepo(db)
	statisticsRepo := repository.NewPostgresStatisticsRepo(db)
	alertsRepo := repository.NewPostgresAlertsRepo(db)
	risksRepo := repository.NewPostgresRiskDetectionsRepo(db)
	vulnsRepo := repository.NewPostgresVulnerabilitiesRepo(db)
	ticketsRepo := repository.NewPostgresTicketsRepo(db)

	// Upstream API clients
	graphClient := msapi.NewGraphClient(&cfg.Graph, log)
	defenderClient := msapi.NewDefenderClient(&cfg.Defender, log)

	// Sync pipelines, one per source
	intuneSync := service.NewIntuneDeviceSyncService(
		service.FetchFunc(graphClient.FetchAllManagedDevices),
		managedDevicesRepo, syncMetadataRepo, cfg.Sync.BatchSize, log)
	defenderSync := service.NewDefenderDeviceSyncService(
		service.FetchFunc(defenderClient.FetchAllMachines),
		defenderDevicesRepo, syncMetadataRepo, cfg.Sync.BatchSize, log)

	// Statistics generation
	calculator := service.NewAlertStatsCalculator(alertsRepo, log)
	statsService := service.NewStatisticsService(statisticsRepo, calculator, log)

	// HTTP surface
	router := httpapi.NewRouter(log)
	router.RegisterRoutes(
		httpapi.NewSyncHandler([]*service.DeviceSyncService{intuneSync, defenderSync}, log),
		httpapi.NewStatisticsHandler(statsService, statisticsRepo, log),
		httpapi.NewAlertHandler(alertsRepo, log),
		httpapi.NewDeviceHandler(managedDevicesRepo, defenderDevicesRepo, log),
		httpapi.NewRiskDetectionHandler(risksRepo, log),
		httpapi.NewVulnerabilityHandler(vulnsRepo, log),
		httpapi.NewTicketHandler(ticketsRepo, log),
	)
	mw := httpapi.NewMiddleware(cfg.API.Key, cfg.API.RateLimit, cfg.API.RateWindow, kv, log)
	server := service.NewServer(cfg.HTTP.Addr, mw.Wrap(router), log)

	// Scheduled jobs replace external timer triggers
	ctx, cancel := context.WithCancel(context.Background())
	sched := scheduler.New(intuneSync, defenderSync, statsService,
		cfg.Sync.Interval, cfg.Sync.StatsInterval, log)
	go sched.Start(ctx)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down itsec-data")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
