package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/SersifAbdeljalil/hospital-management/internal/api"
	"github.com/SersifAbdeljalil/hospital-management/internal/config"
	"github.com/SersifAbdeljalil/hospital-management/internal/db"
	"github.com/SersifAbdeljalil/hospital-management/internal/document"
	"github.com/SersifAbdeljalil/hospital-management/internal/logger"
	"github.com/SersifAbdeljalil/hospital-management/internal/notification"
	"github.com/SersifAbdeljalil/hospital-management/internal/prescription"
	redisclient "github.com/SersifAbdeljalil/hospital-management/internal/redis"
	"github.com/SersifAbdeljalil/hospital-management/internal/scheduling"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("logger init error: " + err.Error())
	}
	defer log.Sync()

	log.Info("api-server starting up", zap.String("env", cfg.Env), zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	notifier := notification.NewService(notification.NewPgRepository(pgPool), log)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)

	schedulingSvc := scheduling.NewService(scheduling.NewPgRepository(pgPool), locker, notifier, cfg, log)
	prescriptionSvc := prescription.NewService(
		prescription.NewPgRepository(pgPool),
		document.NewPDFRenderer(),
		document.NewFileStore(cfg.DocumentDir),
		notifier,
		log,
	)

	handler := api.NewRouter(api.RouterConfig{
		Scheduling:    schedulingSvc,
		Prescriptions: prescriptionSvc,
		PgPool:        pgPool,
		Redis:         rdb,
		Logger:        log,
		Env:           cfg.Env,
		Version:       version,
		SlotMinutes:   cfg.SlotMinutes,
		RenderTimeout: cfg.RenderTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RenderTimeout + 5*time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}
