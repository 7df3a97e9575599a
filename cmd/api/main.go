package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"staffattendance/internal/attendance"
	"staffattendance/internal/auth"
	"staffattendance/internal/clock"
	"staffattendance/internal/config"
	"staffattendance/internal/handler"
	"staffattendance/internal/httpmiddleware"
	"staffattendance/internal/logger"
	"staffattendance/internal/metrics"
	"staffattendance/internal/queue"
	"staffattendance/internal/settings"
	"staffattendance/internal/store"
	"staffattendance/internal/users"
)

func main() {
	cfg := config.Load()
	log := logger.NewForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	for _, w := range cfg.Warnings {
		log.Warn(w)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.JWTSigningKey == config.DevSigningKey {
		log.Warn("using the development JWT signing key")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("api server failed", zap.Error(err))
	}
}

func run(cfg config.App, log *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	if cfg.MigrateOnStart {
		m, err := store.NewMigrator(cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		upErr := m.Up()
		_ = m.Close()
		if upErr != nil {
			return upErr
		}
	}

	ctx := context.Background()
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	rdb := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()
	if !rdb.Healthy(ctx) {
		log.Warn("redis not reachable, settings cache and queue will retry", zap.String("addr", cfg.RedisAddr))
	}

	attRepo := attendance.NewRepository(db.Client)

	// Without Redis nobody else can drain the queue, so the api records
	// events itself.
	recorderCtx, stopRecorder := context.WithCancel(ctx)
	defer stopRecorder()
	recorderDone := make(chan struct{})
	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(256)
		messages, err := mem.Consume(recorderCtx)
		if err != nil {
			return err
		}
		go func() {
			defer close(recorderDone)
			attendance.NewRecorder(attRepo, log.Named("recorder")).Run(recorderCtx, messages)
		}()
		q = mem
	} else {
		close(recorderDone)
		q = queue.NewRedisQueue(rdb.Client, queue.DefaultKey)
	}

	clk := clock.NewSystem(loc)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	userRepo := users.NewRepository(db.Client)
	accounts := users.NewService(userRepo, bcrypt.DefaultCost)
	settingsSvc := settings.NewService(
		settings.NewRepository(db.Client),
		settings.NewRedisCache(rdb.Client),
		cfg.SettingsCacheTTL,
		log.Named("settings"),
	)
	sessions := auth.NewService(accounts, auth.NewTokenRepository(db.Client), auth.Options{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})

	h := handler.New(handler.Options{
		Engine:    attendance.NewService(attRepo, settingsSvc, clk),
		Reporting: attendance.NewStats(attRepo, userRepo, clk),
		Settings:  settingsSvc,
		Accounts:  accounts,
		Sessions:  sessions,
		Events:    attRepo,
		Queue:     q,
		Metrics:   metrics.New(reg),
		Clock:     clk,
		Location:  loc,
		Health: map[string]handler.HealthCheck{
			"db":    db.Healthy,
			"redis": rdb.Healthy,
		},
	})

	router := handler.NewRouter(h, handler.RouterConfig{
		Log:         log,
		SigningKey:  cfg.JWTSigningKey,
		Issuer:      cfg.JWTIssuer,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	stopRecorder()
	<-recorderDone
	log.Info("server exited")
	return nil
}
