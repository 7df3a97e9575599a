package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"staffattendance/internal/attendance"
	"staffattendance/internal/config"
	"staffattendance/internal/logger"
	"staffattendance/internal/queue"
	"staffattendance/internal/store"
)

// Worker drains the audit event queue into attendance_events.
func main() {
	cfg := config.Load()
	log := logger.NewForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat).Named("worker")
	defer func() { _ = log.Sync() }()

	if cfg.QueueBackend == "memory" {
		log.Fatal("worker needs a shared queue; set QUEUE_BACKEND=redis (the api records events itself in memory mode)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	rdb := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()

	q := queue.NewRedisQueue(rdb.Client, queue.DefaultKey)
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatal("queue consume init failed", zap.Error(err))
	}

	log.Info("worker started", zap.String("queue", queue.DefaultKey))
	attendance.NewRecorder(attendance.NewRepository(db.Client), log).Run(ctx, messages)
	log.Info("worker stopped")
}
