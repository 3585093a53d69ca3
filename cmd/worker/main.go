// Package main runs the background worker that emails participant QR codes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"evently/internal/attendance"
	"evently/internal/config"
	"evently/internal/logger"
	"evently/internal/mailer"
	"evently/internal/metrics"
	"evently/internal/qr"
	"evently/internal/queue"
	"evently/internal/store"
	"evently/internal/worker"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Dev(), cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("warning", w))
	}

	if cfg.QueueBackend == "memory" || cfg.StoreBackend == "memory" {
		log.Fatal("worker needs the redis queue and postgres store; in-memory mode runs jobs inside the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.NewDB(connCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer db.Close()

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		log.Warn("redis not reachable at startup, consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	svc := attendance.NewService(attendance.NewRepository(db.Client), cfg.ScanDedupWindow,
		attendance.WithLocation(cfg.Location()))

	mail := mailer.New(cfg.PlunkAPI, cfg.PlunkSecret)
	if !mail.Configured() {
		log.Warn("email provider not configured, jobs will be dropped", zap.Error(mailer.ErrNotConfigured))
	}
	m := metrics.New(prometheus.NewRegistry())
	d := mailer.NewDispatcher(mail, cfg.EmailSendDelay, log)
	d.OnResult = m.EmailResult

	proc := worker.NewProcessor(svc,
		qr.NewSigner(cfg.QRSigningKey, cfg.QRIssuer, cfg.QRTokenTTL),
		mail, d, queue.NewRedisQueue(rdb.Client, ""), m, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	metricsSrv := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	if err := proc.Run(ctx); err != nil {
		log.Fatal("worker", zap.Error(err))
	}
}
