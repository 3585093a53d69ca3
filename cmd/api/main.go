package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"evently/internal/attendance"
	"evently/internal/config"
	"evently/internal/httpapi"
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

	if !cfg.Dev() {
		gin.SetMode(gin.ReleaseMode)
	}
	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("warning", w))
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := map[string]httpapi.HealthChecker{}
	var opts []attendance.Option

	var repo attendance.Store
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		repo = attendance.NewMemoryStore()
	} else {
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := store.NewDB(connCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		repo = attendance.NewRepository(db.Client)
		health["db"] = db
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		log.Warn("using in-memory queue, emails are sent from this process")
		q = queue.NewInMemory(64)
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		if !redisClient.Healthy(ctx) {
			log.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
		}
		q = queue.NewRedisQueue(redisClient.Client, "")
		opts = append(opts, attendance.WithLocker(store.NewRedisLock(redisClient.Client)))
		health["redis"] = redisClient
	}

	opts = append(opts, attendance.WithLocation(cfg.Location()))
	svc := attendance.NewService(repo, cfg.ScanDedupWindow, opts...)

	signer := qr.NewSigner(cfg.QRSigningKey, cfg.QRIssuer, cfg.QRTokenTTL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if mem, ok := q.(*queue.InMemory); ok {
		mail := mailer.New(cfg.PlunkAPI, cfg.PlunkSecret)
		d := mailer.NewDispatcher(mail, cfg.EmailSendDelay, log)
		d.OnResult = m.EmailResult
		proc := worker.NewProcessor(svc, signer, mail, d, mem, m, log.Named("worker"))
		go func() { _ = proc.Run(ctx) }()
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Service:         svc,
		Signer:          signer,
		Queue:           q,
		Metrics:         m,
		Logger:          log,
		Health:          health,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // report rendering
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}
