package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dhe2en832/erp-next-system-sub000/internal/app"
	"github.com/dhe2en832/erp-next-system-sub000/internal/erp"
	"github.com/dhe2en832/erp-next-system-sub000/internal/observability"
	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/cache"
	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/db"
	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/lock"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
	"github.com/dhe2en832/erp-next-system-sub000/internal/warkat"
	"github.com/dhe2en832/erp-next-system-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var sink shared.AuditRecorder = shared.LogAudit{Logger: logger}
	if cfg.PGDSN != "" {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.EnsureAuditSchema(ctx, pool); err != nil {
			logger.Error("audit schema", slog.Any("error", err))
			os.Exit(1)
		}
		sink = shared.NewAuditLogger(pool)
	} else {
		logger.Warn("PG_DSN not set, audit records are only logged")
	}

	gateway := erp.NewGateway(erp.NewClient(cfg.ERP(), metrics))
	warkatService := warkat.NewService(gateway, cfg.AccountBook(), lock.NewRedis(redisClient), sink, metrics, logger)

	agingJob := jobs.NewWarkatAgingJob(warkatService, logger, metrics.Jobs(), cfg.DefaultCompany, cfg.WarkatAgingDays)
	auditJob := jobs.NewAuditRecordJob(sink, logger, metrics.Jobs())

	var cron []jobs.CronRegistration
	if cfg.DefaultCompany != "" && cfg.WarkatAgingCron != "" {
		agingTask, err := jobs.NewWarkatAgingTask(cfg.DefaultCompany, cfg.WarkatAgingDays)
		if err != nil {
			logger.Error("build aging task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.WarkatAgingCron, Task: agingTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	} else {
		logger.Warn("DEFAULT_COMPANY not set, warkat aging is not scheduled")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskWarkatAging, Handler: agingJob.Handle},
			{Type: jobs.TaskAuditRecord, Handler: auditJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
