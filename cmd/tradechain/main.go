package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dhe2en832/erp-next-system-sub000/cmd/tradechain/cli"
	"github.com/dhe2en832/erp-next-system-sub000/internal/app"
	"github.com/dhe2en832/erp-next-system-sub000/internal/chain"
	"github.com/dhe2en832/erp-next-system-sub000/internal/erp"
	"github.com/dhe2en832/erp-next-system-sub000/internal/observability"
	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/cache"
	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/db"
	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/lock"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
	"github.com/dhe2en832/erp-next-system-sub000/internal/stock"
	"github.com/dhe2en832/erp-next-system-sub000/internal/submission"
	"github.com/dhe2en832/erp-next-system-sub000/internal/warkat"
	"github.com/dhe2en832/erp-next-system-sub000/jobs"
)

var (
	_ chain.Backend  = (*erp.Gateway)(nil)
	_ warkat.Backend = (*erp.Gateway)(nil)
	_ stock.Backend  = (*erp.Gateway)(nil)
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 {
		code := cli.Run(ctx, cfg, logger, os.Args[1:], os.Stdout, os.Stderr)
		stop()
		os.Exit(code)
	}

	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	client := erp.NewClient(cfg.ERP(), metrics)
	gateway := erp.NewGateway(client)

	var (
		redisClient *redis.Client
		guard       *submission.Guard
		locker      lock.Locker
	)
	if cfg.GuardBackend == app.GuardBackendRedis {
		rc, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		redisClient = rc
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		locker = lock.NewRedis(redisClient)
		guard = submission.NewGuard(submission.NewRedisStore(redisClient, cfg.GuardTTL), locker, cfg.GuardTTL)
	} else {
		logger.Warn("submission guard runs in memory; run a single instance only")
		locker = lock.NewMemory()
		guard = submission.NewMemoryGuard(cfg.GuardTTL)
	}

	var pool *pgxpool.Pool
	if cfg.PGDSN != "" {
		p, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		pool = p
		defer pool.Close()
		if err := db.EnsureAuditSchema(ctx, pool); err != nil {
			return err
		}
	}

	var (
		audit     shared.AuditRecorder
		jobClient *jobs.Client
		inspector *asynq.Inspector
	)
	switch {
	case redisClient != nil:
		opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient = jobs.NewClient(opts, logger)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		inspector = asynq.NewInspector(opts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		audit = jobClient
	case pool != nil:
		audit = shared.NewAuditLogger(pool)
	default:
		audit = shared.LogAudit{Logger: logger}
	}

	stockResolver := stock.NewResolver(gateway, cfg.StockLowThreshold, logger, metrics)
	chainResolver := chain.NewResolver(gateway, stockResolver, logger)
	chainService := chain.NewService(gateway, guard, locker, audit, metrics, logger)
	warkatService := warkat.NewService(gateway, cfg.AccountBook(), locker, audit, metrics, logger)

	params := app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ChainHandler:  chain.NewHandler(logger, chainResolver, chainService),
		StockHandler:  stock.NewHandler(logger, stockResolver),
		WarkatHandler: warkat.NewHandler(logger, warkatService),
		ERP:           client,
		Metrics:       metrics,
	}
	if inspector != nil {
		params.JobHandler = jobs.NewHandler(inspector, logger)
	}
	router := app.NewRouter(params)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("erp", cfg.ERPBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
