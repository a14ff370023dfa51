package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/procureflow/cmd/procureflow/cli"
	"github.com/odyssey-erp/procureflow/internal/app"
	"github.com/odyssey-erp/procureflow/internal/audit"
	audithttp "github.com/odyssey-erp/procureflow/internal/audit/http"
	"github.com/odyssey-erp/procureflow/internal/notify"
	"github.com/odyssey-erp/procureflow/internal/observability"
	"github.com/odyssey-erp/procureflow/internal/platform/cache"
	"github.com/odyssey-erp/procureflow/internal/platform/db"
	"github.com/odyssey-erp/procureflow/internal/procurement"
	"github.com/odyssey-erp/procureflow/internal/rbac"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/workflow"
	"github.com/odyssey-erp/procureflow/jobs"
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

	args := os.Args[1:]
	if len(args) > 0 && args[0] != "serve" {
		os.Exit(runCommand(ctx, cfg, logger, args))
	}

	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("serve", slog.Any("error", err))
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	switch args[0] {
	case "jobs":
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			logger.Error("init jobs cli", slog.Any("error", err))
			return 1
		}
		defer func() { _ = jobsCLI.Close() }()
		return jobsCLI.Run(ctx, args[1:], os.Stdout, os.Stderr)
	case "session":
		redisClient, err := cache.New(ctx, cfg.CacheOptions())
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			return 1
		}
		defer func() { _ = redisClient.Close() }()
		sessions := shared.NewSessionStore(redisClient, "", cfg.SessionSecret, cfg.SessionTTL)
		return cli.SessionCLI{Sessions: sessions}.Run(ctx, args[1:], os.Stdout, os.Stderr)
	default:
		logger.Error("unknown command", slog.String("command", args[0]))
		return 2
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("procureflow"))
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient := cache.NewClient(cfg.CacheOptions())
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	sessions := shared.NewSessionStore(redisClient, "", cfg.SessionSecret, cfg.SessionTTL)
	rbacService := rbac.NewService(rbac.NewPGStore(dbpool))
	rbacMiddleware := &rbac.Middleware{Sessions: sessions, Actors: rbacService, Logger: logger}

	auditStore := audit.NewPGStore(dbpool)
	auditWriter := audit.NewWriter(auditStore, logger)
	auditHandler := audithttp.NewHandler(logger, audit.NewService(auditStore))

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	dispatcher := notify.NewDispatcher(notify.Config{
		Notifier:    notify.NewStore(dbpool),
		Mailer:      notify.NewQueueMailer(jobClient),
		Broadcaster: notify.NewRedisBroadcaster(redisClient),
		Directory:   notify.NewUserDirectory(dbpool),
		Channel:     cfg.BroadcastChannel,
		Logger:      logger,
	})

	procurementRepo := procurement.NewRepository(dbpool)
	machine := workflow.NewMachine(rbac.Gate{}, nil)
	numbers := workflow.NewNumberGenerator(procurementRepo, nil)
	creator := workflow.NewCreator(numbers, cfg.NumberMaxAttempts, logger, metrics)
	procurementService := procurement.NewService(procurementRepo, machine, creator, auditWriter, dispatcher, logger).
		WithMetrics(metrics)
	procurementHandler := procurement.NewHandler(logger, procurementService).
		WithIdempotency(shared.NewIdempotencyStore(dbpool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		ProcurementHandler: procurementHandler,
		AuditHandler:       auditHandler,
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService, *rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		Ready: map[string]app.Pinger{
			"postgres": app.PingFunc(dbpool.Ping),
			"redis":    app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
