package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/notify-engine/internal/config"
	"github.com/kursadbilgin/notify-engine/internal/controller"
	"github.com/kursadbilgin/notify-engine/internal/dispatch"
	"github.com/kursadbilgin/notify-engine/internal/dryrun"
	"github.com/kursadbilgin/notify-engine/internal/events"
	"github.com/kursadbilgin/notify-engine/internal/handler"
	"github.com/kursadbilgin/notify-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/notify-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notify-engine/internal/infra/redis"
	"github.com/kursadbilgin/notify-engine/internal/observability"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"github.com/kursadbilgin/notify-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	thresholds, err := cfg.Thresholds()
	if err != nil {
		logger.Fatal("invalid overdue thresholds", zap.Error(err))
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rmq, err := events.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rmq.Close()
	publisher := events.NewRabbitMQPublisher(rmq)

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	client, err := dispatch.NewHTTPClient(cfg.RemoteAPIURL)
	if err != nil {
		logger.Fatal("dispatch client initialization failed", zap.Error(err))
	}

	runRepo := repository.NewGormRunRepo(db)
	logRepo := repository.NewGormExecutionLogRepo(db)

	metrics := observability.NewMetrics()

	dispatchController, err := controller.New(client, limiter, runRepo, publisher, logger)
	if err != nil {
		logger.Fatal("controller initialization failed", zap.Error(err))
	}
	dispatchController.SetMetrics(metrics)

	execLog := dryrun.NewExecutionLog(logRepo, logger)
	if err := execLog.Hydrate(context.Background()); err != nil {
		logger.Warn("failed to hydrate execution log", zap.Error(err))
	}

	simulator, err := dryrun.NewSimulator(client, dispatchController, execLog, logger)
	if err != nil {
		logger.Fatal("simulator initialization failed", zap.Error(err))
	}
	simulator.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:      "notify-engine",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterEngineRoutes(app, dispatchController, runRepo); err != nil {
		logger.Fatal("failed to register engine routes", zap.Error(err))
	}
	if err := handler.RegisterClassifyRoutes(app, thresholds); err != nil {
		logger.Fatal("failed to register classify routes", zap.Error(err))
	}
	if err := handler.RegisterDryRunRoutes(app, simulator); err != nil {
		logger.Fatal("failed to register dry run routes", zap.Error(err))
	}
	if err := handler.RegisterQueueRoutes(app, client, thresholds); err != nil {
		logger.Fatal("failed to register queue routes", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("notify-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		if err := dispatchController.Cancel(); err == nil {
			<-dispatchController.Done()
		}
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}
