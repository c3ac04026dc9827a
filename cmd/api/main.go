package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/amirsalarsafaei/sqlc-pgx-monitoring/dbtracer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"payflow/config"
	"payflow/internal/intake"
	"payflow/internal/tracker"
)

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	if appConfig.Telemetry.Enabled {
		cleanup := config.InitTracer(appConfig.Telemetry)
		defer cleanup()
	}

	e := echo.New()

	if appConfig.Telemetry.Enabled {
		e.Use(otelecho.Middleware(appConfig.Telemetry.ServiceName))
	}

	dbpool := setupDbPool(appConfig)
	defer dbpool.Close()

	redisClient := setupRedisClient(appConfig)

	queue := intake.NewStreamQueue(redisClient, appConfig.Redis.StreamName)
	if err := queue.EnsureGroup(context.Background(), appConfig.Redis.StreamGroup); err != nil {
		log.Fatalf("Failed to create group: %v", err)
	}

	eventTracker := tracker.NewPgTracker(dbpool, setupLogger(appConfig))
	defer eventTracker.Close()

	paymentHandler := intake.NewPaymentHandler(queue, appConfig.Account.DeadlineBudget())
	summaryHandler := intake.NewSummaryHandler(eventTracker)
	purgeHandler := intake.NewPurgeHandler(eventTracker)

	e.POST("/payments", paymentHandler.Handle)
	e.GET("/payments-summary", summaryHandler.Handle)
	e.POST("/purge-payments", purgeHandler.Handle)

	e.Use(middleware.Recover())

	err = e.Start(fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.Port))
	if err != nil {
		log.Fatal(err)
	}
}

func setupLogger(appConfig *config.AppConfig) *slog.Logger {
	logLevel := slog.LevelInfo
	if appConfig.Telemetry.Enabled {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

func setupDbPool(appConfig *config.AppConfig) *pgxpool.Pool {
	dbConfig, err := pgxpool.ParseConfig(appConfig.Postgres.URL)
	if err != nil {
		log.Fatalf("Failed to parse postgres URL: %v", err)
	}

	if appConfig.Telemetry.Enabled {
		dbTracer, _ := dbtracer.NewDBTracer("transaction_events")
		dbConfig.ConnConfig.Tracer = dbTracer
	}

	dbpool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	return dbpool
}

func setupRedisClient(appConfig *config.AppConfig) *redis.Client {
	opt, err := redis.ParseURL(appConfig.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}

	redisClient := redis.NewClient(opt)

	if appConfig.Telemetry.Enabled {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			panic(err)
		}

		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			panic(err)
		}
	}

	return redisClient
}
