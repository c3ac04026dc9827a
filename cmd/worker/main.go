package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/amirsalarsafaei/sqlc-pgx-monitoring/dbtracer"
	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"payflow/config"
	"payflow/internal/dispatch"
	"payflow/internal/gateway"
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

	logger := setupLogger(appConfig)
	account := appConfig.Account

	if !account.Enabled {
		logger.Warn("account is disabled, worker exiting", "account", account.Name)
		return
	}

	dbpool := setupDbPool(appConfig)
	defer dbpool.Close()

	redisClient := setupRedisClient(appConfig)
	httpClient := setupHttpClient(appConfig)

	eventTracker := tracker.NewPgTracker(dbpool, logger)
	defer eventTracker.Close()

	gatewayClient := gateway.NewClient(httpClient, account.GatewayURL, account.Price, account.CallTimeout(), logger)

	// Shared per-account capacity state: one window, one limiter, one
	// estimator for every concurrent dispatch.
	window := dispatch.NewWindow(account.MaxConcurrency)
	limiter := dispatch.NewSlidingLimiter(account.RatePerSecond, time.Second)
	estimator := dispatch.NewLatencyEstimator(account.AvgProcessingTime())

	dispatcher := dispatch.NewDispatcher(window, limiter, gatewayClient, eventTracker, estimator, logger, dispatch.Settings{
		AccountName:  account.Name,
		ServiceName:  account.ServiceName,
		MaxRetries:   account.MaxRetries,
		BaseBackoff:  account.BaseBackoff(),
		Multiplier:   account.BackoffMultiplier,
		PollInterval: account.PollInterval(),
	})

	logger.Info("worker started",
		"account", account.Name,
		"maxConcurrency", account.MaxConcurrency,
		"ratePerSecond", account.RatePerSecond)

	totalMessages := 0

	for {
		streams, err := redisClient.XReadGroup(context.Background(), &redis.XReadGroupArgs{
			Group:    appConfig.Redis.StreamGroup,
			Consumer: appConfig.Redis.ConsumerName,
			Streams:  []string{appConfig.Redis.StreamName, ">"},
			Block:    5 * time.Millisecond,
			Count:    200,
		}).Result()

		if err != nil && !errors.Is(err, redis.Nil) {
			logger.Error("failed to read from stream", "consumer", appConfig.Redis.ConsumerName, "error", err)
			continue
		}

		for _, stream := range streams {
			batchLen := len(stream.Messages)
			if batchLen == 0 {
				continue
			}

			totalMessages += batchLen

			for _, msg := range stream.Messages {
				raw := msg.Values["data"].(string)

				var payment dispatch.PaymentRequest
				if err := sonic.ConfigFastest.Unmarshal([]byte(raw), &payment); err != nil {
					logger.Error("invalid payment payload", "error", err)
					continue
				}
				redisClient.XAck(context.Background(), appConfig.Redis.StreamName, appConfig.Redis.StreamGroup, msg.ID)

				go dispatcher.Dispatch(context.Background(), payment)
			}

			logger.Debug("dispatching messages", "consumer", appConfig.Redis.ConsumerName, "batchSize", batchLen, "total", totalMessages)
		}
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

func setupHttpClient(appConfig *config.AppConfig) *http.Client {
	transport := http.DefaultTransport
	if appConfig.Telemetry.Enabled {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return &http.Client{
		Transport: transport,
	}
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
