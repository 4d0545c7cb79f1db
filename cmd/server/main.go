package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/rl1809/salestock/internal/adapter/bus"
	"github.com/rl1809/salestock/internal/adapter/cache"
	"github.com/rl1809/salestock/internal/adapter/handler"
	"github.com/rl1809/salestock/internal/adapter/lock"
	"github.com/rl1809/salestock/internal/adapter/metrics"
	"github.com/rl1809/salestock/internal/adapter/queue"
	"github.com/rl1809/salestock/internal/adapter/storage"
	"github.com/rl1809/salestock/internal/clock"
	"github.com/rl1809/salestock/internal/core/domain"
	"github.com/rl1809/salestock/internal/core/service"
)

const (
	defaultHTTPPort  = ":8080"
	defaultMySQLDSN  = "root:root@tcp(localhost:3306)/salestock?parseTime=true"
	defaultRedisAddr = "localhost:6379"
	workerCount      = 10
	queueSize        = 10000
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", env("MYSQL_DSN", defaultMySQLDSN))
	if err != nil {
		logger.Fatal("open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     env("REDIS_ADDR", defaultRedisAddr),
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("ping redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	locker := lock.NewRedisLocker(rdb, logger)

	sink := metrics.NewGuard(
		metrics.NewOTelSink(otel.GetMeterProvider().Meter("salestock")),
		logger,
	)
	versionedCache := cache.NewVersioned(redisAdapter, sink, logger)

	// Queue: business-rule failures are final, everything else retries on
	// the 5s/15s/60s schedule.
	jobQueue := queue.NewInMem(queue.Config{
		Workers:    workerCount,
		BufferSize: queueSize,
		Retryable: func(err error) bool {
			var vErr *domain.ValidationError
			if errors.As(err, &vErr) {
				return false
			}
			return !errors.Is(err, domain.ErrInsufficientStock)
		},
	}, logger)

	// Core services and event wiring
	eventBus := bus.New(logger)
	inventoryJob := service.NewInventoryUpdateJob(mysqlAdapter, locker, versionedCache, sink, logger)
	saleService := service.NewSaleService(mysqlAdapter, mysqlAdapter, jobQueue, eventBus, clock.NewSystem(), logger)

	eventBus.Subscribe(func(ctx context.Context, event domain.SaleFinalized) {
		task := service.NewInventoryUpdateTask(inventoryJob, event.SaleID, event.Items)
		if err := jobQueue.Enqueue(ctx, task); err != nil {
			logger.Error("enqueue inventory update", zap.Int64("sale_id", event.SaleID), zap.Error(err))
		}
	})

	// HTTP boundary
	httpHandler := handler.NewHTTPHandler(saleService, mysqlAdapter, versionedCache)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/sales", httpHandler.CreateSale)
	mux.HandleFunc("/api/inventory", httpHandler.ListInventory)
	mux.HandleFunc("/api/inventory/{id}", httpHandler.GetInventoryItem)

	httpServer := &http.Server{
		Addr:    env("HTTP_ADDR", defaultHTTPPort),
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	jobQueue.Close()
	logger.Info("workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
