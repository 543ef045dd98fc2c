// Command runqd runs the test execution queue as a standalone HTTP
// service. Configuration comes from the environment (a local .env file
// is honored); see loadConfig for the recognized variables.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/XiangYd616/runq/api"
	"github.com/XiangYd616/runq/engine"
	"github.com/XiangYd616/runq/executor"
	"github.com/XiangYd616/runq/observability"
	"github.com/XiangYd616/runq/record"
	bunstore "github.com/XiangYd616/runq/record/bun"
	redisstore "github.com/XiangYd616/runq/record/redis"
	"github.com/XiangYd616/runq/resource"
	"github.com/XiangYd616/runq/schedule"
	"github.com/XiangYd616/runq/stream"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	store, cleanup, err := openRecordStore(cfg, logger)
	if err != nil {
		logger.Error("record store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	monitor := resource.NewMonitor(
		resource.SystemSampler(nil),
		resource.WithLogger(logger),
	)

	eng, err := engine.New(
		executor.NewHTTPClient(cfg.executorURL, executor.WithHTTPLogger(logger)),
		engine.WithConfig(cfg.queue),
		engine.WithLogger(logger),
		engine.WithRecordStore(store),
		engine.WithMonitor(monitor),
	)
	if err != nil {
		logger.Error("engine init failed", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	defer metrics.Bind(eng.Bus())()

	feed := stream.NewFeed(eng.Bus(), stream.WithLogger(logger))
	defer feed.Close()

	sched := schedule.NewScheduler(eng.Enqueue, schedule.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		logger.Error("engine start failed", "error", err)
		os.Exit(1)
	}
	sched.Start(ctx)

	handler := api.New(eng,
		api.WithScheduler(sched),
		api.WithFeed(feed),
		api.WithLogger(logger),
	).Handler()

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("runqd listening", "addr", cfg.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	sched.Stop()
	if err := eng.Stop(shutCtx); err != nil {
		logger.Warn("engine shutdown", "error", err)
	}
}

// openRecordStore picks the record backend from the environment:
// postgres when RUNQ_DATABASE_URL is set, redis when RUNQ_REDIS_ADDR
// is set, otherwise in-memory.
func openRecordStore(cfg config, logger *slog.Logger) (record.Store, func(), error) {
	switch {
	case cfg.databaseURL != "":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.databaseURL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		store := bunstore.New(db, bunstore.WithLogger(logger))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("record store: postgres")
		return store, func() { db.Close() }, nil

	case cfg.redisAddr != "":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.redisAddr})
		store := redisstore.New(client, redisstore.WithLogger(logger))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		logger.Info("record store: redis", "addr", cfg.redisAddr)
		return store, func() { client.Close() }, nil

	default:
		logger.Info("record store: memory")
		return nil, func() {}, nil
	}
}
