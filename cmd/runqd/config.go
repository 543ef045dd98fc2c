package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/XiangYd616/runq"
)

type config struct {
	addr        string
	executorURL string
	redisAddr   string
	databaseURL string
	logLevel    slog.Level
	queue       runq.Config
}

// loadConfig reads all RUNQ_* environment variables, falling back to
// queue defaults.
//
//	RUNQ_ADDR                listen address            (:8080)
//	RUNQ_EXECUTOR_URL        executor base URL         (http://localhost:9000)
//	RUNQ_REDIS_ADDR          redis record store        (unset: disabled)
//	RUNQ_DATABASE_URL        postgres record store     (unset: disabled)
//	RUNQ_LOG_LEVEL           debug|info|warn|error     (info)
//	RUNQ_MAX_REGULAR         regular pool size
//	RUNQ_MAX_STRESS          stress pool size
//	RUNQ_MAX_QUEUE           pending queue cap
//	RUNQ_QUEUE_WAIT_TIMEOUT  e.g. "10m"
//	RUNQ_RETRY_DELAY         e.g. "5s"
//	RUNQ_POLL_INTERVAL       e.g. "2s"
//	RUNQ_FAST_TRACK          true|false
func loadConfig() config {
	q := runq.DefaultConfig()
	q.MaxConcurrentRegular = getEnvInt("RUNQ_MAX_REGULAR", q.MaxConcurrentRegular)
	q.MaxConcurrentStress = getEnvInt("RUNQ_MAX_STRESS", q.MaxConcurrentStress)
	q.MaxQueueSize = getEnvInt("RUNQ_MAX_QUEUE", q.MaxQueueSize)
	q.QueueWaitTimeout = getEnvDuration("RUNQ_QUEUE_WAIT_TIMEOUT", q.QueueWaitTimeout)
	q.RetryDelay = getEnvDuration("RUNQ_RETRY_DELAY", q.RetryDelay)
	q.PollInterval = getEnvDuration("RUNQ_POLL_INTERVAL", q.PollInterval)
	q.FastTrackEnabled = getEnvBool("RUNQ_FAST_TRACK", q.FastTrackEnabled)

	return config{
		addr:        getEnv("RUNQ_ADDR", ":8080"),
		executorURL: getEnv("RUNQ_EXECUTOR_URL", "http://localhost:9000"),
		redisAddr:   os.Getenv("RUNQ_REDIS_ADDR"),
		databaseURL: os.Getenv("RUNQ_DATABASE_URL"),
		logLevel:    parseLogLevel(os.Getenv("RUNQ_LOG_LEVEL")),
		queue:       q,
	}
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
