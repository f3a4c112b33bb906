// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bloomreach-forms/internal/common/config"
	"bloomreach-forms/internal/common/database"
	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/common/observability"
	"bloomreach-forms/internal/consent"
	"bloomreach-forms/internal/queue"
	"bloomreach-forms/internal/runner"
	"bloomreach-forms/internal/submission"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting deferred job worker...",
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("brforms-worker")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		zapLog.Fatal("redis client failed", zap.Error(err))
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		zapLog.Fatal("redis unreachable", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	cache := consent.NewCache(rdb, log)
	jobs := runner.New(config.Load, cache, log)
	scheduler := queue.NewRedisScheduler(rdb, cfg.Queue.Key, log)

	handle := func(ctx context.Context, job *submission.Job) {
		start := time.Now()
		jobs.Run(ctx, job)
		obs.RecordJobProcessed(ctx, "done")
		obs.RecordJobDuration(ctx, time.Since(start))
	}

	poller := queue.NewPoller(scheduler, cfg.Queue.PollInterval(), handle, log)
	go poller.Run(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down worker...")
	cancel()
	time.Sleep(200 * time.Millisecond)
}
