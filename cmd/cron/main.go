package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/internal/cli"
	"pricesync/internal/config"
	"pricesync/internal/scheduler"
	"pricesync/internal/svc"
)

const shutdownTimeout = 30 * time.Second // grace period for an in-flight run

var configFile = flag.String("f", "etc/pricesync.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	logx.MustSetup(cfg.Log)
	defer logx.Close()
	cli.LogConfigSummary(cfg)

	if !cfg.Schedule.Enabled {
		logx.Info("[main] schedule disabled, nothing to do")
		return
	}

	svcCtx := svc.MustNewServiceContext(*cfg)
	logx.Infof("[main] provider chain: %v", svcCtx.ProviderNames())

	sched, err := scheduler.New(svcCtx.Job, cfg.ScheduleSpec(), time.UTC)
	logx.Must(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if cfg.Schedule.RunOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Trigger(ctx)
		}()
	}

	sched.Start()
	logx.Infof("[main] scheduler started spec=%q next=%s", cfg.ScheduleSpec(), sched.Next().Format(time.RFC3339))

	<-ctx.Done()
	logx.Info("[main] shutdown signal received, stopping scheduler...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	if err := sched.Stop(shutdownCtx); err != nil {
		logx.Errorf("[main] scheduler stop: %v", err)
	}
	select {
	case <-done:
		logx.Info("[main] all runs stopped cleanly")
	case <-shutdownCtx.Done():
		logx.Info("[main] shutdown timeout exceeded, forcing exit")
	}
}
