// Command worker runs the capture scheduler: it polls targets whose
// check interval has elapsed, renders and diffs them, and fans the
// resulting change events out to the alert writer and (when
// configured) the notification dispatcher.
//
// Usage:
//
//	worker serve    # run the scheduler loop until terminated
//	worker once     # capture every monitoring-enabled target once, then exit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/RamfiAogusto/competitor-tracker/internal/appconfig"
	"github.com/RamfiAogusto/competitor-tracker/internal/core"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: worker <serve|once>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve()
	case "once":
		runOnce()
	default:
		fmt.Printf("unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func newCore(ctx context.Context) *core.Core {
	cfg, err := appconfig.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	c, err := core.New(ctx, cfg, "pkg/storage/schema.sql")
	if err != nil {
		slog.Error("failed to initialize core", "error", err)
		os.Exit(1)
	}
	return c
}

func serve() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newCore(ctx)
	defer c.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	slog.Info("worker starting", "workers", c.Config.Worker.Count)
	c.Run(ctx)
}

// runOnce exists for manual/cron-driven invocation: it forces a
// capture of every monitoring-enabled target once, whether or not its
// check interval has elapsed, then exits, rather than blocking on the
// ticker loop Run otherwise drives.
func runOnce() {
	ctx := context.Background()
	c := newCore(ctx)
	defer c.Close()

	targets, err := c.TargetStore.ActiveTargets(ctx)
	if err != nil {
		slog.Error("list active targets", "error", err)
		os.Exit(1)
	}

	for _, target := range targets {
		if _, err := c.Scheduler.TriggerNow(ctx, target); err != nil {
			slog.Error("capture failed", "target", target.ID, "url", target.URL, "error", err)
			continue
		}
	}
	slog.Info("single pass complete", "targets", len(targets))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
