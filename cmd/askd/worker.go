package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"askd/internal/config"
	"askd/internal/contextlib"
	"askd/internal/inference"
	"askd/internal/storage"
	"askd/internal/worker"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Start a worker that answers queued questions (foreground)",
	Long: `Start a worker process. The worker claims pending questions from the
shared queue one at a time, runs them through the inference engine, and
records the answer. Run it alongside "askd serve"; multiple workers may
share one queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func runWorker() error {
	fmt.Fprintf(os.Stderr, "askd worker version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := inference.New(cfg.Engine.BaseURL)
	if !engine.IsRunning(ctx) {
		printWarning("inference engine not reachable at %s; tasks will fail until it comes up", cfg.Engine.BaseURL)
	}
	session := inference.NewSession(engine, cfg.Engine.Model)

	printStep("Loading context library...")
	library, err := contextlib.Load(cfg.Context.Dir)
	if err != nil {
		return fmt.Errorf("loading context library: %w", err)
	}
	printStatus("Context passages", "%d", library.Len())

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	pollInterval, err := time.ParseDuration(cfg.Worker.PollInterval)
	if err != nil {
		return fmt.Errorf("invalid worker poll_interval %q: %w", cfg.Worker.PollInterval, err)
	}
	leaseTTL, err := time.ParseDuration(cfg.Worker.LeaseTTL)
	if err != nil {
		return fmt.Errorf("invalid worker lease_ttl %q: %w", cfg.Worker.LeaseTTL, err)
	}

	w := worker.New(store, session, library, worker.Options{
		PollInterval: pollInterval,
		LeaseTTL:     leaseTTL,
		MaxAttempts:  cfg.Worker.MaxAttempts,
	})

	printStep("Worker started (model %s)", session.Model())
	w.Run(ctx)

	fmt.Fprintln(os.Stderr, "worker stopped")
	return nil
}
