package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halden/outlay/internal/apiclient"
	"github.com/halden/outlay/internal/builder"
	"github.com/halden/outlay/internal/config"
	"github.com/halden/outlay/internal/engine"
	"github.com/halden/outlay/internal/output"
	"github.com/halden/outlay/internal/store"
)

// env bundles the open store, queue and builder for one command invocation
type env struct {
	cfg   *config.Config
	store *store.Store
	queue *engine.Queue
	build *builder.Builder
}

// openEnv opens the project store and wires the queue against the API
// client. Callers must close() it.
func openEnv() (*env, error) {
	dir := getBaseDir()
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	s, err := store.Open(dir)
	if err != nil {
		return nil, err
	}

	deviceID, err := config.EnsureDeviceID(dir, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	client := apiclient.New(cfg.APIURLOrDefault(), config.APIKey(), deviceID)

	opts := engine.DefaultOptions()
	opts.MaxAttempts = cfg.MaxAttemptsOrDefault()
	q, err := engine.Open(s, client, opts)
	if err != nil {
		s.Close()
		return nil, err
	}

	return &env{
		cfg:   cfg,
		store: s,
		queue: q,
		build: builder.New(s, cfg.AccountID, cfg.Email),
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		slog.Debug("close store", "err", err)
	}
}

// submit enqueues an update set and drains the queue in the foreground
// with a short timeout. A drain failure is not a command failure; the
// entry stays queued for the next invocation.
func (e *env) submit(us *engine.UpdateSet) error {
	if us == nil {
		output.Info("Nothing to do")
		return nil
	}
	if _, err := e.queue.Enqueue(us); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := e.queue.Drain(ctx)
	if err != nil {
		slog.Debug("drain after mutation", "err", err)
	}
	if result.Failed > 0 {
		output.Warning("%d queued change(s) were rejected by the server", result.Failed)
	}

	pending, err := e.queue.Len()
	if err == nil && pending > 0 {
		output.Info(output.Subtle(fmt.Sprintf("%d change(s) queued for sync", pending)))
	}
	return nil
}
