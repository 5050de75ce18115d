package engine

import (
	"context"
	"log/slog"
	"time"
)

// DrainResult summarises one drain pass over the queue
type DrainResult struct {
	Confirmed int
	Failed    int
}

// Drain processes the queue from the current head until it is empty, the
// queue is paused, or the context is cancelled. Entries resolve strictly in
// FIFO order: entry n's success or failure patches are fully applied before
// entry n+1 is dispatched. Business failures are reconciled into the store,
// never returned as errors; only infrastructure faults surface here.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	var result DrainResult
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		paused, err := q.Paused()
		if err != nil {
			return result, err
		}
		if paused {
			return result, nil
		}

		entry, err := q.head()
		if err != nil {
			return result, err
		}
		if entry == nil {
			return result, nil
		}

		confirmed, err := q.processHead(ctx, entry)
		if err != nil {
			return result, err
		}
		if confirmed {
			result.Confirmed++
		} else {
			result.Failed++
		}
	}
}

// processHead sends the head entry to the executor, retrying transient
// failures with backoff, then reconciles the outcome. Returns true when
// the entry was confirmed (success patches applied).
func (q *Queue) processHead(ctx context.Context, entry *Entry) (bool, error) {
	q.inflightSeq = entry.Seq
	defer func() { q.inflightSeq = 0 }()

	cmd := Command{
		Name:           entry.Command,
		IdempotencyKey: entry.CommandID,
		Parameters:     entry.Parameters,
	}

	attempts := entry.Attempts
	for {
		resp, err := q.exec.Execute(ctx, cmd)
		kind, message := classify(resp, err)

		switch kind {
		case outcomeSuccess:
			slog.Debug("command confirmed", "command", entry.Command, "seq", entry.Seq)
			return true, q.confirm(entry)

		case outcomeDuplicate:
			// The server already accepted this command ID on an earlier
			// retry; reconcile as success.
			slog.Debug("duplicate submission treated as success", "command", entry.Command, "seq", entry.Seq)
			return true, q.confirm(entry)

		case outcomeTerminal:
			slog.Warn("command rejected", "command", entry.Command, "seq", entry.Seq, "err", message)
			return false, q.reject(entry, message)

		case outcomeTransient:
			attempts++
			if err := q.recordAttempt(entry.Seq, attempts, message); err != nil {
				return false, err
			}
			if attempts >= q.maxAttempts {
				slog.Warn("retries exhausted", "command", entry.Command, "seq", entry.Seq, "attempts", attempts, "err", message)
				return false, q.reject(entry, message)
			}
			delay := q.backoff.Delay(attempts)
			slog.Debug("transient failure, retrying", "command", entry.Command, "seq", entry.Seq, "attempt", attempts, "delay", delay, "err", message)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
}

// Start runs a background dispatcher that drains the queue whenever an
// entry is enqueued or the queue is resumed, and on a steady interval to
// pick up retries. It returns when ctx is cancelled.
func (q *Queue) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := q.Drain(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("queue drain", "err", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			case <-ticker.C:
			}
		}
	}()
}
