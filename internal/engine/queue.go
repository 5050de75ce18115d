package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/halden/outlay/internal/store"
)

const queueSchema = `
CREATE TABLE IF NOT EXISTS queue (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	command_id    TEXT NOT NULL UNIQUE,
	command       TEXT NOT NULL,
	parameters    TEXT NOT NULL,
	optimistic    TEXT NOT NULL,
	success       TEXT NOT NULL,
	failure       TEXT NOT NULL,
	error_targets TEXT NOT NULL,
	attempts      INTEGER NOT NULL DEFAULT 0,
	enqueued_at   DATETIME NOT NULL,
	last_error    TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS queue_state (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	paused INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO queue_state (id, paused) VALUES (1, 0);
`

// Options tunes queue retry behavior
type Options struct {
	MaxAttempts int
	Backoff     Backoff
}

// DefaultOptions returns the production retry settings
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 8,
		Backoff:     Backoff{Base: time.Second, Max: time.Minute},
	}
}

// Queue is the sequential mutation dispatcher: a durable FIFO of pending
// commands. Enqueue applies optimistic patches synchronously; Drain sends
// entries to the executor strictly in order, one at a time, and reconciles
// each result before touching the next entry.
type Queue struct {
	store       *store.Store
	conn        *sql.DB
	exec        Executor
	maxAttempts int
	backoff     Backoff

	// guarded by the store's write lock plus this process's dispatch loop:
	// at most one entry is in flight at a time.
	inflightSeq int64

	wake chan struct{}
}

// Open creates the queue tables if needed and returns a queue bound to the
// store's database connection.
func Open(s *store.Store, exec Executor, opts Options) (*Queue, error) {
	if opts.MaxAttempts <= 0 {
		opts = DefaultOptions()
	}
	conn := s.Conn()
	if _, err := conn.Exec(queueSchema); err != nil {
		return nil, fmt.Errorf("init queue schema: %w", err)
	}
	return &Queue{
		store:       s,
		conn:        conn,
		exec:        exec,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		wake:        make(chan struct{}, 1),
	}, nil
}

// Enqueue validates the update set, applies its optimistic patches to the
// store synchronously, and appends the entry to the persisted queue. The
// optimistic state is visible to all reads before Enqueue returns.
func (q *Queue) Enqueue(us *UpdateSet) (*Entry, error) {
	if us.IsEmpty() {
		return nil, fmt.Errorf("refusing to enqueue empty update set")
	}
	if us.Command == "" {
		return nil, fmt.Errorf("update set has no command")
	}
	if us.CommandID == "" {
		return nil, fmt.Errorf("update set has no command ID")
	}
	if err := ValidateParameters(us.Parameters); err != nil {
		return nil, err
	}

	entry := &Entry{
		CommandID:    us.CommandID,
		Command:      us.Command,
		Parameters:   us.Parameters,
		Optimistic:   us.Optimistic,
		Success:      us.Success,
		Failure:      us.Failure,
		ErrorTargets: us.ErrorTargets,
		EnqueuedAt:   time.Now().UTC(),
		Status:       StatusPending,
	}

	err := q.store.WithWriteLock(func() error {
		if err := q.store.Apply(us.Optimistic); err != nil {
			return fmt.Errorf("apply optimistic patches: %w", err)
		}
		seq, err := q.insert(entry)
		if err != nil {
			return err
		}
		entry.Seq = seq
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Nudge a running dispatcher, if any.
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return entry, nil
}

func (q *Queue) insert(e *Entry) (int64, error) {
	params, err := json.Marshal(e.Parameters)
	if err != nil {
		return 0, fmt.Errorf("encode parameters: %w", err)
	}
	optimistic, _ := json.Marshal(e.Optimistic)
	success, _ := json.Marshal(e.Success)
	failure, _ := json.Marshal(e.Failure)
	targets, _ := json.Marshal(e.ErrorTargets)

	res, err := q.conn.Exec(`
		INSERT INTO queue (command_id, command, parameters, optimistic, success, failure, error_targets, attempts, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		e.CommandID, e.Command, string(params), string(optimistic), string(success),
		string(failure), string(targets), e.EnqueuedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("persist queue entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("queue entry seq: %w", err)
	}
	return seq, nil
}

// head returns the oldest pending entry, or nil when the queue is empty
func (q *Queue) head() (*Entry, error) {
	row := q.conn.QueryRow(`
		SELECT seq, command_id, command, parameters, optimistic, success, failure, error_targets, attempts, enqueued_at, last_error
		FROM queue ORDER BY seq ASC LIMIT 1`)
	return scanEntry(row)
}

func (q *Queue) entryByCommandID(commandID string) (*Entry, error) {
	row := q.conn.QueryRow(`
		SELECT seq, command_id, command, parameters, optimistic, success, failure, error_targets, attempts, enqueued_at, last_error
		FROM queue WHERE command_id = ?`, commandID)
	return scanEntry(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var params, optimistic, success, failure, targets, enqueuedAt string
	err := row.Scan(&e.Seq, &e.CommandID, &e.Command, &params, &optimistic,
		&success, &failure, &targets, &e.Attempts, &enqueuedAt, &e.LastError)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan queue entry: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &e.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters seq=%d: %w", e.Seq, err)
	}
	json.Unmarshal([]byte(optimistic), &e.Optimistic)
	json.Unmarshal([]byte(success), &e.Success)
	json.Unmarshal([]byte(failure), &e.Failure)
	json.Unmarshal([]byte(targets), &e.ErrorTargets)
	if t, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
		e.EnqueuedAt = t
	}
	e.Status = StatusPending
	return &e, nil
}

// Entries returns all pending entries in dispatch order
func (q *Queue) Entries() ([]*Entry, error) {
	rows, err := q.conn.Query(`
		SELECT seq, command_id, command, parameters, optimistic, success, failure, error_targets, attempts, enqueued_at, last_error
		FROM queue ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if e.Seq == q.inflightSeq {
			e.Status = StatusInFlight
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Len returns the number of pending entries
func (q *Queue) Len() (int, error) {
	var n int
	err := q.conn.QueryRow(`SELECT COUNT(*) FROM queue`).Scan(&n)
	return n, err
}

func (q *Queue) remove(seq int64) error {
	if _, err := q.conn.Exec(`DELETE FROM queue WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("remove queue entry %d: %w", seq, err)
	}
	return nil
}

func (q *Queue) recordAttempt(seq int64, attempts int, lastError string) error {
	if _, err := q.conn.Exec(
		`UPDATE queue SET attempts = ?, last_error = ? WHERE seq = ?`,
		attempts, lastError, seq,
	); err != nil {
		return fmt.Errorf("record attempt seq=%d: %w", seq, err)
	}
	return nil
}

// Pause stops dispatch of new in-flight work. Optimistic patches from new
// enqueues still apply immediately. The flag is persisted so an offline
// pause survives restart.
func (q *Queue) Pause() error {
	_, err := q.conn.Exec(`UPDATE queue_state SET paused = 1 WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("pause queue: %w", err)
	}
	return nil
}

// Resume re-enables dispatch and wakes the dispatcher
func (q *Queue) Resume() error {
	if _, err := q.conn.Exec(`UPDATE queue_state SET paused = 0 WHERE id = 1`); err != nil {
		return fmt.Errorf("resume queue: %w", err)
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Paused reports whether dispatch is paused
func (q *Queue) Paused() (bool, error) {
	var paused int
	if err := q.conn.QueryRow(`SELECT paused FROM queue_state WHERE id = 1`).Scan(&paused); err != nil {
		return false, fmt.Errorf("read queue state: %w", err)
	}
	return paused != 0, nil
}

// Cancel aborts a pending entry without contacting the network: its failure
// patches apply immediately and the entry is removed. Entries that are in
// flight cannot be cancelled.
func (q *Queue) Cancel(commandID string) error {
	return q.store.WithWriteLock(func() error {
		entry, err := q.entryByCommandID(commandID)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, commandID)
		}
		if entry.Seq == q.inflightSeq {
			return fmt.Errorf("%w: %s", ErrInFlight, commandID)
		}
		if err := q.store.Apply(entry.Failure); err != nil {
			return fmt.Errorf("apply failure patches: %w", err)
		}
		return q.remove(entry.Seq)
	})
}
