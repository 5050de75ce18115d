package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halden/outlay/internal/store"
)

// Sentinel errors for queue operations.
var (
	ErrInFlight      = errors.New("entry is in flight")
	ErrEntryNotFound = errors.New("queue entry not found")
)

// UpdateSet is the output of an optimistic update builder: the wire command
// plus the three patch channels. Failure patches are the exact inverse of
// the optimistic ones, captured read-before-write at build time.
type UpdateSet struct {
	Command      string
	CommandID    string // idempotency key
	Parameters   map[string]any
	Optimistic   []store.Patch
	Success      []store.Patch
	Failure      []store.Patch
	ErrorTargets []string // store keys whose errors map receives terminal failures
}

// IsEmpty reports whether the update set mutates nothing. Builders return
// nil or an empty set for no-op intents; callers short-circuit without
// enqueuing.
func (u *UpdateSet) IsEmpty() bool {
	return u == nil || (len(u.Optimistic) == 0 && len(u.Success) == 0 && len(u.Failure) == 0)
}

// Command is the envelope sent to the command executor
type Command struct {
	Name           string         `json:"command"`
	IdempotencyKey string         `json:"idempotencyKey"`
	Parameters     map[string]any `json:"parameters"`
}

// Response is the executor's decoded reply
type Response struct {
	Code    int    `json:"jsonCode"`
	Message string `json:"message,omitempty"`
}

// Executor sends a command to the remote authority. A non-nil error means
// the command may not have reached the server (network failure, timeout);
// a response with a 4xx/5xx code means the server answered and refused.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Response, error)
}

// EntryStatus is the lifecycle state of a queue entry
type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusInFlight EntryStatus = "in_flight"
)

// Entry is one persisted mutation queue record
type Entry struct {
	Seq          int64
	CommandID    string
	Command      string
	Parameters   map[string]any
	Optimistic   []store.Patch
	Success      []store.Patch
	Failure      []store.Patch
	ErrorTargets []string
	Attempts     int
	EnqueuedAt   time.Time
	LastError    string
	Status       EntryStatus
}

type outcome int

const (
	outcomeSuccess outcome = iota
	// outcomeDuplicate means the server already accepted this command ID;
	// a retried request landed twice. Reconciled as success.
	outcomeDuplicate
	outcomeTransient
	outcomeTerminal
)

// classify sorts an executor result into the retry taxonomy: network
// errors and 5xx are transient, HTTP 409 is a duplicate submission, other
// 4xx are terminal business rejections.
func classify(resp *Response, err error) (outcome, string) {
	if err != nil {
		return outcomeTransient, err.Error()
	}
	switch {
	case resp.Code == 409:
		return outcomeDuplicate, resp.Message
	case resp.Code >= 500:
		return outcomeTransient, fmt.Sprintf("server error %d: %s", resp.Code, resp.Message)
	case resp.Code >= 400:
		return outcomeTerminal, resp.Message
	}
	return outcomeSuccess, ""
}

// ValidationError reports a caller-side mistake caught before enqueue
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Field, e.Reason)
}

// ValidateParameters enforces the command envelope contract: values must be
// scalars or JSON-encoded strings. Complex structures must be serialized by
// the builder; binary values are never permitted.
func ValidateParameters(params map[string]any) error {
	for field, v := range params {
		switch v.(type) {
		case nil, string, bool,
			int, int32, int64, uint, uint32, uint64, float32, float64:
			// ok
		case []byte:
			return &ValidationError{Field: field, Reason: "binary values are not permitted"}
		default:
			return &ValidationError{Field: field, Reason: "complex values must be JSON-encoded strings"}
		}
	}
	return nil
}
