package models

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the sortable wire format for created timestamps
const TimestampLayout = "2006-01-02 15:04:05.000"

// NewID generates a unique entity ID (reports, transactions, report actions)
func NewID() string {
	return uuid.NewString()
}

var (
	stampMu   sync.Mutex
	lastStamp time.Time
)

// Now returns the current time as a sortable timestamp string. The clock is
// truncated to the output's millisecond granularity before the monotonic
// bump, so two calls inside the same millisecond still format to distinct,
// strictly increasing stamps.
func Now() string {
	stampMu.Lock()
	defer stampMu.Unlock()
	t := time.Now().UTC().Truncate(time.Millisecond)
	for !t.After(lastStamp) {
		t = t.Add(time.Millisecond)
	}
	lastStamp = t
	return t.Format(TimestampLayout)
}

// ErrorKey returns a unique microsecond-timestamp key for an ErrorMap entry.
// Truncated and bumped at microsecond granularity so keys never collide.
func ErrorKey() string {
	stampMu.Lock()
	defer stampMu.Unlock()
	t := time.Now().UTC().Truncate(time.Microsecond)
	for !t.After(lastStamp) {
		t = t.Add(time.Microsecond)
	}
	lastStamp = t
	return strconv.FormatInt(t.UnixMicro(), 10)
}
