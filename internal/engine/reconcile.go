package engine

import (
	"fmt"

	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/store"
)

// confirm applies the entry's success patches and removes it. Success
// patches are idempotent by construction (clear pendingAction, tombstone
// deleted entities), so re-applying after a crash between apply and remove
// is safe.
func (q *Queue) confirm(entry *Entry) error {
	return q.store.WithWriteLock(func() error {
		if err := q.store.Apply(entry.Success); err != nil {
			return fmt.Errorf("apply success patches seq=%d: %w", entry.Seq, err)
		}
		return q.remove(entry.Seq)
	})
}

// reject rolls the optimistic mutation back: failure patches restore the
// pre-mutation values, then a structured error is merged onto each error
// target so the surface layer can show it. The entry is removed; the user
// retries manually or dismisses the error.
func (q *Queue) reject(entry *Entry, message string) error {
	return q.store.WithWriteLock(func() error {
		if err := q.store.Apply(entry.Failure); err != nil {
			return fmt.Errorf("apply failure patches seq=%d: %w", entry.Seq, err)
		}
		if message == "" {
			message = fmt.Sprintf("%s was rejected", entry.Command)
		}
		for _, key := range entry.ErrorTargets {
			// Rollback may have removed the entity (a failed create);
			// there is nothing left to attach the error to.
			if q.store.Get(key) == nil {
				continue
			}
			patch := store.Merge(key, map[string]any{
				"errors": map[string]any{
					models.ErrorKey(): message,
				},
			})
			if err := q.store.Apply([]store.Patch{patch}); err != nil {
				return fmt.Errorf("attach error to %s: %w", key, err)
			}
		}
		return q.remove(entry.Seq)
	})
}
