package builder

import (
	"github.com/halden/outlay/internal/store"
)

// tracker stages optimistic patches and captures their exact inverses as
// it goes. The inverse of each patch is computed against the value the key
// holds at staging time (store state plus previously staged patches), so
// applying the failure list restores the pre-mutation state precisely.
// Failure patches are kept in reverse staging order: applying them front
// to back unwinds the optimistic patches back to front.
type tracker struct {
	s          *store.Store
	shadow     map[string]any
	shadowSet  map[string]bool
	optimistic []store.Patch
	failure    []store.Patch
	success    []store.Patch
}

func newTracker(s *store.Store) *tracker {
	return &tracker{
		s:         s,
		shadow:    make(map[string]any),
		shadowSet: make(map[string]bool),
	}
}

// current returns the value a key holds after all staged patches
func (t *tracker) current(key string) any {
	if t.shadowSet[key] {
		return t.shadow[key]
	}
	return t.s.Get(key)
}

// stage records an optimistic patch and its inverse
func (t *tracker) stage(p store.Patch) {
	prior := t.current(p.Key)
	inv := store.Invert(p, prior)
	t.optimistic = append(t.optimistic, p)
	t.failure = append([]store.Patch{inv}, t.failure...)
	t.shadow[p.Key] = store.ApplyTo(p, prior)
	t.shadowSet[p.Key] = true
}

// onSuccess records a patch to apply when the server confirms the command
func (t *tracker) onSuccess(p store.Patch) {
	t.success = append(t.success, p)
}
