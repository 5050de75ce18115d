package store

import "strings"

// SubscribeFn receives the key that changed and a deep copy of its new
// value (nil when the key was removed).
type SubscribeFn func(key string, value any)

type subscriber struct {
	id     int
	target string // exact key, or collection prefix ending in "_"
	fn     SubscribeFn
}

func (sub *subscriber) matches(key string) bool {
	if strings.HasSuffix(sub.target, "_") {
		return strings.HasPrefix(key, sub.target)
	}
	return key == sub.target
}

// Subscription is an owned handle on a store subscription. Callers must
// Close it when done; callbacks stop firing after Close returns.
type Subscription struct {
	id int
	s  *Store
}

// Close removes the subscription
func (sub *Subscription) Close() {
	sub.s.mu.Lock()
	delete(sub.s.subs, sub.id)
	sub.s.mu.Unlock()
}

// Subscribe registers fn against a single key or a collection prefix
// (targets ending in "_" match the whole collection). fn fires once per
// matching key synchronously with the current value, then again on every
// subsequent change, before the mutating call returns.
func (s *Store) Subscribe(keyOrPrefix string, fn SubscribeFn) *Subscription {
	s.mu.Lock()
	s.nextSub++
	sub := &subscriber{id: s.nextSub, target: keyOrPrefix, fn: fn}
	s.subs[sub.id] = sub

	// Snapshot current matches for the initial delivery.
	type initial struct {
		key   string
		value any
	}
	var current []initial
	for k, v := range s.mem {
		if sub.matches(k) {
			current = append(current, initial{key: k, value: deepCopy(v)})
		}
	}
	s.mu.Unlock()

	for _, c := range current {
		fn(c.key, c.value)
	}
	return &Subscription{id: sub.id, s: s}
}

// matchingSubs returns, per changed key, the subscribers to notify.
// Caller must hold s.mu.
func (s *Store) matchingSubs(keys []string) map[string][]*subscriber {
	out := make(map[string][]*subscriber, len(keys))
	for _, key := range keys {
		for _, sub := range s.subs {
			if sub.matches(key) {
				out[key] = append(out[key], sub)
			}
		}
	}
	return out
}
