// Package policycache keeps a typed, always-current view of every policy
// in the store. It exists so hot paths (approver resolution, workflow
// validation) read decoded structs instead of re-parsing JSON documents on
// every call.
package policycache

import (
	"encoding/json"
	"sync"

	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/store"
)

// Cache is a read model over the policy collection. It subscribes to the
// store on construction and tracks every change until closed.
type Cache struct {
	mu       sync.RWMutex
	policies map[string]models.Policy
	sub      *store.Subscription
}

// New builds a cache and primes it from the store. The initial subscriber
// fire delivers the current state before New returns.
func New(s *store.Store) *Cache {
	c := &Cache{policies: make(map[string]models.Policy)}
	c.sub = s.Subscribe(store.PolicyPrefix, c.onChange)
	return c
}

func (c *Cache) onChange(key string, value any) {
	policyID := store.EntityID(key, store.PolicyPrefix)
	c.mu.Lock()
	defer c.mu.Unlock()
	if value == nil {
		delete(c.policies, policyID)
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	var p models.Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	c.policies[policyID] = p
}

// Get returns the policy and whether it exists
func (c *Cache) Get(policyID string) (models.Policy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.policies[policyID]
	return p, ok
}

// All returns a snapshot of every cached policy
func (c *Cache) All() map[string]models.Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.Policy, len(c.policies))
	for id, p := range c.policies {
		out[id] = p
	}
	return out
}

// Close detaches the cache from the store
func (c *Cache) Close() {
	c.sub.Close()
}
