package policycache

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/store"
)

func setupCache(t *testing.T) (*store.Store, *Cache) {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := store.OpenConn(conn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	c := New(s)
	t.Cleanup(c.Close)
	return s, c
}

func TestCachePrimesFromExistingState(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := store.OpenConn(conn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	s.Set(store.PolicyKey("P1"), models.Policy{PolicyID: "P1", Name: "Engineering"})

	c := New(s)
	defer c.Close()

	p, ok := c.Get("P1")
	if !ok {
		t.Fatal("existing policy should be primed on construction")
	}
	if p.Name != "Engineering" {
		t.Fatalf("primed policy: %+v", p)
	}
}

func TestCacheTracksChanges(t *testing.T) {
	s, c := setupCache(t)

	s.Set(store.PolicyKey("P1"), models.Policy{PolicyID: "P1", ApprovalMode: models.ApprovalBasic})
	p, ok := c.Get("P1")
	if !ok || p.ApprovalMode != models.ApprovalBasic {
		t.Fatalf("after set: %+v ok=%v", p, ok)
	}

	s.Set(store.PolicyKey("P1"), models.Policy{PolicyID: "P1", ApprovalMode: models.ApprovalAdvanced})
	p, _ = c.Get("P1")
	if p.ApprovalMode != models.ApprovalAdvanced {
		t.Fatalf("after update: %+v", p)
	}

	s.Set(store.PolicyKey("P1"), nil)
	if _, ok := c.Get("P1"); ok {
		t.Fatal("deleted policy should leave the cache")
	}
}

func TestCacheAllSnapshot(t *testing.T) {
	s, c := setupCache(t)

	s.Set(store.PolicyKey("P1"), models.Policy{PolicyID: "P1"})
	s.Set(store.PolicyKey("P2"), models.Policy{PolicyID: "P2"})

	all := c.All()
	if len(all) != 2 {
		t.Fatalf("all: got %d policies", len(all))
	}
	// Mutating the snapshot must not touch the cache.
	delete(all, "P1")
	if _, ok := c.Get("P1"); !ok {
		t.Fatal("snapshot mutation leaked into the cache")
	}
}

func TestCacheCloseStopsTracking(t *testing.T) {
	s, c := setupCache(t)
	c.Close()

	s.Set(store.PolicyKey("P9"), models.Policy{PolicyID: "P9"})
	if _, ok := c.Get("P9"); ok {
		t.Fatal("closed cache must not receive updates")
	}
}
