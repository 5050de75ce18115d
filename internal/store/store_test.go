package store

import (
	"database/sql"
	"errors"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := OpenConn(conn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := setupStore(t)

	if err := s.Set("report_1", map[string]any{"total": float64(100)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got := s.Get("report_1")
	want := map[string]any{"total": float64(100)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("get: got %v, want %v", got, want)
	}
}

func TestGetReturnsDeepCopy(t *testing.T) {
	s := setupStore(t)
	s.Set("report_1", map[string]any{"total": float64(100)})

	got := s.Get("report_1").(map[string]any)
	got["total"] = float64(999)

	fresh := s.Get("report_1").(map[string]any)
	if fresh["total"] != float64(100) {
		t.Fatalf("store value mutated through Get copy: %v", fresh["total"])
	}
}

func TestSetNilTombstones(t *testing.T) {
	s := setupStore(t)
	s.Set("report_1", map[string]any{"total": float64(100)})

	if err := s.Set("report_1", nil); err != nil {
		t.Fatalf("tombstone: %v", err)
	}
	if got := s.Get("report_1"); got != nil {
		t.Fatalf("get after tombstone: got %v, want nil", got)
	}
}

func TestMergeNilLeafDeletes(t *testing.T) {
	s := setupStore(t)
	s.Set("transaction_1", map[string]any{
		"amount":        float64(100),
		"pendingAction": "add",
	})

	if err := s.Merge("transaction_1", map[string]any{"pendingAction": nil}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := s.Get("transaction_1").(map[string]any)
	if _, ok := got["pendingAction"]; ok {
		t.Fatal("pendingAction should be deleted")
	}
	if got["amount"] != float64(100) {
		t.Fatalf("amount: got %v", got["amount"])
	}
}

func TestPersistenceSurvivesReload(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	s1, err := OpenConn(conn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	s1.Set("report_1", map[string]any{"total": float64(42)})
	s1.Set("report_2", map[string]any{"total": float64(7)})
	s1.Set("report_2", nil)

	// Reload from the same connection; only report_1 should come back.
	s2, err := OpenConn(conn)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if got := s2.Get("report_1").(map[string]any)["total"]; got != float64(42) {
		t.Fatalf("report_1 total: got %v, want 42", got)
	}
	if s2.Get("report_2") != nil {
		t.Fatal("report_2 should not survive its tombstone")
	}
}

func TestGetInto(t *testing.T) {
	s := setupStore(t)
	s.Set("report_1", map[string]any{"reportID": "1", "total": float64(5)})

	var r struct {
		ReportID string `json:"reportID"`
		Total    int64  `json:"total"`
	}
	if err := s.GetInto("report_1", &r); err != nil {
		t.Fatalf("getinto: %v", err)
	}
	if r.ReportID != "1" || r.Total != 5 {
		t.Fatalf("decoded: %+v", r)
	}

	if err := s.GetInto("report_missing", &r); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key: got %v, want ErrNotFound", err)
	}
}

func TestCollection(t *testing.T) {
	s := setupStore(t)
	s.Set("report_1", map[string]any{"a": float64(1)})
	s.Set("report_2", map[string]any{"a": float64(2)})
	s.Set("transaction_1", map[string]any{"a": float64(3)})

	got := s.Collection("report_")
	if len(got) != 2 {
		t.Fatalf("collection size: got %d, want 2", len(got))
	}
	if _, ok := got["transaction_1"]; ok {
		t.Fatal("collection leaked another prefix")
	}
}

func TestSubscribeInitialFireAndChanges(t *testing.T) {
	s := setupStore(t)
	s.Set("report_1", map[string]any{"total": float64(1)})

	var fired []string
	sub := s.Subscribe("report_", func(key string, value any) {
		fired = append(fired, key)
	})
	defer sub.Close()

	if len(fired) != 1 || fired[0] != "report_1" {
		t.Fatalf("initial fire: got %v", fired)
	}

	s.Set("report_2", map[string]any{"total": float64(2)})
	s.Set("transaction_1", map[string]any{"total": float64(3)})

	if len(fired) != 2 || fired[1] != "report_2" {
		t.Fatalf("after changes: got %v", fired)
	}
}

func TestSubscribeDeliversNilOnDelete(t *testing.T) {
	s := setupStore(t)
	s.Set("report_1", map[string]any{"total": float64(1)})

	var lastValue any = "sentinel"
	sub := s.Subscribe("report_1", func(key string, value any) {
		lastValue = value
	})
	defer sub.Close()

	s.Set("report_1", nil)
	if lastValue != nil {
		t.Fatalf("delete notification: got %v, want nil", lastValue)
	}
}

func TestSubscribeCloseStopsDelivery(t *testing.T) {
	s := setupStore(t)

	count := 0
	sub := s.Subscribe("report_", func(key string, value any) { count++ })
	sub.Close()

	s.Set("report_1", map[string]any{"total": float64(1)})
	if count != 0 {
		t.Fatalf("subscriber fired after close: %d", count)
	}
}

func TestApplyIsAtomicInOrder(t *testing.T) {
	s := setupStore(t)
	s.Set("report_1", map[string]any{"total": float64(10)})

	err := s.Apply([]Patch{
		Merge("report_1", map[string]any{"total": float64(20)}),
		Merge("report_1", map[string]any{"statusNum": float64(1)}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	got := s.Get("report_1").(map[string]any)
	if got["total"] != float64(20) || got["statusNum"] != float64(1) {
		t.Fatalf("applied state: %v", got)
	}
}
