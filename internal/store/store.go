package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const dbFile = ".outlay/ledger.db"

// ErrNotFound is returned by GetInto when the key holds no value
var ErrNotFound = errors.New("key not found")

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is a keyed key→document map with SQLite write-through persistence.
// All mutations are synchronous and go through Set/Merge/Apply; subscribers
// are notified before the mutating call returns.
type Store struct {
	mu      sync.Mutex
	conn    *sql.DB
	baseDir string
	mem     map[string]any
	subs    map[int]*subscriber
	nextSub int
	closed  bool
}

// Open opens an existing store and loads it into memory
func Open(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("store not found: run 'outlay init' first")
	}
	return open(dbPath, baseDir)
}

// Initialize creates the store database and schema
func Initialize(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return open(dbPath, baseDir)
}

func open(dbPath, baseDir string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// WAL allows concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{
		conn:    conn,
		baseDir: baseDir,
		mem:     make(map[string]any),
		subs:    make(map[int]*subscriber),
	}
	if err := s.load(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// OpenConn wraps an already-open database connection. Used by tests with
// in-memory databases.
func OpenConn(conn *sql.DB) (*Store, error) {
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s := &Store{
		conn: conn,
		mem:  make(map[string]any),
		subs: make(map[int]*subscriber),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.conn.Query(`SELECT key, value FROM kv`)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return fmt.Errorf("scan kv row: %w", err)
		}
		var val any
		if err := json.Unmarshal([]byte(raw), &val); err != nil {
			return fmt.Errorf("decode value for %q: %w", key, err)
		}
		s.mem[key] = val
	}
	return rows.Err()
}

// Close releases the store and all subscriptions
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.subs = make(map[int]*subscriber)
	return s.conn.Close()
}

// Conn returns the underlying connection for components that persist
// alongside the store (e.g. the mutation queue).
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// BaseDir returns the directory the store lives under
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Get returns a deep copy of the value at key, or nil if absent
func (s *Store) Get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.mem[key]
	if !ok {
		return nil
	}
	return deepCopy(v)
}

// GetInto decodes the value at key into v. Returns ErrNotFound if absent.
func (s *Store) GetInto(key string, v any) error {
	s.mu.Lock()
	raw, ok := s.mem[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// Collection returns deep copies of all values whose key starts with prefix
func (s *Store) Collection(prefix string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any)
	for k, v := range s.mem {
		if strings.HasPrefix(k, prefix) {
			out[k] = deepCopy(v)
		}
	}
	return out
}

// Keys returns all live keys in sorted order
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.mem))
	for k := range s.mem {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns a deep copy of the entire store, for snapshot comparisons
func (s *Store) All() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.mem))
	for k, v := range s.mem {
		out[k] = deepCopy(v)
	}
	return out
}

// Set replaces the value at key. A nil value removes the key.
func (s *Store) Set(key string, value any) error {
	return s.Apply([]Patch{Set(key, value)})
}

// Merge deep-merges an object patch into the value at key
func (s *Store) Merge(key string, value any) error {
	return s.Apply([]Patch{Merge(key, value)})
}

// Apply applies patches in order, atomically with respect to readers and
// subscribers: all patches are visible before Apply returns.
func (s *Store) Apply(patches []Patch) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("store is closed")
	}

	type change struct {
		key   string
		value any
	}
	changes := make([]change, 0, len(patches))

	for _, p := range patches {
		var next any
		switch p.Method {
		case MethodSet:
			next = normalize(p.Value)
		case MethodMerge:
			next = deepMerge(s.mem[p.Key], normalize(p.Value))
		default:
			s.mu.Unlock()
			return fmt.Errorf("unknown patch method %q for %s", p.Method, p.Key)
		}
		if next == nil {
			delete(s.mem, p.Key)
		} else {
			s.mem[p.Key] = next
		}
		if err := s.persist(p.Key, next); err != nil {
			s.mu.Unlock()
			return err
		}
		changes = append(changes, change{key: p.Key, value: next})
	}

	keys := make([]string, len(changes))
	for i, c := range changes {
		keys[i] = c.key
	}
	subs := s.matchingSubs(keys)
	s.mu.Unlock()

	// Notify outside the lock so callbacks can read the store.
	for _, c := range changes {
		for _, sub := range subs[c.key] {
			sub.fn(c.key, deepCopy(c.value))
		}
	}
	return nil
}

func (s *Store) persist(key string, value any) error {
	if value == nil {
		if _, err := s.conn.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if _, err := s.conn.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(data),
	); err != nil {
		return fmt.Errorf("persist %q: %w", key, err)
	}
	return nil
}
