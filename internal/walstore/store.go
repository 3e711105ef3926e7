// Package walstore is the shard storage engine: an append-only,
// fsynced write-ahead log plus the in-memory map it is the source of
// truth for. It is deliberately small and does not know about HTTP,
// topology or roles beyond gating writes to leaders — those concerns
// live in internal/shardapi and internal/replication.
package walstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oleg/shardkv/internal/metrics"
	"github.com/oleg/shardkv/internal/topology"
)

// record is the materialized state for one storage key: its current
// value and the offset of the PUT that produced it (its version).
type record struct {
	Value   json.RawMessage
	Version uint64
}

// Store owns one shard's WAL file and in-memory map. The in-memory map
// is a pure function of the WAL prefix replayed so far; Store never
// accepts writes without first appending to the log.
type Store struct {
	mu            sync.RWMutex
	data          map[string]record
	wal           *wal
	currentOffset uint64
	dataDir       string

	shardID string
	role    topology.Role
}

// Open creates or opens a Store rooted at dataDir, replaying its WAL
// before returning. Called once at shard startup, before serving any
// request.
func Open(dataDir, shardID string, role topology.Role) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	w, err := openWAL(filepath.Join(dataDir, "wal.log"))
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	s := &Store{
		data:    make(map[string]record),
		wal:     w,
		dataDir: dataDir,
		shardID: shardID,
		role:    role,
	}
	if err := s.recover(); err != nil {
		return nil, fmt.Errorf("recover wal: %w", err)
	}
	return s, nil
}

// recover seeds the in-memory map from the newest compaction snapshot,
// if one exists, then replays every well-formed WAL entry past that
// snapshot's offset in file order. A shard that has never been
// compacted has no snapshot, so this degrades to replaying the WAL from
// its very first entry. Malformed or truncated trailing content was
// already filtered out by wal.readAll.
func (s *Store) recover() error {
	snap, ok, err := loadSnapshot(s.dataDir)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		for _, r := range snap.Records {
			s.data[r.Key] = record{Value: r.Value, Version: r.Version}
		}
		s.currentOffset = snap.Offset
	}

	entries, err := s.wal.readAll()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Offset <= s.currentOffset {
			continue
		}
		s.applyLocked(e)
		s.currentOffset = e.Offset
	}
	metrics.WALOffset.Set(float64(s.currentOffset))
	metrics.KeysTotal.Set(float64(len(s.data)))
	return nil
}

// Append assigns the next offset, durably persists the entry, applies
// it in memory, and returns it. Leader-only: callers (internal/shardapi)
// are responsible for rejecting writes on a follower before reaching
// here. If the WAL write fails, the offset is rolled back so the next
// attempt can reuse it — offsets are only ever burned by entries that
// actually made it to disk.
func (s *Store) Append(key string, value json.RawMessage, op Op) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentOffset++
	entry := Entry{
		Offset: s.currentOffset,
		Op:     op,
		Key:    key,
		Value:  value,
		Ts:     float64(time.Now().UnixNano()) / 1e9,
	}

	if err := s.wal.append(entry); err != nil {
		s.currentOffset--
		return Entry{}, fmt.Errorf("wal append: %w", err)
	}

	s.applyLocked(entry)
	metrics.WALOffset.Set(float64(s.currentOffset))
	metrics.WALAppendsTotal.WithLabelValues(string(op)).Inc()
	metrics.KeysTotal.Set(float64(len(s.data)))
	return entry, nil
}

// applyLocked mutates the in-memory map for entry. Caller must hold mu.
func (s *Store) applyLocked(e Entry) {
	switch e.Op {
	case OpPut:
		s.data[e.Key] = record{Value: e.Value, Version: e.Offset}
	case OpDelete:
		delete(s.data, e.Key)
	}
}

// Get returns the current value and version for key, or ok=false if
// absent.
func (s *Store) Get(key string) (value json.RawMessage, version uint64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, found := s.data[key]
	if !found {
		return nil, 0, false
	}
	return r.Value, r.Version, true
}

// Has reports whether key is currently present, for HEAD requests.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// ReadLogsSince returns every entry with offset > start, in ascending
// order. This backs the leader's replication endpoint; it tolerates
// concurrent appends because the underlying wal.readAll parses
// newline-terminated lines under the WAL's own lock, so a reader never
// observes a partial entry.
func (s *Store) ReadLogsSince(start uint64) ([]Entry, error) {
	entries, err := s.wal.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Offset > start {
			out = append(out, e)
		}
	}
	return out, nil
}

// ApplyBatch is the follower-only counterpart to Append: for each entry
// in ascending offset order, it skips anything already applied, then
// appends the entry to the local WAL and applies it in memory,
// preserving log compatibility with the leader and making re-application
// idempotent.
func (s *Store) ApplyBatch(entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range sorted {
		if e.Offset <= s.currentOffset {
			continue
		}
		if err := s.wal.append(e); err != nil {
			return fmt.Errorf("wal append: %w", err)
		}
		s.applyLocked(e)
		s.currentOffset = e.Offset
		metrics.WALAppendsTotal.WithLabelValues(string(e.Op)).Inc()
	}
	metrics.WALOffset.Set(float64(s.currentOffset))
	metrics.KeysTotal.Set(float64(len(s.data)))
	return nil
}

// CurrentOffset returns the shard's high-water mark.
func (s *Store) CurrentOffset() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentOffset
}

// KeyCount returns the number of live keys resident in memory.
func (s *Store) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns every live storage key, for the debug dump endpoint.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out
}

// ShardID returns the shard_id this store belongs to.
func (s *Store) ShardID() string { return s.shardID }

// Role returns this store's configured role. Leaders are configured,
// not elected.
func (s *Store) Role() topology.Role { return s.role }

// IsLeader reports whether this store accepts writes.
func (s *Store) IsLeader() bool { return s.role == topology.RoleLeader }

// Close releases the underlying WAL file handle.
func (s *Store) Close() error {
	return s.wal.close()
}
