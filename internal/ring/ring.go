// Package ring implements the consistent-hash ring the coordinator uses
// to assign a partition key to a shard group. Nodes on the ring are
// shard_id strings, not endpoints — the endpoint lookup is a separate
// step performed by the topology registry once the ring has named a
// shard group.
package ring

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// defaultVnodes is the number of virtual nodes placed per shard group.
// More virtual nodes means a more even key distribution at the cost of
// a larger ring map.
const defaultVnodes = 150

// Ring is a consistent-hash ring keyed by shard_id. Safe for concurrent
// use: AddNode is the only mutator and is called rarely (shard
// registration), while Lookup is called on every dispatch.
type Ring struct {
	mu     sync.RWMutex
	vnodes int
	points map[uint32]string
	sorted []uint32
	seen   map[string]bool
}

// New creates an empty ring. vnodes <= 0 selects the default.
func New(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = defaultVnodes
	}
	return &Ring{
		vnodes: vnodes,
		points: make(map[uint32]string),
		seen:   make(map[string]bool),
	}
}

// AddNode places shardID's virtual nodes on the ring. A no-op if shardID
// is already present — the ring only grows, mutated solely by
// first-ever registration of a shard_id.
func (r *Ring) AddNode(shardID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen[shardID] {
		return
	}
	r.seen[shardID] = true

	for i := 0; i < r.vnodes; i++ {
		pos := r.hash(fmt.Sprintf("%s#%d", shardID, i))
		r.points[pos] = shardID
	}
	r.rebuild()
}

// Lookup returns the shard group responsible for key, or "" if the ring
// is empty.
func (r *Ring) Lookup(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sorted) == 0 {
		return ""
	}
	pos := r.hash(key)
	idx := r.search(pos)
	return r.points[r.sorted[idx]]
}

// NodeCount returns the number of distinct shard groups on the ring.
func (r *Ring) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seen)
}

func (r *Ring) hash(s string) uint32 {
	h := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint32(h[:4])
}

// rebuild recomputes the sorted slice of ring positions. Must be called
// with the write lock held.
func (r *Ring) rebuild() {
	r.sorted = make([]uint32, 0, len(r.points))
	for pos := range r.points {
		r.sorted = append(r.sorted, pos)
	}
	slices.Sort(r.sorted)
}

// search finds the index of the first ring position >= pos, wrapping
// around to 0 when pos is past every node. Must be called with a read
// lock held.
func (r *Ring) search(pos uint32) int {
	idx := sort.Search(len(r.sorted), func(i int) bool {
		return r.sorted[i] >= pos
	})
	if idx == len(r.sorted) {
		idx = 0
	}
	return idx
}
