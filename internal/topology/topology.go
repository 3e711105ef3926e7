// Package topology is the coordinator's view of shard-group membership:
// which shard_ids exist, who their leader and followers are, and the
// consistent-hash ring that maps a partition key to a shard_id.
package topology

import (
	"errors"
	"sync"

	"github.com/oleg/shardkv/internal/ring"
)

// ErrNoShardsAvailable is returned by Resolve when the ring is empty or
// maps a key to a shard_id the registry has never heard of.
var ErrNoShardsAvailable = errors.New("no shards available")

// Role identifies whether a registering shard is the leader or a
// follower of its shard group.
type Role string

const (
	RoleLeader   Role = "leader"
	RoleFollower Role = "follower"
)

// Group is one shard group: an optional leader endpoint and an ordered,
// duplicate-free list of follower endpoints.
type Group struct {
	ShardID   string   `json:"shard_id"`
	Leader    string   `json:"leader,omitempty"`
	Followers []string `json:"followers"`
}

// Replicas returns [leader] ∪ followers with empty slots filtered out,
// leader first — the set a reader may be load-balanced across.
func (g Group) Replicas() []string {
	out := make([]string, 0, len(g.Followers)+1)
	if g.Leader != "" {
		out = append(out, g.Leader)
	}
	out = append(out, g.Followers...)
	return out
}

// Registry is the coordinator's topology map: shard_id -> Group, plus
// the ring used to route a partition key to its shard_id. Safe for
// concurrent use; Register is rare, Resolve is hot.
type Registry struct {
	mu     sync.RWMutex
	ring   *ring.Ring
	groups map[string]*Group
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		ring:   ring.New(0),
		groups: make(map[string]*Group),
	}
}

// Register is idempotent. An unknown shard_id is added to the ring and
// given an empty group first. A leader registration overwrites any
// prior leader address unconditionally — this is how a restarted leader
// on a new address gets adopted. A follower registration appends url
// unless already present. Registrations and resolves may interleave;
// callers always see a consistent snapshot of a single group.
func (r *Registry) Register(shardID, url string, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[shardID]
	if !ok {
		g = &Group{ShardID: shardID, Followers: []string{}}
		r.groups[shardID] = g
		r.ring.AddNode(shardID)
	}

	switch role {
	case RoleLeader:
		g.Leader = url
	case RoleFollower:
		for _, f := range g.Followers {
			if f == url {
				return
			}
		}
		g.Followers = append(g.Followers, url)
	}
}

// Resolve maps partition_key to its shard group and returns the
// shard_id, the current leader (possibly "") and the filtered replica
// set, leader first.
func (r *Registry) Resolve(partitionKey string) (shardID, leader string, replicas []string, err error) {
	shardID = r.ring.Lookup(partitionKey)
	if shardID == "" {
		return "", "", nil, ErrNoShardsAvailable
	}

	r.mu.RLock()
	g, ok := r.groups[shardID]
	if !ok {
		r.mu.RUnlock()
		return "", "", nil, ErrNoShardsAvailable
	}
	// Copy out of the lock so the caller never observes a half-updated
	// group if a concurrent Register runs after we return.
	snapshot := *g
	snapshot.Followers = append([]string(nil), g.Followers...)
	r.mu.RUnlock()

	return shardID, snapshot.Leader, snapshot.Replicas(), nil
}

// All returns a snapshot of every known shard group, for introspection
// (GET /shards).
func (r *Registry) All() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, Group{
			ShardID:   g.ShardID,
			Leader:    g.Leader,
			Followers: append([]string(nil), g.Followers...),
		})
	}
	return out
}
