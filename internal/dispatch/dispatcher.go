package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/oleg/shardkv/internal/metrics"
	"github.com/oleg/shardkv/internal/tabledir"
	"github.com/oleg/shardkv/internal/topology"
	"github.com/oleg/shardkv/internal/walstore"
)

// Dispatcher is the coordinator's single entry point for every
// client-facing operation: it resolves partition keys against the
// topology registry and forwards to the resulting shard endpoints. It
// holds no record data of its own.
type Dispatcher struct {
	topology *topology.Registry
	tables   *tabledir.Registry
}

// New builds a Dispatcher over the given topology and table registries.
func New(topo *topology.Registry, tables *tabledir.Registry) *Dispatcher {
	return &Dispatcher{topology: topo, tables: tables}
}

// WriteResult is returned by Put and Delete.
type WriteResult struct {
	ShardID string
	Offset  uint64
}

// ReadResult is returned by Get and QuorumGet.
type ReadResult struct {
	ShardID    string
	Value      json.RawMessage
	Version    uint64
	QuorumMet  bool
}

func storageKeyOrErr(partitionKey, sortKey string) (string, error) {
	if err := walstore.ValidateKeyParts(partitionKey, sortKey); err != nil {
		return "", err
	}
	return walstore.StorageKey(partitionKey, sortKey), nil
}

// Put writes a record through the table's owning shard group's leader.
func (d *Dispatcher) Put(ctx context.Context, table, partitionKey, sortKey string, value json.RawMessage) (WriteResult, error) {
	start := time.Now()
	defer func() { metrics.DispatchDuration.WithLabelValues("put").Observe(time.Since(start).Seconds()) }()

	if !d.tables.Exists(table) {
		return WriteResult{}, ErrTableUnknown
	}

	storageKey, err := storageKeyOrErr(partitionKey, sortKey)
	if err != nil {
		return WriteResult{}, err
	}

	shardID, leader, _, err := d.topology.Resolve(partitionKey)
	if err != nil {
		if errors.Is(err, topology.ErrNoShardsAvailable) {
			return WriteResult{}, ErrNoShardsAvailable
		}
		return WriteResult{}, err
	}
	if leader == "" {
		return WriteResult{}, ErrNoLeader
	}

	offset, err := putToLeader(ctx, leader, storageKey, value)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{ShardID: shardID, Offset: offset}, nil
}

// Delete removes a record through the owning shard group's leader. It
// does not consult the table registry — only writes that create a
// record go through that check.
func (d *Dispatcher) Delete(ctx context.Context, partitionKey, sortKey string) (WriteResult, error) {
	start := time.Now()
	defer func() { metrics.DispatchDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds()) }()

	storageKey, err := storageKeyOrErr(partitionKey, sortKey)
	if err != nil {
		return WriteResult{}, err
	}

	shardID, leader, _, err := d.topology.Resolve(partitionKey)
	if err != nil {
		if errors.Is(err, topology.ErrNoShardsAvailable) {
			return WriteResult{}, ErrNoShardsAvailable
		}
		return WriteResult{}, err
	}
	if leader == "" {
		return WriteResult{}, ErrNoLeader
	}

	offset, err := deleteOnLeader(ctx, leader, storageKey)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{ShardID: shardID, Offset: offset}, nil
}

// Get performs a single-replica read: a uniformly random replica is
// tried, and on transport failure one freshly-sampled retry is allowed.
// A well-formed 404 is surfaced immediately, without retry.
func (d *Dispatcher) Get(ctx context.Context, partitionKey, sortKey string) (ReadResult, error) {
	start := time.Now()
	defer func() { metrics.DispatchDuration.WithLabelValues("get").Observe(time.Since(start).Seconds()) }()

	storageKey, err := storageKeyOrErr(partitionKey, sortKey)
	if err != nil {
		return ReadResult{}, err
	}

	shardID, _, replicas, err := d.topology.Resolve(partitionKey)
	if err != nil {
		if errors.Is(err, topology.ErrNoShardsAvailable) {
			return ReadResult{}, ErrNoShardsAvailable
		}
		return ReadResult{}, err
	}
	if len(replicas) == 0 {
		return ReadResult{}, ErrNoReplicas
	}

	value, version, err := getFromReplica(ctx, pickRandom(replicas), storageKey)
	if err == nil {
		return ReadResult{ShardID: shardID, Value: value, Version: version}, nil
	}
	if errors.Is(err, ErrNotFound) {
		return ReadResult{}, ErrNotFound
	}

	// Exactly one retry, resampled independently — it may land on the
	// same replica again.
	value, version, err = getFromReplica(ctx, pickRandom(replicas), storageKey)
	if err == nil {
		return ReadResult{ShardID: shardID, Value: value, Version: version}, nil
	}
	if errors.Is(err, ErrNotFound) {
		return ReadResult{}, ErrNotFound
	}
	return ReadResult{}, ErrUpstreamFailure
}

// Head mirrors Get's replica-selection and retry policy but only
// reports presence.
func (d *Dispatcher) Head(ctx context.Context, partitionKey, sortKey string) (shardID string, found bool, err error) {
	storageKey, err := storageKeyOrErr(partitionKey, sortKey)
	if err != nil {
		return "", false, err
	}

	shardID, _, replicas, err := d.topology.Resolve(partitionKey)
	if err != nil {
		if errors.Is(err, topology.ErrNoShardsAvailable) {
			return "", false, ErrNoShardsAvailable
		}
		return "", false, err
	}
	if len(replicas) == 0 {
		return "", false, ErrNoReplicas
	}

	found, err = headFromReplica(ctx, pickRandom(replicas), storageKey)
	if err == nil {
		return shardID, found, nil
	}
	if errors.Is(err, ErrNotFound) {
		return "", false, ErrNotFound
	}

	found, err = headFromReplica(ctx, pickRandom(replicas), storageKey)
	if err == nil {
		return shardID, found, nil
	}
	if errors.Is(err, ErrNotFound) {
		return "", false, ErrNotFound
	}
	return "", false, ErrUpstreamFailure
}

type quorumResponse struct {
	replica string
	value   json.RawMessage
	version uint64
	ok      bool
}

// QuorumGet consults R distinct replicas concurrently and resolves
// conflicts by highest version (last-writer-wins), preferring the
// first-in-sample-order replica on ties for deterministic tests.
func (d *Dispatcher) QuorumGet(ctx context.Context, partitionKey, sortKey string, r int) (ReadResult, error) {
	start := time.Now()
	defer func() { metrics.DispatchDuration.WithLabelValues("quorum_get").Observe(time.Since(start).Seconds()) }()

	storageKey, err := storageKeyOrErr(partitionKey, sortKey)
	if err != nil {
		return ReadResult{}, err
	}

	shardID, _, replicas, err := d.topology.Resolve(partitionKey)
	if err != nil {
		if errors.Is(err, topology.ErrNoShardsAvailable) {
			return ReadResult{}, ErrNoShardsAvailable
		}
		return ReadResult{}, err
	}
	if len(replicas) < r {
		metrics.QuorumReadsTotal.WithLabelValues("insufficient_replicas").Inc()
		return ReadResult{}, ErrInsufficientReplicas
	}

	sample := sampleDistinct(replicas, r)

	results := make(chan quorumResponse, len(sample))
	for _, replica := range sample {
		go func(replica string) {
			value, version, err := getFromReplica(ctx, replica, storageKey)
			results <- quorumResponse{replica: replica, value: value, version: version, ok: err == nil}
		}(replica)
	}

	responses := make([]quorumResponse, 0, len(sample))
	for range sample {
		responses = append(responses, <-results)
	}

	// Preserve sample order for deterministic tie-breaking regardless of
	// goroutine completion order.
	order := make(map[string]int, len(sample))
	for i, replica := range sample {
		order[replica] = i
	}
	sort.Slice(responses, func(i, j int) bool { return order[responses[i].replica] < order[responses[j].replica] })

	var winner *quorumResponse
	for i := range responses {
		resp := &responses[i]
		if !resp.ok {
			continue
		}
		if winner == nil || resp.version > winner.version {
			winner = resp
		}
	}

	if winner == nil {
		metrics.QuorumReadsTotal.WithLabelValues("quorum_unavailable").Inc()
		return ReadResult{}, ErrQuorumUnavailable
	}

	metrics.QuorumReadsTotal.WithLabelValues("quorum_met").Inc()
	return ReadResult{ShardID: shardID, Value: winner.value, Version: winner.version, QuorumMet: true}, nil
}

func pickRandom(items []string) string {
	return items[rand.Intn(len(items))]
}

// sampleDistinct returns n distinct elements of items in random order,
// without replacement. Callers have already checked len(items) >= n.
func sampleDistinct(items []string, n int) []string {
	shuffled := append([]string(nil), items...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:n]
}
