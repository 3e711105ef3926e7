// Package dispatch is the coordinator's request-dispatch logic: the
// write path (forward to a leader), the single-replica read path
// (random pick, one resampled retry), and the quorum read path (fan out
// to R replicas concurrently, resolve by last-writer-wins). It knows
// nothing about HTTP framing on the inbound side — internal/coordinatorapi
// translates these error kinds to status codes.
package dispatch

import "errors"

// Error kinds the dispatch layer can fail with. internal/coordinatorapi
// maps each to an HTTP status via errors.Is.
var (
	ErrTableUnknown         = errors.New("table unknown")
	ErrNoShardsAvailable    = errors.New("no shards available")
	ErrNoLeader             = errors.New("shard group has no leader")
	ErrNoReplicas           = errors.New("shard group has no replicas")
	ErrInsufficientReplicas = errors.New("fewer replicas available than requested quorum")
	ErrNotFound             = errors.New("key not found")
	ErrUpstreamFailure      = errors.New("upstream shard request failed")
	ErrQuorumUnavailable    = errors.New("no replica in the quorum sample returned a usable response")
)
