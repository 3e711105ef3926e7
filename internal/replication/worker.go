// Package replication runs the follower-only background loop that
// tails a leader's WAL: pull, apply, repeat. Followers are passive —
// they never push to, or accept writes from, anything else.
package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oleg/shardkv/internal/logging"
	"github.com/oleg/shardkv/internal/metrics"
	"github.com/oleg/shardkv/internal/walstore"
)

// Worker pulls read_logs_since batches from a fixed leader endpoint and
// applies them to a local Store, forever, until its context is
// cancelled. It never backs off: a failed tick logs and the next tick
// retries from the current watermark.
type Worker struct {
	store      *walstore.Store
	leaderURL  string
	tick       time.Duration
	httpClient *http.Client
}

// NewWorker builds a replication Worker. tick defaults to one second
// when zero.
func NewWorker(store *walstore.Store, leaderURL string, tick time.Duration) *Worker {
	if tick <= 0 {
		tick = time.Second
	}
	return &Worker{
		store:     store,
		leaderURL: leaderURL,
		tick:      tick,
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Run drives the Idle -> Pulling -> Applying -> Idle state machine on a
// ticker until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log := logging.WithComponent("replication").With().Str("shard_id", w.store.ShardID()).Logger()
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.pullOnce(ctx); err != nil {
				log.Warn().Err(err).Msg("replication tick failed, retrying next tick")
			}
		}
	}
}

// pullOnce performs one Pulling -> Applying step.
func (w *Worker) pullOnce(ctx context.Context) error {
	watermark := w.store.CurrentOffset()

	entries, leaderOffset, err := w.readLogsSince(ctx, watermark)
	if err != nil {
		return fmt.Errorf("pull from leader: %w", err)
	}

	if len(entries) > 0 {
		if err := w.store.ApplyBatch(entries); err != nil {
			return fmt.Errorf("apply batch: %w", err)
		}
	}

	metrics.ReplicationLag.Set(lag(leaderOffset, watermark))
	return nil
}

func lag(leaderOffset, localOffset uint64) float64 {
	if leaderOffset <= localOffset {
		return 0
	}
	return float64(leaderOffset - localOffset)
}

// readLogsSince calls the leader's GET /replication/log?start_offset=N
// and also infers the leader's current offset from the last entry
// returned (or from start when the batch is empty, i.e. the
// follower has caught up as far as this tick can tell).
func (w *Worker) readLogsSince(ctx context.Context, start uint64) ([]walstore.Entry, uint64, error) {
	url := fmt.Sprintf("%s/replication/log?start_offset=%d", w.leaderURL, start)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("leader returned HTTP %d", resp.StatusCode)
	}

	var entries []walstore.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, 0, err
	}

	leaderOffset := start
	if len(entries) > 0 {
		leaderOffset = entries[len(entries)-1].Offset
	}
	return entries, leaderOffset, nil
}
