// Package registrar is the shard's background self-announcement loop:
// it repeatedly calls the coordinator's registration endpoint until
// accepted, then re-announces periodically so a coordinator restart
// (which loses its in-memory topology) eventually rediscovers every
// live shard.
package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oleg/shardkv/internal/logging"
	"github.com/oleg/shardkv/internal/topology"
)

type registerRequest struct {
	ShardID string `json:"shard_id"`
	URL     string `json:"url"`
	Role    string `json:"role"`
}

// Registrar announces one shard to a coordinator.
type Registrar struct {
	coordinatorURL string
	shardID        string
	endpoint       string
	role           topology.Role
	httpClient     *http.Client
	interval       time.Duration
}

// New builds a Registrar. interval governs the steady-state
// re-announcement cadence once initial registration succeeds;
// retry-until-2xx on startup waits one second between failed attempts,
// each attempt bounded by the 5s request timeout.
func New(coordinatorURL, shardID, endpoint string, role topology.Role, interval time.Duration) *Registrar {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Registrar{
		coordinatorURL: coordinatorURL,
		shardID:        shardID,
		endpoint:       endpoint,
		role:           role,
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		interval:       interval,
	}
}

// Run blocks until the first registration succeeds, then continues
// re-announcing every interval until ctx is cancelled. Callers run this
// in its own goroutine.
func (r *Registrar) Run(ctx context.Context) {
	log := logging.WithComponent("registrar").With().Str("shard_id", r.shardID).Logger()

	for {
		if err := r.announce(ctx); err != nil {
			log.Warn().Err(err).Msg("registration attempt failed, retrying")
		} else {
			log.Info().Msg("registered with coordinator")
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.announce(ctx); err != nil {
				log.Warn().Err(err).Msg("re-announcement failed")
			}
		}
	}
}

func (r *Registrar) announce(ctx context.Context) error {
	body, err := json.Marshal(registerRequest{ShardID: r.shardID, URL: r.endpoint, Role: string(r.role)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.coordinatorURL+"/shards/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("coordinator returned HTTP %d", resp.StatusCode)
	}
	return nil
}
