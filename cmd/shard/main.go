// cmd/shard is a single shard node: a WAL-backed storage engine plus
// the background registrar and (for followers) replication worker.
// Role, shard_id, and peer addresses are supplied via environment.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oleg/shardkv/internal/logging"
	"github.com/oleg/shardkv/internal/metrics"
	"github.com/oleg/shardkv/internal/registrar"
	"github.com/oleg/shardkv/internal/replication"
	"github.com/oleg/shardkv/internal/shardapi"
	"github.com/oleg/shardkv/internal/topology"
	"github.com/oleg/shardkv/internal/walstore"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	role := flag.String("role", envOr("ROLE", "leader"), "Shard role: leader or follower")
	shardID := flag.String("shard-id", envOr("SHARD_ID", "shard-1"), "Shard group identifier")
	addr := flag.String("addr", envOr("ADDR", ":9000"), "Listen address (host:port)")
	myAddress := flag.String("my-address", envOr("MY_ADDRESS", "http://localhost:9000"), "This shard's externally reachable base URL")
	leaderURL := flag.String("leader-url", envOr("LEADER_URL", ""), "Leader base URL (followers only)")
	coordinatorURL := flag.String("coordinator-url", envOr("COORDINATOR_URL", "http://localhost:8000"), "Coordinator base URL")
	dataDir := flag.String("data-dir", envOr("DATA_DIR", "/tmp/shardkv"), "Directory for this shard's WAL and snapshot")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", envOr("LOG_JSON", "") != "", "Emit structured JSON logs instead of console output")
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, JSON: *logJSON})
	log := logging.WithComponent("shard")

	shardRole := topology.Role(*role)
	if shardRole != topology.RoleLeader && shardRole != topology.RoleFollower {
		log.Fatal().Str("role", *role).Msg(`ROLE must be "leader" or "follower"`)
	}
	if shardRole == topology.RoleFollower && *leaderURL == "" {
		log.Fatal().Msg("LEADER_URL is required for a follower shard")
	}

	metrics.Shard(prometheus.DefaultRegisterer)

	store, err := walstore.Open(*dataDir, *shardID, shardRole)
	if err != nil {
		log.Fatal().Err(err).Msg("open wal store")
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registrar.New(*coordinatorURL, *shardID, *myAddress, shardRole, 30*time.Second)
	go reg.Run(ctx)

	if shardRole == topology.RoleFollower {
		worker := replication.NewWorker(store, *leaderURL, time.Second)
		go worker.Run(ctx)
	}

	handler := shardapi.NewHandler(store)
	router := shardapi.NewRouter(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Str("role", string(shardRole)).Str("shard_id", *shardID).Msg("shard listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down shard")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown error")
	}
}
