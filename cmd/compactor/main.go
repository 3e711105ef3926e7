// cmd/compactor is the offline tool that folds a shard's WAL into a
// snapshot and truncates the log behind it. Truncation must never
// happen during normal serving, so this must only ever be run against
// a data directory whose shard process is stopped.
package main

import (
	"flag"

	"github.com/oleg/shardkv/internal/logging"
	"github.com/oleg/shardkv/internal/topology"
	"github.com/oleg/shardkv/internal/walstore"
)

func main() {
	dataDir := flag.String("data-dir", "", "Shard data directory to compact (the shard process must be stopped)")
	shardID := flag.String("shard-id", "", "Shard group identifier, for the log line only")
	role := flag.String("role", string(topology.RoleLeader), "Role recorded in logs; does not affect compaction")
	flag.Parse()

	log := logging.WithComponent("compactor")

	if *dataDir == "" {
		log.Fatal().Msg("--data-dir is required")
	}

	store, err := walstore.Open(*dataDir, *shardID, topology.Role(*role))
	if err != nil {
		log.Fatal().Err(err).Msg("open wal store")
	}
	defer store.Close()

	before := store.KeyCount()
	offset := store.CurrentOffset()

	if err := store.Compact(); err != nil {
		log.Fatal().Err(err).Msg("compact")
	}

	log.Info().
		Str("data_dir", *dataDir).
		Str("shard_id", *shardID).
		Str("role", *role).
		Int("keys", before).
		Uint64("offset", offset).
		Msg("compaction complete: snapshot written, WAL truncated")
}
