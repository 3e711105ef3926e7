package walstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// snapshotRecord is the on-disk form of one materialized key, used only
// by the compaction snapshot file — never by the WAL itself.
type snapshotRecord struct {
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value"`
	Version uint64          `json:"version"`
}

type snapshotFile struct {
	Offset  uint64           `json:"offset"`
	Records []snapshotRecord `json:"records"`
}

func snapshotPath(dataDir string) string {
	return filepath.Join(dataDir, "snapshot.json")
}

// saveSnapshot writes a point-in-time copy of the materialized map,
// tagged with the WAL offset it reflects, using a write-tmp-then-rename
// so a crash mid-write never leaves a half-written snapshot behind.
func saveSnapshot(dataDir string, snap snapshotFile) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	path := snapshotPath(dataDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// loadSnapshot reads the compaction snapshot, if one exists. A missing
// file is not an error: it just means the shard has never been
// compacted and must replay its WAL from the very beginning.
func loadSnapshot(dataDir string) (snapshotFile, bool, error) {
	data, err := os.ReadFile(snapshotPath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return snapshotFile{}, false, nil
		}
		return snapshotFile{}, false, err
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshotFile{}, false, err
	}
	return snap, true, nil
}

// Compact folds the Store's current materialized state into a snapshot
// file and truncates the WAL behind it. This is the only path by which
// the WAL is ever shortened; it exists for cmd/compactor to run
// offline, against a shard that is not accepting traffic.
//
// Compact takes Store.mu for its full duration, so it must never be
// called against a Store that a shardapi server is concurrently serving
// requests from. It must also never run against a leader with live
// followers: truncating the WAL strands any follower still below the
// snapshot's offset, since ReadLogsSince only ever serves from the
// live log, never the snapshot.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]snapshotRecord, 0, len(s.data))
	for k, r := range s.data {
		records = append(records, snapshotRecord{Key: k, Value: r.Value, Version: r.Version})
	}

	if err := saveSnapshot(s.dataDir, snapshotFile{Offset: s.currentOffset, Records: records}); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := s.wal.truncate(); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	return nil
}
