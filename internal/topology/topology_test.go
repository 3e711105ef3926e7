package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesGroupLazily(t *testing.T) {
	r := New()
	r.Register("shard-1", "http://leader:8001", RoleLeader)

	shardID, leader, replicas, err := r.Resolve("any-key")
	require.NoError(t, err)
	assert.Equal(t, "shard-1", shardID)
	assert.Equal(t, "http://leader:8001", leader)
	assert.Equal(t, []string{"http://leader:8001"}, replicas)
}

func TestRegisterIdempotent(t *testing.T) {
	r := New()
	r.Register("shard-1", "http://f1:8001", RoleFollower)
	r.Register("shard-1", "http://f1:8001", RoleFollower)

	_, _, replicas, err := r.Resolve("k")
	require.NoError(t, err)
	assert.Len(t, replicas, 1)
}

func TestLeaderOverwriteOnRestart(t *testing.T) {
	r := New()
	r.Register("shard-1", "http://old-leader:8001", RoleLeader)
	r.Register("shard-1", "http://new-leader:9001", RoleLeader)

	_, leader, _, err := r.Resolve("k")
	require.NoError(t, err)
	assert.Equal(t, "http://new-leader:9001", leader)
}

func TestResolveNoShardsAvailable(t *testing.T) {
	r := New()
	_, _, _, err := r.Resolve("anything")
	assert.ErrorIs(t, err, ErrNoShardsAvailable)
}

func TestReplicasLeaderFirstFiltered(t *testing.T) {
	r := New()
	r.Register("shard-1", "http://f1:8001", RoleFollower)
	r.Register("shard-1", "http://f2:8002", RoleFollower)

	_, leader, replicas, err := r.Resolve("k")
	require.NoError(t, err)
	assert.Equal(t, "", leader)
	assert.Equal(t, []string{"http://f1:8001", "http://f2:8002"}, replicas)

	r.Register("shard-1", "http://leader:8000", RoleLeader)
	_, leader, replicas, err = r.Resolve("k")
	require.NoError(t, err)
	assert.Equal(t, "http://leader:8000", leader)
	assert.Equal(t, []string{"http://leader:8000", "http://f1:8001", "http://f2:8002"}, replicas)
}

func TestColocationSamePartitionKeySameShard(t *testing.T) {
	r := New()
	r.Register("shard-1", "http://l1:8001", RoleLeader)
	r.Register("shard-2", "http://l2:8002", RoleLeader)

	id1, _, _, err := r.Resolve("user-vip")
	require.NoError(t, err)
	id2, _, _, err := r.Resolve("user-vip")
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "same partition key must always resolve to the same shard group")
}

func TestNeverRemovesEntries(t *testing.T) {
	r := New()
	r.Register("shard-1", "http://l1:8001", RoleLeader)
	r.Register("shard-2", "http://l2:8002", RoleLeader)
	assert.Len(t, r.All(), 2)
}
