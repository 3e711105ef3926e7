package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg/shardkv/internal/tabledir"
	"github.com/oleg/shardkv/internal/topology"
)

func fakeShard(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newFixture(t *testing.T) (*Dispatcher, *topology.Registry, *tabledir.Registry) {
	t.Helper()
	topo := topology.New()
	tables := tabledir.New()
	return New(topo, tables), topo, tables
}

func TestPutRejectsUnknownTable(t *testing.T) {
	d, _, _ := newFixture(t)
	_, err := d.Put(context.Background(), "orders", "pk", "", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrTableUnknown)
}

func TestPutFailsWithoutLeader(t *testing.T) {
	d, _, tables := newFixture(t)
	tables.Create("orders")
	_, err := d.Put(context.Background(), "orders", "pk", "", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrNoShardsAvailable)
}

func TestPutForwardsToLeader(t *testing.T) {
	leader := fakeShard(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/order-101", r.URL.Path)
		json.NewEncoder(w).Encode(putResponseBody{Status: "committed", Offset: 7})
	})

	d, topo, tables := newFixture(t)
	tables.Create("orders")
	topo.Register("shard-1", leader.URL, topology.RoleLeader)

	res, err := d.Put(context.Background(), "orders", "order-101", "", json.RawMessage(`{"item":"Laptop"}`))
	require.NoError(t, err)
	assert.Equal(t, "shard-1", res.ShardID)
	assert.Equal(t, uint64(7), res.Offset)
}

func TestPutRejectsReservedSeparator(t *testing.T) {
	d, _, tables := newFixture(t)
	tables.Create("orders")
	_, err := d.Put(context.Background(), "orders", "bad#key", "", json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestGetReturns404WithoutRetry(t *testing.T) {
	var calls int32
	leader := fakeShard(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	d, topo, _ := newFixture(t)
	topo.Register("shard-1", leader.URL, topology.RoleLeader)

	_, err := d.Get(context.Background(), "pk", "")
	require.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "a well-formed 404 must not be retried")
}

func TestGetRetriesOnceOnTransportFailure(t *testing.T) {
	var calls int32
	flaky := fakeShard(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			// simulate a transport failure on first attempt by hanging up
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(getResponseBody{Value: json.RawMessage(`"v"`), Version: 3})
	})

	d, topo, _ := newFixture(t)
	topo.Register("shard-1", flaky.URL, topology.RoleLeader)

	res, err := d.Get(context.Background(), "pk", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Version)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestQuorumGetInsufficientReplicas(t *testing.T) {
	d, topo, _ := newFixture(t)
	topo.Register("shard-1", "http://leader", topology.RoleLeader)

	_, err := d.QuorumGet(context.Background(), "pk", "", 3)
	require.ErrorIs(t, err, ErrInsufficientReplicas)
}

func TestQuorumGetPicksHighestVersion(t *testing.T) {
	stale := fakeShard(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(getResponseBody{Value: json.RawMessage(`"old"`), Version: 1})
	})
	fresh := fakeShard(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(getResponseBody{Value: json.RawMessage(`"new"`), Version: 5})
	})

	d, topo, _ := newFixture(t)
	topo.Register("shard-1", fresh.URL, topology.RoleLeader)
	topo.Register("shard-1", stale.URL, topology.RoleFollower)

	res, err := d.QuorumGet(context.Background(), "pk", "", 2)
	require.NoError(t, err)
	assert.True(t, res.QuorumMet)
	assert.Equal(t, uint64(5), res.Version)
	assert.JSONEq(t, `"new"`, string(res.Value))
}

func TestQuorumGetUnavailableWhenAllFail(t *testing.T) {
	down := fakeShard(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	d, topo, _ := newFixture(t)
	topo.Register("shard-1", down.URL, topology.RoleLeader)
	topo.Register("shard-1", down.URL, topology.RoleFollower)

	_, err := d.QuorumGet(context.Background(), "pk", "", 2)
	require.ErrorIs(t, err, ErrQuorumUnavailable)
}

func TestDeleteForwardsToLeader(t *testing.T) {
	leader := fakeShard(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(putResponseBody{Status: "deleted", Offset: 9})
	})

	d, topo, _ := newFixture(t)
	topo.Register("shard-1", leader.URL, topology.RoleLeader)

	res, err := d.Delete(context.Background(), "pk", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), res.Offset)
}

func TestHeadFound(t *testing.T) {
	leader := fakeShard(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	d, topo, _ := newFixture(t)
	topo.Register("shard-1", leader.URL, topology.RoleLeader)

	_, found, err := d.Head(context.Background(), "pk", "")
	require.NoError(t, err)
	assert.True(t, found)
}
