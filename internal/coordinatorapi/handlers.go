package coordinatorapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oleg/shardkv/internal/dispatch"
	"github.com/oleg/shardkv/internal/httpmw"
	"github.com/oleg/shardkv/internal/topology"
	"github.com/oleg/shardkv/internal/walstore"
)

type registerRequest struct {
	ShardID string `json:"shard_id" binding:"required"`
	URL     string `json:"url" binding:"required"`
	Role    string `json:"role" binding:"required"`
}

// RegisterShard handles POST /shards/register. Idempotent; see
// topology.Registry.Register.
func (h *Handler) RegisterShard(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.RespondError(c, http.StatusBadRequest, err)
		return
	}

	role := topology.Role(req.Role)
	if role != topology.RoleLeader && role != topology.RoleFollower {
		httpmw.RespondError(c, http.StatusBadRequest, errors.New("role must be \"leader\" or \"follower\""))
		return
	}

	h.topo.Register(req.ShardID, req.URL, role)
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

// ListShards handles GET /shards, an introspection endpoint exposing
// the topology snapshot for operators.
func (h *Handler) ListShards(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"shards": h.topo.All()})
}

type createTableRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateTable handles POST /tables. Re-creation is an idempotent no-op.
func (h *Handler) CreateTable(c *gin.Context) {
	var req createTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.RespondError(c, http.StatusBadRequest, err)
		return
	}
	h.tables.Create(req.Name)
	c.JSON(http.StatusOK, gin.H{"status": "created", "name": req.Name})
}

type putRecordRequest struct {
	PartitionKey string          `json:"partition_key" binding:"required"`
	SortKey      string          `json:"sort_key"`
	Value        json.RawMessage `json:"value" binding:"required"`
}

// PutRecord handles POST /tables/{table}/records.
func (h *Handler) PutRecord(c *gin.Context) {
	table := c.Param("table")

	var req putRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := h.disp.Put(c.Request.Context(), table, req.PartitionKey, req.SortKey, req.Value)
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "committed", "offset": res.Offset, "shard_id": res.ShardID})
}

// GetRecord handles GET /tables/{table}/records/{pk}?sort_key=.
func (h *Handler) GetRecord(c *gin.Context) {
	pk := c.Param("pk")
	sortKey := c.Query("sort_key")

	res, err := h.disp.Get(c.Request.Context(), pk, sortKey)
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": res.Value, "version": res.Version})
}

// HeadRecord handles HEAD /tables/{table}/records/{pk}?sort_key=.
func (h *Handler) HeadRecord(c *gin.Context) {
	pk := c.Param("pk")
	sortKey := c.Query("sort_key")

	if _, _, err := h.disp.Head(c.Request.Context(), pk, sortKey); err != nil {
		c.Status(dispatchErrorStatus(err))
		return
	}
	c.Status(http.StatusOK)
}

// DeleteRecord handles DELETE /tables/{table}/records/{pk}?sort_key=.
func (h *Handler) DeleteRecord(c *gin.Context) {
	pk := c.Param("pk")
	sortKey := c.Query("sort_key")

	_, err := h.disp.Delete(c.Request.Context(), pk, sortKey)
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// QuorumGetRecord handles GET /tables/{table}/records/{pk}/quorum?R=&sort_key=.
func (h *Handler) QuorumGetRecord(c *gin.Context) {
	pk := c.Param("pk")
	sortKey := c.Query("sort_key")

	r, err := strconv.Atoi(c.Query("R"))
	if err != nil || r < 1 {
		httpmw.RespondError(c, http.StatusBadRequest, errors.New("R must be a positive integer"))
		return
	}

	res, err := h.disp.QuorumGet(c.Request.Context(), pk, sortKey, r)
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": res.Value, "version": res.Version, "quorum_met": res.QuorumMet})
}

// writeDispatchError maps a dispatch error kind to an HTTP status and
// writes it as a uniform error body.
func writeDispatchError(c *gin.Context, err error) {
	httpmw.RespondError(c, dispatchErrorStatus(err), err)
}

func dispatchErrorStatus(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrTableUnknown):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrNoShardsAvailable), errors.Is(err, dispatch.ErrNoLeader), errors.Is(err, dispatch.ErrNoReplicas):
		return http.StatusServiceUnavailable
	case errors.Is(err, dispatch.ErrInsufficientReplicas):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrNotFound):
		return http.StatusNotFound
	// QuorumUnavailable is deliberately conflated with NotFound at the
	// boundary: a caller can't distinguish "no replicas agreed" from
	// "no replicas had it" and shouldn't need to.
	case errors.Is(err, dispatch.ErrQuorumUnavailable):
		return http.StatusNotFound
	case errors.Is(err, walstore.ErrReservedSeparator):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrUpstreamFailure):
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
