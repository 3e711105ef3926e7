package shardapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oleg/shardkv/internal/httpmw"
	"github.com/oleg/shardkv/internal/walstore"
)

type putBody struct {
	Value json.RawMessage `json:"value"`
}

// Put handles POST /storage/{key}: leader only.
func (h *Handler) Put(c *gin.Context) {
	if !h.store.IsLeader() {
		httpmw.RespondError(c, http.StatusBadRequest, ErrRoleMismatch)
		return
	}

	key := c.Param("key")
	var body putBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httpmw.RespondError(c, http.StatusBadRequest, err)
		return
	}

	entry, err := h.store.Append(key, body.Value, walstore.OpPut)
	if err != nil {
		httpmw.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "committed", "offset": entry.Offset})
}

// Get handles GET /storage/{key}: any role.
func (h *Handler) Get(c *gin.Context) {
	key := c.Param("key")
	value, version, ok := h.store.Get(key)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value, "version": version})
}

// Delete handles DELETE /storage/{key}: leader only. Idempotent at the
// WAL layer — it always produces a new tombstone entry.
func (h *Handler) Delete(c *gin.Context) {
	if !h.store.IsLeader() {
		httpmw.RespondError(c, http.StatusBadRequest, ErrRoleMismatch)
		return
	}

	key := c.Param("key")
	entry, err := h.store.Append(key, nil, walstore.OpDelete)
	if err != nil {
		httpmw.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "offset": entry.Offset})
}

// Head handles HEAD /storage/{key}: 200 if present, 404 otherwise.
func (h *Handler) Head(c *gin.Context) {
	key := c.Param("key")
	if h.store.Has(key) {
		c.Status(http.StatusOK)
		return
	}
	c.Status(http.StatusNotFound)
}

// ReplicationLog handles GET /replication/log?start_offset=N, the
// endpoint followers tail.
func (h *Handler) ReplicationLog(c *gin.Context) {
	start, err := strconv.ParseUint(c.DefaultQuery("start_offset", "0"), 10, 64)
	if err != nil {
		httpmw.RespondError(c, http.StatusBadRequest, err)
		return
	}

	entries, err := h.store.ReadLogsSince(start)
	if err != nil {
		httpmw.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []walstore.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

// DebugDump handles GET /debug/dump, an introspection endpoint that
// dumps every live storage key — useful for confirming that compound
// keys sharing a partition key landed on the same shard.
func (h *Handler) DebugDump(c *gin.Context) {
	keys := h.store.Keys()
	dump := make(map[string]gin.H, len(keys))
	for _, k := range keys {
		value, version, ok := h.store.Get(k)
		if !ok {
			continue
		}
		dump[k] = gin.H{"value": value, "version": version}
	}
	c.JSON(http.StatusOK, gin.H{
		"shard_id": h.store.ShardID(),
		"role":     h.store.Role(),
		"offset":   h.store.CurrentOffset(),
		"records":  dump,
	})
}
