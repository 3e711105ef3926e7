// Package shardapi is the shard node's HTTP surface: role-gated
// storage CRUD, the replication log endpoint followers pull from, a
// health check, and a debug dump of the full in-memory map.
package shardapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oleg/shardkv/internal/httpmw"
	"github.com/oleg/shardkv/internal/metrics"
	"github.com/oleg/shardkv/internal/walstore"
)

// ErrRoleMismatch is returned when a write is attempted against a
// non-leader shard.
var ErrRoleMismatch = errors.New("write attempted against a non-leader shard")

// Handler holds the dependencies every shard route needs.
type Handler struct {
	store *walstore.Store
}

// NewHandler builds a shardapi Handler over store.
func NewHandler(store *walstore.Store) *Handler {
	return &Handler{store: store}
}

// NewRouter builds the full gin.Engine for a shard process.
func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(httpmw.RequestID(), httpmw.AccessLog("shard"), httpmw.Recovery("shard"), httpmw.RequestsCounter(metrics.ShardRequestsTotal))

	r.POST("/storage/:key", h.Put)
	r.GET("/storage/:key", h.Get)
	r.DELETE("/storage/:key", h.Delete)
	r.HEAD("/storage/:key", h.Head)

	r.GET("/replication/log", h.ReplicationLog)
	r.GET("/health", h.Health)
	r.GET("/debug/dump", h.DebugDump)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Health handles GET /health: role, shard id, current offset, key count.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"role":     h.store.Role(),
		"shard_id": h.store.ShardID(),
		"offset":   h.store.CurrentOffset(),
		"keys":     h.store.KeyCount(),
	})
}
