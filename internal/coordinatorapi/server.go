// Package coordinatorapi wires the gin router for the coordinator
// process: shard registration, table creation, record CRUD, and the
// quorum read.
package coordinatorapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oleg/shardkv/internal/dispatch"
	"github.com/oleg/shardkv/internal/httpmw"
	"github.com/oleg/shardkv/internal/metrics"
	"github.com/oleg/shardkv/internal/tabledir"
	"github.com/oleg/shardkv/internal/topology"
)

// Handler holds the dependencies every coordinator route needs.
type Handler struct {
	topo   *topology.Registry
	tables *tabledir.Registry
	disp   *dispatch.Dispatcher
}

// NewHandler builds a coordinatorapi Handler.
func NewHandler(topo *topology.Registry, tables *tabledir.Registry, disp *dispatch.Dispatcher) *Handler {
	return &Handler{topo: topo, tables: tables, disp: disp}
}

// NewRouter builds the full gin.Engine for the coordinator process.
func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(httpmw.RequestID(), httpmw.AccessLog("coordinator"), httpmw.Recovery("coordinator"), httpmw.RequestsCounter(metrics.CoordinatorRequestsTotal))

	r.POST("/shards/register", h.RegisterShard)
	r.GET("/shards", h.ListShards)

	r.POST("/tables", h.CreateTable)
	r.POST("/tables/:table/records", h.PutRecord)
	r.GET("/tables/:table/records/:pk", h.GetRecord)
	r.HEAD("/tables/:table/records/:pk", h.HeadRecord)
	r.DELETE("/tables/:table/records/:pk", h.DeleteRecord)
	r.GET("/tables/:table/records/:pk/quorum", h.QuorumGetRecord)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Health reports the coordinator's own liveness plus a ring size hint.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"shards": len(h.topo.All()),
	})
}
