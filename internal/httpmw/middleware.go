// Package httpmw holds the gin middleware shared by the coordinator and
// shard HTTP surfaces: request-id tagging, structured access logging,
// panic recovery, and a request counter for Prometheus.
package httpmw

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oleg/shardkv/internal/logging"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-Id"

// RequestID assigns a uuid to every inbound request, reusing an inbound
// X-Request-Id header when the caller already supplied one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom extracts the request id stashed by RequestID, or "" if
// the middleware hasn't run (e.g. in a unit test that calls a handler
// directly).
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	id, _ := v.(string)
	return id
}

// AccessLog logs one structured line per request: method, path, status,
// latency and request id.
func AccessLog(component string) gin.HandlerFunc {
	log := logging.WithComponent(component)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Recovery recovers panics in handlers, logs them, and responds 500
// instead of tearing down the process.
func Recovery(component string) gin.HandlerFunc {
	log := logging.WithComponent(component)
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", RequestIDFrom(c)).
					Interface("panic", r).
					Msg("panic recovered")
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// RequestsCounter increments counter by method/path/status for every
// request — the shared body behind CoordinatorRequestsTotal and
// ShardRequestsTotal.
func RequestsCounter(counter *prometheus.CounterVec) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		counter.WithLabelValues(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// RespondError writes a uniform {"error": "..."} body. Every handler in
// both APIs goes through this instead of building gin.H error bodies
// ad-hoc.
func RespondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
