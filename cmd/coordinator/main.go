// cmd/coordinator is the stateless routing tier: one process owning the
// shard-group topology, the consistent-hash ring, and the table
// registry. Configuration is entirely via flags/environment.
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

	"github.com/oleg/shardkv/internal/coordinatorapi"
	"github.com/oleg/shardkv/internal/dispatch"
	"github.com/oleg/shardkv/internal/logging"
	"github.com/oleg/shardkv/internal/metrics"
	"github.com/oleg/shardkv/internal/tabledir"
	"github.com/oleg/shardkv/internal/topology"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	addr := flag.String("addr", envOr("ADDR", ":8000"), "Listen address (host:port)")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", envOr("LOG_JSON", "") != "", "Emit structured JSON logs instead of console output")
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, JSON: *logJSON})
	log := logging.WithComponent("coordinator")

	metrics.Coordinator(prometheus.DefaultRegisterer)

	topo := topology.New()
	tables := tabledir.New()
	disp := dispatch.New(topo, tables)

	handler := coordinatorapi.NewHandler(topo, tables, disp)
	router := coordinatorapi.NewRouter(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Msg("coordinator listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down coordinator")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("server shutdown error")
	}
}
