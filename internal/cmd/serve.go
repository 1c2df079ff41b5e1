package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Iron-Ham/heist/internal/metrics"
)

// serveMetrics exposes /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, e *env) {
	reg, m := metrics.NewRegistry()
	collector := metrics.NewCollector(m, e.bus)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		e.logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		collector.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
