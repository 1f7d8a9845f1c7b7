package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsShutdownTimeout = 2 * time.Second

// metricsServer serves /metrics and /health.
type metricsServer struct {
	log    *slog.Logger
	server *http.Server
	addr   string
	done   chan struct{}
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return mux
}

// startMetricsServer listens on addr before returning, so a busy port fails
// the command instead of a background goroutine.
func startMetricsServer(log *slog.Logger, addr string, reg *prometheus.Registry) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics: %w", err)
	}

	s := &metricsServer{
		log: log.With("component", "metrics"),
		server: &http.Server{
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr: ln.Addr().String(),
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.done)

		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", "error", err)
		}
	}()

	s.log.Info("serving metrics", "addr", s.addr)

	return s, nil
}

func (s *metricsServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Warn("metrics server shutdown", "error", err)
	}

	<-s.done
}
