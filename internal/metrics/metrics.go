// Package metrics exposes client-side Prometheus metrics for room sessions.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swamp_connection_attempts_total",
		Help: "Total number of peer connection establishment attempts",
	}, []string{"role"}) // "broadcaster" | "viewer"

	ReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swamp_reconnects_total",
		Help: "Total number of reconnects scheduled after the signaling socket closed",
	}, []string{"role"})

	ActivePeerConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swamp_active_peer_connections",
		Help: "Number of live peer connections",
	})

	SignalingMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swamp_signaling_messages_total",
		Help: "Signaling messages by event and direction",
	}, []string{"event", "direction"}) // direction: "in" | "out"

	SignalingDecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swamp_signaling_decode_errors_total",
		Help: "Inbound signaling frames dropped because they did not decode",
	})

	BufferedCandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swamp_buffered_candidates_total",
		Help: "Remote ICE candidates held until the remote description was set",
	})

	RemoteStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swamp_remote_streams",
		Help: "Number of remote streams currently in the stream set",
	})

	ChatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swamp_chat_messages_total",
		Help: "Chat messages by direction",
	}, []string{"direction"})
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
