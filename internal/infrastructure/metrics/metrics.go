// Package metrics provides Prometheus metrics for the listen-api service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jan-server/services/listen-api/internal/domain/room"
)

var (
	// ActiveRooms tracks the number of rooms hosted by this instance.
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listen_active_rooms",
			Help: "Number of rooms hosted by this instance",
		},
	)

	// RoomsByMode tracks rooms per session mode.
	RoomsByMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "listen_rooms_by_mode",
			Help: "Number of rooms in each session mode",
		},
		[]string{"mode"},
	)

	// PresentListeners tracks present identities across all rooms.
	PresentListeners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listen_present_identities",
			Help: "Number of present identities across all rooms",
		},
	)

	// Mutations counts room operations by outcome.
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listen_room_mutations_total",
			Help: "Total number of room operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// StaleSignals counts end-of-track and skip signals that no longer matched.
	StaleSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listen_stale_signals_total",
			Help: "Total number of stale track signals ignored",
		},
	)

	// TransportCalls tracks relay call latency.
	TransportCalls = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listen_transport_call_duration_seconds",
			Help:    "Duration of audio relay calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation", "outcome"},
	)

	// TransportRollbacks counts mode transitions rolled back after a relay failure.
	TransportRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listen_transport_rollbacks_total",
			Help: "Total number of mode transitions rolled back after a relay failure",
		},
	)

	// ReapedRooms counts rooms changed by the presence reaper.
	ReapedRooms = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listen_reaped_rooms_total",
			Help: "Total number of rooms changed by the reaper",
		},
	)

	// EvictedRooms counts idle rooms removed by the janitor.
	EvictedRooms = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listen_evicted_rooms_total",
			Help: "Total number of idle rooms evicted",
		},
	)

	// WebSocketClients tracks connected websocket clients.
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listen_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)

	// HTTPRequests tracks HTTP request latency.
	HTTPRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listen_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordMutation is a room.MutationObserver.
func RecordMutation(operation, outcome string) {
	Mutations.WithLabelValues(operation, outcome).Inc()
	switch outcome {
	case room.OutcomeStale:
		StaleSignals.Inc()
	case room.OutcomeFailed:
		TransportRollbacks.Inc()
	}
}

// RecordTransportCall is a room.TransportObserver.
func RecordTransportCall(operation string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	TransportCalls.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

// RecordRooms refreshes the room gauges from the current snapshots.
func RecordRooms(snaps []*room.Snapshot) {
	counts := map[room.Mode]int{
		room.ModeIdle:           0,
		room.ModeQueuedPlayback: 0,
		room.ModeLiveBroadcast:  0,
	}
	present := 0
	for _, snap := range snaps {
		counts[snap.Mode]++
		present += len(snap.Presence)
	}

	ActiveRooms.Set(float64(len(snaps)))
	PresentListeners.Set(float64(present))
	for mode, n := range counts {
		RoomsByMode.WithLabelValues(string(mode)).Set(float64(n))
	}
}
