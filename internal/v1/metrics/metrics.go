package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the meeting backend.
//
// Naming convention: namespace_subsystem_name
// - namespace: huddle (application-level grouping)
// - subsystem: websocket, room, upload (feature-level grouping)
//
// Metric types:
// - Gauge: current state (connections, rooms, participants, open uploads)
// - Counter: cumulative events (events processed, bytes ingested)
// - Histogram: latency distributions (event processing time)

var (
	// ActiveConnections tracks the current number of live WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "huddle",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of registered rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "huddle",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the number of participants per room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "huddle",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_id"})

	// Events tracks the total number of WebSocket events processed.
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "huddle",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// EventProcessingDuration tracks time spent handling each inbound event.
	EventProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "huddle",
		Subsystem: "websocket",
		Name:      "event_processing_seconds",
		Help:      "Time spent processing WebSocket events",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// ActiveUploadSessions tracks the number of open upload sessions.
	ActiveUploadSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "huddle",
		Subsystem: "upload",
		Name:      "sessions_active",
		Help:      "Current number of open upload sessions",
	})

	// UploadBytesReceived counts file bytes ingested through the chunk channel.
	UploadBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "huddle",
		Subsystem: "upload",
		Name:      "bytes_received_total",
		Help:      "Total upload payload bytes received",
	})

	// UploadsCompleted counts uploads by terminal outcome.
	UploadsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "huddle",
		Subsystem: "upload",
		Name:      "sessions_finished_total",
		Help:      "Upload sessions finished, by outcome",
	}, []string{"outcome"})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
