package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal counts register requests by outcome.
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poet_registrations_total",
		Help: "Total register requests by outcome",
	}, []string{"status"}) // ok, rejected, capacity_exceeded, rate_limited, attestation_failed

	// RequestsTotal counts dispatched wire requests by method and outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poet_requests_total",
		Help: "Total wire protocol requests by method and outcome",
	}, []string{"method", "status"})

	// SyntaxErrorsTotal counts messages the JSON validator rejected.
	SyntaxErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poet_syntax_errors_total",
		Help: "Messages rejected by the JSON validator",
	})

	// EnvelopeErrorsTotal counts structurally invalid envelopes.
	EnvelopeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poet_envelope_errors_total",
		Help: "Messages with a missing or unknown method/data envelope",
	})

	// ConnectedStreams tracks streams currently bound to a worker.
	ConnectedStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poet_connected_streams",
		Help: "Streams currently bound to a pool worker",
	})

	// WorkerSaturation is the in-flight to total worker ratio.
	WorkerSaturation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poet_worker_saturation",
		Help: "Ratio of in-flight workers to pool size (0.0-1.0)",
	})

	// RegisteredNodes tracks the SGX table population.
	RegisteredNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poet_registered_nodes",
		Help: "Records admitted to the SGX table",
	})

	// RunQueueDepth tracks ready nodes in the scheduler queue.
	RunQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poet_run_queue_depth",
		Help: "Nodes currently eligible in the run queue",
	})

	// SchedulerSteps counts scheduling decisions by result.
	SchedulerSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poet_scheduler_steps_total",
		Help: "Scheduling decisions by result",
	}, []string{"result"}) // leader, idle

	// SliceTicks counts logical ticks billed to leaders.
	SliceTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poet_slice_ticks_total",
		Help: "Logical ticks billed against leader budgets",
	})

	// SliceLength observes the length of granted slices.
	SliceLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "poet_slice_length_ticks",
		Help:    "Distribution of granted slice lengths",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// EventPublishFailures counts failed best-effort event publishes.
	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poet_event_publish_failures_total",
		Help: "Failed event publish attempts (non-blocking, best-effort)",
	}, []string{"topic"})

	// WSClients tracks connected event-stream clients.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poet_ws_clients",
		Help: "Connected WebSocket event-stream clients",
	})
)
