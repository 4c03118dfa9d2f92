package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of live sessions.
type Metrics struct {
	// Session metrics
	ActiveSessions prometheus.Gauge
	SessionsEnded  *prometheus.CounterVec

	// Outbound metrics
	ChunksSent   *prometheus.CounterVec
	SendFailures *prometheus.CounterVec
	SendRetries  *prometheus.CounterVec

	// Playback metrics
	DecodeErrors     prometheus.Counter
	BuffersScheduled prometheus.Counter
	BuffersPlayed    prometheus.Counter
	Interruptions    prometheus.Counter
	BuffersCancelled prometheus.Counter
	ScheduleLead     prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// uses a fresh private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "gizlive_active_sessions",
			Help: "Current number of active live sessions",
		}),
		SessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gizlive_sessions_ended_total",
			Help: "Total number of sessions ended, by final state",
		}, []string{"state"}),

		ChunksSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gizlive_chunks_sent_total",
			Help: "Total number of media chunks sent to the transport",
		}, []string{"kind"}),
		SendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gizlive_send_failures_total",
			Help: "Total number of media chunks dropped without being sent",
		}, []string{"kind"}),
		SendRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gizlive_send_retries_total",
			Help: "Total number of send retries",
		}, []string{"kind"}),

		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "gizlive_decode_errors_total",
			Help: "Total number of inbound audio chunks dropped as undecodable",
		}),
		BuffersScheduled: f.NewCounter(prometheus.CounterOpts{
			Name: "gizlive_buffers_scheduled_total",
			Help: "Total number of inbound audio buffers scheduled for playback",
		}),
		BuffersPlayed: f.NewCounter(prometheus.CounterOpts{
			Name: "gizlive_buffers_played_total",
			Help: "Total number of audio buffers that finished playing",
		}),
		Interruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "gizlive_interruptions_total",
			Help: "Total number of model turn interruptions",
		}),
		BuffersCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "gizlive_buffers_cancelled_total",
			Help: "Total number of scheduled buffers cancelled by interruption",
		}),
		ScheduleLead: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gizlive_schedule_lead_seconds",
			Help:    "Delay between receipt and scheduled start of audio buffers",
			Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}
}
