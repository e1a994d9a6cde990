// Package metrics exposes Prometheus counters for the recording client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicecue"

type Metrics struct {
	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsDenied  prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Chunk metrics
	ChunksEmitted prometheus.Counter
	ChunksDropped *prometheus.CounterVec
	ChunkBytes    prometheus.Histogram

	// Transport metrics
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	EmitErrors       *prometheus.CounterVec
	Uploads          *prometheus.CounterVec

	// Response metrics
	Responses        *prometheus.CounterVec
	MissingResources *prometheus.CounterVec
}

// Default is registered with the process-wide Prometheus registry.
var Default = New(prometheus.DefaultRegisterer)

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Recording sessions that reached the recording state",
		}),
		SessionsDenied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_denied_total",
			Help:      "Start attempts refused for lack of microphone permission",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently holding the microphone",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Length of captured audio per session",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		ChunksEmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_emitted_total",
			Help:      "Audio chunks handed to the transport",
		}),
		ChunksDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_dropped_total",
			Help:      "Timer ticks that produced no chunk",
		}, []string{"reason"}),
		ChunkBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_bytes",
			Help:      "Encoded chunk size before base64",
			Buckets:   prometheus.ExponentialBuckets(4096, 2, 10),
		}),

		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Events queued on the session socket",
		}, []string{"event"}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Events read from the session socket",
		}, []string{"event"}),
		EmitErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_errors_total",
			Help:      "Events that could not be queued",
		}, []string{"event"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Whole-recording HTTP uploads",
		}, []string{"result"}),

		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Server responses by classification",
		}, []string{"kind"}),
		MissingResources: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_resources_total",
			Help:      "Result ids with no entry in a resource table",
		}, []string{"table"}),
	}
}

func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) RecordSessionEnd(audio time.Duration) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(audio.Seconds())
}

func (m *Metrics) RecordChunk(bytes int) {
	m.ChunksEmitted.Inc()
	m.ChunkBytes.Observe(float64(bytes))
}

func (m *Metrics) RecordUpload(err error) {
	if err != nil {
		m.Uploads.WithLabelValues("error").Inc()
		return
	}
	m.Uploads.WithLabelValues("ok").Inc()
}

// Serve exposes the default registry on addr until the returned server is shut down.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go srv.ListenAndServe()
	return srv
}
