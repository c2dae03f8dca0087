// Package metrics expone las métricas Prometheus del oráculo.
package metrics

import (
	"net/http"
	"time"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pokeroracle"

// Metrics agrupa los contadores del worker de sincronización y del cliente de logs.
// Usa un registry propio: varias instancias (tests) no chocan entre sí.
type Metrics struct {
	registry *prometheus.Registry

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Tournaments  *prometheus.CounterVec
	Probes       *prometheus.CounterVec
	Verdicts     *prometheus.CounterVec
	StoreErrors  *prometheus.CounterVec
}

// New crea y registra todas las métricas.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_ticks_total",
			Help:      "Completed sync ticks",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_tick_duration_seconds",
			Help:      "Wall time of a full sync tick",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms a ~100s
		}),
		Tournaments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_tournaments_total",
				Help:      "Tournaments processed per tick, by outcome",
			},
			[]string{"outcome"},
		),
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hand_probes_total",
				Help:      "Hand log requests to the upstream service, by result",
			},
			[]string{"result"},
		),
		Verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verdicts_total",
				Help:      "Resolution verdicts, by status",
			},
			[]string{"status", "paused"},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Market store failures, by operation",
			},
			[]string{"op"},
		),
	}

	m.registry.MustRegister(
		m.Ticks,
		m.TickDuration,
		m.Tournaments,
		m.Probes,
		m.Verdicts,
		m.StoreErrors,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry devuelve el registry para exponerlo o inspeccionarlo.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler devuelve el handler HTTP de /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTick registra un tick completo.
func (m *Metrics) RecordTick(d time.Duration) {
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
}

// RecordSync registra el resultado de un torneo.
func (m *Metrics) RecordSync(outcome domain.SyncOutcome) {
	m.Tournaments.WithLabelValues(string(outcome)).Inc()
}

// RecordVerdict registra un veredicto del compilador.
func (m *Metrics) RecordVerdict(v domain.Verdict) {
	paused := "false"
	if v.IsPaused {
		paused = "true"
	}
	m.Verdicts.WithLabelValues(string(v.Status), paused).Inc()
}

// RecordStoreError registra un fallo del store.
func (m *Metrics) RecordStoreError(op string) {
	m.StoreErrors.WithLabelValues(op).Inc()
}

// RecordProbe registra una request de mano (found, missing, error).
func (m *Metrics) RecordProbe(result string) {
	m.Probes.WithLabelValues(result).Inc()
}
