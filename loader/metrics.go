package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	sessionsTotal      *prometheus.CounterVec
	objectsLoadedTotal prometheus.Counter
	relocationsTotal   *prometheus.CounterVec
	failuresTotal      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		sessionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kload",
			Name:      "sessions_total",
			Help:      "Load sessions by outcome.",
		}, []string{"outcome"}),
		objectsLoadedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "kload",
			Name:      "objects_loaded_total",
			Help:      "Objects mapped into target address spaces.",
		}),
		relocationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kload",
			Name:      "relocations_applied_total",
			Help:      "Relocation entries applied, by relocation kind.",
		}, []string{"kind"}),
		failuresTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kload",
			Name:      "failures_total",
			Help:      "Failed load sessions by error kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) sessionSucceeded() {
	if m != nil {
		m.sessionsTotal.WithLabelValues("success").Inc()
	}
}

func (m *Metrics) sessionFailed(err error) {
	if m != nil {
		m.sessionsTotal.WithLabelValues("failure").Inc()
		m.failuresTotal.WithLabelValues(string(KindOf(err))).Inc()
	}
}

func (m *Metrics) objectLoaded() {
	if m != nil {
		m.objectsLoadedTotal.Inc()
	}
}

func (m *Metrics) relocationApplied(kind string) {
	if m != nil {
		m.relocationsTotal.WithLabelValues(kind).Inc()
	}
}
