package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// indexMetrics tracks feed consumption in a private registry so the indexer's
// /metrics endpoint stays isolated from any library default collectors.
type indexMetrics struct {
	registry   *prometheus.Registry
	events     *prometheus.CounterVec
	rows       *prometheus.CounterVec
	reconnects prometheus.Counter
	feedErrors prometheus.Counter
}

func newIndexMetrics() *indexMetrics {
	m := &indexMetrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tipindexd",
			Name:      "events_total",
			Help:      "Feed events consumed, labelled by event type.",
		}, []string{"type"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tipindexd",
			Name:      "rows_total",
			Help:      "Rows written to the index, labelled by table.",
		}, []string{"table"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tipindexd",
			Name:      "feed_reconnects_total",
			Help:      "Times the websocket feed connection was re-established.",
		}),
		feedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tipindexd",
			Name:      "feed_errors_total",
			Help:      "Feed read or decode failures.",
		}),
	}
	m.registry.MustRegister(
		m.events, m.rows, m.reconnects, m.feedErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *indexMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
