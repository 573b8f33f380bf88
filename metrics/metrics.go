// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// HTTP
	MetricRequests        = "chugchanga_http_requests_total"
	MetricRequestDuration = "chugchanga_http_request_duration_seconds"
	// Ranking
	MetricRankDuration   = "chugchanga_rank_duration_seconds"
	MetricRankedReleases = "chugchanga_ranked_releases"
	// Catalog
	MetricCatalogCalls    = "chugchanga_catalog_calls_total"
	MetricCatalogDuration = "chugchanga_catalog_call_duration_seconds"
)

// Metrics owns a private registry so several instances can coexist in tests.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rankDuration    prometheus.Histogram
	rankedReleases  *prometheus.GaugeVec
	catalogCalls    *prometheus.CounterVec
	catalogDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricRequests,
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricRequestDuration,
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	m.rankDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricRankDuration,
		Help:    "Time to count, rank and store one year's results",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	m.rankedReleases = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: MetricRankedReleases,
		Help: "Releases in the latest ranking of a year",
	}, []string{"year"})

	m.catalogCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricCatalogCalls,
		Help: "MusicBrainz calls by operation and outcome",
	}, []string{"op", "outcome"})

	m.catalogDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricCatalogDuration,
		Help:    "MusicBrainz call latency including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.rankDuration,
		m.rankedReleases,
		m.catalogCalls,
		m.catalogDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (used by tests)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) ObserveRanking(year, releases int, d time.Duration) {
	if m == nil {
		return
	}
	m.rankDuration.Observe(d.Seconds())
	m.rankedReleases.WithLabelValues(strconv.Itoa(year)).Set(float64(releases))
}

func (m *Metrics) ObserveCatalogCall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.catalogCalls.WithLabelValues(op, outcome).Inc()
	m.catalogDuration.WithLabelValues(op).Observe(d.Seconds())
}
