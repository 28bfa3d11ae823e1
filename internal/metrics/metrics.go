// Package metrics defines the prometheus collectors exported by guestpass.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/guestpass/internal/models"
)

const namespace = "guestpass"

// Metrics holds every collector on its own registry, so tests and multiple
// servers in one process never collide on the default registerer.
type Metrics struct {
	Registry *prometheus.Registry

	Registrations *prometheus.CounterVec
	CheckIns      *prometheus.CounterVec
	PlusOnes      *prometheus.CounterVec
	Guests        *prometheus.GaugeVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Guest registrations by result.",
		}, []string{"result"}),
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Check-in attempts by result.",
		}, []string{"result"}),
		PlusOnes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plus_ones_total",
			Help:      "Plus-one grant attempts by result.",
		}, []string{"result"}),
		Guests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "guests",
			Help:      "Guest counts from the most recent stats computation.",
		}, []string{"state"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Registrations,
		m.CheckIns,
		m.PlusOnes,
		m.Guests,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// ObserveStats publishes dashboard counts on the guests gauge.
func (m *Metrics) ObserveStats(s models.DashboardStats) {
	m.Guests.WithLabelValues("total").Set(float64(s.Total))
	m.Guests.WithLabelValues("checked_in").Set(float64(s.CheckedIn))
	m.Guests.WithLabelValues("not_checked_in").Set(float64(s.NotCheckedIn))
	m.Guests.WithLabelValues("plus_ones").Set(float64(s.PlusOnes))
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
