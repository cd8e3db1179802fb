// Package metrics exposes the Prometheus counters served on /metrics by the
// dashboard server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Set struct {
	registry *prometheus.Registry

	messagesProcessed prometheus.Counter
	automodTriggers   *prometheus.CounterVec
	punishmentsIssued *prometheus.CounterVec
	reportsSubmitted  prometheus.Counter
	appealsDecided    *prometheus.CounterVec
}

func New() *Set {
	registry := prometheus.NewRegistry()
	s := &Set{
		registry: registry,
		messagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_messages_processed_total",
			Help: "Guild messages seen by the event pipeline.",
		}),
		automodTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_automod_triggers_total",
			Help: "Automod rule triggers by category and rule.",
		}, []string{"category", "rule"}),
		punishmentsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_punishments_issued_total",
			Help: "Punishments recorded by type.",
		}, []string{"type"}),
		reportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_reports_submitted_total",
			Help: "User reports accepted.",
		}),
		appealsDecided: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_appeals_decided_total",
			Help: "Appeal decisions by outcome.",
		}, []string{"status"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.messagesProcessed,
		s.automodTriggers,
		s.punishmentsIssued,
		s.reportsSubmitted,
		s.appealsDecided,
	)
	return s
}

func (s *Set) MessageProcessed() { s.messagesProcessed.Inc() }

func (s *Set) AutomodTrigger(category, rule string) {
	s.automodTriggers.WithLabelValues(category, rule).Inc()
}

func (s *Set) PunishmentIssued(punishmentType string) {
	s.punishmentsIssued.WithLabelValues(punishmentType).Inc()
}

func (s *Set) ReportSubmitted() { s.reportsSubmitted.Inc() }

func (s *Set) AppealDecided(status string) { s.appealsDecided.WithLabelValues(status).Inc() }

func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
