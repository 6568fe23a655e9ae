// Package metrics defines the bot's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tsaybot"

// Metrics holds the collectors shared by every domain. Each is labelled by domain name.
type Metrics struct {
	Announcements   *prometheus.CounterVec
	EventsScheduled *prometheus.CounterVec
	ReminderPasses  *prometheus.CounterVec
	PassDuration    *prometheus.HistogramVec
	Sessions        *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Announcements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announcements_total",
			Help:      "Announcements posted, by kind (invite, two_day, day_of, reschedule).",
		}, []string{"domain", "kind"}),
		EventsScheduled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_scheduled_total",
			Help:      "Scheduled event creation attempts, by result.",
		}, []string{"domain", "result"}),
		ReminderPasses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_passes_total",
			Help:      "Reminder passes run, by result.",
		}, []string{"domain", "result"}),
		PassDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reminder_pass_duration_seconds",
			Help:      "Wall time of a reminder pass.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"domain"}),
		Sessions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions awaiting reminders after the last store write.",
		}, []string{"domain"}),
	}
}
