package metrics

import (
	"net/http"
	"time"

	"billing_cycle_bot/internal/app"
	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/reminder"
	"billing_cycle_bot/internal/infra/queue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "billing_cycles"

// Metrics holds the lifecycle and reminder delivery metrics.
type Metrics struct {
	CyclesGenerated       *prometheus.CounterVec
	CyclesArchived        prometheus.Counter
	RemindersDispatched   *prometheus.CounterVec
	RemindersDeduplicated prometheus.Counter
	LifecycleFailures     *prometheus.CounterVec
	PassDuration          *prometheus.HistogramVec
	Deliveries            *prometheus.CounterVec
}

var (
	_ app.MetricsRecorder    = (*Metrics)(nil)
	_ queue.DeliveryRecorder = (*Metrics)(nil)
)

// NewMetrics creates the metrics and registers them on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generated_total",
				Help:      "Billing cycles created by generation passes",
			},
			[]string{"frequency"},
		),
		CyclesArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_total",
			Help:      "Billing cycles archived by archive passes",
		}),
		RemindersDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_dispatched_total",
				Help:      "Reminder tasks handed to the delivery queue",
			},
			[]string{"tier"},
		),
		RemindersDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_deduplicated_total",
			Help:      "Reminders skipped because they were already sent that day",
		}),
		LifecycleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Per-item and per-project lifecycle failures",
			},
			[]string{"operation"},
		),
		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Duration of batch lifecycle passes",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"operation"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_deliveries_total",
				Help:      "Reminder delivery attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.CyclesGenerated,
		m.CyclesArchived,
		m.RemindersDispatched,
		m.RemindersDeduplicated,
		m.LifecycleFailures,
		m.PassDuration,
		m.Deliveries,
	)
	return m
}

func (m *Metrics) CycleGenerated(f project.Frequency) {
	m.CyclesGenerated.WithLabelValues(string(f)).Inc()
}

func (m *Metrics) CycleArchived() {
	m.CyclesArchived.Inc()
}

func (m *Metrics) ReminderDispatched(t reminder.Tier) {
	m.RemindersDispatched.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) ReminderDeduplicated() {
	m.RemindersDeduplicated.Inc()
}

func (m *Metrics) Failure(op app.Operation) {
	m.LifecycleFailures.WithLabelValues(string(op)).Inc()
}

func (m *Metrics) ObservePass(op app.Operation, d time.Duration) {
	m.PassDuration.WithLabelValues(string(op)).Observe(d.Seconds())
}

func (m *Metrics) DeliveryOutcome(outcome string) {
	m.Deliveries.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
