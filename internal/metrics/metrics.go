// Package metrics is dbcalm's prometheus registry. The teacher module
// depends on prometheus/client_golang but never wires it to a handler in
// the retrieved snapshot; this package gives it a concrete home.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters and gauges the runner and queue handler
// update inline as they process work.
type Metrics struct {
	Registry *prometheus.Registry

	ProcessesStarted   prometheus.Counter
	ProcessesSucceeded prometheus.Counter
	ProcessesFailed    prometheus.Counter
	QueueDepth         prometheus.Gauge
	BackupsExpired     prometheus.Counter
}

// New builds a Metrics with a dedicated registry (not the global default,
// so tests can construct independent instances without collector
// re-registration panics).
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ProcessesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbcalm",
			Name:      "processes_started_total",
			Help:      "External-binary executions spawned by the process runner.",
		}),
		ProcessesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbcalm",
			Name:      "processes_succeeded_total",
			Help:      "External-binary executions that exited zero.",
		}),
		ProcessesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbcalm",
			Name:      "processes_failed_total",
			Help:      "External-binary executions that failed to spawn or exited non-zero.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dbcalm",
			Name:      "queue_depth",
			Help:      "Number of queue handlers currently awaiting a terminal process.",
		}),
		BackupsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbcalm",
			Name:      "backups_expired_total",
			Help:      "Backup rows removed by the retention policy.",
		}),
	}

	reg.MustRegister(
		m.ProcessesStarted,
		m.ProcessesSucceeded,
		m.ProcessesFailed,
		m.QueueDepth,
		m.BackupsExpired,
	)

	return m
}
