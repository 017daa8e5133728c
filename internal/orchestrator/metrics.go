package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "img2imgd",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total number of finished generation runs",
		},
		[]string{"result"},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "img2imgd",
			Subsystem: "orchestrator",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of generation runs in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	initDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "img2imgd",
			Subsystem: "orchestrator",
			Name:      "init_duration_seconds",
			Help:      "Duration of engine initialization in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"result"},
	)

	triggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "img2imgd",
			Subsystem: "orchestrator",
			Name:      "triggers_total",
			Help:      "Generation triggers by outcome (accepted or dropped)",
		},
		[]string{"outcome"},
	)

	stateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "img2imgd",
			Subsystem: "orchestrator",
			Name:      "state",
			Help:      "1 for the current lifecycle state, 0 otherwise",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, runDuration, initDuration, triggersTotal, stateGauge)
}

func observeState(s State) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		stateGauge.WithLabelValues(string(st)).Set(v)
	}
}

func observeRun(ok bool, d time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	runsTotal.WithLabelValues(result).Inc()
	runDuration.Observe(d.Seconds())
}

func observeInit(ok bool, d time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	initDuration.WithLabelValues(result).Observe(d.Seconds())
}
