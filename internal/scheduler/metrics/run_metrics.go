package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/towersched/towersched/internal/scheduler/tower"
)

var machineLabels = []string{machineLabel}

type runMetrics struct {
	runMetricAccessLock sync.Mutex

	runs            *prometheus.CounterVec
	jobs            *prometheus.CounterVec
	makespan        *prometheus.GaugeVec
	lowerBound      *prometheus.GaugeVec
	ratio           *prometheus.GaugeVec
	separationTime  *prometheus.GaugeVec
	ratioHistogram  prometheus.Histogram
	scheduleRunTime prometheus.Histogram
}

func newRunMetrics() *runMetrics {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "runs_total",
			Help: "Number of batches scheduled, by the branch taken",
		},
		[]string{branchLabel},
	)

	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "jobs_total",
			Help: "Number of jobs scheduled, by width class",
		},
		[]string{classLabel},
	)

	makespan := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "makespan",
			Help: "Makespan of the last scheduled batch",
		},
		machineLabels,
	)

	lowerBound := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "makespan_lower_bound",
			Help: "Area lower bound on the makespan of the last scheduled batch",
		},
		machineLabels,
	)

	ratio := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "approximation_ratio",
			Help: "Makespan divided by its area lower bound for the last scheduled batch",
		},
		machineLabels,
	)

	separationTime := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "separation_time",
			Help: "Separation time found in the big-job schedule of the last scheduled batch",
		},
		machineLabels,
	)

	ratioHistogram := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "approximation_ratios",
			Help:    "Distribution of approximation ratios.",
			Buckets: prometheus.LinearBuckets(1.0, 0.05, 40),
		},
	)

	scheduleRunTime := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "schedule_run_times",
			Help:    "Time taken to schedule a batch, in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 1.5, 40),
		},
	)

	return &runMetrics{
		runs:            runs,
		jobs:            jobs,
		makespan:        makespan,
		lowerBound:      lowerBound,
		ratio:           ratio,
		separationTime:  separationTime,
		ratioHistogram:  ratioHistogram,
		scheduleRunTime: scheduleRunTime,
	}
}

// ReportRun records the outcome of one scheduled batch.
func (m *runMetrics) ReportRun(machines int, stats tower.Stats, makespan int, lowerBound float64, runTime time.Duration) {
	m.runMetricAccessLock.Lock()
	defer m.runMetricAccessLock.Unlock()

	m.runs.WithLabelValues(string(stats.Branch)).Inc()
	for class, count := range stats.JobsByClass {
		m.jobs.WithLabelValues(class.String()).Add(float64(count))
	}
	machineCount := strconv.Itoa(machines)
	m.makespan.WithLabelValues(machineCount).Set(float64(makespan))
	m.lowerBound.WithLabelValues(machineCount).Set(lowerBound)
	m.separationTime.WithLabelValues(machineCount).Set(float64(stats.SeparationTime))
	if lowerBound > 0 {
		ratio := float64(makespan) / lowerBound
		m.ratio.WithLabelValues(machineCount).Set(ratio)
		m.ratioHistogram.Observe(ratio)
	}
	m.scheduleRunTime.Observe(float64(runTime.Microseconds()) / 1000)
}

func (m *runMetrics) describe(ch chan<- *prometheus.Desc) {
	m.runs.Describe(ch)
	m.jobs.Describe(ch)
	m.makespan.Describe(ch)
	m.lowerBound.Describe(ch)
	m.ratio.Describe(ch)
	m.separationTime.Describe(ch)
	m.ratioHistogram.Describe(ch)
	m.scheduleRunTime.Describe(ch)
}

func (m *runMetrics) collect(ch chan<- prometheus.Metric) {
	m.runMetricAccessLock.Lock()
	defer m.runMetricAccessLock.Unlock()
	m.runs.Collect(ch)
	m.jobs.Collect(ch)
	m.makespan.Collect(ch)
	m.lowerBound.Collect(ch)
	m.ratio.Collect(ch)
	m.separationTime.Collect(ch)
	m.ratioHistogram.Collect(ch)
	m.scheduleRunTime.Collect(ch)
}
