package configuration

import (
	"github.com/sirupsen/logrus"

	"github.com/towersched/towersched/internal/common/config"
)

type Configuration struct {
	Logging LoggingConfig
	Metrics MetricsConfig
	// Number of machines used for generated instances and for instance files that don't set one.
	Machines int `validate:"gte=2"`
	Bench    BenchConfig
	Cluster  ClusterConfig
}

type LoggingConfig struct {
	Level logrus.Level
}

type MetricsConfig struct {
	// Port on which /metrics is served. Disabled if 0.
	Port uint16
}

// BenchConfig controls the benchmark, which schedules one generated instance for every job count
// from MinJobs to MaxJobs in increments of Step.
type BenchConfig struct {
	MinJobs     int `validate:"gte=1"`
	MaxJobs     int `validate:"gtefield=MinJobs"`
	Step        int `validate:"gte=1"`
	MinDuration int `validate:"gte=1"`
	MaxDuration int `validate:"gtefield=MinDuration"`
	Seed        int64
	// Maximum number of instances scheduled concurrently.
	Parallelism int `validate:"gte=1"`
	// Path of the CSV file results are written to. Results are only logged if empty.
	Output string
}

type ClusterConfig struct {
	// Number of clusters N; the schedule is cut into 2*(N/3)+1 time partitions.
	Count int `validate:"gte=1"`
}

func (c Configuration) Validate() error {
	return config.Validate(c)
}
