package instance

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/towersched/towersched/internal/scheduler/schedule"
)

// Report is the YAML form of a scheduled instance.
type Report struct {
	Name       string      `yaml:"name"`
	Machines   int         `yaml:"machines"`
	Makespan   int         `yaml:"makespan"`
	LowerBound float64     `yaml:"lowerBound"`
	Branch     string      `yaml:"branch,omitempty"`
	Jobs       []Placement `yaml:"jobs"`
}

type Placement struct {
	Id       string `yaml:"id"`
	Start    int    `yaml:"start"`
	Duration int    `yaml:"duration"`
	Width    int    `yaml:"width"`
	// Zero if the schedule has not been partitioned into clusters.
	Cluster int `yaml:"cluster,omitempty"`
}

// NewReport lists the jobs of s in placement order.
func NewReport(name string, s *schedule.Schedule, lowerBound float64, branch string) *Report {
	jobs := s.PlacedJobs()
	placements := make([]Placement, len(jobs))
	for i, job := range jobs {
		start, _ := job.StartingTime()
		placements[i] = Placement{
			Id:       job.Id,
			Start:    start,
			Duration: job.ProcessingTime,
			Width:    job.RequiredMachines,
		}
	}
	return &Report{
		Name:       name,
		Machines:   s.Machines(),
		Makespan:   s.Makespan(),
		LowerBound: lowerBound,
		Branch:     branch,
		Jobs:       placements,
	}
}

// AssignClusters sets the cluster of every placement known to clusterOf.
func (r *Report) AssignClusters(clusterOf func(jobId string) (int, bool, error)) error {
	for i := range r.Jobs {
		cluster, ok, err := clusterOf(r.Jobs[i].Id)
		if err != nil {
			return err
		}
		if ok {
			r.Jobs[i].Cluster = cluster
		}
	}
	return nil
}

func (r *Report) Write(w io.Writer) error {
	bytes, err := yaml.Marshal(r)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = w.Write(bytes)
	return errors.WithStack(err)
}
