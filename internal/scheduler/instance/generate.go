package instance

import (
	"fmt"
	"math/rand"

	"github.com/towersched/towersched/internal/common/schederrors"
)

type GenerateOptions struct {
	Name        string
	NumJobs     int
	Machines    int
	MinDuration int
	MaxDuration int
	Seed        int64
}

func (o GenerateOptions) validate() error {
	if o.NumJobs < 0 {
		return &schederrors.ErrInvalidArgument{Name: "numJobs", Value: o.NumJobs, Message: "must not be negative"}
	}
	if o.Machines < 2 {
		return &schederrors.ErrInvalidArgument{Name: "machines", Value: o.Machines, Message: "at least two machines are required"}
	}
	if o.MinDuration < 1 || o.MaxDuration < o.MinDuration {
		return &schederrors.ErrInvalidArgument{
			Name:    "maxDuration",
			Value:   o.MaxDuration,
			Message: fmt.Sprintf("durations must satisfy 1 <= %d <= maxDuration", o.MinDuration),
		}
	}
	return nil
}

// Generate returns an instance of NumJobs jobs with durations drawn uniformly from
// [MinDuration, MaxDuration] and widths drawn uniformly from [1, Machines]. The same options
// always produce the same instance.
func Generate(o GenerateOptions) (*Instance, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	name := o.Name
	if name == "" {
		name = fmt.Sprintf("random-n%d-m%d-s%d", o.NumJobs, o.Machines, o.Seed)
	}
	r := rand.New(rand.NewSource(o.Seed))
	jobs := make([]JobSpec, o.NumJobs)
	for i := range jobs {
		jobs[i] = JobSpec{
			Id:       fmt.Sprintf("job-%d", i),
			Duration: o.MinDuration + r.Intn(o.MaxDuration-o.MinDuration+1),
			Width:    1 + r.Intn(o.Machines),
		}
	}
	return &Instance{
		Name:     name,
		Machines: o.Machines,
		Jobs:     jobs,
	}, nil
}
