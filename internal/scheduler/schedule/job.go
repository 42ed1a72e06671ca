package schedule

import (
	"math/bits"

	"github.com/hashicorp/go-multierror"
	"github.com/renstrom/shortuuid"
	"golang.org/x/exp/slices"

	"github.com/towersched/towersched/internal/common/schederrors"
)

// Job is a request for RequiredMachines identical machines for ProcessingTime units of time.
// A job is placed in at most one schedule at a time; the schedule owning it sets and clears
// its starting time.
type Job struct {
	Id               string
	ProcessingTime   int
	RequiredMachines int
	start            int
	placed           bool
}

// NewJob returns an unplaced job with a generated id.
func NewJob(duration int, width int) *Job {
	return NewJobWithId(shortuuid.New(), duration, width)
}

func NewJobWithId(id string, duration int, width int) *Job {
	return &Job{
		Id:               id,
		ProcessingTime:   duration,
		RequiredMachines: width,
	}
}

// StartingTime returns the time at which the job starts and true if it is placed,
// or 0 and false otherwise.
func (j *Job) StartingTime() (int, bool) {
	return j.start, j.placed
}

func (j *Job) IsPlaced() bool {
	return j.placed
}

// CompletionTime returns the time at which a placed job finishes.
// For an unplaced job it returns the processing time.
func (j *Job) CompletionTime() int {
	return j.start + j.ProcessingTime
}

func (j *Job) place(start int) {
	j.start = start
	j.placed = true
}

func (j *Job) unplace() {
	j.start = 0
	j.placed = false
}

// Validate returns an *schederrors.ErrInvalidArgument if the job can not be scheduled on m machines.
func (j *Job) Validate(m int) error {
	if j.ProcessingTime <= 0 {
		return &schederrors.ErrInvalidArgument{
			Name:    "processingTime",
			Value:   j.ProcessingTime,
			Message: "job " + j.Id + " must have a positive duration",
		}
	}
	if j.RequiredMachines <= 0 {
		return &schederrors.ErrInvalidArgument{
			Name:    "requiredMachines",
			Value:   j.RequiredMachines,
			Message: "job " + j.Id + " must require at least one machine",
		}
	}
	if j.RequiredMachines > m {
		return &schederrors.ErrInvalidArgument{
			Name:    "requiredMachines",
			Value:   j.RequiredMachines,
			Message: "job " + j.Id + " requires more machines than exist",
		}
	}
	return nil
}

// ValidateAll validates every job and returns all failures as a single *multierror.Error.
func ValidateAll(jobs []*Job, m int) error {
	var result *multierror.Error
	for _, j := range jobs {
		if err := j.Validate(m); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// sortByStartThenWidthDesc sorts placed jobs by increasing start, breaking ties by decreasing width.
func sortByStartThenWidthDesc(jobs []*Job) {
	slices.SortStableFunc(jobs, func(a, b *Job) bool {
		if a.start != b.start {
			return a.start < b.start
		}
		return a.RequiredMachines > b.RequiredMachines
	})
}

// sortByWidthDesc sorts jobs by decreasing width, breaking ties by decreasing duration.
func sortByWidthDesc(jobs []*Job) {
	slices.SortStableFunc(jobs, func(a, b *Job) bool {
		if a.RequiredMachines != b.RequiredMachines {
			return a.RequiredMachines > b.RequiredMachines
		}
		return a.ProcessingTime > b.ProcessingTime
	})
}

func sortByStart(jobs []*Job) {
	slices.SortStableFunc(jobs, func(a, b *Job) bool {
		return a.start < b.start
	})
}

// AreaLowerBound returns (Σ duration×width)/m, a lower bound on the makespan of any feasible
// schedule of jobs on m machines. The sum is accumulated in 64 bits; if it would overflow an
// *schederrors.ErrAreaOverflow is returned instead of a wrapped value.
func AreaLowerBound(jobs []*Job, m int) (float64, error) {
	if m < 1 {
		return 0, &schederrors.ErrInvalidArgument{
			Name:    "machines",
			Value:   m,
			Message: "at least one machine is required to compute an area bound",
		}
	}
	var total uint64
	for _, j := range jobs {
		hi, area := bits.Mul64(uint64(j.ProcessingTime), uint64(j.RequiredMachines))
		if hi != 0 {
			return 0, &schederrors.ErrAreaOverflow{NumJobs: len(jobs), Machines: m}
		}
		var carry uint64
		total, carry = bits.Add64(total, area, 0)
		if carry != 0 {
			return 0, &schederrors.ErrAreaOverflow{NumJobs: len(jobs), Machines: m}
		}
	}
	return float64(total) / float64(m), nil
}

// TotalDuration is the height of a tower made of jobs.
func TotalDuration(jobs []*Job) int {
	total := 0
	for _, j := range jobs {
		total += j.ProcessingTime
	}
	return total
}

func MaxDuration(jobs []*Job) int {
	pMax := 0
	for _, j := range jobs {
		if j.ProcessingTime > pMax {
			pMax = j.ProcessingTime
		}
	}
	return pMax
}
