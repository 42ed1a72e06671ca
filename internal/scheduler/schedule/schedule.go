package schedule

import (
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/towersched/towersched/internal/common/schederrors"
	"github.com/towersched/towersched/internal/common/util"
	"github.com/towersched/towersched/internal/scheduler/capacity"
)

// Schedule is a set of jobs placed on m identical machines, together with the capacity tracker
// that records their occupancy. All placement primitives keep the two consistent.
type Schedule struct {
	m       int
	placed  []*Job
	tracker capacity.Tracker
}

// New returns an empty schedule on m machines. At least two machines are required.
func New(m int) (*Schedule, error) {
	if m < 2 {
		return nil, &schederrors.ErrInvalidArgument{
			Name:    "machines",
			Value:   m,
			Message: "at least two machines are required",
		}
	}
	return newSchedule(m), nil
}

// NewWithTracker returns an empty schedule backed by the provided tracker.
// Only intended for substituting a stand-in tracker in tests.
func NewWithTracker(m int, tracker capacity.Tracker) *Schedule {
	return &Schedule{
		m:       m,
		tracker: tracker,
	}
}

func newSchedule(m int) *Schedule {
	return NewWithTracker(m, capacity.NewEventTracker(m))
}

func (s *Schedule) Machines() int {
	return s.m
}

func (s *Schedule) Makespan() int {
	return s.tracker.Makespan()
}

func (s *Schedule) SetMakespan(makespan int) {
	s.tracker.SetMakespan(makespan)
}

// PlacedJobs returns the placed jobs. The slice is shared with the schedule.
func (s *Schedule) PlacedJobs() []*Job {
	return s.placed
}

func (s *Schedule) Len() int {
	return len(s.placed)
}

func (s *Schedule) Tracker() capacity.Tracker {
	return s.tracker
}

// Reset empties the schedule and replaces its tracker with a fresh one. Jobs that were placed
// are left as they are; callers moving jobs elsewhere must detach them first.
func (s *Schedule) Reset() {
	s.placed = nil
	s.tracker = capacity.NewEventTracker(s.m)
}

// PlaceJob places j at the earliest time at or after the cursor at which it fits for its whole duration.
func (s *Schedule) PlaceJob(j *Job) {
	s.PlaceJobAt(j, s.tracker.EarliestFeasibleWindow(j.ProcessingTime, j.RequiredMachines))
}

// PlaceJobAt places j at start. Feasibility is not checked.
func (s *Schedule) PlaceJobAt(j *Job, start int) {
	s.tracker.Place(start, j.ProcessingTime, j.RequiredMachines)
	j.place(start)
	s.placed = append(s.placed, j)
}

// EarliestStart returns the earliest time from 0 at which width machines are available for
// duration. The cursor is reset before and after.
func (s *Schedule) EarliestStart(duration int, width int) int {
	s.tracker.ResetCursor()
	t := s.tracker.EarliestFeasibleWindow(duration, width)
	s.tracker.ResetCursor()
	return t
}

// ListSchedule places all jobs greedily from time 0; see ListScheduleUntil.
func (s *Schedule) ListSchedule(jobs []*Job) []*Job {
	remaining, _, _ := s.listSchedule(jobs, 0, false)
	return remaining
}

// ListScheduleUntil places jobs greedily from time 0. At each step the narrowest remaining job
// determines the next time t at which anything fits; of the jobs that fit at t, the widest one
// that fits for its whole duration is placed there. If that job would complete after untilT,
// scheduling stops and the unplaced jobs are returned in their original order together with true.
// Afterwards the placed jobs are ordered by start and then by decreasing width.
func (s *Schedule) ListScheduleUntil(jobs []*Job, untilT int) ([]*Job, bool) {
	remaining, _, stopped := s.listSchedule(jobs, untilT, true)
	return remaining, stopped
}

// listSchedule additionally returns the completion time of the job that caused it to stop.
func (s *Schedule) listSchedule(jobs []*Job, untilT int, bounded bool) ([]*Job, int, bool) {
	defer func() {
		sortByStartThenWidthDesc(s.placed)
	}()
	order := make(map[*Job]int, len(jobs))
	for i, j := range jobs {
		order[j] = i
	}
	pool := slices.Clone(jobs)
	slices.SortStableFunc(pool, func(a, b *Job) bool {
		return a.RequiredMachines < b.RequiredMachines
	})

	s.tracker.ResetCursor()
	for len(pool) > 0 {
		narrowest := pool[0]
		t := s.tracker.EarliestFeasibleWindow(narrowest.ProcessingTime, narrowest.RequiredMachines)
		_, available := s.tracker.Cursor()

		// Widest job fitting at t; the narrowest always does.
		chosen := sort.Search(len(pool), func(i int) bool {
			return pool[i].RequiredMachines > available
		}) - 1
		for chosen > 0 && !s.tracker.FitsAtCursor(pool[chosen].ProcessingTime, pool[chosen].RequiredMachines) {
			chosen--
		}

		j := pool[chosen]
		if bounded && t+j.ProcessingTime > untilT {
			slices.SortFunc(pool, func(a, b *Job) bool {
				return order[a] < order[b]
			})
			return pool, t + j.ProcessingTime, true
		}
		s.PlaceJobAt(j, t)
		pool = slices.Delete(pool, chosen, chosen+1)
	}
	return pool, 0, false
}

// TwoLanePack stacks jobs by decreasing width into two lanes, each of which runs at most one job
// at a time. Every job must require at most m/2 machines, so the lanes never conflict. Lanes start
// at the current makespan.
//
// Lane assignment mirrors a tracker in which the wide lane books m-1 machines and the narrow lane
// books one: a job goes to the wide lane whenever exactly m-1 machines are free there. The
// schedule's own tracker books each job's true width.
func (s *Schedule) TwoLanePack(jobs []*Job) error {
	for _, j := range jobs {
		if 2*j.RequiredMachines > s.m {
			return &schederrors.ErrInvalidArgument{
				Name:    "requiredMachines",
				Value:   j.RequiredMachines,
				Message: "two-lane packing requires every job to use at most half of the machines",
			}
		}
	}
	sorted := slices.Clone(jobs)
	sortByWidthDesc(sorted)

	base := s.tracker.Makespan()
	lanes := capacity.NewEventTracker(s.m)
	for _, j := range sorted {
		t := lanes.EarliestFeasibleTime(1)
		_, available := lanes.Cursor()
		if available == s.m-1 {
			lanes.Place(t, j.ProcessingTime, s.m-1)
		} else {
			lanes.Place(t, j.ProcessingTime, 1)
		}
		s.PlaceJobAt(j, base+t)
	}
	s.tracker.ResetCursor()
	return nil
}

// BackfillFromTop builds a single tower hanging down from the makespan. Jobs are considered by
// decreasing width and accepted if the capacity profile guarantees enough machines over the
// depth the tower would then reach. Accepted jobs are placed bottom-up; rejected jobs are
// returned in their original order.
func (s *Schedule) BackfillFromTop(jobs []*Job) []*Job {
	sorted := slices.Clone(jobs)
	sortByWidthDesc(sorted)

	profile := s.tracker.CapacityProfileFromTop()
	makespan := s.tracker.Makespan()
	usedDepth := 0
	accepted := make([]*Job, 0, len(sorted))
	starts := make(map[*Job]int, len(sorted))
	for _, j := range sorted {
		available, ok := profile.Ceiling(usedDepth + j.ProcessingTime)
		if !ok || available < j.RequiredMachines {
			continue
		}
		usedDepth += j.ProcessingTime
		starts[j] = makespan - usedDepth
		accepted = append(accepted, j)
	}

	for i := len(accepted) - 1; i >= 0; i-- {
		s.PlaceJobAt(accepted[i], starts[accepted[i]])
	}
	s.tracker.ResetCursor()

	rejected := make([]*Job, 0, len(jobs)-len(accepted))
	for _, j := range jobs {
		if _, ok := starts[j]; !ok {
			rejected = append(rejected, j)
		}
	}
	return rejected
}

// SplitAt moves every job starting before t into lower at its unchanged start, and every other
// job into upper at start-t. The schedule is empty afterwards.
func (s *Schedule) SplitAt(t int, lower *Schedule, upper *Schedule) {
	jobs := s.placed
	s.Reset()
	for _, j := range jobs {
		start := j.start
		j.unplace()
		if start < t {
			lower.PlaceJobAt(j, start)
		} else {
			upper.PlaceJobAt(j, start-t)
		}
	}
}

// RemoveIf removes the placed jobs matching predicate, releases the machines they occupied and
// returns them unplaced in placement order. The makespan is not lowered.
func (s *Schedule) RemoveIf(predicate func(*Job) bool) []*Job {
	var removed []*Job
	kept := s.placed[:0]
	for _, j := range s.placed {
		if !predicate(j) {
			kept = append(kept, j)
			continue
		}
		s.tracker.RecordDelta(j.start, j.RequiredMachines)
		s.tracker.RecordDelta(j.CompletionTime(), -j.RequiredMachines)
		j.unplace()
		removed = append(removed, j)
	}
	for i := len(kept); i < len(s.placed); i++ {
		s.placed[i] = nil
	}
	s.placed = kept
	return removed
}

// RemoveAbove removes every job completing after t.
func (s *Schedule) RemoveAbove(t int) []*Job {
	return s.RemoveIf(func(j *Job) bool {
		return j.CompletionTime() > t
	})
}

// StackOnTop moves the jobs of other into s. Starting from the current makespan, each job is
// placed, in order of its start in other, at the earliest time it fits. The result is never
// higher than shifting other by the makespan. other is empty afterwards.
func (s *Schedule) StackOnTop(other *Schedule) {
	jobs := slices.Clone(other.placed)
	sortByStart(jobs)
	other.Reset()

	s.tracker.SetCursorToTop()
	for _, j := range jobs {
		j.unplace()
		s.PlaceJob(j)
	}
	s.tracker.ResetCursor()
}

// Rotated returns the mirror image of s, in which every job starts at makespan-start-duration.
// s is empty afterwards.
func (s *Schedule) Rotated() *Schedule {
	makespan := s.Makespan()
	rotated := newSchedule(s.m)
	jobs := s.placed
	s.Reset()
	for _, j := range jobs {
		start := j.start
		j.unplace()
		rotated.PlaceJobAt(j, makespan-start-j.ProcessingTime)
	}
	sortByStartThenWidthDesc(rotated.placed)
	rotated.SetMakespan(makespan)
	return rotated
}

// SortIntoTwoTowers rebuilds the schedule as two towers. The higher tower is the chain of jobs
// ending at the makespan, where each job starts exactly when the one below it ends, plus
// newJobs; it is stacked from time 0 by decreasing width. All other placed jobs are stacked
// directly above it.
func (s *Schedule) SortIntoTwoTowers(newJobs []*Job) {
	byCompletion := make(map[int][]*Job, len(s.placed))
	for _, j := range s.placed {
		byCompletion[j.CompletionTime()] = append(byCompletion[j.CompletionTime()], j)
	}
	inChain := make(map[*Job]bool)
	higher := make([]*Job, 0, len(newJobs))
	for t := s.Makespan(); t > 0; {
		candidates := byCompletion[t]
		if len(candidates) == 0 {
			break
		}
		j := candidates[0]
		byCompletion[t] = candidates[1:]
		inChain[j] = true
		higher = append(higher, j)
		t = j.start
	}
	higher = append(higher, newJobs...)
	sortByWidthDesc(higher)

	lower := make([]*Job, 0, len(s.placed))
	for _, j := range s.placed {
		if !inChain[j] {
			lower = append(lower, j)
		}
	}
	for _, j := range s.placed {
		j.unplace()
	}

	s.Reset()
	top := s.StackVertically(higher, 0)
	s.StackVertically(lower, top)
}

// StackVertically places jobs one on top of the other from start and returns the time at which
// the last one completes.
func (s *Schedule) StackVertically(jobs []*Job, start int) int {
	t := start
	for _, j := range jobs {
		s.PlaceJobAt(j, t)
		t += j.ProcessingTime
	}
	return t
}

// BalancedTwoWayFill list-schedules jobs alternately into a and b below ceilings that start at
// balance below each schedule's makespan on entry. Whenever a round leaves jobs unplaced, both
// ceilings are raised by the smaller of the two overshoots (where the job that stopped each pass
// would have finished, past that pass's ceiling), clamped to [1, pMax]. The smaller overshoot is
// used, never the larger, so neither schedule grows more than pMax beyond the other. The final
// balance height is returned; it may be negative.
func BalancedTwoWayFill(jobs []*Job, a *Schedule, b *Schedule, balance int, pMax int) int {
	if pMax < 1 {
		pMax = 1
	}
	ceilA := a.Makespan()
	ceilB := b.Makespan()
	remaining := jobs
	for len(remaining) > 0 {
		var finishA, finishB int
		remaining, finishA, _ = a.listSchedule(remaining, ceilA-balance, true)
		if len(remaining) == 0 {
			break
		}
		remaining, finishB, _ = b.listSchedule(remaining, ceilB-balance, true)
		if len(remaining) == 0 {
			break
		}
		step := finishA - (ceilA - balance)
		if overshootB := finishB - (ceilB - balance); overshootB < step {
			step = overshootB
		}
		if step < 1 {
			step = 1
		} else if step > pMax {
			step = pMax
		}
		balance -= step
	}
	return balance
}

// MakespanLowerBound returns the area lower bound of the placed jobs.
func (s *Schedule) MakespanLowerBound() (float64, error) {
	return AreaLowerBound(s.placed, s.m)
}

// Verify checks, from the placed jobs alone, that every job has a non-negative start and that
// no more than m machines are in use at any time.
func (s *Schedule) Verify() error {
	deltas := make(map[int]int, 2*len(s.placed))
	for _, j := range s.placed {
		if !j.placed {
			return schederrors.InvariantViolationf("Verify", "job %s is listed but has no starting time", j.Id)
		}
		if j.start < 0 {
			return schederrors.InvariantViolationf("Verify", "job %s starts at negative time %d", j.Id, j.start)
		}
		if j.CompletionTime() > s.Makespan() {
			return schederrors.InvariantViolationf(
				"Verify", "job %s completes at %d after the makespan %d", j.Id, j.CompletionTime(), s.Makespan(),
			)
		}
		deltas[j.start] += j.RequiredMachines
		deltas[j.CompletionTime()] -= j.RequiredMachines
	}
	times := maps.Keys(deltas)
	slices.Sort(times)
	inUse := 0
	for _, t := range times {
		inUse += deltas[t]
		if inUse > s.m {
			return schederrors.InvariantViolationf("Verify", "%d of %d machines in use at time %d", inUse, s.m, t)
		}
	}
	return nil
}

func (s *Schedule) String() string {
	w := util.NewTable(1)
	w.Writef("Schedule on %d machines, makespan %d:\n", s.m, s.Makespan())
	w.Row("", "Id:", "Start:", "Duration:", "Machines:")
	for _, j := range s.placed {
		w.Row("", j.Id, j.start, j.ProcessingTime, j.RequiredMachines)
	}
	return w.String()
}
