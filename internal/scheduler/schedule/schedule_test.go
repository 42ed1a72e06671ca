package schedule

import (
	"math"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towersched/towersched/internal/common/schederrors"
	"github.com/towersched/towersched/internal/scheduler/capacity"
)

// fixedProfileTracker reports a fixed capacity profile and makespan.
type fixedProfileTracker struct {
	*capacity.EventTracker
	profile  *capacity.Profile
	makespan int
}

func (t *fixedProfileTracker) CapacityProfileFromTop() *capacity.Profile {
	return t.profile
}

func (t *fixedProfileTracker) Makespan() int {
	return t.makespan
}

func testJobs(durationsAndWidths ...[2]int) []*Job {
	jobs := make([]*Job, len(durationsAndWidths))
	for i, dw := range durationsAndWidths {
		jobs[i] = NewJob(dw[0], dw[1])
	}
	return jobs
}

func startsOf(jobs []*Job) []int {
	starts := make([]int, len(jobs))
	for i, j := range jobs {
		start, ok := j.StartingTime()
		if !ok {
			start = -1
		}
		starts[i] = start
	}
	return starts
}

func widthsOf(jobs []*Job) []int {
	widths := make([]int, len(jobs))
	for i, j := range jobs {
		widths[i] = j.RequiredMachines
	}
	return widths
}

func mustNew(t *testing.T, m int) *Schedule {
	s, err := New(m)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsFewerThanTwoMachines(t *testing.T) {
	for name, m := range map[string]int{"zero": 0, "one": 1, "negative": -3} {
		t.Run(name, func(t *testing.T) {
			_, err := New(m)
			var e *schederrors.ErrInvalidArgument
			assert.True(t, errors.As(err, &e))
		})
	}
}

func TestListSchedule(t *testing.T) {
	s := mustNew(t, 100)
	jobs := testJobs(
		[2]int{10, 80}, [2]int{15, 70}, [2]int{30, 60}, [2]int{20, 50}, [2]int{35, 50}, [2]int{10, 40},
		[2]int{10, 25}, [2]int{10, 20}, [2]int{10, 10}, [2]int{10, 9}, [2]int{10, 8},
	)
	remaining := s.ListSchedule(jobs)

	assert.Empty(t, remaining)
	assert.Equal(t, []int{0, 0, 10, 10, 20, 20, 20, 25, 30, 55, 55}, startsOf(s.PlacedJobs()))
	assert.Equal(t, []int{80, 20, 70, 25, 10, 9, 8, 60, 40, 50, 50}, widthsOf(s.PlacedJobs()))
	assert.Equal(t, 90, s.Makespan())
	assert.NoError(t, s.Verify())
}

func TestListScheduleUntil_StopsAndKeepsOrder(t *testing.T) {
	s := mustNew(t, 10)
	a := NewJobWithId("a", 10, 6)
	b := NewJobWithId("b", 10, 6)
	c := NewJobWithId("c", 3, 4)
	d := NewJobWithId("d", 10, 5)

	remaining, stopped := s.ListScheduleUntil([]*Job{a, b, c, d}, 12)

	assert.True(t, stopped)
	assert.Equal(t, []*Job{a, d}, remaining)
	assert.Equal(t, []*Job{b, c}, s.PlacedJobs())
	assert.Equal(t, []int{0, 0}, startsOf(s.PlacedJobs()))
	assert.False(t, a.IsPlaced())
	assert.False(t, d.IsPlaced())
}

func TestListSchedule_DoesNotOverlapJobsAboveTheCursor(t *testing.T) {
	s := mustNew(t, 10)
	s.PlaceJobAt(NewJob(5, 8), 5)
	j := NewJob(10, 5)

	s.ListSchedule([]*Job{j})

	start, _ := j.StartingTime()
	assert.Equal(t, 10, start)
	assert.NoError(t, s.Verify())
}

func TestTwoLanePack(t *testing.T) {
	s := mustNew(t, 100)
	jobs := testJobs(
		[2]int{20, 50}, [2]int{35, 50}, [2]int{10, 40}, [2]int{10, 25},
		[2]int{10, 20}, [2]int{10, 10}, [2]int{10, 9}, [2]int{10, 8},
	)
	require.NoError(t, s.TwoLanePack(jobs))

	processingOrder := []*Job{jobs[1], jobs[0], jobs[2], jobs[3], jobs[4], jobs[5], jobs[6], jobs[7]}
	assert.Equal(t, []int{0, 0, 20, 30, 35, 40, 45, 50}, startsOf(processingOrder))
	assert.Equal(t, 60, s.Makespan())
	assert.NoError(t, s.Verify())
}

func TestTwoLanePack_StartsAtMakespan(t *testing.T) {
	s := mustNew(t, 10)
	s.PlaceJobAt(NewJob(7, 10), 0)
	jobs := testJobs([2]int{3, 5}, [2]int{2, 5})

	require.NoError(t, s.TwoLanePack(jobs))

	assert.Equal(t, []int{7, 7}, startsOf(jobs))
	assert.NoError(t, s.Verify())
}

func TestTwoLanePack_RejectsJobsWiderThanHalf(t *testing.T) {
	s := mustNew(t, 10)
	err := s.TwoLanePack(testJobs([2]int{3, 5}, [2]int{2, 6}))
	var e *schederrors.ErrInvalidArgument
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, 0, s.Len())
}

func TestBackfillFromTop_FixedProfile(t *testing.T) {
	tracker := &fixedProfileTracker{
		EventTracker: capacity.NewEventTracker(11),
		profile:      capacity.NewProfile(map[int]int{0: 11, 1: 10, 3: 8, 5: 4, 7: 2, 9: 0}),
		makespan:     9,
	}
	s := NewWithTracker(11, tracker)
	jobs := testJobs(
		[2]int{2, 10}, [2]int{2, 8}, [2]int{1, 6}, [2]int{5, 4}, [2]int{2, 3}, [2]int{3, 2}, [2]int{1, 1},
	)

	rejected := s.BackfillFromTop(jobs)

	assert.Equal(t, []int{10, 4, 2}, widthsOf(rejected))
	accepted := []*Job{jobs[1], jobs[2], jobs[4], jobs[6]}
	assert.Equal(t, []int{7, 6, 4, 3}, startsOf(accepted))
	for _, j := range rejected {
		assert.False(t, j.IsPlaced())
	}
}

func TestBackfillFromTop_UnderBigJobs(t *testing.T) {
	s := mustNew(t, 100)
	s.ListSchedule(testJobs([2]int{30, 100}, [2]int{10, 90}, [2]int{10, 80}, [2]int{50, 60}))
	jobs := testJobs([2]int{10, 40}, [2]int{20, 35}, [2]int{10, 30}, [2]int{10, 26})

	rejected := s.BackfillFromTop(jobs)

	assert.Empty(t, rejected)
	assert.Equal(t, []int{90, 70, 60, 50}, startsOf(jobs))
	assert.Equal(t, 100, s.Makespan())
	assert.NoError(t, s.Verify())
}

func TestSplitAt(t *testing.T) {
	s := mustNew(t, 10)
	a := NewJobWithId("a", 5, 4)
	b := NewJobWithId("b", 10, 3)
	c := NewJobWithId("c", 2, 10)
	s.PlaceJobAt(a, 0)
	s.PlaceJobAt(b, 3)
	s.PlaceJobAt(c, 13)
	lower := mustNew(t, 10)
	upper := mustNew(t, 10)

	s.SplitAt(5, lower, upper)

	assert.Equal(t, []*Job{a, b}, lower.PlacedJobs())
	assert.Equal(t, []int{0, 3}, startsOf(lower.PlacedJobs()))
	assert.Equal(t, 13, lower.Makespan())
	assert.Equal(t, []*Job{c}, upper.PlacedJobs())
	assert.Equal(t, []int{8}, startsOf(upper.PlacedJobs()))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Makespan())
}

func TestRemoveIf(t *testing.T) {
	s := mustNew(t, 10)
	keep := NewJobWithId("keep", 5, 4)
	drop := NewJobWithId("drop", 6, 6)
	s.PlaceJobAt(keep, 0)
	s.PlaceJobAt(drop, 0)

	removed := s.RemoveIf(func(j *Job) bool { return j.Id == "drop" })

	assert.Equal(t, []*Job{drop}, removed)
	assert.False(t, drop.IsPlaced())
	assert.Equal(t, []*Job{keep}, s.PlacedJobs())
	assert.Equal(t, 6, s.Makespan())
	tracker := s.Tracker().(*capacity.EventTracker)
	assert.Equal(t, 6, tracker.AvailableAt(0))
	assert.Equal(t, 10, tracker.AvailableAt(5))
}

func TestRemoveAbove_RoundTripRestoresEvents(t *testing.T) {
	s := mustNew(t, 10)
	s.ListSchedule(testJobs([2]int{4, 5}, [2]int{6, 5}, [2]int{3, 2}))
	tracker := s.Tracker().(*capacity.EventTracker)
	before := tracker.Events()
	starts := map[*Job]int{}
	for _, j := range s.PlacedJobs() {
		starts[j], _ = j.StartingTime()
	}

	removed := s.RemoveAbove(4)
	require.NotEmpty(t, removed)
	for _, j := range removed {
		s.PlaceJobAt(j, starts[j])
	}

	assert.Equal(t, before, tracker.Events())
}

func TestStackOnTop(t *testing.T) {
	s := mustNew(t, 100)
	s.PlaceJobAt(NewJob(10, 100), 0)
	other := mustNew(t, 100)
	jobs := testJobs([2]int{5, 50}, [2]int{5, 50}, [2]int{5, 100})
	other.PlaceJobAt(jobs[2], 5)
	other.PlaceJobAt(jobs[0], 0)
	other.PlaceJobAt(jobs[1], 0)

	s.StackOnTop(other)

	assert.Equal(t, []int{10, 10, 15}, startsOf(jobs))
	assert.Equal(t, 20, s.Makespan())
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 0, other.Len())
	assert.Equal(t, 0, other.Makespan())
	assert.NoError(t, s.Verify())
}

func TestStackOnTop_NeverHigherThanShifting(t *testing.T) {
	s := mustNew(t, 10)
	s.PlaceJobAt(NewJob(4, 6), 0)
	other := mustNew(t, 10)
	other.ListSchedule(testJobs([2]int{3, 7}, [2]int{2, 3}, [2]int{5, 4}, [2]int{1, 10}))
	shifted := s.Makespan() + other.Makespan()

	s.StackOnTop(other)

	assert.LessOrEqual(t, s.Makespan(), shifted)
	assert.NoError(t, s.Verify())
}

func TestRotated(t *testing.T) {
	s := mustNew(t, 100)
	a := NewJobWithId("a", 10, 60)
	b := NewJobWithId("b", 5, 40)
	c := NewJobWithId("c", 5, 40)
	s.PlaceJobAt(a, 0)
	s.PlaceJobAt(b, 0)
	s.PlaceJobAt(c, 5)

	rotated := s.Rotated()

	assert.Equal(t, []int{0, 5, 0}, startsOf([]*Job{a, b, c}))
	assert.Equal(t, 10, rotated.Makespan())
	assert.NoError(t, rotated.Verify())
	assert.Equal(t, 0, s.Len())
}

func TestSortIntoTwoTowers(t *testing.T) {
	s := mustNew(t, 10)
	a := NewJobWithId("a", 5, 3)
	b := NewJobWithId("b", 5, 3)
	c := NewJobWithId("c", 4, 2)
	d := NewJobWithId("d", 2, 5)
	s.PlaceJobAt(a, 0)
	s.PlaceJobAt(b, 5)
	s.PlaceJobAt(c, 0)

	s.SortIntoTwoTowers([]*Job{d})

	assert.Equal(t, []int{7, 2, 12, 0}, startsOf([]*Job{a, b, c, d}))
	assert.Equal(t, 16, s.Makespan())
	assert.Equal(t, 4, s.Len())
	assert.NoError(t, s.Verify())
}

func TestStackVertically(t *testing.T) {
	s := mustNew(t, 4)
	jobs := testJobs([2]int{2, 4}, [2]int{3, 1}, [2]int{1, 2})
	assert.Equal(t, 11, s.StackVertically(jobs, 5))
	assert.Equal(t, []int{5, 7, 10}, startsOf(jobs))
}

func TestBalancedTwoWayFill(t *testing.T) {
	a := mustNew(t, 10)
	a.PlaceJobAt(NewJob(10, 10), 0)
	b := mustNew(t, 10)
	b.PlaceJobAt(NewJob(6, 10), 0)
	jobs := testJobs([2]int{2, 4}, [2]int{2, 4}, [2]int{2, 4}, [2]int{2, 4}, [2]int{2, 4}, [2]int{2, 4})

	balance := BalancedTwoWayFill(jobs, a, b, 0, 2)

	assert.Equal(t, -4, balance)
	assert.Equal(t, 5, a.Len())
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 14, a.Makespan())
	assert.Equal(t, 8, b.Makespan())
	assert.NoError(t, a.Verify())
	assert.NoError(t, b.Verify())
	for _, j := range jobs {
		assert.True(t, j.IsPlaced())
	}
}

func TestBalancedTwoWayFill_EmptyPool(t *testing.T) {
	a := mustNew(t, 10)
	b := mustNew(t, 10)
	assert.Equal(t, 7, BalancedTwoWayFill(nil, a, b, 7, 3))
}

func TestMakespanLowerBound(t *testing.T) {
	s := mustNew(t, 4)
	s.ListSchedule(testJobs([2]int{3, 2}, [2]int{2, 4}, [2]int{1, 1}))
	lb, err := s.MakespanLowerBound()
	require.NoError(t, err)
	assert.InDelta(t, 15.0/4.0, lb, 1e-9)
}

func TestAreaLowerBound_Overflow(t *testing.T) {
	tests := map[string]struct {
		jobs []*Job
	}{
		"product overflows": {
			jobs: []*Job{NewJobWithId("a", math.MaxInt64, 4)},
		},
		"sum overflows": {
			jobs: []*Job{
				NewJobWithId("a", math.MaxInt64, 1),
				NewJobWithId("b", math.MaxInt64, 1),
				NewJobWithId("c", math.MaxInt64, 1),
			},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := AreaLowerBound(tc.jobs, 10)
			var e *schederrors.ErrAreaOverflow
			assert.True(t, errors.As(err, &e))
		})
	}
}

func TestVerify_DetectsOversubscription(t *testing.T) {
	s := mustNew(t, 10)
	s.PlaceJobAt(NewJob(5, 6), 0)
	s.PlaceJobAt(NewJob(5, 6), 3)
	err := s.Verify()
	var e *schederrors.ErrInvariantViolation
	assert.True(t, errors.As(err, &e))
}

func TestValidateAll(t *testing.T) {
	jobs := []*Job{
		NewJobWithId("ok", 3, 4),
		NewJobWithId("zero-duration", 0, 4),
		NewJobWithId("too-wide", 3, 11),
	}
	err := ValidateAll(jobs, 10)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.NoError(t, ValidateAll(jobs[:1], 10))
}

func TestString(t *testing.T) {
	s := mustNew(t, 4)
	s.PlaceJobAt(NewJobWithId("abc", 2, 3), 1)
	assert.Contains(t, s.String(), "abc")
	assert.Contains(t, s.String(), "makespan 3")
}
