package tower

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/towersched/towersched/internal/common/runcontext"
	"github.com/towersched/towersched/internal/common/schederrors"
	commonslices "github.com/towersched/towersched/internal/common/slices"
	"github.com/towersched/towersched/internal/scheduler/schedule"
)

type Branch string

const (
	// ManyTiny is taken when tiny jobs are left over after filling the gaps, or when the usage
	// of the big-job schedule stays flat for a long stretch.
	ManyTiny Branch = "many_tiny"
	// FewTiny is taken when every tiny job fits into the gaps.
	FewTiny Branch = "few_tiny"
)

// Stats describes the decisions made while scheduling a batch.
type Stats struct {
	JobsByClass       map[Class]int
	MaxDuration       int
	SeparationTime    int
	DegenerateProfile bool
	// Height reached by the tiny jobs placed alongside the two-lane schedule.
	TinyHeight int
	Branch     Branch
	// Final balance height of the two-way fill; only set on the ManyTiny branch.
	BalanceHeight int
}

// TowerScheduler schedules one batch of jobs on m machines. The batch is bound when the
// scheduler is created and Schedule may run once; each batch needs a new scheduler.
type TowerScheduler struct {
	m    int
	jobs []*schedule.Job
	// Working schedule seeded with the big jobs.
	a *schedule.Schedule
	// Working schedule seeded with the small and medium jobs that could not be backfilled.
	b      *schedule.Schedule
	result *schedule.Schedule
	used   bool
	stats  Stats
}

// NewTowerScheduler binds jobs to a new scheduler on m machines. Fewer than two machines is an
// *schederrors.ErrInvalidArgument; invalid or already placed jobs are reported as a multierror of
// *schederrors.ErrInvalidArgument.
func NewTowerScheduler(m int, jobs []*schedule.Job) (*TowerScheduler, error) {
	result, err := schedule.New(m)
	if err != nil {
		return nil, err
	}
	if err := validateBatch(jobs, m); err != nil {
		return nil, err
	}
	a, _ := schedule.New(m)
	b, _ := schedule.New(m)
	return &TowerScheduler{
		m:      m,
		jobs:   slices.Clone(jobs),
		a:      a,
		b:      b,
		result: result,
	}, nil
}

func validateBatch(jobs []*schedule.Job, m int) error {
	var result *multierror.Error
	if err := schedule.ValidateAll(jobs, m); err != nil {
		result = multierror.Append(result, err)
	}
	for _, j := range jobs {
		if j.IsPlaced() {
			result = multierror.Append(result, &schederrors.ErrInvalidArgument{
				Name:    "jobs",
				Value:   j.Id,
				Message: "job is already placed in another schedule",
			})
		}
	}
	return result.ErrorOrNil()
}

// Schedule places the bound jobs into the result schedule. A second call returns an
// *schederrors.ErrAlreadyScheduled; an internal consistency failure is returned as an
// *schederrors.ErrInvariantViolation.
func (s *TowerScheduler) Schedule(ctx *runcontext.Context) (err error) {
	if s.used {
		return errors.WithStack(&schederrors.ErrAlreadyScheduled{Machines: s.m})
	}
	s.used = true

	defer func() {
		if r := recover(); r != nil {
			var violation *schederrors.ErrInvariantViolation
			if e, ok := r.(error); ok && errors.As(e, &violation) {
				err = e
				return
			}
			panic(r)
		}
	}()
	return s.schedule(ctx, s.jobs)
}

func (s *TowerScheduler) schedule(ctx *runcontext.Context, jobs []*schedule.Job) error {
	pMax := schedule.MaxDuration(jobs)
	byClass := commonslices.GroupByFunc(jobs, classOf(s.m))
	s.stats.MaxDuration = pMax
	s.stats.JobsByClass = make(map[Class]int, len(AllClasses))
	for _, c := range AllClasses {
		s.stats.JobsByClass[c] = len(byClass[c])
	}
	ctx.Log.WithFields(logrus.Fields{
		"tiny":   len(byClass[Tiny]),
		"small":  len(byClass[Small]),
		"medium": len(byClass[Medium]),
		"big":    len(byClass[Big]),
		"pMax":   pMax,
	}).Debug("classified jobs")

	s.a.ListSchedule(byClass[Big])
	leftover := s.a.BackfillFromTop(commonslices.Concatenate(byClass[Medium], byClass[Small]))

	separationTime, degenerate := s.separationTime(pMax)
	s.stats.SeparationTime = separationTime
	s.stats.DegenerateProfile = degenerate
	ctx.Log.Debugf(
		"big jobs reach %d, %d small and medium jobs not backfilled, separation time %d (degenerate profile: %t)",
		s.a.Makespan(), len(leftover), separationTime, degenerate,
	)

	tiny, _ := s.a.ListScheduleUntil(byClass[Tiny], separationTime)

	if err := s.b.TwoLanePack(leftover); err != nil {
		return err
	}

	// Find how high the remaining tiny jobs reach in the two-lane schedule.
	laneHeight := s.b.Makespan()
	s.b.SetMakespan(0)
	tiny, _ = s.b.ListScheduleUntil(tiny, laneHeight)
	tinyHeight := s.b.Makespan()
	if tinyHeight < laneHeight {
		s.b.SetMakespan(laneHeight)
	}
	s.stats.TinyHeight = tinyHeight

	if len(tiny) != 0 || degenerate {
		s.stats.Branch = ManyTiny
		s.scheduleManyTiny(ctx, tiny, pMax)
	} else {
		s.stats.Branch = FewTiny
		s.scheduleFewTiny(ctx, separationTime, tinyHeight)
	}

	ctx.Log.Infof(
		"scheduled %d jobs on %d machines with makespan %d via %s branch",
		s.result.Len(), s.m, s.result.Makespan(), s.stats.Branch,
	)
	return nil
}

// separationTime asks the big-job schedule where a job of a third of the machines could start,
// once for one unit of time and once for the longest duration. The first answer is the separation
// time. The profile is degenerate if both answers agree somewhere below the makespan.
// Both lookups need the machines for their whole duration; a lookup checking width only at its
// start would return the same time for both and could not tell a flat stretch from a gap.
func (s *TowerScheduler) separationTime(pMax int) (int, bool) {
	tau := s.a.EarliestStart(1, s.m/3)
	tauPrime := s.a.EarliestStart(pMax, s.m/3)
	return tau, tau == tauPrime && tau != s.a.Makespan()
}

func (s *TowerScheduler) scheduleManyTiny(ctx *runcontext.Context, tiny []*schedule.Job, pMax int) {
	classify := classOf(s.m)
	smallAndMedium := s.a.RemoveIf(func(j *schedule.Job) bool {
		c := classify(j)
		return c == Small || c == Medium
	})
	removedHeight := schedule.TotalDuration(smallAndMedium)

	tiny = append(tiny, s.b.RemoveIf(func(j *schedule.Job) bool {
		return classify(j) == Tiny
	})...)
	s.b.SortIntoTwoTowers(smallAndMedium)

	s.stats.BalanceHeight = schedule.BalancedTwoWayFill(tiny, s.a, s.b, removedHeight, pMax)
	ctx.Log.Debugf(
		"moved %d small and medium jobs of height %d into the towers, filled %d tiny jobs with final balance height %d",
		len(smallAndMedium), removedHeight, len(tiny), s.stats.BalanceHeight,
	)

	s.result.StackOnTop(s.a)
	s.result.StackOnTop(s.b.Rotated())
}

func (s *TowerScheduler) scheduleFewTiny(ctx *runcontext.Context, separationTime int, tinyHeight int) {
	aTop, _ := schedule.New(s.m)
	aBottom, _ := schedule.New(s.m)
	s.a.SplitAt(separationTime, aTop, aBottom)

	removed := s.b.RemoveAbove(tinyHeight)
	s.b.ListSchedule(removed)
	ctx.Log.Debugf("split big-job schedule at %d, repacked %d jobs above %d", separationTime, len(removed), tinyHeight)

	s.result.StackOnTop(aBottom)
	s.result.StackOnTop(s.b)
	s.result.StackOnTop(aTop)
}

// Result returns the final schedule.
func (s *TowerScheduler) Result() *schedule.Schedule {
	return s.result
}

func (s *TowerScheduler) PlacedJobs() []*schedule.Job {
	return s.result.PlacedJobs()
}

func (s *TowerScheduler) Makespan() int {
	return s.result.Makespan()
}

// LowerBound returns the area lower bound of the scheduled jobs.
func (s *TowerScheduler) LowerBound() (float64, error) {
	return s.result.MakespanLowerBound()
}

func (s *TowerScheduler) Stats() Stats {
	return s.stats
}

func (s *TowerScheduler) Machines() int {
	return s.m
}
