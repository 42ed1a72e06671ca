package bench

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/towersched/towersched/internal/common/runcontext"
	"github.com/towersched/towersched/internal/scheduler/configuration"
	"github.com/towersched/towersched/internal/scheduler/instance"
	"github.com/towersched/towersched/internal/scheduler/tower"
)

var csvHeader = []string{"n", "time_ms", "makespan", "lower_bound", "ratio"}

// Result is the outcome of scheduling one generated instance.
type Result struct {
	NumJobs    int
	RunTime    time.Duration
	Makespan   int
	LowerBound float64
	Ratio      float64
	Branch     tower.Branch
}

type RunReporter interface {
	ReportRun(machines int, stats tower.Stats, makespan int, lowerBound float64, runTime time.Duration)
}

// Bench schedules one random instance per job count and records how long each run took and how far
// its makespan is from the area lower bound.
type Bench struct {
	machines int
	config   configuration.BenchConfig
	// Optional.
	reporter RunReporter
}

func New(machines int, config configuration.BenchConfig, reporter RunReporter) *Bench {
	return &Bench{
		machines: machines,
		config:   config,
		reporter: reporter,
	}
}

func (b *Bench) jobCounts() []int {
	var rv []int
	for n := b.config.MinJobs; n <= b.config.MaxJobs; n += b.config.Step {
		rv = append(rv, n)
	}
	return rv
}

// Run returns results ordered by job count. Instances are scheduled concurrently, at most
// config.Parallelism at a time.
func (b *Bench) Run(ctx *runcontext.Context) ([]Result, error) {
	ctx = runcontext.WithInstance(runcontext.WithLogField(ctx, "benchRunId", uuid.NewString()), "generated", b.machines)
	jobCounts := b.jobCounts()
	results := make([]Result, len(jobCounts))
	ctx.Log.Infof("benchmarking %d instances on %d machines", len(jobCounts), b.machines)

	g, gctx := runcontext.ErrGroup(ctx)
	if b.config.Parallelism > 0 {
		g.SetLimit(b.config.Parallelism)
	}
	var mu sync.Mutex
	for i, n := range jobCounts {
		i, n := i, n
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			result, stats, err := b.runOne(runcontext.WithLogField(gctx, "numJobs", n), n)
			if err != nil {
				return err
			}
			results[i] = result
			if b.reporter != nil {
				mu.Lock()
				b.reporter.ReportRun(b.machines, stats, result.Makespan, result.LowerBound, result.RunTime)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Bench) runOne(ctx *runcontext.Context, n int) (Result, tower.Stats, error) {
	inst, err := instance.Generate(instance.GenerateOptions{
		NumJobs:     n,
		Machines:    b.machines,
		MinDuration: b.config.MinDuration,
		MaxDuration: b.config.MaxDuration,
		Seed:        b.config.Seed + int64(n),
	})
	if err != nil {
		return Result{}, tower.Stats{}, err
	}
	scheduler, err := tower.NewTowerScheduler(b.machines, inst.ScheduleJobs())
	if err != nil {
		return Result{}, tower.Stats{}, err
	}
	start := time.Now()
	if err := scheduler.Schedule(ctx); err != nil {
		return Result{}, tower.Stats{}, err
	}
	runTime := time.Since(start)
	if err := scheduler.Result().Verify(); err != nil {
		return Result{}, tower.Stats{}, err
	}
	lowerBound, err := scheduler.LowerBound()
	if err != nil {
		return Result{}, tower.Stats{}, err
	}
	result := Result{
		NumJobs:    n,
		RunTime:    runTime,
		Makespan:   scheduler.Makespan(),
		LowerBound: lowerBound,
		Branch:     scheduler.Stats().Branch,
	}
	if lowerBound > 0 {
		result.Ratio = float64(result.Makespan) / lowerBound
	}
	ctx.Log.WithField("ratio", result.Ratio).Debugf("scheduled in %s", runTime)
	return result, scheduler.Stats(), nil
}

// WriteCsv writes one row per result below a header row.
func WriteCsv(w io.Writer, results []Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return errors.WithStack(err)
	}
	for _, r := range results {
		record := []string{
			strconv.Itoa(r.NumJobs),
			strconv.FormatFloat(float64(r.RunTime.Microseconds())/1000, 'f', 3, 64),
			strconv.Itoa(r.Makespan),
			strconv.FormatFloat(r.LowerBound, 'f', 3, 64),
			strconv.FormatFloat(r.Ratio, 'f', 4, 64),
		}
		if err := writer.Write(record); err != nil {
			return errors.WithStack(err)
		}
	}
	writer.Flush()
	return errors.WithStack(writer.Error())
}
