package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/towersched/towersched/internal/common/runcontext"
	"github.com/towersched/towersched/internal/scheduler/instance"
	"github.com/towersched/towersched/internal/scheduler/tower"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule the jobs of one or more instance files.",
		RunE:  runSchedule,
	}
	cmd.Flags().String("instances", "", "Glob pattern specifying instance files to schedule.")
	cmd.Flags().String("output", "", "Directory to write one <name>.schedule.yaml per instance to. Written to stdout if empty.")
	cmd.Flags().Bool("verify", true, "Check that no point in time uses more machines than are available.")
	cmd.Flags().Bool("table", false, "Log each schedule as a table.")
	return cmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	instancePattern, err := cmd.Flags().GetString("instances")
	if err != nil {
		return err
	}
	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	verify, err := cmd.Flags().GetBool("verify")
	if err != nil {
		return err
	}
	table, err := cmd.Flags().GetBool("table")
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	instances, err := instance.FromPattern(instancePattern)
	if err != nil {
		return err
	}
	ctx := runcontext.Background()
	for _, inst := range instances {
		inst = inst.WithDefaultMachines(a.config.Machines)
		ctx := runcontext.WithInstance(ctx, inst.Name, inst.Machines)
		scheduler, err := a.scheduleInstance(ctx, inst, verify)
		if err != nil {
			return err
		}
		if table {
			ctx.Log.Info(scheduler.Result().String())
		}
		report, err := newReport(inst, scheduler)
		if err != nil {
			return err
		}
		if err := writeReport(report, outputDir, cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	return nil
}

// scheduleInstance expects inst to have its machine count set.
func (a *app) scheduleInstance(ctx *runcontext.Context, inst *instance.Instance, verify bool) (*tower.TowerScheduler, error) {
	if err := inst.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid instance %s", inst.Name)
	}
	scheduler, err := tower.NewTowerScheduler(inst.Machines, inst.ScheduleJobs())
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := scheduler.Schedule(ctx); err != nil {
		return nil, err
	}
	runTime := time.Since(start)
	if verify {
		if err := scheduler.Result().Verify(); err != nil {
			return nil, err
		}
	}
	lowerBound, err := scheduler.LowerBound()
	if err != nil {
		return nil, err
	}
	a.metrics.ReportRun(inst.Machines, scheduler.Stats(), scheduler.Makespan(), lowerBound, runTime)
	return scheduler, nil
}

func newReport(inst *instance.Instance, scheduler *tower.TowerScheduler) (*instance.Report, error) {
	lowerBound, err := scheduler.LowerBound()
	if err != nil {
		return nil, err
	}
	return instance.NewReport(inst.Name, scheduler.Result(), lowerBound, string(scheduler.Stats().Branch)), nil
}

func writeReport(report *instance.Report, outputDir string, stdout io.Writer) error {
	if outputDir == "" {
		if _, err := fmt.Fprintln(stdout, "---"); err != nil {
			return errors.WithStack(err)
		}
		return report.Write(stdout)
	}
	f, err := os.Create(filepath.Join(outputDir, report.Name+".schedule.yaml"))
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return report.Write(f)
}
