package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/towersched/towersched/internal/common/runcontext"
	"github.com/towersched/towersched/internal/scheduler/bench"
)

func benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Schedule random instances of increasing size and record run times and approximation ratios.",
		RunE:  runBench,
	}
	cmd.Flags().String("output", "", "Path of the CSV file to write. Overrides bench.output if set.")
	cmd.Flags().Int("parallelism", 0, "Maximum number of instances scheduled concurrently. Overrides bench.parallelism if set.")
	return cmd
}

func runBench(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	benchConfig := a.config.Bench
	if cmd.Flags().Changed("output") {
		if benchConfig.Output, err = cmd.Flags().GetString("output"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("parallelism") {
		if benchConfig.Parallelism, err = cmd.Flags().GetInt("parallelism"); err != nil {
			return err
		}
	}

	ctx := runcontext.Background()
	results, err := bench.New(a.config.Machines, benchConfig, a.metrics).Run(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		ctx.Log.Infof("n=%d time=%s makespan=%d lowerBound=%.1f ratio=%.3f", r.NumJobs, r.RunTime, r.Makespan, r.LowerBound, r.Ratio)
	}
	if benchConfig.Output == "" {
		return nil
	}
	f, err := os.Create(benchConfig.Output)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return bench.WriteCsv(f, results)
}
