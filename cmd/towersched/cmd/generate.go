package cmd

import (
	"github.com/spf13/cobra"

	"github.com/towersched/towersched/internal/common/runcontext"
	"github.com/towersched/towersched/internal/scheduler/instance"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a random instance file.",
		RunE:  runGenerate,
	}
	cmd.Flags().String("name", "", "Instance name. Derived from the other options if empty.")
	cmd.Flags().Int("jobs", 100, "Number of jobs.")
	cmd.Flags().Int("minDuration", 1, "Minimum job duration.")
	cmd.Flags().Int("maxDuration", 100, "Maximum job duration.")
	cmd.Flags().Int64("seed", 0, "Random seed.")
	cmd.Flags().String("output", "", "Path of the instance file to write.")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	name, err := cmd.Flags().GetString("name")
	if err != nil {
		return err
	}
	numJobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	minDuration, err := cmd.Flags().GetInt("minDuration")
	if err != nil {
		return err
	}
	maxDuration, err := cmd.Flags().GetInt("maxDuration")
	if err != nil {
		return err
	}
	seed, err := cmd.Flags().GetInt64("seed")
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	inst, err := instance.Generate(instance.GenerateOptions{
		Name:        name,
		NumJobs:     numJobs,
		Machines:    a.config.Machines,
		MinDuration: minDuration,
		MaxDuration: maxDuration,
		Seed:        seed,
	})
	if err != nil {
		return err
	}
	if err := inst.WriteFile(output); err != nil {
		return err
	}
	runcontext.Background().Log.Infof("wrote instance %s with %d jobs to %s", inst.Name, len(inst.Jobs), output)
	return nil
}
