package cmd

import (
	"github.com/spf13/cobra"

	"github.com/towersched/towersched/internal/common/runcontext"
	"github.com/towersched/towersched/internal/scheduler/cluster"
	"github.com/towersched/towersched/internal/scheduler/instance"
)

func clusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Schedule instance files and partition each schedule into clusters.",
		RunE:  runCluster,
	}
	cmd.Flags().String("instances", "", "Glob pattern specifying instance files to schedule.")
	cmd.Flags().Int("clusters", 0, "Number of clusters. Overrides cluster.count if set.")
	cmd.Flags().String("output", "", "Directory to write one <name>.schedule.yaml per instance to. Written to stdout if empty.")
	return cmd
}

func runCluster(cmd *cobra.Command, args []string) error {
	instancePattern, err := cmd.Flags().GetString("instances")
	if err != nil {
		return err
	}
	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	numClusters := a.config.Cluster.Count
	if cmd.Flags().Changed("clusters") {
		if numClusters, err = cmd.Flags().GetInt("clusters"); err != nil {
			return err
		}
	}

	instances, err := instance.FromPattern(instancePattern)
	if err != nil {
		return err
	}
	ctx := runcontext.Background()
	for _, inst := range instances {
		inst = inst.WithDefaultMachines(a.config.Machines)
		ctx := runcontext.WithInstance(ctx, inst.Name, inst.Machines)
		scheduler, err := a.scheduleInstance(ctx, inst, true)
		if err != nil {
			return err
		}
		clusterDb, err := cluster.FromSchedule(scheduler.Result(), numClusters)
		if err != nil {
			return err
		}
		clusters, err := clusterDb.Clusters()
		if err != nil {
			return err
		}
		for _, c := range clusters {
			assignments, err := clusterDb.ByCluster(c)
			if err != nil {
				return err
			}
			ctx.Log.WithField("cluster", c).Infof("%d jobs", len(assignments))
		}
		report, err := newReport(inst, scheduler)
		if err != nil {
			return err
		}
		if err := report.AssignClusters(clusterDb.ClusterOf); err != nil {
			return err
		}
		if err := writeReport(report, outputDir, cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	return nil
}
