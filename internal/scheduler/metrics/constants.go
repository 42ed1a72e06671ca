package metrics

const (

	// common prefix for all metric names
	prefix = "towersched_"

	// Prometheus Labels
	branchLabel  = "branch"
	classLabel   = "class"
	machineLabel = "machines"
)
