package instance

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/towersched/towersched/internal/scheduler/schedule"
)

func TestReport(t *testing.T) {
	s, err := schedule.New(4)
	require.NoError(t, err)
	s.PlaceJobAt(schedule.NewJobWithId("a", 3, 4), 0)
	s.PlaceJobAt(schedule.NewJobWithId("b", 2, 1), 3)

	report := NewReport("small", s, 3.5, "few_tiny")
	err = report.AssignClusters(func(jobId string) (int, bool, error) {
		if jobId == "b" {
			return 2, true, nil
		}
		return 0, false, nil
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))
	var actual Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &actual))
	assert.Equal(t, Report{
		Name:       "small",
		Machines:   4,
		Makespan:   5,
		LowerBound: 3.5,
		Branch:     "few_tiny",
		Jobs: []Placement{
			{Id: "a", Start: 0, Duration: 3, Width: 4},
			{Id: "b", Start: 3, Duration: 2, Width: 1, Cluster: 2},
		},
	}, actual)
}
