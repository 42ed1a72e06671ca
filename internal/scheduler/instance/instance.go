package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-zglob"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/renstrom/shortuuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	commonconfig "github.com/towersched/towersched/internal/common/config"
	"github.com/towersched/towersched/internal/common/schederrors"
	"github.com/towersched/towersched/internal/scheduler/schedule"
)

// Instance is a batch of jobs to be scheduled on a number of machines.
type Instance struct {
	Name string `yaml:"name"`
	// Number of machines. Zero means the configured default.
	Machines int       `yaml:"machines"`
	Jobs     []JobSpec `yaml:"jobs"`
}

// JobSpec describes one job. In instance files it can also be written as "<duration>x<width>".
type JobSpec struct {
	Id       string `yaml:"id,omitempty"`
	Duration int    `yaml:"duration"`
	Width    int    `yaml:"width"`
}

func newJobSpec(duration int, width int) JobSpec {
	return JobSpec{Duration: duration, Width: width}
}

// FromPattern loads every instance file matching pattern. A leading ~ stands for the home directory.
func FromPattern(pattern string) ([]*Instance, error) {
	pattern, err := homedir.Expand(pattern)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	filePaths, err := zglob.Glob(pattern)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return FromFilePaths(filePaths)
}

func FromFilePaths(filePaths []string) ([]*Instance, error) {
	rv := make([]*Instance, len(filePaths))
	for i, filePath := range filePaths {
		instance, err := FromFilePath(filePath)
		if err != nil {
			return nil, err
		}
		rv[i] = instance
	}
	return rv, nil
}

func FromFilePath(filePath string) (*Instance, error) {
	rv := &Instance{}
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		err = errors.WithMessagef(err, "failed to read in Instance %s", filePath)
		return nil, errors.WithStack(err)
	}
	if err := v.Unmarshal(rv, commonconfig.WithHooks(commonconfig.DurationByWidthHookFunc(newJobSpec))); err != nil {
		err = errors.WithMessagef(err, "failed to unmarshal Instance %s", filePath)
		return nil, errors.WithStack(err)
	}

	// If no name is provided, set it to be the filename.
	if rv.Name == "" {
		fileName := filepath.Base(filePath)
		fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
		rv.Name = fileName
	}

	// Generate random ids for any jobs without an explicitly set id.
	for i, job := range rv.Jobs {
		if job.Id == "" {
			job.Id = shortuuid.New()
		}
		rv.Jobs[i] = job
	}
	return rv, nil
}

// WithDefaultMachines sets the number of machines if the instance doesn't specify one.
func (instance *Instance) WithDefaultMachines(machines int) *Instance {
	if instance.Machines == 0 {
		instance.Machines = machines
	}
	return instance
}

// Validate returns every problem with the instance as a *multierror.Error.
func (instance *Instance) Validate() error {
	var result *multierror.Error
	if instance.Machines < 2 {
		result = multierror.Append(result, &schederrors.ErrInvalidArgument{
			Name:    "machines",
			Value:   instance.Machines,
			Message: fmt.Sprintf("instance %s needs at least two machines", instance.Name),
		})
	}
	seen := make(map[string]bool, len(instance.Jobs))
	for _, job := range instance.Jobs {
		if job.Id != "" && seen[job.Id] {
			result = multierror.Append(result, &schederrors.ErrInvalidArgument{
				Name:    "id",
				Value:   job.Id,
				Message: fmt.Sprintf("duplicate job id in instance %s", instance.Name),
			})
		}
		seen[job.Id] = true
	}
	if err := schedule.ValidateAll(instance.ScheduleJobs(), instance.Machines); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// ScheduleJobs returns new, unplaced jobs for the instance, in file order.
func (instance *Instance) ScheduleJobs() []*schedule.Job {
	rv := make([]*schedule.Job, len(instance.Jobs))
	for i, job := range instance.Jobs {
		if job.Id == "" {
			rv[i] = schedule.NewJob(job.Duration, job.Width)
		} else {
			rv[i] = schedule.NewJobWithId(job.Id, job.Duration, job.Width)
		}
	}
	return rv
}

// WriteFile writes the instance to filePath as YAML.
func (instance *Instance) WriteFile(filePath string) error {
	bytes, err := yaml.Marshal(instance)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(filePath, bytes, 0o644); err != nil {
		return errors.WithMessagef(err, "failed to write Instance %s", instance.Name)
	}
	return nil
}
