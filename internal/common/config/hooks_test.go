package config

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towersched/towersched/internal/common/schederrors"
)

type durationByWidth struct {
	Duration int
	Width    int
}

func TestParseDurationByWidth(t *testing.T) {
	tests := map[string]struct {
		input            string
		expectedDuration int
		expectedWidth    int
		expectError      bool
	}{
		"plain":          {input: "30x4", expectedDuration: 30, expectedWidth: 4},
		"upper case":     {input: "7X2", expectedDuration: 7, expectedWidth: 2},
		"spaces":         {input: " 10 x 3 ", expectedDuration: 10, expectedWidth: 3},
		"missing width":  {input: "10x", expectError: true},
		"no separator":   {input: "10", expectError: true},
		"too many parts": {input: "1x2x3", expectError: true},
		"not a number":   {input: "ax2", expectError: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			duration, width, err := ParseDurationByWidth(tc.input)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedDuration, duration)
			assert.Equal(t, tc.expectedWidth, width)
		})
	}
}

func TestDurationByWidthHookFunc(t *testing.T) {
	var decoded struct {
		Jobs  []durationByWidth
		Level logrus.Level
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			DurationByWidthHookFunc(func(duration, width int) durationByWidth {
				return durationByWidth{Duration: duration, Width: width}
			}),
			LogLevelHookFunc(),
		),
		Result: &decoded,
	})
	require.NoError(t, err)

	err = decoder.Decode(map[string]interface{}{
		"jobs":  []interface{}{"30x4", map[string]interface{}{"duration": 5, "width": 1}},
		"level": "debug",
	})

	require.NoError(t, err)
	assert.Equal(t, []durationByWidth{{Duration: 30, Width: 4}, {Duration: 5, Width: 1}}, decoded.Jobs)
	assert.Equal(t, logrus.DebugLevel, decoded.Level)
}

func TestValidate(t *testing.T) {
	type bench struct {
		MinJobs int
		MaxJobs int `validate:"gtefield=MinJobs"`
	}
	type config struct {
		Machines int `validate:"gte=2"`
		Bench    bench
	}
	tests := map[string]struct {
		config        config
		expectedNames []string
	}{
		"valid": {
			config: config{Machines: 2, Bench: bench{MinJobs: 1, MaxJobs: 1}},
		},
		"one invalid field": {
			config:        config{Machines: 1},
			expectedNames: []string{"Machines"},
		},
		"nested field": {
			config:        config{Machines: 3, Bench: bench{MinJobs: 5, MaxJobs: 4}},
			expectedNames: []string{"Bench.MaxJobs"},
		},
		"every invalid field reported": {
			config:        config{Machines: 0, Bench: bench{MinJobs: 5}},
			expectedNames: []string{"Machines", "Bench.MaxJobs"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := Validate(tc.config)
			if len(tc.expectedNames) == 0 {
				assert.NoError(t, err)
				return
			}
			var merr *multierror.Error
			require.ErrorAs(t, err, &merr)
			names := make([]string, len(merr.Errors))
			for i, e := range merr.Errors {
				var invalid *schederrors.ErrInvalidArgument
				require.ErrorAs(t, e, &invalid)
				names[i] = invalid.Name
			}
			assert.Equal(t, tc.expectedNames, names)
			assert.Equal(t, schederrors.ExitCodeInvalidArgument, schederrors.ExitCodeFromError(err))
		})
	}
}
