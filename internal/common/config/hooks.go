package config

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var CustomHooks = []viper.DecoderConfigOption{WithHooks()}

// WithHooks returns a decoder option running the common hooks followed by extra.
// viper keeps only the last DecodeHook option, so all hooks must be composed into one.
func WithHooks(extra ...mapstructure.DecodeHookFunc) viper.DecoderConfigOption {
	hooks := []mapstructure.DecodeHookFunc{
		LogLevelHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	}
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(append(hooks, extra...)...))
}

// LogLevelHookFunc decodes level names such as "debug" into logrus.Level.
func LogLevelHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// check that src and target types are valid
		if f.Kind() != reflect.String || t != reflect.TypeOf(logrus.InfoLevel) {
			return data, nil
		}
		return logrus.ParseLevel(data.(string))
	}
}

// DurationByWidthHookFunc decodes strings of the form "<duration>x<width>", e.g., "30x4", into
// values of type T built by build.
func DurationByWidthHookFunc[T any](build func(duration int, width int) T) mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(build(0, 0))
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != target {
			return data, nil
		}
		duration, width, err := ParseDurationByWidth(data.(string))
		if err != nil {
			return nil, err
		}
		return build(duration, width), nil
	}
}

func ParseDurationByWidth(s string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("%q is not of the form <duration>x<width>", s)
	}
	duration, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, errors.WithMessagef(err, "invalid duration in %q", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, errors.WithMessagef(err, "invalid width in %q", s)
	}
	return duration, width, nil
}
