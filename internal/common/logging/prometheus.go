package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
)

// AddPrometheusHook counts the lines logged by logger per level. The counters are registered with
// the default prometheus registry.
func AddPrometheusHook(logger *logrus.Logger) error {
	hook, err := promrus.NewPrometheusHook()
	if err != nil {
		return errors.WithStack(err)
	}
	logger.AddHook(hook)
	return nil
}
