package cmd

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/towersched/towersched/internal/common"
	commonconfig "github.com/towersched/towersched/internal/common/config"
	"github.com/towersched/towersched/internal/common/logging"
	"github.com/towersched/towersched/internal/scheduler/configuration"
	"github.com/towersched/towersched/internal/scheduler/metrics"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/towersched"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "towersched",
		SilenceUsage: true,
		Short:        "Schedules batches of rigid parallel jobs on identical machines.",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	cmd.PersistentFlags().Int("machines", 0, "Number of machines. Overrides the configured value if set.")
	cmd.PersistentFlags().String("logLevel", "", "Log level. Overrides the configured value if set.")
	cmd.PersistentFlags().Uint16("metricsPort", 0, "Port on which prometheus metrics are served. Overrides the configured value if set.")

	cmd.AddCommand(
		scheduleCmd(),
		generateCmd(),
		benchCmd(),
		clusterCmd(),
	)

	return cmd
}

// app holds what every subcommand needs once the config has been loaded.
type app struct {
	config   configuration.Configuration
	metrics  *metrics.Metrics
	shutdown func()
}

func (a *app) close() {
	if a.shutdown != nil {
		a.shutdown()
	}
}

func setup(cmd *cobra.Command) (*app, error) {
	flags := cmd.Flags()
	common.BindCommandlineArguments(flags)
	for key, flag := range map[string]string{
		"logging.level": "logLevel",
		"metrics.port":  "metricsPort",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := viper.BindPFlag(key, f); err != nil {
				return nil, errors.WithStack(err)
			}
		}
	}

	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log.SetLevel(config.Logging.Level)

	a := &app{
		config:  config,
		metrics: metrics.New(),
	}
	if config.Metrics.Port > 0 {
		if err := prometheus.Register(a.metrics); err != nil {
			return nil, errors.WithStack(err)
		}
		if err := logging.AddPrometheusHook(log.StandardLogger()); err != nil {
			return nil, err
		}
		a.shutdown = common.ServeMetrics(config.Metrics.Port)
	}
	return a, nil
}

func loadConfig() (configuration.Configuration, error) {
	var config configuration.Configuration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	if _, err := common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs); err != nil {
		return config, err
	}

	err := config.Validate()
	if err != nil {
		commonconfig.LogValidationErrors(err)
	}
	return config, err
}
