package common

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	commonconfig "github.com/towersched/towersched/internal/common/config"
)

const envPrefix = "TOWERSCHED"

// BindCommandlineArguments makes every flag in flags override the config key of the same name.
func BindCommandlineArguments(flags *pflag.FlagSet) {
	if err := viper.BindPFlags(flags); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

// LoadConfig reads defaultPath, which may be a config file or a directory containing config.yaml,
// merges in each of overrideConfigs, applies TOWERSCHED_ environment variables and decodes the
// result into config.
// Paths may start with ~ for the home directory.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string) (*viper.Viper, error) {
	defaultPath, err := homedir.Expand(defaultPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	v := viper.GetViper()
	if strings.HasSuffix(defaultPath, ".yaml") || strings.HasSuffix(defaultPath, ".yml") {
		v.SetConfigFile(defaultPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultPath)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithMessagef(err, "failed to read config from %s", defaultPath)
	}
	for _, overrideConfig := range overrideConfigs {
		overrideConfig, err := homedir.Expand(overrideConfig)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.WithMessagef(err, "failed to merge config from %s", overrideConfig)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}

func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// ServeMetrics exposes the default prometheus registry on /metrics.
func ServeMetrics(port uint16) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return ServeHttp(port, mux)
}

func ServeHttp(port uint16, mux http.Handler) (shutdown func()) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Starting http server listening on %d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Print("Stopping http server")
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("failed to stop http server")
		}
	}
}
