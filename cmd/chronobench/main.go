package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/chronobench/chronobench/internal/benchmark"
	"github.com/chronobench/chronobench/internal/benchmark/configuration"
	"github.com/chronobench/chronobench/internal/benchmark/metrics"
	"github.com/chronobench/chronobench/internal/benchmark/report"
	"github.com/chronobench/chronobench/internal/common"
)

const customConfigLocation string = "config"

func init() {
	pflag.StringSlice(customConfigLocation, []string{}, "Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	pflag.String("model", "", "Storage model to benchmark: epoch or bitpack (overrides config)")
	pflag.Parse()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	var config configuration.BenchmarkConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(customConfigLocation)
	common.LoadConfig(&config, "./config/chronobench", userSpecifiedConfigs)
	if model := viper.GetString("model"); model != "" {
		config.Model = model
	}
	config.ApplyDefaults()

	if _, err := metrics.StartServer(config.MetricsPort); err != nil {
		log.WithError(err).Error("could not start metrics server")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		log.Info("interrupt received, cancelling run")
		cancel()
	}()

	log.Infof("starting benchmark run: model=%s workers=%d rows=%d batch=%d",
		config.Model, config.Workers, config.Rows, config.BatchSize)

	rs, runErr := benchmark.Run(ctx, config)
	if rs != nil && len(rs.Summaries) > 0 {
		if err := report.NewWriter(config.ResultsDir).Write(rs); err != nil {
			log.WithError(err).Error("writing reports failed")
			os.Exit(1)
		}
	}
	if runErr != nil {
		log.WithError(runErr).Error("benchmark run finished with failures")
		os.Exit(1)
	}
	log.Info("benchmark run complete")
}
