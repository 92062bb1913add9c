// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Command nephron runs the windowed flow-telemetry aggregator: it consumes
// decoded flow records from Kafka, assigns them to fixed event-time windows,
// aggregates bytes per grouping branch, and writes flow summaries to
// Elasticsearch (and optionally back to Kafka) once each window's watermark
// has passed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/indigo423/nephron/internal/config"
	"github.com/indigo423/nephron/internal/pipeline"
	"github.com/indigo423/nephron/internal/sink"
	"github.com/indigo423/nephron/internal/source"
	"github.com/indigo423/nephron/internal/telemetry"
)

func main() {
	root := &cobra.Command{
		Use:   "nephron",
		Short: "windowed flow-telemetry aggregator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFx(cmd.Context(), cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "/etc/nephron/nephron.yaml", "path to config file")

	os.Exit(run(root))
}

var cfgFile string

// run executes cmd and maps its outcome to a process exit code, following
// the teacher's runcmd convention of a thin, directly testable wrapper
// around cobra's own execution.
func run(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return -1
	}
	return 0
}

func runFx(_ context.Context, cfgFile string) error {
	app := fx.New(
		fx.Supply(cfgFile),
		fx.Provide(
			loadConfig,
			newLogger,
			newRegistry,
			newMetrics,
			newKafkaSource,
			newElasticSink,
			newKafkaTopicSink,
			pipeline.New,
		),
		fx.Invoke(registerMetricsServer, registerSourceLifecycle, runPipeline),
	)
	app.Run()
	return app.Err()
}

func loadConfig(cfgFile string) (*config.Config, error) {
	v := viper.New()
	v.SetConfigFile(cfgFile)
	v.SetEnvPrefix("NEPHRON")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}
	return config.Load(v)
}

func newLogger() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l.Sugar(), nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}

func newMetrics(reg *prometheus.Registry) *telemetry.Metrics {
	return telemetry.New(reg)
}

func newKafkaSource(cfg *config.Config, logger *zap.SugaredLogger) (source.Source, error) {
	policy := source.NewWallClockTimestampPolicy(cfg.DefaultMaxInputDelayMs)
	return source.NewKafkaSource(source.KafkaSourceConfig{
		BootstrapServers: cfg.BootstrapServers,
		Topic:            cfg.FlowSourceTopic,
		GroupID:          cfg.GroupID,
		AutoCommit:       cfg.AutoCommit,
	}, policy, logger)
}

func newElasticSink(cfg *config.Config, logger *zap.SugaredLogger) (sink.DocumentSink, error) {
	return sink.NewElasticSink(sink.ElasticSinkConfig{
		URL:      cfg.ElasticURL,
		Username: cfg.ElasticUser,
		Password: cfg.ElasticPassword,
	}, logger)
}

func newKafkaTopicSink(cfg *config.Config) (sink.TopicSink, error) {
	if cfg.FlowDestTopic == "" {
		return nil, nil
	}
	return sink.NewKafkaTopicSink(cfg.BootstrapServers, cfg.FlowDestTopic)
}

func registerMetricsServer(lc fx.Lifecycle, cfg *config.Config, reg *prometheus.Registry, p *pipeline.Pipeline, logger *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(p.Status()); err != nil {
			logger.Errorw("writing status response", "error", err)
		}
	})
	srv := &http.Server{Addr: cfg.MetricsListenAddr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Errorw("metrics server stopped unexpectedly", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// registerSourceLifecycle stops the Kafka source (and its consumer-group
// background goroutines) and closes the optional Kafka topic sink on
// shutdown, so neither leaks a connection or a goroutine past OnStop.
func registerSourceLifecycle(lc fx.Lifecycle, src source.Source, topicSink sink.TopicSink, logger *zap.SugaredLogger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := src.Close(); err != nil {
				logger.Errorw("closing source", "error", err)
			}
			if closer, ok := topicSink.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Errorw("closing topic sink", "error", err)
				}
			}
			return nil
		},
	})
}

func runPipeline(lc fx.Lifecycle, p *pipeline.Pipeline, logger *zap.SugaredLogger) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := p.Run(runCtx); err != nil {
					logger.Errorw("pipeline stopped with error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
