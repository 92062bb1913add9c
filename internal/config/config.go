// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package config loads and validates nephron's flat option set (spec §6)
// with viper, mirroring the teacher's config-component pattern of a plain
// struct populated by Load and validated once at startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/indigo423/nephron/internal/sink"
)

// Default option values (spec §6).
const (
	DefaultFixedWindowSizeMs      = 60_000
	DefaultMaxFlowDurationMs      = 900_000
	DefaultMaxInputDelayMs        = 300_000
	DefaultLateProcessingDelayMs  = 60_000
	DefaultAllowedLatenessMs      = 14_400_000
	DefaultTopK                   = 10
)

// Branch names accepted by EnabledBranches (SPEC_FULL.md §4).
const (
	BranchTotal         = "total"
	BranchTopKApp       = "topk_application"
	BranchTopKHost      = "topk_host"
	BranchTopKConversation = "topk_conversation"
)

// Config is the validated, read-only-after-startup option set (spec §5, §6).
type Config struct {
	BootstrapServers []string
	FlowSourceTopic  string
	FlowDestTopic    string // optional
	GroupID          string
	AutoCommit       bool

	ElasticURL           string
	ElasticUser          string
	ElasticPassword      string
	ElasticFlowIndex     string
	ElasticIndexStrategy sink.IndexStrategy

	FixedWindowSizeMs     int64
	MaxFlowDurationMs     int64
	DefaultMaxInputDelayMs int64
	LateProcessingDelayMs int64
	AllowedLatenessMs     int64
	TopK                  int

	EnabledBranches []string

	MetricsListenAddr string
}

// LateProcessingDelay returns LateProcessingDelayMs as a time.Duration.
func (c *Config) LateProcessingDelay() time.Duration {
	return time.Duration(c.LateProcessingDelayMs) * time.Millisecond
}

// BranchEnabled reports whether branch is in EnabledBranches.
func (c *Config) BranchEnabled(branch string) bool {
	for _, b := range c.EnabledBranches {
		if b == branch {
			return true
		}
	}
	return false
}

// Load reads configuration from the given viper instance (already pointed
// at a config file/env by the caller) and validates it. Configuration
// errors are fatal at startup (spec §7).
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		BootstrapServers:       v.GetStringSlice("bootstrapServers"),
		FlowSourceTopic:        v.GetString("flowSourceTopic"),
		FlowDestTopic:          v.GetString("flowDestTopic"),
		GroupID:                v.GetString("groupId"),
		AutoCommit:             v.GetBool("autoCommit"),
		ElasticURL:             v.GetString("elasticUrl"),
		ElasticUser:            v.GetString("elasticUser"),
		ElasticPassword:        v.GetString("elasticPassword"),
		ElasticFlowIndex:       v.GetString("elasticFlowIndex"),
		ElasticIndexStrategy:   sink.IndexStrategy(strings.ToUpper(v.GetString("elasticIndexStrategy"))),
		FixedWindowSizeMs:      v.GetInt64("fixedWindowSizeMs"),
		MaxFlowDurationMs:      v.GetInt64("maxFlowDurationMs"),
		DefaultMaxInputDelayMs: v.GetInt64("defaultMaxInputDelayMs"),
		LateProcessingDelayMs:  v.GetInt64("lateProcessingDelayMs"),
		AllowedLatenessMs:      v.GetInt64("allowedLatenessMs"),
		TopK:                   v.GetInt("topK"),
		EnabledBranches:        v.GetStringSlice("enabledBranches"),
		MetricsListenAddr:      v.GetString("metricsListenAddr"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("autoCommit", false)
	v.SetDefault("elasticIndexStrategy", "DAILY")
	v.SetDefault("fixedWindowSizeMs", DefaultFixedWindowSizeMs)
	v.SetDefault("maxFlowDurationMs", DefaultMaxFlowDurationMs)
	v.SetDefault("defaultMaxInputDelayMs", DefaultMaxInputDelayMs)
	v.SetDefault("lateProcessingDelayMs", DefaultLateProcessingDelayMs)
	v.SetDefault("allowedLatenessMs", DefaultAllowedLatenessMs)
	v.SetDefault("topK", DefaultTopK)
	v.SetDefault("enabledBranches", []string{BranchTotal, BranchTopKApp, BranchTopKHost, BranchTopKConversation})
	v.SetDefault("metricsListenAddr", ":9090")
}

func (c *Config) validate() error {
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("bootstrapServers must not be empty")
	}
	if c.FlowSourceTopic == "" {
		return fmt.Errorf("flowSourceTopic is required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("groupId is required")
	}
	if c.ElasticURL == "" {
		return fmt.Errorf("elasticUrl is required")
	}
	if c.ElasticFlowIndex == "" {
		return fmt.Errorf("elasticFlowIndex is required")
	}
	switch c.ElasticIndexStrategy {
	case sink.IndexStrategyDaily, sink.IndexStrategyHourly, sink.IndexStrategyMonthly:
	default:
		return fmt.Errorf("elasticIndexStrategy must be one of DAILY, HOURLY, MONTHLY, got %q", c.ElasticIndexStrategy)
	}
	if c.FixedWindowSizeMs <= 0 {
		return fmt.Errorf("fixedWindowSizeMs must be positive")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("topK must be positive")
	}
	return nil
}
