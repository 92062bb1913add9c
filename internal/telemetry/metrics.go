// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package telemetry registers the prometheus metrics the pipeline reports,
// named after the teacher's pkg/telemetry convention.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of counters/gauges the pipeline updates. Held as a
// struct (rather than package-level globals) so tests can use an isolated
// registry.
type Metrics struct {
	FlowsReceived       prometheus.Counter
	FlowsMalformed      prometheus.Counter
	FlowsSkewDropped    prometheus.Counter
	FlowsDeltaSynthesized prometheus.Counter
	PanesFiredOnTime    prometheus.Counter
	PanesFiredLate      prometheus.Counter
	SummariesEmitted    prometheus.Counter
	SinkRetries         prometheus.Counter
	WatermarkMs         prometheus.Gauge
}

// New registers and returns a Metrics set on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlowsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nephron_flows_received_total",
			Help: "Flow records pulled from the bus and successfully decoded.",
		}),
		FlowsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nephron_flows_malformed_total",
			Help: "Flow records dropped for failing decode or validation.",
		}),
		FlowsSkewDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nephron_flows_skew_dropped_total",
			Help: "Window assignments dropped for exceeding the skew guard.",
		}),
		FlowsDeltaSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nephron_flow_synthesized_delta_total",
			Help: "Flows whose deltaSwitched was absent and defaulted to firstSwitched.",
		}),
		PanesFiredOnTime: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nephron_panes_on_time_total",
			Help: "On-time window pane firings.",
		}),
		PanesFiredLate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nephron_panes_late_total",
			Help: "Late window pane firings.",
		}),
		SummariesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nephron_summaries_emitted_total",
			Help: "FlowSummary documents written to sinks.",
		}),
		SinkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nephron_sink_retries_total",
			Help: "Transient sink write retries.",
		}),
		WatermarkMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nephron_watermark_ms",
			Help: "Current global event-time watermark, epoch milliseconds.",
		}),
	}

	reg.MustRegister(
		m.FlowsReceived, m.FlowsMalformed, m.FlowsSkewDropped, m.FlowsDeltaSynthesized,
		m.PanesFiredOnTime, m.PanesFiredLate, m.SummariesEmitted, m.SinkRetries, m.WatermarkMs,
	)
	return m
}
