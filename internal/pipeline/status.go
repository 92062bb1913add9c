// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package pipeline

// Status is a point-in-time health/ops snapshot, adapted from the teacher's
// status-provider pattern (comp/netflow/server) but rendered as JSON rather
// than a terminal status template, since nephron has no CLI status command.
type Status struct {
	ReceivedFlows uint64         `json:"received_flows"`
	DroppedFlows  uint64         `json:"dropped_flows"`
	EmittedSummaries uint64      `json:"emitted_summaries"`
	GlobalWatermarkMs int64      `json:"global_watermark_ms"`
	WatermarkKnown    bool       `json:"watermark_known"`
	Branches          []string   `json:"enabled_branches"`
}

// Status returns a snapshot of the pipeline's current counters and
// watermark.
func (p *Pipeline) Status() Status {
	watermarkMs, known := p.watermarks.Global()

	names := make([]string, 0, len(p.branches))
	for _, br := range p.branches {
		names = append(names, br.name)
	}

	return Status{
		ReceivedFlows:     p.ReceivedFlowCount.Load(),
		DroppedFlows:      p.DroppedFlowCount.Load(),
		EmittedSummaries:  p.EmittedSummaryCount.Load(),
		GlobalWatermarkMs: watermarkMs,
		WatermarkKnown:    known,
		Branches:          names,
	}
}
