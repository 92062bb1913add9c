// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package window

import (
	"time"

	"go.uber.org/zap"

	"github.com/indigo423/nephron/internal/flowrecord"
	"github.com/indigo423/nephron/internal/ratelimit"
)

// Assigner maps a flow to every fixed window its active interval touches
// (spec §4.3, C3), dropping pairs whose assigned event-time falls further
// back than maxFlowDurationMs behind the current input timestamp (the skew
// guard).
type Assigner struct {
	windowSizeMs     int64
	maxFlowDurationMs int64
	limiter          *ratelimit.Limiter
	logger           *zap.SugaredLogger
	dropped          func()
}

// NewAssigner builds an Assigner for the given window size and skew bound.
// onSkewDrop, if non-nil, is invoked once per dropped pair (for metrics).
func NewAssigner(windowSizeMs, maxFlowDurationMs int64, logger *zap.SugaredLogger, onSkewDrop func()) *Assigner {
	return &Assigner{
		windowSizeMs:      windowSizeMs,
		maxFlowDurationMs: maxFlowDurationMs,
		limiter:           ratelimit.New(10, time.Second),
		logger:            logger.Named("window-assigner"),
		dropped:           onSkewDrop,
	}
}

// Assign emits one Assignment per window overlapping f's active interval,
// per the algorithm in spec §4.3: starting at the window containing
// f.DeltaSwitched, step forward by windowSizeMs while the window start is
// still <= f.LastSwitched.
func (a *Assigner) Assign(f *flowrecord.Flow, currentInputTimestampMs int64) []Assignment {
	delta, last := f.ActiveInterval()
	t := (delta / a.windowSizeMs) * a.windowSizeMs

	var out []Assignment
	skewFloor := currentInputTimestampMs - a.maxFlowDurationMs
	for t <= last {
		if t < skewFloor {
			if a.limiter.Allow() {
				a.logger.Warnw("dropping flow assignment older than allowed skew",
					"windowStart", t, "skewFloor", skewFloor, "srcAddress", f.SrcAddress, "dstAddress", f.DstAddress)
			}
			if a.dropped != nil {
				a.dropped()
			}
			t += a.windowSizeMs
			continue
		}
		out = append(out, Assignment{Window: Window{Start: t, End: t + a.windowSizeMs}, Flow: f})
		t += a.windowSizeMs
	}
	return out
}
