// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package window

import (
	"time"

	"go.uber.org/zap"

	"github.com/indigo423/nephron/internal/aggregate"
	"github.com/indigo423/nephron/internal/flowrecord"
	"github.com/indigo423/nephron/internal/ratelimit"
)

// Allocator splits a flow's byte count across the windows it spans by time
// overlap (spec §4.4, C4).
type Allocator struct {
	limiter *ratelimit.Limiter
	logger  *zap.SugaredLogger
}

// NewAllocator builds an Allocator.
func NewAllocator(logger *zap.SugaredLogger) *Allocator {
	return &Allocator{
		limiter: ratelimit.New(10, time.Second),
		logger:  logger.Named("byte-allocator"),
	}
}

// Allocate computes the BytesInOut contribution of (window, flow), or ok=false
// if the pair contributes nothing (malformed duration, or zero overlap).
func (a *Allocator) Allocate(w Window, f *flowrecord.Flow) (bytes aggregate.BytesInOut, ok bool) {
	delta, last := f.ActiveInterval()
	durationMs := last - delta

	switch {
	case durationMs < 0:
		if a.limiter.Allow() {
			a.logger.Warnw("dropping flow with negative duration", "delta", delta, "last", last)
		}
		return aggregate.BytesInOut{}, false

	case durationMs == 0:
		if !w.Contains(delta, last) {
			return aggregate.BytesInOut{}, false
		}
		return aggregate.FromFlow(f, 1.0), true

	default:
		overlapStart := max64(delta, w.Start)
		overlapEnd := min64(last, w.End)
		overlap := overlapEnd - overlapStart
		if overlap <= 0 {
			return aggregate.BytesInOut{}, false
		}
		multiplier := float64(overlap) / float64(durationMs)
		return aggregate.FromFlow(f, multiplier), true
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
