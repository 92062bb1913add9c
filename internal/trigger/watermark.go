// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package trigger implements the watermark tracker and the per-window pane
// trigger engine (C8, §4.8): on-time and late pane firing, and allowed-
// lateness eviction.
package trigger

import "sync"

// WatermarkTracker tracks, per source partition, a watermark of
// maxSeenEventTime - maxInputDelayMs, monotonically non-decreasing (spec
// §4.9, invariant 9). The global watermark is the minimum across known
// partitions.
type WatermarkTracker struct {
	mu              sync.Mutex
	maxInputDelayMs int64
	perPartition    map[int32]int64
}

// NewWatermarkTracker builds a tracker with the given maximum allowed input
// delay.
func NewWatermarkTracker(maxInputDelayMs int64) *WatermarkTracker {
	return &WatermarkTracker{
		maxInputDelayMs: maxInputDelayMs,
		perPartition:    make(map[int32]int64),
	}
}

// Observe folds a newly-seen event time for partition into its watermark,
// never decreasing it, and returns the partition's updated watermark.
func (w *WatermarkTracker) Observe(partition int32, eventTimeMs int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	candidate := eventTimeMs - w.maxInputDelayMs
	if cur, ok := w.perPartition[partition]; !ok || candidate > cur {
		w.perPartition[partition] = candidate
	}
	return w.perPartition[partition]
}

// Global returns the minimum watermark across every partition observed so
// far, and ok=false if no partition has been observed yet.
func (w *WatermarkTracker) Global() (watermarkMs int64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	first := true
	for _, wm := range w.perPartition {
		if first || wm < watermarkMs {
			watermarkMs = wm
			first = false
		}
	}
	return watermarkMs, !first
}
