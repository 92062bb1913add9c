// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package window implements the fixed event-time window model (spec §3), the
// window assigner (C3, §4.3) and the proportional byte allocator (C4, §4.4).
package window

import "github.com/indigo423/nephron/internal/flowrecord"

// Window is a half-open interval [Start, End) aligned to Start ≡ 0 mod size.
type Window struct {
	Start int64 // epoch ms
	End   int64 // epoch ms
}

// Overlaps reports whether the window intersects [start, end].
func (w Window) Overlaps(start, end int64) bool {
	return w.Start <= end && start < w.End
}

// Contains reports whether [start, end] is fully inside the window.
func (w Window) Contains(start, end int64) bool {
	return start >= w.Start && end < w.End
}

// New builds the window of size sizeMs that covers the instant t.
func New(t, sizeMs int64) Window {
	start := (t / sizeMs) * sizeMs
	return Window{Start: start, End: start + sizeMs}
}

// Assignment pairs a window with the flow attributed to it.
type Assignment struct {
	Window Window
	Flow   *flowrecord.Flow
}
