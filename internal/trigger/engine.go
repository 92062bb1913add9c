// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package trigger

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/indigo423/nephron/internal/aggregate"
	"github.com/indigo423/nephron/internal/groupkey"
	"github.com/indigo423/nephron/internal/window"
)

// Pane is one firing of a window: the full accumulated aggregates for every
// key seen in it so far (accumulating mode, spec §3). Late is false for the
// first, on-time firing and true for every subsequent late firing.
type Pane struct {
	Window  window.Window
	Late    bool
	Entries []PaneEntry
}

// PaneEntry is one key's accumulated total within a Pane.
type PaneEntry struct {
	Key   groupkey.CompoundKey
	Bytes aggregate.BytesInOut
}

type windowState struct {
	window         window.Window
	keys           map[string]groupkey.CompoundKey
	totals         *aggregate.Combiner[string]
	onTimeFired    bool
	lateFireDue    time.Time // meaningful only while hasLateFireDue is true
	hasLateFireDue bool      // true while a late firing is scheduled
}

// Engine is the per-(window,key) accumulator and trigger engine (C8). It is
// owned by exactly one worker per key-partition (spec §5); all methods
// assume single-threaded use by that worker except where noted.
type Engine struct {
	mu                  sync.Mutex
	windowSizeMs        int64
	lateProcessingDelay time.Duration
	allowedLatenessMs   int64
	logger              *zap.SugaredLogger

	states map[int64]*windowState
}

// NewEngine builds a trigger Engine.
func NewEngine(windowSizeMs int64, lateProcessingDelay time.Duration, allowedLatenessMs int64, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		windowSizeMs:        windowSizeMs,
		lateProcessingDelay: lateProcessingDelay,
		allowedLatenessMs:   allowedLatenessMs,
		logger:              logger.Named("trigger-engine"),
		states:              make(map[int64]*windowState),
	}
}

// Add folds one (window, key, bytes) contribution into that window's pane
// state. now is processing time, used only to schedule late-pane coalescing
// when the window has already fired on-time. watermarkMs is the current
// global watermark; if the window is already beyond allowed lateness, the
// contribution is dropped (spec §4.8, invariant 10) and ok is false.
func (e *Engine) Add(w window.Window, key groupkey.CompoundKey, bytes aggregate.BytesInOut, now time.Time, watermarkMs int64) (ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if watermarkMs > w.End+e.allowedLatenessMs {
		return false
	}

	st := e.states[w.Start]
	if st == nil {
		st = &windowState{
			window: w,
			keys:   make(map[string]groupkey.CompoundKey),
			totals: aggregate.NewCombiner[string](),
		}
		e.states[w.Start] = st
	}

	encoded := string(key.GroupedBy()) + "/" + key.GroupedByKey()
	st.keys[encoded] = key
	st.totals.Add(encoded, bytes)

	if st.onTimeFired && !st.hasLateFireDue {
		st.lateFireDue = now.Add(e.lateProcessingDelay)
		st.hasLateFireDue = true
	}
	return true
}

// Tick advances the engine: fires on-time panes for windows whose end has
// just crossed the watermark, fires due late panes, and evicts windows past
// allowed lateness. Call it whenever the watermark advances or processing
// time passes (e.g. from a periodic driver in internal/pipeline).
func (e *Engine) Tick(now time.Time, watermarkMs int64) []Pane {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []Pane
	for start, st := range e.states {
		if watermarkMs > st.window.End+e.allowedLatenessMs {
			delete(e.states, start)
			e.logger.Debugw("evicted window past allowed lateness", "windowStart", start, "watermark", watermarkMs)
			continue
		}

		if !st.onTimeFired && watermarkMs >= st.window.End {
			st.onTimeFired = true
			fired = append(fired, snapshotPane(st, false))
			continue
		}

		if st.onTimeFired && st.hasLateFireDue && !now.Before(st.lateFireDue) {
			st.hasLateFireDue = false
			fired = append(fired, snapshotPane(st, true))
		}
	}
	return fired
}

// Flush forces an immediate firing of every window's current state
// regardless of watermark or schedule, for graceful shutdown draining
// (spec §5: "fire all panes whose windows are complete" on shutdown).
func (e *Engine) Flush() []Pane {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []Pane
	for _, st := range e.states {
		fired = append(fired, snapshotPane(st, st.onTimeFired))
	}
	return fired
}

// MinOpenWindowStart returns the smallest window start still tracked (i.e.
// not yet evicted past allowed lateness) by the engine, and ok=false if the
// engine currently holds no window state. The pipeline uses this to compute
// how far source offsets are safe to commit: a window's contributions are
// only guaranteed to be sink-written once every branch has evicted it (spec
// §5, §6: "commit source offsets only for windows whose results have been
// fully acknowledged by the sink").
func (e *Engine) MinOpenWindowStart() (start int64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for s := range e.states {
		if !ok || s < start {
			start, ok = s, true
		}
	}
	return start, ok
}

func snapshotPane(st *windowState, late bool) Pane {
	totals := st.totals.Snapshot()
	entries := make([]PaneEntry, 0, len(totals))
	for encoded, bytes := range totals {
		entries = append(entries, PaneEntry{Key: st.keys[encoded], Bytes: bytes})
	}
	return Pane{Window: st.window, Late: late, Entries: entries}
}
