// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/indigo423/nephron/internal/aggregate"
	"github.com/indigo423/nephron/internal/groupkey"
	"github.com/indigo423/nephron/internal/window"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func testKey() groupkey.CompoundKey {
	return groupkey.ExporterInterface{IfIndex: 1}
}

func Test_Engine_firesOnTimePaneWhenWatermarkCrossesWindowEnd(t *testing.T) {
	e := NewEngine(60_000, time.Minute, 14_400_000, testLogger())
	w := window.Window{Start: 0, End: 60_000}
	now := time.Unix(0, 0)

	ok := e.Add(w, testKey(), aggregate.BytesInOut{BytesIn: 100}, now, 0)
	require.True(t, ok)

	// Watermark hasn't reached window end yet: no firing.
	panes := e.Tick(now, 30_000)
	assert.Empty(t, panes)

	panes = e.Tick(now, 60_000)
	require.Len(t, panes, 1)
	assert.False(t, panes[0].Late)
	require.Len(t, panes[0].Entries, 1)
	assert.Equal(t, uint64(100), panes[0].Entries[0].Bytes.BytesIn)
}

func Test_Engine_lateArrivalRefiresWithinAllowedLateness_S5(t *testing.T) {
	e := NewEngine(60_000, 10*time.Second, 14_400_000, testLogger())
	w := window.Window{Start: 0, End: 60_000}
	now := time.Unix(0, 0)

	e.Add(w, testKey(), aggregate.BytesInOut{BytesIn: 100}, now, 0)
	onTime := e.Tick(now, 60_000)
	require.Len(t, onTime, 1)
	onTimeID := onTime[0].Window

	// Late data arrives within allowed lateness.
	later := now.Add(time.Minute)
	ok := e.Add(w, testKey(), aggregate.BytesInOut{BytesIn: 25}, later, 60_500)
	require.True(t, ok)

	// Not due yet.
	assert.Empty(t, e.Tick(later, 60_500))

	afterDelay := later.Add(11 * time.Second)
	late := e.Tick(afterDelay, 60_500)
	require.Len(t, late, 1)
	assert.True(t, late[0].Late)
	assert.Equal(t, onTimeID, late[0].Window)
	assert.Equal(t, uint64(125), late[0].Entries[0].Bytes.BytesIn)
}

func Test_Engine_dropsAfterAllowedLateness_invariant10(t *testing.T) {
	e := NewEngine(60_000, time.Minute, 1000, testLogger())
	w := window.Window{Start: 0, End: 60_000}
	now := time.Unix(0, 0)

	ok := e.Add(w, testKey(), aggregate.BytesInOut{BytesIn: 1}, now, 62_000)
	assert.False(t, ok)
}

func Test_Engine_evictsStateAfterAllowedLateness(t *testing.T) {
	e := NewEngine(60_000, time.Minute, 1000, testLogger())
	w := window.Window{Start: 0, End: 60_000}
	now := time.Unix(0, 0)

	e.Add(w, testKey(), aggregate.BytesInOut{BytesIn: 1}, now, 0)
	e.Tick(now, 60_000) // on-time fire

	panes := e.Tick(now, 61_001) // watermark > end(60000) + lateness(1000)
	assert.Empty(t, panes)

	// Further contributions to the evicted window are dropped.
	ok := e.Add(w, testKey(), aggregate.BytesInOut{BytesIn: 1}, now, 61_001)
	assert.False(t, ok)
}

func Test_Engine_flushFiresIncompleteWindowsOnShutdown(t *testing.T) {
	e := NewEngine(60_000, time.Minute, 14_400_000, testLogger())
	w := window.Window{Start: 0, End: 60_000}
	now := time.Unix(0, 0)

	e.Add(w, testKey(), aggregate.BytesInOut{BytesIn: 7}, now, 0)
	panes := e.Flush()
	require.Len(t, panes, 1)
	assert.Equal(t, uint64(7), panes[0].Entries[0].Bytes.BytesIn)
}
