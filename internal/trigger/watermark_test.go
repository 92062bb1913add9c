// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package trigger

import "testing"

import "github.com/stretchr/testify/assert"

func Test_WatermarkTracker_monotonicPerPartition_invariant9(t *testing.T) {
	tr := NewWatermarkTracker(1000)
	w1 := tr.Observe(0, 5000)
	assert.Equal(t, int64(4000), w1)

	// A later, smaller event time must not push the watermark backwards.
	w2 := tr.Observe(0, 4500)
	assert.Equal(t, int64(4000), w2)

	w3 := tr.Observe(0, 6000)
	assert.Equal(t, int64(5000), w3)
}

func Test_WatermarkTracker_globalIsMinAcrossPartitions(t *testing.T) {
	tr := NewWatermarkTracker(0)
	tr.Observe(0, 10_000)
	tr.Observe(1, 5_000)
	tr.Observe(2, 8_000)

	global, ok := tr.Global()
	assert.True(t, ok)
	assert.Equal(t, int64(5_000), global)
}

func Test_WatermarkTracker_noPartitionsObserved(t *testing.T) {
	tr := NewWatermarkTracker(0)
	_, ok := tr.Global()
	assert.False(t, ok)
}
