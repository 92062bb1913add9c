// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/indigo423/nephron/internal/flowrecord"
)

func Test_Assigner_coversEveryOverlappingWindow(t *testing.T) {
	f := &flowrecord.Flow{DeltaSwitched: 1_000, LastSwitched: 61_000}
	a := NewAssigner(60_000, 900_000, zap.NewNop().Sugar(), nil)

	assignments := a.Assign(f, 61_000)
	assert.Len(t, assignments, 2)
	assert.Equal(t, int64(0), assignments[0].Window.Start)
	assert.Equal(t, int64(60_000), assignments[1].Window.Start)
}

func Test_Assigner_exactBoundaryBelongsToLaterWindow(t *testing.T) {
	f := &flowrecord.Flow{DeltaSwitched: 60_000, LastSwitched: 60_000}
	a := NewAssigner(60_000, 900_000, zap.NewNop().Sugar(), nil)

	assignments := a.Assign(f, 60_000)
	assert.Len(t, assignments, 1)
	assert.Equal(t, int64(60_000), assignments[0].Window.Start)
}

func Test_Assigner_dropsPairsOlderThanSkewBound(t *testing.T) {
	f := &flowrecord.Flow{DeltaSwitched: 0, LastSwitched: 0}
	dropped := 0
	a := NewAssigner(60_000, 100_000, zap.NewNop().Sugar(), func() { dropped++ })

	assignments := a.Assign(f, 1_000_000)
	assert.Empty(t, assignments)
	assert.Equal(t, 1, dropped)
}

func Test_Assigner_singleWindowFlow(t *testing.T) {
	f := &flowrecord.Flow{DeltaSwitched: 5_000, LastSwitched: 5_500}
	a := NewAssigner(60_000, 900_000, zap.NewNop().Sugar(), nil)

	assignments := a.Assign(f, 5_500)
	assert.Len(t, assignments, 1)
	assert.Equal(t, int64(0), assignments[0].Window.Start)
}
