// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TopK_ordersByTotalBytesDescending(t *testing.T) {
	entries := []RankedEntry{
		{KeyEncoded: "a", Bytes: BytesInOut{BytesIn: 500}},
		{KeyEncoded: "b", Bytes: BytesInOut{BytesIn: 500}},
		{KeyEncoded: "c", Bytes: BytesInOut{BytesIn: 300}},
		{KeyEncoded: "d", Bytes: BytesInOut{BytesIn: 200}},
		{KeyEncoded: "e", Bytes: BytesInOut{BytesIn: 100}},
	}
	top := TopK(entries, 2)
	require.Len(t, top, 2)
	// Tied at 500: tertiary tiebreak is the encoded key ascending (S3).
	assert.Equal(t, "a", top[0].KeyEncoded)
	assert.Equal(t, "b", top[1].KeyEncoded)
}

func Test_TopK_deterministicRegardlessOfArrivalOrder(t *testing.T) {
	base := []RankedEntry{
		{KeyEncoded: "a", Bytes: BytesInOut{BytesIn: 10}},
		{KeyEncoded: "b", Bytes: BytesInOut{BytesIn: 40}},
		{KeyEncoded: "c", Bytes: BytesInOut{BytesIn: 30}},
		{KeyEncoded: "d", Bytes: BytesInOut{BytesIn: 20}},
		{KeyEncoded: "e", Bytes: BytesInOut{BytesIn: 40}},
	}
	want := TopK(base, 3)

	shuffled := make([]RankedEntry, len(base))
	copy(shuffled, base)
	for i := 0; i < 10; i++ {
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := TopK(shuffled, 3)
		assert.Equal(t, want, got)
	}
}

func Test_TopK_fewerEntriesThanK(t *testing.T) {
	entries := []RankedEntry{{KeyEncoded: "only", Bytes: BytesInOut{BytesIn: 1}}}
	top := TopK(entries, 5)
	assert.Len(t, top, 1)
}

func Test_TopK_secondaryTiebreakOnBytesIn(t *testing.T) {
	entries := []RankedEntry{
		{KeyEncoded: "a", Bytes: BytesInOut{BytesIn: 10, BytesOut: 90}},  // total 100
		{KeyEncoded: "b", Bytes: BytesInOut{BytesIn: 60, BytesOut: 40}}, // total 100
	}
	top := TopK(entries, 2)
	assert.Equal(t, "b", top[0].KeyEncoded)
	assert.Equal(t, "a", top[1].KeyEncoded)
}

func Test_TopK_zeroK(t *testing.T) {
	entries := []RankedEntry{{KeyEncoded: "a", Bytes: BytesInOut{BytesIn: 1}}}
	assert.Nil(t, TopK(entries, 0))
}
