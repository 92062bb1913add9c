// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Combiner_addIsOrderIndependent(t *testing.T) {
	c1 := NewCombiner[string]()
	c1.Add("k", BytesInOut{BytesIn: 100})
	c1.Add("k", BytesInOut{BytesOut: 50})

	c2 := NewCombiner[string]()
	c2.Add("k", BytesInOut{BytesOut: 50})
	c2.Add("k", BytesInOut{BytesIn: 100})

	assert.Equal(t, c1.Get("k"), c2.Get("k"))
	assert.Equal(t, BytesInOut{BytesIn: 100, BytesOut: 50}, c1.Get("k"))
}

func Test_Combiner_merge(t *testing.T) {
	partitionA := NewCombiner[string]()
	partitionA.Add("k", BytesInOut{BytesIn: 10})
	partitionB := NewCombiner[string]()
	partitionB.Add("k", BytesInOut{BytesIn: 20})
	partitionB.Add("other", BytesInOut{BytesIn: 5})

	merged := NewCombiner[string]()
	merged.Merge(partitionA)
	merged.Merge(partitionB)

	assert.Equal(t, BytesInOut{BytesIn: 30}, merged.Get("k"))
	assert.Equal(t, BytesInOut{BytesIn: 5}, merged.Get("other"))
	assert.Equal(t, 2, merged.Len())
}
