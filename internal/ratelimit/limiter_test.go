// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Limiter_allowsUpToBurst(t *testing.T) {
	l := New(3, time.Second)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func Test_Limiter_refillsAfterInterval(t *testing.T) {
	l := New(1, time.Second)
	cur := time.Now()
	l.now = func() time.Time { return cur }

	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	cur = cur.Add(time.Second)
	assert.True(t, l.Allow())
}
