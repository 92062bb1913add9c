// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregate

// Combiner accumulates BytesInOut values keyed by K. It is the in-process
// implementation of the per-key combiner (C5): Add is commutative and
// associative regardless of call order, satisfying spec §4.5 and invariant 4.
// K is typically a string-encoded compound key (see internal/trigger), kept
// generic here so any comparable key type can reuse the same accumulation
// logic.
type Combiner[K comparable] struct {
	totals map[K]BytesInOut
}

// NewCombiner returns an empty Combiner.
func NewCombiner[K comparable]() *Combiner[K] {
	return &Combiner[K]{totals: make(map[K]BytesInOut)}
}

// Add folds delta into the running total for key.
func (c *Combiner[K]) Add(key K, delta BytesInOut) {
	c.totals[key] = Combine(c.totals[key], delta)
}

// Merge folds another Combiner's totals into this one, used to merge
// per-partition pre-combined state (spec §4.5: "pre-combine inside a single
// partition before cross-partition merge").
func (c *Combiner[K]) Merge(other *Combiner[K]) {
	for k, v := range other.totals {
		c.Add(k, v)
	}
}

// Get returns the current total for key.
func (c *Combiner[K]) Get(key K) BytesInOut {
	return c.totals[key]
}

// Snapshot returns a copy of the accumulated totals.
func (c *Combiner[K]) Snapshot() map[K]BytesInOut {
	out := make(map[K]BytesInOut, len(c.totals))
	for k, v := range c.totals {
		out[k] = v
	}
	return out
}

// Len returns the number of distinct keys accumulated.
func (c *Combiner[K]) Len() int {
	return len(c.totals)
}
