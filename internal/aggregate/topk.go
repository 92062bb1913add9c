// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregate

import (
	"container/heap"
	"sort"
)

// RankedEntry is one (innerKey, bytes) pair surviving into a top-K result.
type RankedEntry struct {
	KeyEncoded string
	Bytes      BytesInOut
}

// better reports whether a should rank ahead of b under the comparator from
// spec §4.6: primary bytesIngress+bytesEgress desc, secondary bytesIngress
// desc, tertiary encoded key asc. KeyEncoded is assumed unique per entry, so
// this is a total order (invariant 6: top-K determinism).
func better(a, b RankedEntry) bool {
	if ta, tb := a.Bytes.Total(), b.Bytes.Total(); ta != tb {
		return ta > tb
	}
	if a.Bytes.BytesIn != b.Bytes.BytesIn {
		return a.Bytes.BytesIn > b.Bytes.BytesIn
	}
	return a.KeyEncoded < b.KeyEncoded
}

// topKHeap is a bounded min-heap over RankedEntry where the root is always
// the current worst-ranked entry, so overflow Pops discard it in O(log K).
type topKHeap []RankedEntry

func (h topKHeap) Len() int            { return len(h) }
func (h topKHeap) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h topKHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x interface{}) { *h = append(*h, x.(RankedEntry)) }
func (h *topKHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopK selects the K largest entries by the spec §4.6 comparator, using a
// bounded min-heap of size K (memory bound from spec §4.6) and returns them
// sorted in rank order, best first.
func TopK(entries []RankedEntry, k int) []RankedEntry {
	if k <= 0 {
		return nil
	}
	h := make(topKHeap, 0, k)
	heap.Init(&h)
	for _, e := range entries {
		if h.Len() < k {
			heap.Push(&h, e)
			continue
		}
		if better(e, h[0]) {
			heap.Pop(&h)
			heap.Push(&h, e)
		}
	}

	out := make([]RankedEntry, len(h))
	copy(out, h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}
