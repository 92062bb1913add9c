// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package aggregate implements the per-key combiner (C5, §4.5) and the
// top-K operator (C6, §4.6): the commutative-associative byte monoid and
// the bounded per-outer-key ranking built on top of it.
package aggregate

import "github.com/indigo423/nephron/internal/flowrecord"

// BytesInOut is the {bytesIn, bytesOut} monoid from spec §3. Zero value is
// the identity element.
type BytesInOut struct {
	BytesIn  uint64
	BytesOut uint64
}

// Total is BytesIn + BytesOut, the primary top-K comparator key.
func (b BytesInOut) Total() uint64 {
	return b.BytesIn + b.BytesOut
}

// Combine is the commutative-associative sum required by spec §4.5 and
// invariant 4 (combine monoid laws).
func Combine(left, right BytesInOut) BytesInOut {
	return BytesInOut{
		BytesIn:  left.BytesIn + right.BytesIn,
		BytesOut: left.BytesOut + right.BytesOut,
	}
}

// FromFlow derives a BytesInOut from a flow's NumBytes scaled by multiplier
// m in [0,1], per spec §3: the whole scaled count goes to BytesIn for an
// ingress flow, or to BytesOut for egress — never both (invariant 3).
func FromFlow(f *flowrecord.Flow, m float64) BytesInOut {
	scaled := uint64(float64(f.NumBytes) * m)
	if f.Direction == flowrecord.DirectionEgress {
		return BytesInOut{BytesOut: scaled}
	}
	return BytesInOut{BytesIn: scaled}
}
