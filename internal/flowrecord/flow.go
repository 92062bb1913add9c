// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package flowrecord defines the in-memory flow record model consumed from
// the bus and the binary codec used to decode it off the wire.
package flowrecord

import "fmt"

// Direction is the flow's observed direction at the exporting interface.
type Direction uint8

// Direction values as carried on the wire.
const (
	DirectionIngress Direction = 0
	DirectionEgress  Direction = 1
)

func (d Direction) String() string {
	if d == DirectionEgress {
		return "EGRESS"
	}
	return "INGRESS"
}

// UnknownApplication is substituted for an empty application name.
const UnknownApplication = "__unknown__"

// Exporter identifies the device that emitted a flow.
type Exporter struct {
	ForeignSource string
	ForeignID     string
	NodeID        int32
	Location      string
	Categories    []string
}

// Flow is an immutable value describing one exported flow record. Flows are
// never mutated after construction; every stage downstream of decode treats
// a *Flow as read-only.
type Flow struct {
	Exporter      Exporter
	InputSnmp     int32
	OutputSnmp    int32
	SrcAddress    string
	DstAddress    string
	SrcPort       uint16
	DstPort       uint16
	Protocol      uint8
	Application   string
	NumBytes      uint64
	FirstSwitched int64 // epoch ms
	DeltaSwitched int64 // epoch ms
	LastSwitched  int64 // epoch ms

	// DeltaSynthesized is true when DeltaSwitched was absent (zero) and
	// Normalize defaulted it to FirstSwitched (spec §9, Open Question).
	DeltaSynthesized bool

	Direction Direction
}

// Normalize fills in derived fields: DeltaSwitched defaults to FirstSwitched
// when not populated, and a blank Application becomes UnknownApplication.
// Returns true if DeltaSwitched was synthesized, so the caller can bump a
// metric rather than silently losing the signal.
func (f *Flow) Normalize() (deltaSynthesized bool) {
	if f.DeltaSwitched == 0 && f.FirstSwitched != 0 {
		f.DeltaSwitched = f.FirstSwitched
		f.DeltaSynthesized = true
		deltaSynthesized = true
	}
	if f.Application == "" {
		f.Application = UnknownApplication
	}
	return deltaSynthesized
}

// ActiveInterval returns the flow's active interval [delta, last].
func (f *Flow) ActiveInterval() (start, end int64) {
	return f.DeltaSwitched, f.LastSwitched
}

// DurationMs is last - delta; may be negative for malformed flows, which
// callers must detect and drop (spec §4.4).
func (f *Flow) DurationMs() int64 {
	return f.LastSwitched - f.DeltaSwitched
}

// Validate reports the first structural problem found, or nil. It does not
// mutate the flow; call Normalize first.
func (f *Flow) Validate() error {
	if f.FirstSwitched == 0 {
		return fmt.Errorf("flow missing firstSwitched timestamp")
	}
	if f.LastSwitched == 0 {
		return fmt.Errorf("flow missing lastSwitched timestamp")
	}
	if f.DeltaSwitched > f.LastSwitched {
		return fmt.Errorf("flow deltaSwitched %d > lastSwitched %d", f.DeltaSwitched, f.LastSwitched)
	}
	// numBytes is a uint64, so it can never be negative at the type level;
	// the codec carries it as a fixed-width unsigned 64-bit field, so a
	// negative byte count cannot be represented on the wire either.
	return nil
}
