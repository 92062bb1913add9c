// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package testutil provides the synthetic flow generator used by tests
// (spec §1: explicitly out of scope for the core, but needed as test
// tooling to exercise the pipeline end to end).
package testutil

import "github.com/indigo423/nephron/internal/flowrecord"

// FlowOpt mutates a Flow built by NewFlow.
type FlowOpt func(*flowrecord.Flow)

// NewFlow builds a well-formed synthetic flow for tests, defaulting to a
// single-window INGRESS flow between two hosts, overridable via opts.
func NewFlow(opts ...FlowOpt) *flowrecord.Flow {
	f := &flowrecord.Flow{
		Exporter: flowrecord.Exporter{
			ForeignSource: "Juniper",
			ForeignID:     "edge-01",
			NodeID:        1,
		},
		InputSnmp:     10,
		OutputSnmp:    20,
		SrcAddress:    "10.0.0.1",
		DstAddress:    "10.0.0.2",
		SrcPort:       1234,
		DstPort:       80,
		Protocol:      6,
		Application:   "HTTP",
		NumBytes:      1000,
		FirstSwitched: 1_000,
		DeltaSwitched: 1_000,
		LastSwitched:  2_000,
		Direction:     flowrecord.DirectionIngress,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithInterval sets the active interval.
func WithInterval(deltaMs, lastMs int64) FlowOpt {
	return func(f *flowrecord.Flow) {
		f.DeltaSwitched = deltaMs
		f.LastSwitched = lastMs
		f.FirstSwitched = deltaMs
	}
}

// WithBytes sets NumBytes.
func WithBytes(n uint64) FlowOpt {
	return func(f *flowrecord.Flow) { f.NumBytes = n }
}

// WithDirection sets the flow direction.
func WithDirection(d flowrecord.Direction) FlowOpt {
	return func(f *flowrecord.Flow) { f.Direction = d }
}

// WithEndpoints sets the 5-tuple.
func WithEndpoints(srcAddr string, srcPort uint16, dstAddr string, dstPort uint16, protocol uint8) FlowOpt {
	return func(f *flowrecord.Flow) {
		f.SrcAddress, f.SrcPort = srcAddr, srcPort
		f.DstAddress, f.DstPort = dstAddr, dstPort
		f.Protocol = protocol
	}
}

// WithApplication sets the application field.
func WithApplication(app string) FlowOpt {
	return func(f *flowrecord.Flow) { f.Application = app }
}

// WithInterfaces sets the input/output SNMP interface indices.
func WithInterfaces(input, output int32) FlowOpt {
	return func(f *flowrecord.Flow) {
		f.InputSnmp = input
		f.OutputSnmp = output
	}
}
