// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package summary

import (
	"github.com/indigo423/nephron/internal/aggregate"
	"github.com/indigo423/nephron/internal/groupkey"
)

// Build projects one ((window, key), bytes) result into a flat FlowSummary
// (spec §4.7). ranking is 0 for the TOTAL branch, 1-based within the
// (window, outerKey) list for TOPK branches.
func Build(rangeStartMs, rangeEndMs int64, key groupkey.CompoundKey, bytes aggregate.BytesInOut, aggType AggregationType, ranking int) FlowSummary {
	s := FlowSummary{
		Timestamp:       rangeEndMs,
		RangeStartMs:    rangeStartMs,
		RangeEndMs:      rangeEndMs,
		Ranking:         ranking,
		GroupedBy:       key.GroupedBy(),
		GroupedByKey:    key.GroupedByKey(),
		AggregationType: aggType,
		BytesIngress:    bytes.BytesIn,
		BytesEgress:     bytes.BytesOut,
		BytesTotal:      bytes.Total(),
	}

	outer := key.OuterKey()
	s.ExporterForeignSource = outer.Exporter.ForeignSource
	s.ExporterForeignID = outer.Exporter.ForeignID
	s.ExporterNodeID = outer.Exporter.NodeID
	s.IfIndex = outer.IfIndex

	// Flatten the variant-specific fields (visitor over the tagged union,
	// spec Design Note: "visit() becomes a dispatch on the tag").
	switch k := key.(type) {
	case groupkey.ExporterInterface:
		// outer key only, no extra fields.
	case groupkey.ExporterInterfaceApplication:
		s.Application = k.Application
	case groupkey.ExporterInterfaceHost:
		s.HostAddress = k.Address
	case groupkey.ExporterInterfaceConversation:
		s.ConversationKey = k.GroupedByKey()
	}

	return s
}
