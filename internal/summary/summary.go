// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package summary implements the summary builder (C7, §4.7): it projects
// grouped aggregation results into flat FlowSummary records with stable,
// idempotent IDs, matching the bit-exact sink document shape from spec §6.
package summary

import (
	"fmt"

	"github.com/indigo423/nephron/internal/groupkey"
)

// AggregationType distinguishes the TOTAL branch from the TOPK branches.
type AggregationType string

// Aggregation type values, exactly as emitted in the aggregation_type field.
const (
	AggregationTotal AggregationType = "TOTAL"
	AggregationTopK  AggregationType = "TOPK"
)

// FlowSummary is the flat record emitted to sinks (spec §3, §6). JSON tags
// match the sink document fields bit-exact.
type FlowSummary struct {
	Timestamp       int64           `json:"@timestamp"`
	RangeStartMs    int64           `json:"range_start"`
	RangeEndMs      int64           `json:"range_end"`
	Ranking         int             `json:"ranking"`
	GroupedBy       groupkey.Tag    `json:"grouped_by"`
	GroupedByKey    string          `json:"grouped_by_key"`
	AggregationType AggregationType `json:"aggregation_type"`
	BytesIngress    uint64          `json:"bytes_ingress"`
	BytesEgress     uint64          `json:"bytes_egress"`
	BytesTotal      uint64          `json:"bytes_total"`

	ExporterForeignSource string `json:"exporter.foreign_source,omitempty"`
	ExporterForeignID     string `json:"exporter.foreign_id,omitempty"`
	ExporterNodeID        int32  `json:"exporter.node_id,omitempty"`
	IfIndex               int32  `json:"if_index"`
	Application           string `json:"application,omitempty"`
	HostAddress           string `json:"host_address,omitempty"`
	ConversationKey        string `json:"conversation_key,omitempty"`
}

// ID is the summary's identity (spec §3): it makes re-processed late data an
// upsert of the same document instead of a duplicate insert (invariants 7, 8).
func (s FlowSummary) ID() string {
	return fmt.Sprintf("%d_%s_%s_%s_%d", s.Timestamp, s.GroupedBy, s.GroupedByKey, s.AggregationType, s.Ranking)
}
