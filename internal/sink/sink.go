// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package sink defines the egress contracts the core writes to (spec §4.9,
// C9): an idempotent document sink and an append-only topic sink, plus
// concrete Elasticsearch and Kafka adapters.
package sink

import "context"

// DocumentSink upserts a JSON document keyed by docID into indexName, with
// at-least-once delivery and idempotence keyed on docID (spec §4.9): writing
// the same docID twice must not create a duplicate, only update in place.
type DocumentSink interface {
	Upsert(ctx context.Context, indexName, docID string, document []byte) error
}

// TopicSink appends a JSON payload to an output topic; the message key is
// ignored (spec §6).
type TopicSink interface {
	Append(ctx context.Context, payload []byte) error
}

// IndexStrategy names the sink index naming cadence (spec §6).
type IndexStrategy string

// Index strategy values.
const (
	IndexStrategyDaily   IndexStrategy = "DAILY"
	IndexStrategyHourly  IndexStrategy = "HOURLY"
	IndexStrategyMonthly IndexStrategy = "MONTHLY"
)
