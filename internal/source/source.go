// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package source defines the bus source contract the core pulls from (spec
// §4.9, C9) and a sarama-backed Kafka implementation.
package source

import (
	"context"
	"time"
)

// Record is one pulled message: its partition/offset for commit bookkeeping,
// the event time the TimestampPolicy assigned it, and the raw flow payload
// bytes (still length-prefixed per internal/flowrecord's wire format).
type Record struct {
	Partition   int32
	Offset      int64
	EventTimeMs int64
	Value       []byte
}

// Source is the pull contract the pipeline consumes (spec §4.9): pull
// delivers the next batch of records already stamped with event time by the
// configured TimestampPolicy; Commit acknowledges up to and including
// offset on partition once its results have been fully handled by the sink
// (spec §5: "commit source offsets only for windows whose results have been
// fully acknowledged").
type Source interface {
	Pull(ctx context.Context) ([]Record, error)
	Commit(ctx context.Context, partition int32, offset int64) error
	Close() error
}

// TimestampPolicy computes a record's event time and derives a per-partition
// watermark from observed timestamps, bounded by a configurable maximum
// allowed lateness (spec §4.9).
type TimestampPolicy interface {
	EventTimeMs(messageTimestamp time.Time, value []byte) int64
	MaxInputDelayMs() int64
}

// WallClockTimestampPolicy uses the bus message's own timestamp as event
// time, the simplest policy and the one nephron uses by default: flow
// records already carry their own first/last-switched times, so the message
// timestamp only needs to be close enough to bound watermark skew, not to
// be authoritative for window assignment.
type WallClockTimestampPolicy struct {
	maxInputDelayMs int64
}

// NewWallClockTimestampPolicy builds a policy with the given max input delay.
func NewWallClockTimestampPolicy(maxInputDelayMs int64) *WallClockTimestampPolicy {
	return &WallClockTimestampPolicy{maxInputDelayMs: maxInputDelayMs}
}

// EventTimeMs returns the message's own timestamp as epoch milliseconds.
func (p *WallClockTimestampPolicy) EventTimeMs(messageTimestamp time.Time, _ []byte) int64 {
	return messageTimestamp.UnixMilli()
}

// MaxInputDelayMs returns the configured maximum allowed input delay.
func (p *WallClockTimestampPolicy) MaxInputDelayMs() int64 {
	return p.maxInputDelayMs
}
