// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package ratelimit implements the "log at most R messages per T interval
// per call site" contract from spec §9: a small per-site token bucket used
// to keep malformed-flow and skew-violation warnings from flooding logs
// under sustained bad input.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket holding at most rate tokens, refilled by rate
// tokens per elapsed interval. Allow reports whether the caller should act (log, increment a
// sampled counter) for this occurrence.
type Limiter struct {
	mu       sync.Mutex
	rate     int
	interval time.Duration
	tokens   int
	last     time.Time
	now      func() time.Time
}

// New returns a Limiter permitting up to rate occurrences per interval,
// starting full.
func New(rate int, interval time.Duration) *Limiter {
	return &Limiter{
		rate:     rate,
		interval: interval,
		tokens:   rate,
		last:     time.Now(),
		now:      time.Now,
	}
}

// Allow reports whether the caller is within the current window's budget,
// consuming one token if so.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.last)
	if elapsed >= l.interval {
		refills := int(elapsed / l.interval)
		l.tokens += refills * l.rate
		if l.tokens > l.rate {
			l.tokens = l.rate
		}
		l.last = l.last.Add(time.Duration(refills) * l.interval)
	}
	if l.tokens <= 0 {
		return false
	}
	l.tokens--
	return true
}
