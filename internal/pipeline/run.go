// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package pipeline

import (
	"context"
	"time"
)

// tickInterval is how often Tick is driven by the Run loop to check for due
// pane firings, independent of how often new records are pulled.
const tickInterval = time.Second

// Run drives the pull -> process -> tick loop until ctx is cancelled. On
// cancellation it stops pulling, drains by flushing every branch's pane
// state, and returns (spec §5: graceful shutdown draining).
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	pullCtx, cancelPull := context.WithCancel(ctx)
	defer cancelPull()

	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("shutting down, draining pane state")
			return p.Flush(context.Background())

		case <-ticker.C:
			if err := p.Tick(ctx, time.Now()); err != nil {
				return err
			}
			if !p.cfg.AutoCommit {
				// Only commit offsets whose covering window(s) every branch
				// has evicted past allowed lateness, not the latest pulled
				// offset (source.Source's contract: commit only once results
				// are fully acknowledged by the sink).
				for partition, offset := range p.SafeCommitOffsets() {
					if err := p.src.Commit(ctx, partition, offset); err != nil {
						p.logger.Errorw("commit failed", "partition", partition, "offset", offset, "error", err)
					}
				}
			}

		default:
			records, err := p.src.Pull(pullCtx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				p.logger.Errorw("source pull failed, backing off", "error", err)
				time.Sleep(time.Second)
				continue
			}
			now := time.Now()
			for _, rec := range records {
				p.ProcessRecord(rec, now)
			}
		}
	}
}
