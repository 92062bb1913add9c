// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package pipeline wires components C1-C9 into the four grouping branches
// described in spec §2's data-flow diagram: source -> decode -> timestamp
// extraction -> window assignment -> {key-by -> allocate -> combine ->
// (topk: re-key by outer key -> topk)} -> summary build -> flatten -> sink.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/indigo423/nephron/internal/aggregate"
	"github.com/indigo423/nephron/internal/config"
	"github.com/indigo423/nephron/internal/flowrecord"
	"github.com/indigo423/nephron/internal/groupkey"
	"github.com/indigo423/nephron/internal/ratelimit"
	"github.com/indigo423/nephron/internal/sink"
	"github.com/indigo423/nephron/internal/source"
	"github.com/indigo423/nephron/internal/summary"
	"github.com/indigo423/nephron/internal/telemetry"
	"github.com/indigo423/nephron/internal/trigger"
	"github.com/indigo423/nephron/internal/window"
)

// keyFn derives zero or more compound keys for a flow on a given interface
// index. The host branch derives two keys per flow (src and dst); the total,
// application and conversation branches derive exactly one.
type keyFn func(f *flowrecord.Flow, ifIndex int32) []groupkey.CompoundKey

// branch is one of the four grouping dimensions from spec §2.
type branch struct {
	name  string
	keyOf keyFn
	topK  bool // false => TOTAL aggregation, true => TOPK
	engine *trigger.Engine
}

// pendingOffset is one pulled-but-not-yet-safe-to-commit record: maxWindowStart
// is the latest window.Start it was assigned to, or -1 if it was assigned to
// no window at all (malformed/invalid/skew-dropped records are immediately
// safe to commit past, since no open window depends on them).
type pendingOffset struct {
	offset         int64
	maxWindowStart int64
}

// Pipeline wires C1-C9 for every enabled branch and drives the pull/assign/
// allocate/combine/trigger/summarize/sink loop.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	metrics *telemetry.Metrics

	src      source.Source
	docSink  sink.DocumentSink
	topicSink sink.TopicSink // optional, nil if flowDestTopic unset

	assigner  *window.Assigner
	allocator *window.Allocator
	watermarks *trigger.WatermarkTracker
	branches   []*branch
	malformedLimiter *ratelimit.Limiter

	pendingMu sync.Mutex
	pending   map[int32][]pendingOffset

	ReceivedFlowCount *atomic.Uint64
	DroppedFlowCount  *atomic.Uint64
	EmittedSummaryCount *atomic.Uint64
}

// New assembles a Pipeline from its collaborators.
func New(
	cfg *config.Config,
	logger *zap.SugaredLogger,
	metrics *telemetry.Metrics,
	src source.Source,
	docSink sink.DocumentSink,
	topicSink sink.TopicSink,
) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		logger:    logger.Named("pipeline"),
		metrics:   metrics,
		src:       src,
		docSink:   docSink,
		topicSink: topicSink,
		watermarks: trigger.NewWatermarkTracker(cfg.DefaultMaxInputDelayMs),
		malformedLimiter: ratelimit.New(10, time.Second),
		pending:    make(map[int32][]pendingOffset),

		ReceivedFlowCount:   atomic.NewUint64(0),
		DroppedFlowCount:    atomic.NewUint64(0),
		EmittedSummaryCount: atomic.NewUint64(0),
	}

	p.assigner = window.NewAssigner(cfg.FixedWindowSizeMs, cfg.MaxFlowDurationMs, logger, func() { metrics.FlowsSkewDropped.Inc() })
	p.allocator = window.NewAllocator(logger)

	newEngine := func() *trigger.Engine {
		return trigger.NewEngine(cfg.FixedWindowSizeMs, cfg.LateProcessingDelay(), cfg.AllowedLatenessMs, logger)
	}

	if cfg.BranchEnabled(config.BranchTotal) {
		p.branches = append(p.branches, &branch{
			name: config.BranchTotal,
			keyOf: func(f *flowrecord.Flow, ifIndex int32) []groupkey.CompoundKey {
				return []groupkey.CompoundKey{groupkey.NewExporterInterface(f, ifIndex)}
			},
			topK:   false,
			engine: newEngine(),
		})
	}
	if cfg.BranchEnabled(config.BranchTopKApp) {
		p.branches = append(p.branches, &branch{
			name: config.BranchTopKApp,
			keyOf: func(f *flowrecord.Flow, ifIndex int32) []groupkey.CompoundKey {
				return []groupkey.CompoundKey{groupkey.NewExporterInterfaceApplication(f, ifIndex)}
			},
			topK:   true,
			engine: newEngine(),
		})
	}
	if cfg.BranchEnabled(config.BranchTopKHost) {
		p.branches = append(p.branches, &branch{
			name: config.BranchTopKHost,
			keyOf: func(f *flowrecord.Flow, ifIndex int32) []groupkey.CompoundKey {
				return []groupkey.CompoundKey{
					groupkey.NewExporterInterfaceHost(f, ifIndex, f.SrcAddress),
					groupkey.NewExporterInterfaceHost(f, ifIndex, f.DstAddress),
				}
			},
			topK:   true,
			engine: newEngine(),
		})
	}
	if cfg.BranchEnabled(config.BranchTopKConversation) {
		p.branches = append(p.branches, &branch{
			name: config.BranchTopKConversation,
			keyOf: func(f *flowrecord.Flow, ifIndex int32) []groupkey.CompoundKey {
				return []groupkey.CompoundKey{groupkey.NewExporterInterfaceConversation(f, ifIndex)}
			},
			topK:   true,
			engine: newEngine(),
		})
	}

	return p
}

// ProcessRecord decodes one pulled bus record and folds it into every
// enabled branch's trigger state. partition/eventTimeMs are used to advance
// that partition's watermark. Regardless of how the record is handled (decode
// failure, validation failure, skew drop, or successful window assignment),
// its offset is recorded against the latest window it ended up depending on,
// so SafeCommitOffsets can tell once that dependency has cleared.
func (p *Pipeline) ProcessRecord(rec source.Record, now time.Time) {
	maxWindowStart := int64(-1)
	defer func() {
		p.pendingMu.Lock()
		p.pending[rec.Partition] = append(p.pending[rec.Partition], pendingOffset{offset: rec.Offset, maxWindowStart: maxWindowStart})
		p.pendingMu.Unlock()
	}()

	flow, _, err := flowrecord.Decode(rec.Value)
	if err != nil {
		if p.malformedLimiter.Allow() {
			p.logger.Warnw("dropping undecodable flow record", "error", err, "partition", rec.Partition, "offset", rec.Offset)
		}
		p.metrics.FlowsMalformed.Inc()
		p.DroppedFlowCount.Inc()
		return
	}

	p.ReceivedFlowCount.Inc()
	p.metrics.FlowsReceived.Inc()

	if flow.Normalize() {
		p.metrics.FlowsDeltaSynthesized.Inc()
	}
	if err := flow.Validate(); err != nil {
		if p.malformedLimiter.Allow() {
			p.logger.Warnw("dropping malformed flow", "error", err)
		}
		p.metrics.FlowsMalformed.Inc()
		p.DroppedFlowCount.Inc()
		return
	}

	watermarkMs := p.watermarks.Observe(rec.Partition, rec.EventTimeMs)
	p.metrics.WatermarkMs.Set(float64(watermarkMs))

	assignments := p.assigner.Assign(flow, rec.EventTimeMs)
	for _, a := range assignments {
		bytes, ok := p.allocator.Allocate(a.Window, a.Flow)
		if !ok {
			continue
		}
		if a.Window.Start > maxWindowStart {
			maxWindowStart = a.Window.Start
		}
		ifIndex := inputInterface(a.Flow)
		for _, br := range p.branches {
			for _, key := range br.keyOf(a.Flow, ifIndex) {
				br.engine.Add(a.Window, key, bytes, now, watermarkMs)
			}
		}
	}
}

// SafeCommitOffsets returns, for every partition with committable records,
// the highest pulled offset whose covering window(s) have been evicted by
// every branch's trigger engine — i.e. are past allowed lateness, so no
// further pane can fire for them (spec §5, §6: "commit source offsets only
// for windows whose results have been fully acknowledged by the sink").
// A window whose end and allowed lateness the watermark passes in a single
// Tick is evicted without having fired.
// Windows evict in non-decreasing window.Start order as the watermark
// advances (same allowedLatenessMs/windowSizeMs for every branch), so the
// smallest still-open window.Start across all branches is a safe cutoff:
// any record whose latest assigned window started before that cutoff is
// guaranteed to have been fully drained everywhere.
func (p *Pipeline) SafeCommitOffsets() map[int32]int64 {
	minOpenStart, anyOpen := int64(0), false
	for _, br := range p.branches {
		if start, ok := br.engine.MinOpenWindowStart(); ok && (!anyOpen || start < minOpenStart) {
			minOpenStart, anyOpen = start, true
		}
	}

	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	safe := make(map[int32]int64)
	for partition, entries := range p.pending {
		cleared := 0
		var safeOffset int64
		for _, e := range entries {
			if anyOpen && e.maxWindowStart >= minOpenStart {
				break
			}
			safeOffset = e.offset
			cleared++
		}
		if cleared == 0 {
			continue
		}
		p.pending[partition] = entries[cleared:]
		safe[partition] = safeOffset
	}
	return safe
}

func inputInterface(f *flowrecord.Flow) int32 {
	if f.InputSnmp != 0 {
		return f.InputSnmp
	}
	return f.OutputSnmp
}

// Tick fires due panes across every branch's trigger engine and writes the
// resulting summaries to the configured sinks.
func (p *Pipeline) Tick(ctx context.Context, now time.Time) error {
	watermarkMs, ok := p.watermarks.Global()
	if !ok {
		return nil
	}

	for _, br := range p.branches {
		panes := br.engine.Tick(now, watermarkMs)
		for _, pane := range panes {
			if err := p.emitPane(ctx, br, pane); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush force-fires every branch's remaining window state, for graceful
// shutdown draining (spec §5).
func (p *Pipeline) Flush(ctx context.Context) error {
	for _, br := range p.branches {
		for _, pane := range br.engine.Flush() {
			if err := p.emitPane(ctx, br, pane); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) emitPane(ctx context.Context, br *branch, pane trigger.Pane) error {
	if pane.Late {
		p.metrics.PanesFiredLate.Inc()
	} else {
		p.metrics.PanesFiredOnTime.Inc()
	}

	var summaries []summary.FlowSummary
	if !br.topK {
		for _, e := range pane.Entries {
			summaries = append(summaries, summary.Build(pane.Window.Start, pane.Window.End, e.Key, e.Bytes, summary.AggregationTotal, 0))
		}
	} else {
		byOuter := make(map[string][]trigger.PaneEntry)
		outerKeys := make(map[string]groupkey.ExporterInterface)
		for _, e := range pane.Entries {
			outer := e.Key.OuterKey()
			encoded := outer.GroupedByKey()
			byOuter[encoded] = append(byOuter[encoded], e)
			outerKeys[encoded] = outer
		}
		for encoded, entries := range byOuter {
			_ = encoded
			ranked := make([]aggregate.RankedEntry, len(entries))
			byKey := make(map[string]groupkey.CompoundKey, len(entries))
			for i, e := range entries {
				ranked[i] = aggregate.RankedEntry{KeyEncoded: e.Key.GroupedByKey(), Bytes: e.Bytes}
				byKey[e.Key.GroupedByKey()] = e.Key
			}
			top := aggregate.TopK(ranked, p.cfg.TopK)
			for i, r := range top {
				key := byKey[r.KeyEncoded]
				summaries = append(summaries, summary.Build(pane.Window.Start, pane.Window.End, key, r.Bytes, summary.AggregationTopK, i+1))
			}
		}
	}

	for _, s := range summaries {
		if err := p.writeSummary(ctx, s); err != nil {
			return fmt.Errorf("pipeline: branch %s: %w", br.name, err)
		}
	}
	return nil
}

func (p *Pipeline) writeSummary(ctx context.Context, s summary.FlowSummary) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	indexName := sink.IndexName(p.cfg.ElasticFlowIndex, p.cfg.ElasticIndexStrategy, s.Timestamp)
	if err := p.docSink.Upsert(ctx, indexName, s.ID(), doc); err != nil {
		return fmt.Errorf("writing to document sink: %w", err)
	}
	if p.topicSink != nil {
		if err := p.topicSink.Append(ctx, doc); err != nil {
			return fmt.Errorf("writing to topic sink: %w", err)
		}
	}

	p.EmittedSummaryCount.Inc()
	p.metrics.SummariesEmitted.Inc()
	return nil
}
