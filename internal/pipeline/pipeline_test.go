// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/indigo423/nephron/internal/config"
	"github.com/indigo423/nephron/internal/flowrecord"
	"github.com/indigo423/nephron/internal/source"
	"github.com/indigo423/nephron/internal/telemetry"
	"github.com/indigo423/nephron/internal/testutil"
)

type fakeDocSink struct {
	mu      sync.Mutex
	byID    map[string][]byte
	indexOf map[string]string
}

func newFakeDocSink() *fakeDocSink {
	return &fakeDocSink{byID: make(map[string][]byte), indexOf: make(map[string]string)}
}

func (f *fakeDocSink) Upsert(_ context.Context, indexName, docID string, document []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[docID] = document
	f.indexOf[docID] = indexName
	return nil
}

func (f *fakeDocSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func testConfig(t *testing.T) *cfgpkg.Config {
	t.Helper()
	return &cfgpkg.Config{
		BootstrapServers:       []string{"localhost:9092"},
		FlowSourceTopic:        "flows",
		GroupID:                "test",
		ElasticURL:             "http://localhost:9200",
		ElasticFlowIndex:       "netflow",
		ElasticIndexStrategy:   "DAILY",
		FixedWindowSizeMs:      60_000,
		MaxFlowDurationMs:      900_000,
		DefaultMaxInputDelayMs: 0,
		LateProcessingDelayMs:  60_000,
		AllowedLatenessMs:      14_400_000,
		TopK:                   2,
		EnabledBranches:        []string{cfgpkg.BranchTotal, cfgpkg.BranchTopKApp, cfgpkg.BranchTopKHost, cfgpkg.BranchTopKConversation},
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, *fakeDocSink) {
	t.Helper()
	docSink := newFakeDocSink()
	p := New(testConfig(t), zap.NewNop().Sugar(), telemetry.New(prometheus.NewRegistry()), nil, docSink, nil)
	return p, docSink
}

func recordFor(f *flowrecord.Flow, partition int32, offset int64, eventTimeMs int64) source.Record {
	frame, _ := flowrecord.Encode(f)
	return source.Record{Partition: partition, Offset: offset, EventTimeMs: eventTimeMs, Value: frame}
}

func Test_Pipeline_totalBranchSumsBytesAcrossFlows_S2(t *testing.T) {
	p, docSink := newTestPipeline(t)

	in := testutil.NewFlow(testutil.WithInterval(1_000, 2_000), testutil.WithBytes(100), testutil.WithDirection(flowrecord.DirectionIngress))
	out := testutil.NewFlow(testutil.WithInterval(1_000, 2_000), testutil.WithBytes(50), testutil.WithDirection(flowrecord.DirectionEgress))

	now := time.Unix(0, 0)
	p.ProcessRecord(recordFor(in, 0, 0, 2_000), now)
	p.ProcessRecord(recordFor(out, 0, 1, 2_000), now)

	require.NoError(t, p.Tick(context.Background(), now))
	require.NoError(t, p.Flush(context.Background()))

	assert.Greater(t, docSink.count(), 0)

	// The TOTAL document for window [0,60000) on interface 10 carries both
	// flows' bytes combined.
	docSink.mu.Lock()
	raw, ok := docSink.byID["60000_EXPORTER_INTERFACE_Juniper|edge-01|1|10_TOTAL_0"]
	docSink.mu.Unlock()
	require.True(t, ok)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, float64(100), doc["bytes_ingress"])
	assert.Equal(t, float64(50), doc["bytes_egress"])
	assert.Equal(t, float64(150), doc["bytes_total"])
}

func Test_Pipeline_emitsOnWatermarkCrossing(t *testing.T) {
	p, docSink := newTestPipeline(t)

	f := testutil.NewFlow(testutil.WithInterval(1_000, 2_000))
	now := time.Unix(0, 0)
	p.ProcessRecord(recordFor(f, 0, 0, 2_000), now)

	// Watermark (eventTime - maxInputDelay(0)) is 2000, below window end 60000: no firing yet.
	require.NoError(t, p.Tick(context.Background(), now))
	assert.Equal(t, 0, docSink.count())

	// Advance watermark past the window end.
	p.ProcessRecord(recordFor(f, 0, 1, 61_000), now)
	require.NoError(t, p.Tick(context.Background(), now))
	assert.Greater(t, docSink.count(), 0)
}

func Test_Pipeline_conversationBranchCanonicalisesReverseFlows_S4(t *testing.T) {
	p, docSink := newTestPipeline(t)

	flowA := testutil.NewFlow(
		testutil.WithInterval(1_000, 2_000),
		testutil.WithEndpoints("10.0.0.1", 1000, "10.0.0.2", 80, 6),
	)
	flowB := testutil.NewFlow(
		testutil.WithInterval(1_000, 2_000),
		testutil.WithEndpoints("10.0.0.2", 80, "10.0.0.1", 1000, 6),
		testutil.WithDirection(flowrecord.DirectionEgress),
	)

	now := time.Unix(0, 0)
	p.ProcessRecord(recordFor(flowA, 0, 0, 70_000), now)
	p.ProcessRecord(recordFor(flowB, 0, 1, 70_000), now)

	require.NoError(t, p.Tick(context.Background(), now))
	require.NoError(t, p.Flush(context.Background()))

	assert.Greater(t, docSink.count(), 0)

	// Both directions fold into one conversation key, so the conversation
	// branch writes a single (rank 1) document.
	conversations := 0
	docSink.mu.Lock()
	for id := range docSink.byID {
		if strings.Contains(id, "_EXPORTER_INTERFACE_CONVERSATION_") {
			conversations++
		}
	}
	docSink.mu.Unlock()
	assert.Equal(t, 1, conversations)
}

func Test_Pipeline_topKBranchLimitsToConfiguredK(t *testing.T) {
	p, docSink := newTestPipeline(t)
	now := time.Unix(0, 0)

	apps := []string{"HTTP", "SSH", "DNS", "FTP"}
	for i, app := range apps {
		f := testutil.NewFlow(
			testutil.WithInterval(1_000, 2_000),
			testutil.WithApplication(app),
			testutil.WithBytes(uint64(100*(i+1))),
		)
		p.ProcessRecord(recordFor(f, 0, int64(i), 70_000), now)
	}

	require.NoError(t, p.Tick(context.Background(), now))
	require.NoError(t, p.Flush(context.Background()))

	// TopK configured at 2: the application branch contributes at most 2
	// documents, plus 1 from total, 2 from host (src and dst) and at most 2
	// from conversation (the application is part of the conversation key).
	assert.LessOrEqual(t, docSink.count(), 2+1+2+2)
}

func Test_Pipeline_safeCommitOffsetsWithholdsUntilWindowFires(t *testing.T) {
	p, _ := newTestPipeline(t)
	now := time.Unix(0, 0)

	f := testutil.NewFlow(testutil.WithInterval(1_000, 2_000))
	p.ProcessRecord(recordFor(f, 0, 0, 2_000), now)

	// Watermark (2000) hasn't crossed the window end (60000): the window is
	// still open in every branch, so nothing is safe to commit yet.
	require.NoError(t, p.Tick(context.Background(), now))
	assert.Empty(t, p.SafeCommitOffsets())

	// Advance the watermark past the window end and allowed lateness so every
	// branch evicts it; both offsets are now safe to commit (the first
	// record's window has been evicted everywhere, and the second record's
	// assignment was itself skew-dropped, so it never depended on an open
	// window to begin with).
	p.ProcessRecord(recordFor(f, 0, 1, 60_000+14_400_000+1), now)
	require.NoError(t, p.Tick(context.Background(), now))

	safe := p.SafeCommitOffsets()
	offset, ok := safe[0]
	require.True(t, ok)
	assert.Equal(t, int64(1), offset)
}

func Test_Pipeline_safeCommitOffsetsImmediatelyClearsMalformedRecords(t *testing.T) {
	p, _ := newTestPipeline(t)
	now := time.Unix(0, 0)

	p.ProcessRecord(source.Record{Partition: 3, Offset: 7, EventTimeMs: 1_000, Value: []byte("not a valid frame")}, now)

	safe := p.SafeCommitOffsets()
	offset, ok := safe[3]
	require.True(t, ok)
	assert.Equal(t, int64(7), offset)
}
