// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KafkaSourceConfig configures the Kafka-backed Source.
type KafkaSourceConfig struct {
	BootstrapServers []string
	Topic            string
	GroupID          string
	AutoCommit       bool
}

// KafkaSource adapts a sarama consumer group to the Source contract (spec
// §6: "Input bus topic. Partitioned; ... Auto-commit may be enabled; when
// disabled, the core must commit only after sink acknowledgement.").
type KafkaSource struct {
	cfg      KafkaSourceConfig
	policy   TimestampPolicy
	group    sarama.ConsumerGroup
	handler  *consumerGroupHandler
	logger   *zap.SugaredLogger
	cancel   context.CancelFunc
	groupErr chan error
}

// NewKafkaSource connects a sarama consumer group for cfg.Topic/GroupID.
func NewKafkaSource(cfg KafkaSourceConfig, policy TimestampPolicy, logger *zap.SugaredLogger) (*KafkaSource, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	saramaCfg.Consumer.Offsets.AutoCommit.Enable = cfg.AutoCommit
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.ClientID = fmt.Sprintf("nephron-%s", uuid.NewString())

	group, err := sarama.NewConsumerGroup(cfg.BootstrapServers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("source: connecting consumer group: %w", err)
	}

	handler := newConsumerGroupHandler(policy)
	ctx, cancel := context.WithCancel(context.Background())
	s := &KafkaSource{
		cfg:      cfg,
		policy:   policy,
		group:    group,
		handler:  handler,
		logger:   logger.Named("kafka-source"),
		cancel:   cancel,
		groupErr: make(chan error, 1),
	}

	go s.consumeLoop(ctx)
	go s.logErrors()

	return s, nil
}

func (s *KafkaSource) consumeLoop(ctx context.Context) {
	for {
		if err := s.group.Consume(ctx, []string{s.cfg.Topic}, s.handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorw("consumer group session ended with error, reconnecting", "error", err)
			select {
			case s.groupErr <- err:
			default:
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *KafkaSource) logErrors() {
	for err := range s.group.Errors() {
		s.logger.Errorw("kafka consumer group error", "error", err)
	}
}

// Pull returns the next batch of buffered records, blocking until at least
// one is available or ctx is done.
func (s *KafkaSource) Pull(ctx context.Context) ([]Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rec := <-s.handler.records:
		batch := []Record{rec}
		draining := true
		for draining {
			select {
			case r := <-s.handler.records:
				batch = append(batch, r)
			default:
				draining = false
			}
		}
		return batch, nil
	}
}

// Commit marks offset consumed on partition and, since AutoCommit is
// disabled in that mode, synchronously commits it to the broker so the
// group only advances once the sink has acknowledged the corresponding
// summaries (spec §5, §6).
func (s *KafkaSource) Commit(_ context.Context, partition int32, offset int64) error {
	sess := s.handler.currentSession()
	if sess == nil {
		return fmt.Errorf("source: no active consumer group session")
	}
	sess.MarkOffset(s.cfg.Topic, partition, offset+1, "")
	if !s.cfg.AutoCommit {
		sess.Commit()
	}
	return nil
}

// Close stops the consume loop and the underlying consumer group.
func (s *KafkaSource) Close() error {
	s.cancel()
	return s.group.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler, forwarding
// claimed messages to a buffered channel and tracking the current session
// so Commit can mark/commit offsets.
type consumerGroupHandler struct {
	policy  TimestampPolicy
	records chan Record

	mu      sync.Mutex
	session sarama.ConsumerGroupSession
}

func newConsumerGroupHandler(policy TimestampPolicy) *consumerGroupHandler {
	return &consumerGroupHandler{
		policy:  policy,
		records: make(chan Record, 4096),
	}
}

func (h *consumerGroupHandler) currentSession() sarama.ConsumerGroupSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *consumerGroupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.mu.Lock()
	h.session = sess
	h.mu.Unlock()
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.mu.Lock()
	h.session = nil
	h.mu.Unlock()
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		rec := Record{
			Partition:   msg.Partition,
			Offset:      msg.Offset,
			EventTimeMs: h.policy.EventTimeMs(msg.Timestamp, msg.Value),
			Value:       msg.Value,
		}
		select {
		case h.records <- rec:
		case <-sess.Context().Done():
			return nil
		}
	}
	return nil
}
