// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package sink

import (
	"context"

	"github.com/IBM/sarama"
)

// KafkaTopicSink appends JSON payloads to an output topic with the message
// key ignored (spec §6), using a sync producer so Append only returns once
// the broker has acknowledged the write.
type KafkaTopicSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaTopicSink builds a KafkaTopicSink for topic.
func NewKafkaTopicSink(brokers []string, topic string) (*KafkaTopicSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaTopicSink{producer: producer, topic: topic}, nil
}

// Append publishes payload to the topic with a nil key.
func (s *KafkaTopicSink) Append(_ context.Context, payload []byte) error {
	_, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

// Close releases the underlying producer.
func (s *KafkaTopicSink) Close() error {
	return s.producer.Close()
}
