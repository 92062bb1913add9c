// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"go.uber.org/zap"
)

// PermanentError marks a sink failure the pipeline must treat as fatal
// (spec §7: "Sink permanent failure (auth, schema): fatal; exit non-zero"),
// as opposed to a transient failure worth retrying.
type PermanentError struct {
	Status int
	Body   string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("sink: permanent failure, status=%d body=%s", e.Status, e.Body)
}

// ElasticSinkConfig configures the Elasticsearch-backed DocumentSink.
type ElasticSinkConfig struct {
	URL          string
	Username     string
	Password     string
	MaxRetries   int
	InitialDelay time.Duration
}

// ElasticSink upserts flow summaries into Elasticsearch, keyed on the
// summary's deterministic ID (spec §4.9, §9 "Upsert identity").
type ElasticSink struct {
	client *elasticsearch.Client
	cfg    ElasticSinkConfig
	logger *zap.SugaredLogger
}

// NewElasticSink builds an ElasticSink from cfg.
func NewElasticSink(cfg ElasticSinkConfig, logger *zap.SugaredLogger) (*ElasticSink, error) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 200 * time.Millisecond
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("sink: building elasticsearch client: %w", err)
	}

	return &ElasticSink{client: client, cfg: cfg, logger: logger.Named("elastic-sink")}, nil
}

// Upsert indexes document under docID in indexName, overwriting any prior
// document with the same ID (the idempotent-write contract from spec §4.9:
// each pane firing is a complete re-emission, so indexing with the fixed ID
// is sufficient for "upsert" semantics here — no partial-update merge is
// needed since the new document always fully supersedes the old one).
func (s *ElasticSink) Upsert(ctx context.Context, indexName, docID string, document []byte) error {
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: docID,
		Body:       bytes.NewReader(document),
		Refresh:    "false",
	}

	delay := s.cfg.InitialDelay
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		res, err := req.Do(ctx, s.client)
		if err != nil {
			lastErr = err
		} else {
			err := classifyResponse(res)
			res.Body.Close()
			if err == nil {
				return nil
			}
			if _, permanent := err.(*PermanentError); permanent {
				return err
			}
			lastErr = err
		}

		if attempt == s.cfg.MaxRetries {
			break
		}
		s.logger.Warnw("transient sink failure, retrying", "attempt", attempt, "error", lastErr, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("sink: exhausted %d retries: %w", s.cfg.MaxRetries, lastErr)
}

func classifyResponse(res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(res.Body)
	switch res.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
		return &PermanentError{Status: res.StatusCode, Body: string(body)}
	default:
		return fmt.Errorf("sink: transient elasticsearch error, status=%d body=%s", res.StatusCode, string(body))
	}
}
