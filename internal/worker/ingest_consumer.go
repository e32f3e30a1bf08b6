package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"flowkit/internal/config"
	"flowkit/internal/middleware"
	"flowkit/internal/schema"
	"flowkit/internal/text"
	"flowkit/internal/vectorstore"
)

const defaultIndexTimeout = 120 * time.Second

type IngestConsumer struct {
	indexers    IndexerFactory
	timeout     time.Duration
	failures    FailureRecorder
	maxAttempts uint16
}

func NewIngestConsumer(f IndexerFactory) *IngestConsumer {
	return &IngestConsumer{indexers: f, timeout: defaultIndexTimeout}
}

// WithFailureRecorder hands payloads that still fail on their maxAttempts-th
// delivery to r instead of requeueing them.
func (h *IngestConsumer) WithFailureRecorder(r FailureRecorder, maxAttempts uint16) *IngestConsumer {
	h.failures = r
	h.maxAttempts = maxAttempts
	return h
}

// HandleMessage indexes one payload. Malformed payloads are acknowledged and
// dropped; store failures are returned so NSQ requeues the message.
func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	docs, err := vectorstore.ToDocuments(schema.FromValues(payload.Records))
	if err != nil {
		slog.ErrorContext(ctx, "poison pill: unsupported records", "error", err)
		return nil
	}
	if len(docs) == 0 {
		slog.InfoContext(ctx, "ingest payload has no records", "table", payload.TableName)
		return nil
	}
	docs = text.SplitDocuments(docs, payload.ChunkSize)

	indexer, err := h.indexers(payload.TableName, payload.QueryName)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open vector store", "error", err, "table", payload.TableName)
		return h.fail(ctx, m, err)
	}

	indexCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	ids, err := indexer.AddDocuments(indexCtx, docs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.WarnContext(ctx, "indexing timed out", "table", payload.TableName, "count", len(docs))
		}
		slog.ErrorContext(ctx, "indexing failed", "error", err, "table", payload.TableName)
		return h.fail(ctx, m, err)
	}

	slog.InfoContext(ctx, "records indexed", "table", payload.TableName, "count", len(ids))
	return nil
}

// fail returns err for a requeue, unless the attempts are exhausted and the
// payload was recorded as a failed job.
func (h *IngestConsumer) fail(ctx context.Context, m *nsq.Message, err error) error {
	if h.failures == nil || m.Attempts < h.maxAttempts {
		return err
	}
	if rerr := h.failures.RecordFailure(ctx, config.TopicVectorIngest, m.Body, int(m.Attempts), err); rerr != nil {
		slog.ErrorContext(ctx, "failed to record failed job", "error", rerr)
		return err
	}
	return nil
}
