package worker

import (
	"context"

	"flowkit/internal/schema"
)

type Indexer interface {
	AddDocuments(ctx context.Context, docs []schema.Document) ([]string, error)
}

// IndexerFactory opens the store for a payload's table and query names.
// Empty names select the configured defaults.
type IndexerFactory func(tableName, queryName string) (Indexer, error)

// FailureRecorder keeps payloads that exhausted their delivery attempts.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, topic string, payload []byte, attempts int, cause error) error
}
