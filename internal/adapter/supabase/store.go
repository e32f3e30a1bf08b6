package supabase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"flowkit/internal/metrics"
	"flowkit/internal/schema"
	"flowkit/internal/vectorstore"
)

const (
	DefaultTableName = "documents"
	DefaultQueryName = "match_documents"
	DefaultChunkSize = 500
)

type StoreOptions struct {
	TableName string
	QueryName string
	ChunkSize int
}

func (o StoreOptions) withDefaults() StoreOptions {
	if o.TableName == "" {
		o.TableName = DefaultTableName
	}
	if o.QueryName == "" {
		o.QueryName = DefaultQueryName
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// VectorStore keeps documents in a pgvector table and searches them through
// a match function exposed over RPC.
type VectorStore struct {
	client   *Client
	embedder vectorstore.Embedder
	opts     StoreOptions
}

func NewVectorStore(client *Client, embedder vectorstore.Embedder, opts StoreOptions) *VectorStore {
	return &VectorStore{client: client, embedder: embedder, opts: opts.withDefaults()}
}

// FromDocuments creates a store and indexes docs into it.
func FromDocuments(ctx context.Context, docs []schema.Document, embedder vectorstore.Embedder, client *Client, opts StoreOptions) (*VectorStore, error) {
	s := NewVectorStore(client, embedder, opts)
	if _, err := s.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *VectorStore) Options() StoreOptions {
	return s.opts
}

type row struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// AddDocuments embeds and upserts docs, returning the generated ids.
func (s *VectorStore) AddDocuments(ctx context.Context, docs []schema.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	texts, metas := vectorstore.Texts(docs)

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(texts))
	}

	rows := make([]row, len(texts))
	ids := make([]string, len(texts))
	for i := range texts {
		ids[i] = uuid.NewString()
		rows[i] = row{ID: ids[i], Content: texts[i], Embedding: vectors[i], Metadata: metas[i]}
	}

	for start := 0; start < len(rows); start += s.opts.ChunkSize {
		end := min(start+s.opts.ChunkSize, len(rows))
		if err := s.client.Upsert(ctx, s.opts.TableName, rows[start:end]); err != nil {
			return nil, err
		}
		slog.DebugContext(ctx, "upserted documents", "table", s.opts.TableName, "count", end-start)
	}

	metrics.DocumentsIndexedTotal.WithLabelValues("supabase").Add(float64(len(rows)))
	return ids, nil
}

type match struct {
	ID         any            `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

func (s *VectorStore) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]any) ([]schema.Document, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	params := map[string]any{"query_embedding": vec}
	if len(filter) > 0 {
		params["filter"] = filter
	}

	var matches []match
	if err := s.client.RPC(ctx, s.opts.QueryName, params, k, &matches); err != nil {
		return nil, err
	}

	docs := make([]schema.Document, 0, len(matches))
	for _, m := range matches {
		meta := m.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		meta[vectorstore.ScoreKey] = m.Similarity
		if m.ID != nil {
			meta["id"] = m.ID
		}
		docs = append(docs, schema.Document{PageContent: m.Content, Metadata: meta})
	}
	return docs, nil
}

func (s *VectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.DeleteIn(ctx, s.opts.TableName, "id", ids)
}

func (s *VectorStore) AsRetriever(opts vectorstore.SearchOptions) *vectorstore.StoreRetriever {
	return vectorstore.NewRetriever(s, opts)
}
