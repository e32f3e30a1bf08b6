package chromem

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"flowkit/internal/metrics"
	"flowkit/internal/schema"
	"flowkit/internal/vectorstore"
)

const DefaultCollection = "flowkit"

// Store is an embedded vector store, in memory or persisted under a directory.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   vectorstore.Embedder
}

// NewStore opens the collection. An empty path keeps everything in memory.
func NewStore(path, collection string, embedder vectorstore.Embedder) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
	}
	if collection == "" {
		collection = DefaultCollection
	}

	c, err := db.GetOrCreateCollection(collection, map[string]string{"hnsw:space": "cosine"}, embeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collection, err)
	}
	return &Store{db: db, collection: c, embedder: embedder}, nil
}

func embeddingFunc(e vectorstore.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}

func (s *Store) Count() int {
	return s.collection.Count()
}

func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document) ([]string, error) {
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

	ids := make([]string, len(texts))
	cdocs := make([]chromem.Document, len(texts))
	for i := range texts {
		ids[i] = uuid.NewString()
		cdocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   texts[i],
			Embedding: vectors[i],
			Metadata:  stringify(metas[i]),
		}
	}
	if err := s.collection.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}
	metrics.DocumentsIndexedTotal.WithLabelValues("local").Add(float64(len(cdocs)))
	return ids, nil
}

func (s *Store) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]any) ([]schema.Document, error) {
	n := min(k, s.collection.Count())
	if n <= 0 {
		return []schema.Document{}, nil
	}
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var where map[string]string
	if len(filter) > 0 {
		where = stringify(filter)
	}
	results, err := s.collection.QueryEmbedding(ctx, vec, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	docs := make([]schema.Document, 0, len(results))
	for _, r := range results {
		meta := make(map[string]any, len(r.Metadata)+2)
		for k, v := range r.Metadata {
			meta[k] = v
		}
		meta["id"] = r.ID
		meta[vectorstore.ScoreKey] = float64(r.Similarity)
		docs = append(docs, schema.Document{PageContent: r.Content, Metadata: meta})
	}
	return docs, nil
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	return s.collection.Delete(ctx, nil, nil, ids...)
}

func (s *Store) AsRetriever(opts vectorstore.SearchOptions) *vectorstore.StoreRetriever {
	return vectorstore.NewRetriever(s, opts)
}

// stringify flattens metadata to the string map chromem stores.
func stringify(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}
