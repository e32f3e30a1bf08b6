package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"flowkit/internal/metrics"
	"flowkit/internal/schema"
	"flowkit/internal/vector"
	"flowkit/internal/vectorstore"
)

// Store keeps documents in a single Weaviate class with caller-supplied vectors.
type Store struct {
	client    *weaviate.Client
	className string
	embedder  vectorstore.Embedder
}

func NewStore(client *weaviate.Client, className string, embedder vectorstore.Embedder) *Store {
	return &Store{client: client, className: vector.ClassName(className), embedder: embedder}
}

func (s *Store) ClassName() string {
	return s.className
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureClass(ctx, vector.NewSchemaAdapter(s.client), s.className)
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

	ids := make([]string, 0, len(texts))
	for i, text := range texts {
		meta, err := json.Marshal(metas[i])
		if err != nil {
			return ids, fmt.Errorf("encode metadata: %w", err)
		}
		id := uuid.NewString()
		_, err = s.client.Data().Creator().
			WithClassName(s.className).
			WithID(id).
			WithProperties(map[string]interface{}{
				"content":  text,
				"metadata": string(meta),
			}).
			WithVector(vectors[i]).
			Do(ctx)
		if err != nil {
			return ids, fmt.Errorf("store document %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	metrics.DocumentsIndexedTotal.WithLabelValues("weaviate").Add(float64(len(ids)))
	return ids, nil
}

// SimilaritySearch runs a nearVector query. Filter keys are matched against decoded
// metadata after retrieval since metadata is stored as a single JSON property.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int, filter map[string]any) ([]schema.Document, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "metadata"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	docs := []schema.Document{}
	data, _ := res.Data["Get"].(map[string]interface{})
	objects, _ := data[s.className].([]interface{})
	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		doc := schema.Document{Metadata: map[string]any{}}
		doc.PageContent, _ = props["content"].(string)
		if raw, ok := props["metadata"].(string); ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		if !matches(doc.Metadata, filter) {
			continue
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				doc.Metadata["id"] = id
			}
			if certainty, ok := additional["certainty"].(float64); ok {
				doc.Metadata[vectorstore.ScoreKey] = certainty
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		err := s.client.Data().Deleter().
			WithClassName(s.className).
			WithID(id).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return nil
}

func (s *Store) AsRetriever(opts vectorstore.SearchOptions) *vectorstore.StoreRetriever {
	return vectorstore.NewRetriever(s, opts)
}

func matches(meta, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(got, want) && fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
