package vectorstores

import (
	"context"
	"fmt"

	"flowkit/internal/adapter/supabase"
	"flowkit/internal/component"
	"flowkit/internal/schema"
	"flowkit/internal/vectorstore"
)

// SupabaseParams are the decoded build values of the Supabase component.
type SupabaseParams struct {
	Inputs             []any                     `mapstructure:"inputs"`
	Embedding          vectorstore.Embedder      `mapstructure:"embedding"`
	QueryName          string                    `mapstructure:"query_name"`
	SearchKwargs       vectorstore.SearchOptions `mapstructure:"search_kwargs"`
	SupabaseServiceKey string                    `mapstructure:"supabase_service_key"`
	SupabaseURL        string                    `mapstructure:"supabase_url"`
	TableName          string                    `mapstructure:"table_name"`
}

type (
	ClientFactory func(url, key string) (*supabase.Client, error)
	StoreFactory  func(ctx context.Context, docs []schema.Document, embedder vectorstore.Embedder, client *supabase.Client, opts supabase.StoreOptions) (*supabase.VectorStore, error)
)

// SupabaseComponent indexes its inputs into a Supabase pgvector table and
// returns the table as a retriever.
type SupabaseComponent struct {
	newClient     ClientFactory
	fromDocuments StoreFactory
	queryLog      *vectorstore.QueryLogger
}

type SupabaseOption func(*SupabaseComponent)

func WithClientFactory(f ClientFactory) SupabaseOption {
	return func(c *SupabaseComponent) { c.newClient = f }
}

func WithStoreFactory(f StoreFactory) SupabaseOption {
	return func(c *SupabaseComponent) { c.fromDocuments = f }
}

func WithQueryLogger(l *vectorstore.QueryLogger) SupabaseOption {
	return func(c *SupabaseComponent) { c.queryLog = l }
}

func NewSupabaseComponent(opts ...SupabaseOption) *SupabaseComponent {
	c := &SupabaseComponent{
		newClient: func(url, key string) (*supabase.Client, error) {
			return supabase.NewClient(url, key)
		},
		fromDocuments: supabase.FromDocuments,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SupabaseComponent) Schema() component.Schema {
	return component.Schema{
		Name:        "Supabase",
		DisplayName: "Supabase",
		Description: "Return VectorStore initialized from texts and embeddings.",
		Icon:        "Supabase",
		Fields: []component.Field{
			inputsField(),
			embeddingField(),
			{Name: "query_name", DisplayName: "Query Name"},
			searchKwargsField(),
			{Name: "supabase_service_key", DisplayName: "Supabase Service Key", Password: true},
			{Name: "supabase_url", DisplayName: "Supabase URL"},
			{Name: "table_name", DisplayName: "Table Name", Advanced: true},
		},
		Outputs: []component.OutputKind{component.OutputRetriever},
	}
}

func (c *SupabaseComponent) Build(ctx context.Context, params component.Params) (component.Output, error) {
	var p SupabaseParams
	if err := component.Decode(params, &p); err != nil {
		return component.Output{}, err
	}
	retriever, err := c.BuildStore(ctx, p)
	if err != nil {
		return component.Output{}, err
	}
	return component.RetrieverOutput(retriever), nil
}

// BuildStore creates the client, indexes the inputs and returns the store's retriever.
func (c *SupabaseComponent) BuildStore(ctx context.Context, p SupabaseParams) (*vectorstore.StoreRetriever, error) {
	if err := requireEmbedding(p.Embedding); err != nil {
		return nil, err
	}
	client, err := c.newClient(p.SupabaseURL, p.SupabaseServiceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	docs, err := documents(p.Inputs)
	if err != nil {
		return nil, err
	}

	store, err := c.fromDocuments(ctx, docs, p.Embedding, client, supabase.StoreOptions{
		TableName: p.TableName,
		QueryName: p.QueryName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index documents into supabase: %w", err)
	}
	return store.AsRetriever(p.SearchKwargs).WithQueryLogger(c.queryLog), nil
}
