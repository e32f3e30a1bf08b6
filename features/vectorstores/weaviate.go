package vectorstores

import (
	"context"
	"fmt"
	"net/url"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "flowkit/internal/adapter/weaviate"
	"flowkit/internal/component"
	"flowkit/internal/vectorstore"
)

type WeaviateParams struct {
	Inputs       []any                     `mapstructure:"inputs"`
	Embedding    vectorstore.Embedder      `mapstructure:"embedding"`
	WeaviateURL  string                    `mapstructure:"weaviate_url"`
	APIKey       string                    `mapstructure:"api_key"`
	IndexName    string                    `mapstructure:"index_name"`
	SearchKwargs vectorstore.SearchOptions `mapstructure:"search_kwargs"`
}

// WeaviateComponent indexes its inputs into a Weaviate class.
type WeaviateComponent struct {
	defaultURL string
	queryLog   *vectorstore.QueryLogger
}

// NewWeaviateComponent uses defaultURL when the flow leaves weaviate_url empty.
func NewWeaviateComponent(defaultURL string, queryLog *vectorstore.QueryLogger) *WeaviateComponent {
	return &WeaviateComponent{defaultURL: defaultURL, queryLog: queryLog}
}

func (c *WeaviateComponent) Schema() component.Schema {
	return component.Schema{
		Name:        "Weaviate",
		DisplayName: "Weaviate",
		Description: "Implementation of Vector Store using Weaviate",
		Icon:        "Weaviate",
		Fields: []component.Field{
			{Name: "weaviate_url", DisplayName: "Weaviate URL", Default: c.defaultURL, Required: true},
			{Name: "api_key", DisplayName: "API Key", Password: true},
			{Name: "index_name", DisplayName: "Index name", Default: "Document"},
			inputsField(),
			embeddingField(),
			searchKwargsField(),
		},
		Outputs: []component.OutputKind{component.OutputRetriever},
	}
}

func (c *WeaviateComponent) Build(ctx context.Context, params component.Params) (component.Output, error) {
	p := WeaviateParams{WeaviateURL: c.defaultURL}
	if err := component.Decode(params, &p); err != nil {
		return component.Output{}, err
	}
	if err := requireEmbedding(p.Embedding); err != nil {
		return component.Output{}, err
	}

	client, err := newWeaviateClient(p.WeaviateURL, p.APIKey)
	if err != nil {
		return component.Output{}, err
	}
	docs, err := documents(p.Inputs)
	if err != nil {
		return component.Output{}, err
	}

	store := adapter.NewStore(client, p.IndexName, p.Embedding)
	if err := store.EnsureSchema(ctx); err != nil {
		return component.Output{}, fmt.Errorf("failed to ensure weaviate class %s: %w", store.ClassName(), err)
	}
	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return component.Output{}, fmt.Errorf("failed to index documents into weaviate: %w", err)
	}
	return component.RetrieverOutput(store.AsRetriever(p.SearchKwargs).WithQueryLogger(c.queryLog)), nil
}

func newWeaviateClient(rawURL, apiKey string) (*weaviate.Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid weaviate_url %q", component.ErrInvalidParams, rawURL)
	}
	cfg := weaviate.Config{Host: u.Host, Scheme: u.Scheme}
	if apiKey != "" {
		cfg.Headers = map[string]string{"Authorization": "Bearer " + apiKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return client, nil
}
