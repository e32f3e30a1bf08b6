package vectorstores

import (
	"context"
	"fmt"
	"path/filepath"

	"flowkit/internal/adapter/chromem"
	"flowkit/internal/component"
	"flowkit/internal/vectorstore"
)

type LocalParams struct {
	Inputs           []any                     `mapstructure:"inputs"`
	Embedding        vectorstore.Embedder      `mapstructure:"embedding"`
	CollectionName   string                    `mapstructure:"collection_name"`
	PersistDirectory string                    `mapstructure:"persist_directory"`
	SearchKwargs     vectorstore.SearchOptions `mapstructure:"search_kwargs"`
}

// LocalComponent keeps vectors in an embedded store, optionally persisted
// under the configured root.
type LocalComponent struct {
	root     string
	queryLog *vectorstore.QueryLogger
}

// NewLocalComponent resolves persist directories against root. Directories
// that are absolute or climb out of root are rejected.
func NewLocalComponent(root string, queryLog *vectorstore.QueryLogger) *LocalComponent {
	return &LocalComponent{root: root, queryLog: queryLog}
}

func (c *LocalComponent) Schema() component.Schema {
	return component.Schema{
		Name:        "LocalVectorStore",
		DisplayName: "Local Vector Store",
		Description: "Embedded vector store kept in memory or persisted to disk.",
		Icon:        "database",
		Fields: []component.Field{
			inputsField(),
			embeddingField(),
			{Name: "collection_name", DisplayName: "Collection Name", Default: chromem.DefaultCollection},
			{Name: "persist_directory", DisplayName: "Persist Directory", Info: "Leave empty to keep the collection in memory.", Advanced: true},
			searchKwargsField(),
		},
		Outputs: []component.OutputKind{component.OutputRetriever},
	}
}

func (c *LocalComponent) Build(ctx context.Context, params component.Params) (component.Output, error) {
	var p LocalParams
	if err := component.Decode(params, &p); err != nil {
		return component.Output{}, err
	}
	if err := requireEmbedding(p.Embedding); err != nil {
		return component.Output{}, err
	}
	docs, err := documents(p.Inputs)
	if err != nil {
		return component.Output{}, err
	}

	dir, err := c.persistDir(p.PersistDirectory)
	if err != nil {
		return component.Output{}, err
	}
	store, err := chromem.NewStore(dir, p.CollectionName, p.Embedding)
	if err != nil {
		return component.Output{}, fmt.Errorf("failed to open local vector store: %w", err)
	}
	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return component.Output{}, fmt.Errorf("failed to index documents into local store: %w", err)
	}
	return component.RetrieverOutput(store.AsRetriever(p.SearchKwargs).WithQueryLogger(c.queryLog)), nil
}

// persistDir joins dir onto the component root, refusing anything that would
// land outside it. An empty dir keeps the store in memory.
func (c *LocalComponent) persistDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	if !filepath.IsLocal(dir) {
		return "", fmt.Errorf("%w: persist_directory %q must be relative to the store root", component.ErrInvalidParams, dir)
	}
	return filepath.Join(c.root, dir), nil
}
