// Package vectorstores holds the vector store connector components. Each one
// indexes its inputs with the configured embeddings and returns a retriever.
package vectorstores

import (
	"fmt"

	"flowkit/internal/component"
	"flowkit/internal/schema"
	"flowkit/internal/vectorstore"
)

func inputsField() component.Field {
	return component.Field{
		Name:        "inputs",
		DisplayName: "Input",
		InputTypes:  []component.InputType{component.InputDocument, component.InputRecord},
		List:        true,
	}
}

func embeddingField() component.Field {
	return component.Field{
		Name:        "embedding",
		DisplayName: "Embedding",
		InputTypes:  []component.InputType{component.InputEmbeddings},
		Required:    true,
	}
}

func searchKwargsField() component.Field {
	return component.Field{
		Name:        "search_kwargs",
		DisplayName: "Search Kwargs",
		Info:        "Retriever options: k, filter, score_threshold.",
		Default:     map[string]any{},
		Advanced:    true,
	}
}

// documents converts decoded inputs into documents for indexing.
func documents(inputs []any) ([]schema.Document, error) {
	docs, err := vectorstore.ToDocuments(schema.FromValues(inputs))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", component.ErrInvalidParams, err)
	}
	return docs, nil
}

func requireEmbedding(e vectorstore.Embedder) error {
	if e == nil {
		return fmt.Errorf("%w: embedding is required", component.ErrInvalidParams)
	}
	return nil
}
