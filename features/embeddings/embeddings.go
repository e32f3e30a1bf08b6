// Package embeddings holds the embedding provider components. Their output is
// wired into the embedding field of a vector store component.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"flowkit/internal/adapter/gemini"
	"flowkit/internal/adapter/openai"
	"flowkit/internal/component"
)

// GeminiComponent builds a Gemini embedder. The configured key is used when
// the flow does not supply one. Embedders are shared per key and model so
// repeated builds reuse one genai client.
type GeminiComponent struct {
	defaultKey string

	mu        sync.Mutex
	embedders map[geminiParams]*gemini.Embedder
}

func NewGeminiComponent(defaultKey string) *GeminiComponent {
	return &GeminiComponent{defaultKey: defaultKey, embedders: make(map[geminiParams]*gemini.Embedder)}
}

type geminiParams struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

func (c *GeminiComponent) Schema() component.Schema {
	return component.Schema{
		Name:        "GeminiEmbeddings",
		DisplayName: "Gemini Embeddings",
		Description: "Generate embeddings using Google Gemini models.",
		Icon:        "GoogleGenerativeAI",
		Fields: []component.Field{
			{Name: "api_key", DisplayName: "API Key", Password: true},
			{Name: "model", DisplayName: "Model", Default: gemini.DefaultModel},
		},
		Outputs: []component.OutputKind{component.OutputEmbeddings},
	}
}

func (c *GeminiComponent) Build(_ context.Context, params component.Params) (component.Output, error) {
	p := geminiParams{APIKey: c.defaultKey}
	if err := component.Decode(params, &p); err != nil {
		return component.Output{}, err
	}
	e, err := c.embedder(p)
	if err != nil {
		return component.Output{}, fmt.Errorf("%w: %w", component.ErrInvalidParams, err)
	}
	return component.EmbeddingsOutput(e), nil
}

func (c *GeminiComponent) embedder(p geminiParams) (*gemini.Embedder, error) {
	if p.Model == "" {
		p.Model = gemini.DefaultModel
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.embedders[p]; ok {
		return e, nil
	}
	e, err := gemini.NewEmbedder(p.APIKey, p.Model)
	if err != nil {
		return nil, err
	}
	c.embedders[p] = e
	return e, nil
}

// Close releases the genai clients of every embedder built so far.
func (c *GeminiComponent) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for p, e := range c.embedders {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.embedders, p)
	}
	return errors.Join(errs...)
}

// OpenAIComponent builds an embedder for any OpenAI compatible endpoint.
type OpenAIComponent struct {
	defaults openai.Config
}

func NewOpenAIComponent(defaults openai.Config) *OpenAIComponent {
	return &OpenAIComponent{defaults: defaults}
}

type openAIParams struct {
	APIKey     string `mapstructure:"openai_api_key"`
	BaseURL    string `mapstructure:"openai_api_base"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

func (c *OpenAIComponent) Schema() component.Schema {
	return component.Schema{
		Name:        "OpenAIEmbeddings",
		DisplayName: "OpenAI Embeddings",
		Description: "Generate embeddings using OpenAI models.",
		Icon:        "OpenAI",
		Fields: []component.Field{
			{Name: "openai_api_key", DisplayName: "OpenAI API Key", Password: true},
			{Name: "openai_api_base", DisplayName: "OpenAI API Base", Advanced: true},
			{Name: "model", DisplayName: "Model", Default: openai.DefaultModel},
			{Name: "dimensions", DisplayName: "Dimensions", Info: "Only supported by text-embedding-3 models.", Advanced: true},
		},
		Outputs: []component.OutputKind{component.OutputEmbeddings},
	}
}

func (c *OpenAIComponent) Build(_ context.Context, params component.Params) (component.Output, error) {
	p := openAIParams{
		APIKey:     c.defaults.APIKey,
		BaseURL:    c.defaults.BaseURL,
		Model:      c.defaults.Model,
		Dimensions: c.defaults.Dimensions,
	}
	if err := component.Decode(params, &p); err != nil {
		return component.Output{}, err
	}
	e, err := openai.NewEmbedder(openai.Config{
		APIKey:     p.APIKey,
		BaseURL:    p.BaseURL,
		Model:      p.Model,
		Dimensions: p.Dimensions,
	})
	if err != nil {
		return component.Output{}, fmt.Errorf("%w: %w", component.ErrInvalidParams, err)
	}
	return component.EmbeddingsOutput(e), nil
}
