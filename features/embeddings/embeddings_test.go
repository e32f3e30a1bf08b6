package embeddings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowkit/features/embeddings"
	"flowkit/internal/adapter/gemini"
	"flowkit/internal/adapter/openai"
	"flowkit/internal/component"
)

func TestGeminiComponent_Build(t *testing.T) {
	t.Run("UsesConfiguredKey", func(t *testing.T) {
		out, err := embeddings.NewGeminiComponent("cfg-key").Build(context.Background(), nil)
		require.NoError(t, err)
		require.Equal(t, component.OutputEmbeddings, out.Kind)

		e, ok := out.Embeddings.(*gemini.Embedder)
		require.True(t, ok)
		assert.Equal(t, gemini.DefaultModel, e.Model())
	})

	t.Run("ModelOverride", func(t *testing.T) {
		out, err := embeddings.NewGeminiComponent("").Build(context.Background(), component.Params{
			"api_key": "flow-key",
			"model":   "text-embedding-004",
		})
		require.NoError(t, err)
		assert.Equal(t, "text-embedding-004", out.Embeddings.(*gemini.Embedder).Model())
	})

	t.Run("MissingKey", func(t *testing.T) {
		_, err := embeddings.NewGeminiComponent("").Build(context.Background(), nil)
		assert.ErrorIs(t, err, component.ErrInvalidParams)
		assert.ErrorIs(t, err, gemini.ErrMissingAPIKey)
	})
}

func TestGeminiComponent_ReusesEmbedder(t *testing.T) {
	comp := embeddings.NewGeminiComponent("cfg-key")
	ctx := context.Background()

	first, err := comp.Build(ctx, nil)
	require.NoError(t, err)
	second, err := comp.Build(ctx, component.Params{"model": gemini.DefaultModel})
	require.NoError(t, err)
	assert.Same(t, first.Embeddings, second.Embeddings)

	other, err := comp.Build(ctx, component.Params{"api_key": "flow-key"})
	require.NoError(t, err)
	assert.NotSame(t, first.Embeddings, other.Embeddings)

	require.NoError(t, comp.Close())

	rebuilt, err := comp.Build(ctx, nil)
	require.NoError(t, err)
	assert.NotSame(t, first.Embeddings, rebuilt.Embeddings)
}

func TestOpenAIComponent_Build(t *testing.T) {
	comp := embeddings.NewOpenAIComponent(openai.Config{APIKey: "cfg-key"})

	out, err := comp.Build(context.Background(), component.Params{"model": "text-embedding-3-large", "dimensions": "256"})
	require.NoError(t, err)
	e, ok := out.Embeddings.(*openai.Embedder)
	require.True(t, ok)
	assert.Equal(t, "text-embedding-3-large", e.Model())

	_, err = embeddings.NewOpenAIComponent(openai.Config{}).Build(context.Background(), nil)
	assert.ErrorIs(t, err, openai.ErrMissingAPIKey)
}

func TestSchemas(t *testing.T) {
	g := embeddings.NewGeminiComponent("").Schema()
	assert.Equal(t, []component.OutputKind{component.OutputEmbeddings}, g.Outputs)
	key, ok := g.Field("api_key")
	require.True(t, ok)
	assert.True(t, key.Password)

	o := embeddings.NewOpenAIComponent(openai.Config{}).Schema()
	assert.Equal(t, "OpenAIEmbeddings", o.Name)
}
