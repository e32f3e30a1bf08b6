package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"flowkit/internal/adapter/gemini"
)

func TestNewEmbedder_MissingKey(t *testing.T) {
	e, err := gemini.NewEmbedder("", "")
	assert.Nil(t, e)
	assert.ErrorIs(t, err, gemini.ErrMissingAPIKey)
}

func TestNewEmbedder_DefaultModel(t *testing.T) {
	e, err := gemini.NewEmbedder("key", "")
	require.NoError(t, err)
	assert.Equal(t, gemini.DefaultModel, e.Model())
}

func TestEmbedder_EmbedQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{
				"values": []float32{0.1, 0.2, 0.3},
			},
		})
	}))
	defer ts.Close()

	e, err := gemini.NewEmbedder("test-key", "", option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer e.Close()

	vec, err := e.EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)
	if assert.Len(t, vec, 3) {
		assert.Equal(t, float32(0.1), vec[0])
	}
}

func TestEmbedder_EmbedDocuments(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":batchEmbedContents"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": []map[string]interface{}{
				{"values": []float32{1, 0}},
				{"values": []float32{0, 1}},
			},
		})
	}))
	defer ts.Close()

	e, err := gemini.NewEmbedder("test-key", "", option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer e.Close()

	vecs, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0, 1}, vecs[1])
}

func TestEmbedder_EmbedDocuments_Empty(t *testing.T) {
	e, err := gemini.NewEmbedder("test-key", "")
	require.NoError(t, err)

	vecs, err := e.EmbedDocuments(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
}
