package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flowkit/internal/adapter/gemini"
	"flowkit/internal/adapter/openai"
	"flowkit/internal/adapter/supabase"
	"flowkit/internal/config"
	"flowkit/internal/schema"
)

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		WeaviateHost:   "localhost:8080",
		WeaviateScheme: "http",
		QueryLogPath:   filepath.Join(dir, "logs", "query.log"),
		LocalStorePath: filepath.Join(dir, "vectors"),
		OpenAIBaseURL:  "https://api.openai.com/v1",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	app, err := New(testConfig(t), db, nil, testLogger())
	require.NoError(t, err)
	assert.NotNil(t, app.Handler)
	assert.NotNil(t, app.ChatService)
	assert.NotNil(t, app.JobService)
	assert.Nil(t, app.IngestConsumer)

	for _, name := range []string{"ChatInput", "ChatOutput", "Supabase", "Weaviate", "LocalVectorStore", "GeminiEmbeddings", "OpenAIEmbeddings"} {
		_, err := app.Registry.Get(name)
		assert.NoError(t, err, name)
	}

	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNew_QueryLogFallback(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig(t)
	cfg.QueryLogPath = filepath.Join("/dev/null", "query.log")

	app, err := New(cfg, db, nil, testLogger())
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestNew_IngestWorkerEnabled(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig(t)
	cfg.EnableIngestWorker = true

	app, err := New(cfg, db, nil, testLogger())
	require.NoError(t, err)
	assert.NotNil(t, app.IngestConsumer)
}

func TestRoutes_ComponentsCatalog(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	app, err := New(testConfig(t), db, nil, testLogger())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/components", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "corr-1", w.Header().Get("X-Correlation-ID"))
	assert.Contains(t, w.Body.String(), `"ChatOutput"`)
	assert.Contains(t, w.Body.String(), `"Supabase"`)
}

func TestRoutes_BuildChatOutputStoresMessage(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dbMock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(sqlmock.AnyArg(), "s-1", "Machine", "AI", "hello", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	pub := new(MockPublisher)
	pub.On("Publish", config.TopicChatMessage, mock.Anything).Return(nil)

	app, err := New(testConfig(t), db, pub, testLogger())
	require.NoError(t, err)

	body := `{"params":{"input_value":"hello","session_id":"s-1","return_record":true}}`
	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/components/ChatOutput/build", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			Type   string        `json:"type"`
			Record schema.Record `json:"record"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Record", resp.Data.Type)
	assert.Equal(t, "hello", resp.Data.Record.Text)
	assert.Equal(t, "Machine", resp.Data.Record.Data["sender"])

	assert.NoError(t, dbMock.ExpectationsWereMet())
	pub.AssertExpectations(t)
}

func TestRoutes_SessionMessages(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dbMock.ExpectExec(regexp.QuoteMeta("DELETE FROM messages WHERE session_id = $1")).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	app, err := New(testConfig(t), db, nil, testLogger())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/s-1/messages", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestRoutes_Metrics(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	app, err := New(testConfig(t), db, nil, testLogger())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSupabaseIndexers(t *testing.T) {
	var upserted []map[string]any
	supa := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/kb", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
		w.WriteHeader(http.StatusCreated)
	}))
	defer supa.Close()

	embed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"object": "embedding", "embedding": []float32{1, 0}, "index": 0}},
		})
	}))
	defer embed.Close()

	cfg := testConfig(t)
	cfg.SupabaseURL = supa.URL
	cfg.SupabaseServiceKey = "service-key"
	cfg.SupabaseTable = "documents"
	cfg.SupabaseQueryName = "match_documents"
	cfg.OpenAIAPIKey = "test-key"
	cfg.OpenAIBaseURL = embed.URL

	t.Run("Indexes", func(t *testing.T) {
		factory, _ := supabaseIndexers(cfg)
		idx, err := factory("kb", "")
		require.NoError(t, err)

		store, ok := idx.(*supabase.VectorStore)
		require.True(t, ok)
		assert.Equal(t, "kb", store.Options().TableName)
		assert.Equal(t, "match_documents", store.Options().QueryName)

		ids, err := idx.AddDocuments(context.Background(), []schema.Document{{PageContent: "hello", Metadata: map[string]any{}}})
		require.NoError(t, err)
		require.Len(t, ids, 1)
		require.Len(t, upserted, 1)
		assert.Equal(t, "hello", upserted[0]["content"])
	})

	t.Run("Defaults", func(t *testing.T) {
		factory, _ := supabaseIndexers(cfg)
		idx, err := factory("", "")
		require.NoError(t, err)
		store := idx.(*supabase.VectorStore)
		assert.Equal(t, "documents", store.Options().TableName)
	})

	t.Run("MissingURL", func(t *testing.T) {
		bad := *cfg
		bad.SupabaseURL = ""
		factory, _ := supabaseIndexers(&bad)
		_, err := factory("", "")
		assert.ErrorIs(t, err, supabase.ErrMissingURL)
	})

	t.Run("SharedGeminiEmbedder", func(t *testing.T) {
		withGemini := *cfg
		withGemini.GeminiAPIKey = "gemini-key"
		factory, embedder := supabaseIndexers(&withGemini)
		require.IsType(t, &gemini.Embedder{}, embedder)

		_, err := factory("kb", "")
		require.NoError(t, err)
		_, err = factory("kb", "")
		require.NoError(t, err)
		assert.NoError(t, embedder.(io.Closer).Close())
	})

	t.Run("MissingEmbedderKey", func(t *testing.T) {
		bare := *cfg
		bare.OpenAIAPIKey = ""
		factory, embedder := supabaseIndexers(&bare)
		assert.Nil(t, embedder)
		_, err := factory("kb", "")
		assert.ErrorIs(t, err, openai.ErrMissingAPIKey)
	})
}

func TestApp_CloseReleasesEmbedders(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig(t)
	cfg.EnableIngestWorker = true
	cfg.GeminiAPIKey = "gemini-key"

	app, err := New(cfg, db, nil, testLogger())
	require.NoError(t, err)
	assert.Len(t, app.closers, 2)

	_, err = app.Registry.Build(context.Background(), "GeminiEmbeddings", nil)
	require.NoError(t, err)
	assert.NoError(t, app.Close())
}

func TestRoutes_Preflight(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	app, err := New(testConfig(t), db, nil, testLogger())
	require.NoError(t, err)

	for _, path := range []string{"/components/ChatOutput/build", "/sessions/s1/messages", "/jobs/j1/retry"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://ui.local")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		app.Handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete, path)
	}
}

func TestRoutes_Stats(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dbMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM messages")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	dbMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT session_id) FROM messages")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	dbMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM failed_jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	app, err := New(testConfig(t), db, nil, testLogger())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"components":7,"sessions":2,"messages":4,"failed_jobs":1}}`, w.Body.String())
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
