package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flowkit/internal/component"
)

type MockMessageRepo struct{ mock.Mock }

func (m *MockMessageRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageRepo) CountSessions(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type staticCatalog []component.Schema

func (c staticCatalog) Catalog() []component.Schema { return c }

func TestHandler_GetStats_Table(t *testing.T) {
	catalog := staticCatalog{{Name: "ChatOutput"}, {Name: "Supabase"}}

	tests := []struct {
		name       string
		setupMocks func(*MockMessageRepo, *MockJobRepo)
		wantStatus int
		wantError  bool
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(m *MockMessageRepo, j *MockJobRepo) {
				m.On("Count", mock.Anything).Return(10, nil)
				m.On("CountSessions", mock.Anything).Return(3, nil)
				j.On("Count", mock.Anything).Return(5, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.Equal(t, float64(2), data["components"])
				assert.Equal(t, float64(3), data["sessions"])
				assert.Equal(t, float64(10), data["messages"])
				assert.Equal(t, float64(5), data["failed_jobs"])
			},
		},
		{
			name: "MessageCountError",
			setupMocks: func(m *MockMessageRepo, j *MockJobRepo) {
				m.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "SessionCountError",
			setupMocks: func(m *MockMessageRepo, j *MockJobRepo) {
				m.On("Count", mock.Anything).Return(10, nil)
				m.On("CountSessions", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "JobCountError",
			setupMocks: func(m *MockMessageRepo, j *MockJobRepo) {
				m.On("Count", mock.Anything).Return(10, nil)
				m.On("CountSessions", mock.Anything).Return(3, nil)
				j.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockMessageRepo)
			j := new(MockJobRepo)
			tt.setupMocks(m, j)

			h := NewHandler(m, j, catalog)
			w := httptest.NewRecorder()
			h.GetStats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			if tt.wantError {
				assert.Contains(t, body, "error")
				return
			}
			tt.checkBody(t, body)
		})
	}
}
