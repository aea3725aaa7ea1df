package list

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// CacheMock реализует интерфейс list.Cache
type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}

func TestListHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name         string
		setupMock    func(*CacheMock)
		expectedBody string
	}{
		{
			name: "промах кеша отдаёт каталог и кеширует его",
			setupMock: func(c *CacheMock) {
				c.On("Get", cacheKey, mock.Anything).Return(false, nil).Once()
				c.On("Set", cacheKey, mock.Anything, time.Hour).Return(nil).Once()
			},
			expectedBody: `"starter_plan"`,
		},
		{
			name: "ошибка кеша не мешает отдать каталог",
			setupMock: func(c *CacheMock) {
				c.On("Get", cacheKey, mock.Anything).Return(false, errors.New("redis down")).Once()
				c.On("Set", cacheKey, mock.Anything, time.Hour).Return(errors.New("redis down")).Once()
			},
			expectedBody: `"addon_packs"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := new(CacheMock)
			tt.setupMock(cache)

			handler := New(logger, cache)

			req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			cache.AssertExpectations(t)
		})
	}
}
