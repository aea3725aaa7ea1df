package consume

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
)

// MockService реализует интерфейс consume.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Consume(ctx context.Context, userUID string, feature models.Feature) (int, error) {
	args := m.Called(ctx, userUID, feature)
	return args.Int(0), args.Error(1)
}

func TestConsumeHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		body           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "успешное списание юнита",
			body:    `{"feature":"optimization"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("Consume", mock.Anything, "user-1", models.FeatureOptimization).
					Return(7, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"remaining":7`,
		},
		{
			name:           "некорректный JSON",
			body:           `{feature}`,
			userUID:        "user-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "неизвестная фича",
			body:           `{"feature":"telepathy"}`,
			userUID:        "user-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"unknown feature"`,
		},
		{
			name:           "нет пользователя в контексте",
			body:           `{"feature":"optimization"}`,
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:    "кредиты закончились",
			body:    `{"feature":"score_check"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("Consume", mock.Anything, "user-1", models.FeatureScoreCheck).
					Return(0, ledger.ErrNoCredit)
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedBody:   `"error":"no credit"`,
		},
		{
			name:    "конфликт конкурентных списаний",
			body:    `{"feature":"optimization"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("Consume", mock.Anything, "user-1", models.FeatureOptimization).
					Return(0, ledger.ErrConflictExhausted)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"conflict, retry"`,
		},
		{
			name:    "ошибка сервиса списания",
			body:    `{"feature":"optimization"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("Consume", mock.Anything, "user-1", models.FeatureOptimization).
					Return(0, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not consume credit"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/credits/consume", strings.NewReader(tt.body))
			if tt.userUID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
