package trial

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
	"github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
)

// MockService реализует интерфейс trial.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) IssueFreeTrial(ctx context.Context, userUID string) (int, error) {
	args := m.Called(ctx, userUID)
	return args.Int(0), args.Error(1)
}

func TestTrialHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "успешная активация триала",
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("IssueFreeTrial", mock.Anything, "user-1").Return(42, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"grant_id":42`,
		},
		{
			name:    "повторная активация возвращает already_granted",
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("IssueFreeTrial", mock.Anything, "user-1").
					Return(0, issuer.ErrAlreadyGranted)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"already_granted":true`,
		},
		{
			name:           "нет пользователя в контексте",
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:    "ошибка сервиса",
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("IssueFreeTrial", mock.Anything, "user-1").
					Return(0, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not issue free trial"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/trial", nil)
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
