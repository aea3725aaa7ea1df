package compensate

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
	"github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
)

// MockService реализует интерфейс compensate.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) IssueCompensation(ctx context.Context, userUID string, selection issuer.AddOnSelection, reason string) (*issuer.IssueResult, error) {
	args := m.Called(ctx, userUID, selection, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*issuer.IssueResult), args.Error(1)
}

func TestCompensateHandler(t *testing.T) {
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
			name:    "успешная компенсация",
			body:    `{"feature":"optimization","quantity":1,"reason":"ticket-555"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("IssueCompensation", mock.Anything, "user-1",
					issuer.AddOnSelection{Feature: models.FeatureOptimization, Quantity: 1}, "ticket-555").
					Return(&issuer.IssueResult{TransactionID: 7, AddOnIDs: []int{30}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"transaction_id":7`,
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
			name:           "отрицательное количество",
			body:           `{"feature":"optimization","quantity":-2,"reason":"ticket-556"}`,
			userUID:        "user-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Quantity must be greater than 0`,
		},
		{
			name:           "неизвестная фича",
			body:           `{"feature":"telepathy","quantity":1,"reason":"ticket-557"}`,
			userUID:        "user-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"unknown feature"`,
		},
		{
			name:           "нет пользователя в контексте",
			body:           `{"feature":"optimization","quantity":1,"reason":"ticket-558"}`,
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:    "ошибка сервиса",
			body:    `{"feature":"optimization","quantity":1,"reason":"ticket-559"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("IssueCompensation", mock.Anything, "user-1", mock.Anything, "ticket-559").
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not issue compensation"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/purchases/compensate", strings.NewReader(tt.body))
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
