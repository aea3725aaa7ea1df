package preview

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "валидный промокод для плана",
			body:           `{"plan_id":"starter_plan","coupon_code":"WELCOME20"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"discount_minor":9980`,
		},
		{
			name:           "промокод с полной скидкой",
			body:           `{"plan_id":"leader_plan","coupon_code":"FULL100"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"final_minor":0`,
		},
		{
			name:           "неприменимый промокод остаётся валидным ответом",
			body:           `{"plan_id":"leader_plan","coupon_code":"WELCOME20"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"valid":false`,
		},
		{
			name:           "некорректный JSON",
			body:           `{plan}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "отсутствует план",
			body:           `{"coupon_code":"WELCOME20"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field PlanID is a required field`,
		},
		{
			name:           "неизвестный план",
			body:           `{"plan_id":"ghost_plan","coupon_code":"WELCOME20"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"unknown plan"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(logger)

			req := httptest.NewRequest(http.MethodPost, "/coupons/preview", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
		})
	}
}
