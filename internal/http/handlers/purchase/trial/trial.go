// Package trial реализует HTTP-обработчик активации бесплатного триала.
//
// Повторная активация — не ошибка: обработчик возвращает штатный ответ
// already_granted, триал выдаётся не более одного раза на пользователя.
package trial

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
)

// Handler управляет HTTP-запросами на активацию триала.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики активации триала.
type Service interface {
	IssueFreeTrial(ctx context.Context, userUID string) (int, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Активировать бесплатный триал
// @Description Выдаёт триальный грант, не более одного раза на пользователя. Повтор возвращает already_granted без ошибки.
// @Tags Purchases
// @Produce  json
// @Success 200 {object} map[string]any "ID гранта или already_granted"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при активации"
// @Router /trial [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.trial"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	grantID, err := h.service.IssueFreeTrial(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, issuer.ErrAlreadyGranted) {
			log.Info("free trial already granted")
			render.JSON(w, r, response.OKWithData(map[string]any{
				"already_granted": true,
			}))
			return
		}
		log.Error("failed to issue free trial", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not issue free trial"))
		return
	}

	log.Info("issued free trial", slog.Int("grant_id", grantID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"grant_id":        grantID,
		"already_granted": false,
	}))
}
