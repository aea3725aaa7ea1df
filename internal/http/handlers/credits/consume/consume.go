// Package consume реализует HTTP-обработчик списания одного юнита кредита.
//
// Handler принимает JSON-запрос с именем фичи, валидирует его, извлекает
// идентификатор пользователя из контекста, вызывает списание через сервис
// леджера и возвращает авторитетный остаток в JSON-формате.
//
// Списание выполняется до запуска платной операции: успешно списанный юнит
// остаётся списанным и при отмене вызвавшей стороны, компенсация делается
// отдельным аудируемым начислением.
package consume

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
)

// Handler управляет HTTP-запросами на списание кредитов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики списания
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики списания кредита.
type Service interface {
	Consume(ctx context.Context, userUID string, feature models.Feature) (int, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Списать один юнит кредита
// @Description Списывает один юнит по фиче с предпочтением пакетов доплат. Возвращает свежепересчитанный остаток.
// @Tags Credits
// @Accept  json
// @Produce  json
// @Param request body models.DummyConsume true "Фича для списания"
// @Success 200 {object} map[string]any "Остаток после списания"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или фича"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 402 {object} response.ErrorResponse "Кредиты закончились"
// @Failure 409 {object} response.ErrorResponse "Конфликт конкурентных списаний, повторите запрос"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при списании"
// @Router /credits/consume [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.consume"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyConsume
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	feature, err := models.ParseFeature(req.Feature)
	if err != nil {
		log.Error("unknown feature", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown feature"))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	remaining, err := h.service.Consume(r.Context(), userUID, feature)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNoCredit):
			log.Info("no credit left", sl.Feature(feature))
			w.WriteHeader(http.StatusPaymentRequired)
			render.JSON(w, r, response.Error("no credit"))
		case errors.Is(err, ledger.ErrConflictExhausted):
			log.Warn("consume conflict, client should retry", sl.Feature(feature))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("conflict, retry"))
		default:
			log.Error("failed to consume credit", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not consume credit"))
		}
		return
	}

	log.Info("consumed one unit", sl.Feature(feature), slog.Int("remaining", remaining))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"feature":   feature.String(),
		"remaining": remaining,
	}))
}
