// Package compensate реализует HTTP-обработчик компенсационного начисления.
//
// Леджер не откатывает списания: отменённая после успешного списания
// операция компенсируется новым аудируемым начислением пакета доплат
// с нулевой суммой. Повтор с той же причиной идемпотентен.
package compensate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
)

// DummyCompensation используется для приёма запроса компенсации из JSON.
type DummyCompensation struct {
	Feature  string `json:"feature" validate:"required"`       // Фича начисления
	Quantity int    `json:"quantity" validate:"required,gt=0"` // Количество юнитов (>0)
	Reason   string `json:"reason" validate:"required"`        // Уникальная причина, ключ идемпотентности
}

// Handler управляет HTTP-запросами на компенсационное начисление.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики компенсации.
type Service interface {
	IssueCompensation(ctx context.Context, userUID string, selection issuer.AddOnSelection, reason string) (*issuer.IssueResult, error)
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
// @Summary Начислить компенсационные юниты
// @Description Создает пакет доплат с нулевой суммой как аудируемую компенсацию. Идемпотентно по причине.
// @Tags Purchases
// @Accept  json
// @Produce  json
// @Param request body DummyCompensation true "Данные компенсации"
// @Success 200 {object} map[string]any "Созданные записи"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или фича"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при начислении"
// @Router /purchases/compensate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.compensate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req DummyCompensation
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

	result, err := h.service.IssueCompensation(r.Context(), userUID,
		issuer.AddOnSelection{Feature: feature, Quantity: req.Quantity}, req.Reason)
	if err != nil {
		log.Error("failed to issue compensation", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not issue compensation"))
		return
	}

	log.Info("issued compensation", sl.Feature(feature),
		slog.Int("transaction_id", result.TransactionID))
	render.JSON(w, r, response.OKWithData(result))
}
