// Package preview реализует HTTP-обработчик оценки промокода.
//
// Оценка — чистая функция над каталогом и таблицей правил, состояние
// не изменяется. Невалидный промокод — штатный ответ с valid=false.
package preview

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/credit-ledger/internal/coupon"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Handler управляет HTTP-запросами на оценку промокода.
type Handler struct {
	log      *slog.Logger
	validate *validator.Validate
}

// New создает новый Handler с переданным логгером.
func New(log *slog.Logger) *Handler {
	return &Handler{
		log:      log,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оценить промокод для плана
// @Description Возвращает скидку и итоговую цену. Пара план/промокод вне таблицы правил — валидный ответ с valid=false.
// @Tags Coupons
// @Accept  json
// @Produce  json
// @Param request body models.DummyCouponPreview true "План и промокод"
// @Success 200 {object} map[string]any "Оценка промокода"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неизвестный план"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /coupons/preview [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.coupon.preview"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyCouponPreview
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

	quote, err := coupon.Evaluate(req.PlanID, req.CouponCode, time.Now())
	if err != nil {
		log.Error("failed to evaluate coupon", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown plan"))
		return
	}

	log.Info("evaluated coupon", slog.String("plan_id", req.PlanID),
		slog.Bool("valid", quote.Valid))
	render.JSON(w, r, response.OKWithData(quote))
}
