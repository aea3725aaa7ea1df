// Package create реализует HTTP-обработчик выдачи кредитов по покупке.
//
// Вызывается платёжным потоком после подтверждения захвата платежа.
// Повтор с тем же provider_txn_id безопасен: обработчик вернёт уже
// созданные записи, не создавая дубликатов.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/credit-ledger/internal/coupon"
	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
)

// Handler управляет HTTP-запросами на выдачу по покупке.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики выдачи.
type Service interface {
	IssueFromPurchase(ctx context.Context, req issuer.PurchaseRequest) (*issuer.IssueResult, error)
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
// @Summary Выдать кредиты по завершённой покупке
// @Description Создает грант плана и/или пакеты доплат одной транзакцией. Идемпотентно по provider_txn_id.
// @Tags Purchases
// @Accept  json
// @Produce  json
// @Param request body models.DummyPurchase true "Данные покупки"
// @Success 200 {object} map[string]any "Созданные записи"
// @Success 202 {object} map[string]any "Запись не удалась, покупка поставлена в очередь сверки"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON, пустая покупка или промокод"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при выдаче"
// @Router /purchases [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyPurchase
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

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	purchase := issuer.PurchaseRequest{
		ProviderTxnID: req.ProviderTxnID,
		UserUID:       userUID,
		PlanID:        req.PlanID,
		CouponCode:    req.CouponCode,
		Currency:      req.Currency,
		AmountMinor:   req.AmountMinor,
	}
	for _, sel := range req.AddOns {
		purchase.AddOns = append(purchase.AddOns, issuer.AddOnSelection{
			Feature:  models.Feature(sel.Feature),
			Quantity: sel.Quantity,
		})
	}

	result, err := h.service.IssueFromPurchase(r.Context(), purchase)
	if err != nil {
		switch {
		case errors.Is(err, issuer.ErrEmptyPurchase):
			log.Error("empty purchase", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("purchase selects neither plan nor add-ons"))
		case errors.Is(err, coupon.ErrInvalidCoupon):
			log.Error("invalid coupon", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid coupon"))
		case errors.Is(err, issuer.ErrGrantCreation):
			// Платёж уже захвачен: покупка ушла в очередь сверки
			// и не может быть показана как потерянная.
			log.Error("grant creation queued for reconciliation", sl.Err(err))
			w.WriteHeader(http.StatusAccepted)
			render.JSON(w, r, response.OKWithData(map[string]any{
				"provider_txn_id": req.ProviderTxnID,
				"queued":          true,
			}))
		default:
			log.Error("failed to issue purchase", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not issue purchase"))
		}
		return
	}

	log.Info("issued purchase", slog.Int("transaction_id", result.TransactionID),
		slog.Bool("already_issued", result.AlreadyIssued))
	render.JSON(w, r, response.OKWithData(result))
}
