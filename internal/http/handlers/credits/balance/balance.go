// Package balance реализует HTTP-обработчик чтения сведённого баланса.
//
// Возвращаемые остатки — снимок на момент запроса, а не резервирование:
// авторитетна только операция списания.
package balance

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
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	balancesvc "github.com/magabrotheeeer/credit-ledger/internal/services/balance"
)

// Handler управляет HTTP-запросами на чтение баланса.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики сведения баланса.
type Service interface {
	GetBalance(ctx context.Context, userUID string) (map[models.Feature]models.FeatureBalance, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить сведённый баланс кредитов
// @Description Возвращает total/used/remaining по каждой фиче. Пользователь без покупок получает 404, а не нулевой баланс.
// @Tags Credits
// @Produce  json
// @Success 200 {object} map[string]any "Баланс по фичам"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "У пользователя нет ни одной покупки"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при чтении баланса"
// @Router /credits/balance [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.balance"
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

	balances, err := h.service.GetBalance(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, balancesvc.ErrNoEntitlement) {
			log.Info("user has no entitlement")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no entitlement"))
			return
		}
		log.Error("failed to get balance", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get balance"))
		return
	}

	log.Info("balance aggregated")
	render.JSON(w, r, response.OKWithData(balances))
}
