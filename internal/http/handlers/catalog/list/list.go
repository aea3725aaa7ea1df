// Package list реализует HTTP-обработчик чтения каталога планов и пакетов.
//
// Каталог статичен, поэтому ответ кешируется в redis. Балансы кредитов
// не кешируются никогда — кеш здесь только для витрины.
package list

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/credit-ledger/internal/catalog"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
)

const cacheKey = "catalog:listing"

// Listing — полный каталог для витрины покупок.
type Listing struct {
	Plans      []catalog.Plan      `json:"plans"`
	AddOnPacks []catalog.AddOnPack `json:"addon_packs"`
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Handler управляет HTTP-запросами на чтение каталога.
type Handler struct {
	log   *slog.Logger
	cache Cache
}

// New создает новый Handler с переданными логгером и кешем.
func New(log *slog.Logger, cache Cache) *Handler {
	return &Handler{
		log:   log,
		cache: cache,
	}
}

// ServeHTTP godoc
// @Summary Получить каталог планов и пакетов доплат
// @Description Возвращает статические определения планов подписки и пакетов доплат.
// @Tags Catalog
// @Produce  json
// @Success 200 {object} map[string]any "Каталог"
// @Router /catalog [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var listing Listing
	found, err := h.cache.Get(cacheKey, &listing)
	if err != nil {
		log.Warn("failed to read catalog from cache", sl.Err(err))
	}
	if !found {
		listing = Listing{
			Plans:      catalog.ListPlans(),
			AddOnPacks: catalog.ListAddOnPacks(),
		}
		if err := h.cache.Set(cacheKey, listing, time.Hour); err != nil {
			log.Warn("failed to cache catalog", sl.Err(err))
		}
	}

	render.JSON(w, r, response.OKWithData(listing))
}
