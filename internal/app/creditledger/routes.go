package creditledger

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/credit-ledger/internal/cache"
	catalogList "github.com/magabrotheeeer/credit-ledger/internal/http/handlers/catalog/list"
	couponPreview "github.com/magabrotheeeer/credit-ledger/internal/http/handlers/coupon/preview"
	creditsBalance "github.com/magabrotheeeer/credit-ledger/internal/http/handlers/credits/balance"
	creditsConsume "github.com/magabrotheeeer/credit-ledger/internal/http/handlers/credits/consume"
	healthcheck "github.com/magabrotheeeer/credit-ledger/internal/http/handlers/health"
	purchaseCompensate "github.com/magabrotheeeer/credit-ledger/internal/http/handlers/purchase/compensate"
	purchaseCreate "github.com/magabrotheeeer/credit-ledger/internal/http/handlers/purchase/create"
	purchaseTrial "github.com/magabrotheeeer/credit-ledger/internal/http/handlers/purchase/trial"
	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/jwt"
	balancesvc "github.com/magabrotheeeer/credit-ledger/internal/services/balance"
	issuersvc "github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
	ledgersvc "github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
)

// RegisterRoutes настраивает middleware и маршруты API.
func RegisterRoutes(router *chi.Mux, logger *slog.Logger,
	jwtMaker jwt.Maker,
	ledgerService *ledgersvc.LedgerService,
	balanceService *balancesvc.BalanceService,
	issuerService *issuersvc.IssuerService,
	cacheRedis *cache.Cache,
) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(middlewarectx.RateLimitMiddleware(logger))

	router.Get("/health", healthcheck.New(logger).ServeHTTP)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/docs/*", httpSwagger.WrapHandler)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))

		r.Post("/credits/consume", creditsConsume.New(logger, ledgerService).ServeHTTP)
		r.Get("/credits/balance", creditsBalance.New(logger, balanceService).ServeHTTP)
		r.Get("/catalog", catalogList.New(logger, cacheRedis).ServeHTTP)
		r.Post("/coupons/preview", couponPreview.New(logger).ServeHTTP)
		r.Post("/purchases", purchaseCreate.New(logger, issuerService).ServeHTTP)
		r.Post("/purchases/compensate", purchaseCompensate.New(logger, issuerService).ServeHTTP)
		r.Post("/trial", purchaseTrial.New(logger, issuerService).ServeHTTP)
	})
}
