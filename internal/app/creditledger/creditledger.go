// Package creditledger собирает основное приложение: хранилище,
// миграции, кеш, очередь сверки, сервисы и HTTP-сервер.
package creditledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/credit-ledger/internal/cache"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/jwt"
	"github.com/magabrotheeeer/credit-ledger/internal/migrations"
	"github.com/magabrotheeeer/credit-ledger/internal/rabbitmq"
	balancesvc "github.com/magabrotheeeer/credit-ledger/internal/services/balance"
	issuersvc "github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
	ledgersvc "github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
	"github.com/magabrotheeeer/credit-ledger/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и ресурсы основного приложения.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создает приложение: подключает зависимости и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReconciliationQueues())
	if err != nil {
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	balanceService := balancesvc.NewBalanceService(db, logger)
	ledgerService := ledgersvc.NewLedgerService(db, balanceService, logger)
	issuerService := issuersvc.NewIssuerService(db, rabbitmq.NewGrantRetryPublisher(ch), logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, ledgerService, balanceService, issuerService, cacheRedis)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.ch.Close()
		_ = a.conn.Close()
		_ = a.db.DB.Close()
		return err
	}
}
