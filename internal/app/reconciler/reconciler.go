// Package reconciler собирает фоновое приложение сверки:
// повторная выдача грантов из очереди и плановое истечение грантов.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/rabbitmq"
	issuersvc "github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
	reconcilesvc "github.com/magabrotheeeer/credit-ledger/internal/services/reconcile"
	"github.com/magabrotheeeer/credit-ledger/internal/storage/repository"
)

const expirySweepInterval = time.Hour

// consumeMessages вынесен в переменную для подмены в тестах.
var consumeMessages = rabbitmq.ConsumerMessage

// App инкапсулирует ресурсы воркера сверки.
type App struct {
	logger  *slog.Logger
	db      *repository.Storage
	conn    *amqp.Connection
	ch      *amqp.Channel
	service *reconcilesvc.ReconcileService
}

// New создает воркер сверки: дожидается готовности базы и подключает очередь.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "reconciler.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = waitForDB(ctx, db, logger); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReconciliationQueues())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Очередь повторов не передается: при неудаче сообщение вернется
	// в очередь через Nack, повторная публикация создала бы дубли.
	issuerService := issuersvc.NewIssuerService(db, nil, logger)
	service := reconcilesvc.NewReconcileService(issuerService, db, logger)

	return &App{
		logger:  logger,
		db:      db,
		conn:    conn,
		ch:      ch,
		service: service,
	}, nil
}

// Run запускает потребителя очереди повторов и цикл истечения грантов.
func (a *App) Run(ctx context.Context) error {
	const op = "reconciler.Run"

	go a.service.RunExpirySweep(ctx, expirySweepInterval)

	a.logger.Info("reconciler started", slog.String("queue", rabbitmq.GrantRetryQueue))
	if err := consumeMessages(ctx, a.ch, rabbitmq.GrantRetryQueue, a.service.HandleGrantRetry); err != nil {
		a.closeResources()
		return fmt.Errorf("%s: %w", op, err)
	}

	// Потребитель работает в фоне: воркер живет до отмены контекста.
	<-ctx.Done()
	a.logger.Info("reconciler shutting down gracefully")
	a.closeResources()

	return nil
}

func (a *App) closeResources() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
	if a.db != nil {
		_ = a.db.DB.Close()
	}
}

func waitForDB(ctx context.Context, db *repository.Storage, logger *slog.Logger) error {
	const attempts = 10

	var err error
	for i := range attempts {
		if err = repository.CheckDatabaseReady(db); err == nil {
			return nil
		}
		logger.Warn("database is not ready yet",
			slog.Int("attempt", i+1),
			sl.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return err
}
