// Package reconcile содержит логику воркера сверки: повторную выдачу
// грантов по оплаченным покупкам, у которых не удалась запись в БД,
// и периодический перевод просроченных грантов в статус expired.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
)

// Issuer определяет интерфейс выдачи для повторной обработки покупок.
type Issuer interface {
	IssueFromPurchase(ctx context.Context, req issuer.PurchaseRequest) (*issuer.IssueResult, error)
}

// GrantRepository определяет метод очистки просроченных грантов.
type GrantRepository interface {
	ExpireStaleGrants(ctx context.Context) (int64, error)
}

// ReconcileService повторяет выдачу по сообщениям очереди сверки.
type ReconcileService struct {
	issuer Issuer
	repo   GrantRepository
	log    *slog.Logger
}

// NewReconcileService создает новый экземпляр ReconcileService.
func NewReconcileService(iss Issuer, repo GrantRepository, log *slog.Logger) *ReconcileService {
	return &ReconcileService{
		issuer: iss,
		repo:   repo,
		log:    log,
	}
}

// HandleGrantRetry обрабатывает одно сообщение очереди сверки.
// Выдача идемпотентна по provider_txn_id, поэтому дубликаты сообщений
// безопасны. Ошибка возвращает сообщение в очередь.
func (s *ReconcileService) HandleGrantRetry(body []byte) error {
	var req issuer.PurchaseRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.log.Error("failed to unmarshal grant retry message", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	result, err := s.issuer.IssueFromPurchase(context.Background(), req)
	if err != nil {
		s.log.Error("grant retry failed, message will be requeued",
			slog.String("provider_txn_id", req.ProviderTxnID), sl.Err(err))
		return err
	}
	if result.AlreadyIssued {
		s.log.Info("grant retry found records already issued",
			slog.String("provider_txn_id", req.ProviderTxnID))
		return nil
	}
	s.log.Info("grant retry issued records",
		slog.String("provider_txn_id", req.ProviderTxnID),
		slog.Int("transaction_id", result.TransactionID))
	return nil
}

// RunExpirySweep периодически переводит просроченные гранты в expired,
// чтобы фильтр "active" в агрегаторе оставался правдивым.
func (s *ReconcileService) RunExpirySweep(ctx context.Context, interval time.Duration) {
	s.runExpirySweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runExpirySweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *ReconcileService) runExpirySweep(ctx context.Context) {
	count, err := s.repo.ExpireStaleGrants(ctx)
	if err != nil {
		s.log.Error("failed to expire stale grants", sl.Err(err))
		return
	}
	if count > 0 {
		s.log.Info("expired stale grants", slog.Int64("count", count))
	}
}
