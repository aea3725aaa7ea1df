// Package balance содержит бизнес-логику сведения баланса кредитов:
// суммирует действующие гранты подписок и пакеты доплат пользователя
// в единый остаток по каждой фиче. Результат никогда не кешируется —
// устаревший остаток позволил бы клиенту увидеть кредит, которого нет.
package balance

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// ErrNoEntitlement возвращается для пользователя без единой записи
// о грантах и пакетах: "никогда не покупал" отличается от
// "купил и израсходовал до нуля".
var ErrNoEntitlement = errors.New("no entitlement")

// Repository определяет методы чтения источников кредитов из хранилища.
type Repository interface {
	// ListActiveGrants возвращает действующие гранты пользователя.
	ListActiveGrants(ctx context.Context, userUID string) ([]*models.SubscriptionGrant, error)
	// ListAddOns возвращает все пакеты доплат пользователя.
	ListAddOns(ctx context.Context, userUID string) ([]*models.AddOnCredit, error)
	// HasAnyGrant сообщает о наличии грантов в любом статусе.
	HasAnyGrant(ctx context.Context, userUID string) (bool, error)
}

// BalanceService реализует сведение баланса. Операция без побочных
// эффектов, безопасна для конкурентных и повторных вызовов.
type BalanceService struct {
	repo Repository
	log  *slog.Logger
}

// NewBalanceService создает новый экземпляр BalanceService.
func NewBalanceService(repo Repository, log *slog.Logger) *BalanceService {
	return &BalanceService{
		repo: repo,
		log:  log,
	}
}

// GetBalance возвращает сведённый баланс по каждой фиче:
// total = Σ grant.total + Σ addon.purchased,
// used = Σ grant.used + Σ (addon.purchased - addon.remaining),
// remaining = total - used.
func (s *BalanceService) GetBalance(ctx context.Context, userUID string) (map[models.Feature]models.FeatureBalance, error) {
	grants, err := s.repo.ListActiveGrants(ctx, userUID)
	if err != nil {
		return nil, err
	}
	addons, err := s.repo.ListAddOns(ctx, userUID)
	if err != nil {
		return nil, err
	}

	if len(grants) == 0 && len(addons) == 0 {
		// Пустой список действующих грантов — ещё не "никогда не покупал":
		// у пользователя могли остаться только просроченные гранты.
		exists, err := s.repo.HasAnyGrant(ctx, userUID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNoEntitlement
		}
	}

	result := make(map[models.Feature]models.FeatureBalance, len(models.AllFeatures()))
	for _, feature := range models.AllFeatures() {
		var total, used int
		for _, grant := range grants {
			allowance := grant.Allowances[feature]
			total += allowance.Total
			used += allowance.Used
		}
		for _, addon := range addons {
			if addon.FeatureType != feature {
				continue
			}
			total += addon.QuantityPurchased
			used += addon.QuantityPurchased - addon.QuantityRemaining
		}
		result[feature] = models.FeatureBalance{
			Total:     total,
			Used:      used,
			Remaining: total - used,
		}
	}
	return result, nil
}
