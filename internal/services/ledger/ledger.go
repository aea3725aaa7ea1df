// Package ledger содержит ядро кредитного леджера: атомарное списание
// одного юнита с предпочтением источников. Пакеты доплат расходуются
// раньше грантов подписки, внутри источника — старые записи первыми.
// Списание выполняется условным обновлением в хранилище, поэтому два
// конкурентных запроса никогда не спишут один и тот же юнит дважды.
package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/metrics"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

var (
	// ErrNoCredit — ни один источник не содержит юнитов по фиче.
	// Исправляется покупкой, показывается пользователю напрямую.
	ErrNoCredit = errors.New("no credit")
	// ErrConflictExhausted — ограниченный цикл повторов исчерпан,
	// все попытки условного обновления проиграли гонку. Временная
	// ошибка: весь вызов Consume можно безопасно повторить.
	ErrConflictExhausted = errors.New("conflict retries exhausted")
)

// maxConsumeAttempts ограничивает повторы после проигранной гонки,
// чтобы легитимная коллизия не превратилась в бесконечный цикл.
const maxConsumeAttempts = 3

// Repository определяет методы хранилища для списания кредитов.
type Repository interface {
	// ListUsableAddOns возвращает пакеты с остатком, старые первыми.
	ListUsableAddOns(ctx context.Context, userUID string, feature models.Feature) ([]*models.AddOnCredit, error)
	// DecrementAddOnRemaining условно списывает юнит пакета.
	DecrementAddOnRemaining(ctx context.Context, addonID, expectedRemaining int) (bool, error)
	// ListUsableGrants возвращает гранты с остатком по фиче, старые первыми.
	ListUsableGrants(ctx context.Context, userUID string, feature models.Feature) ([]*models.SubscriptionGrant, error)
	// IncrementGrantUsed условно списывает юнит гранта.
	IncrementGrantUsed(ctx context.Context, grantID int, feature models.Feature, expectedUsed int) (bool, error)
}

// BalanceProvider пересчитывает авторитетный баланс после списания.
type BalanceProvider interface {
	GetBalance(ctx context.Context, userUID string) (map[models.Feature]models.FeatureBalance, error)
}

// LedgerService реализует операцию списания одного юнита кредита.
type LedgerService struct {
	repo    Repository
	balance BalanceProvider
	log     *slog.Logger
}

// NewLedgerService создает новый экземпляр LedgerService.
func NewLedgerService(repo Repository, balance BalanceProvider, log *slog.Logger) *LedgerService {
	return &LedgerService{
		repo:    repo,
		balance: balance,
		log:     log,
	}
}

// Consume списывает один юнит по фиче и возвращает свежепересчитанный
// остаток. Сначала пакеты доплат, затем гранты подписки. Возвращает
// ErrNoCredit, когда оба источника пусты, и ErrConflictExhausted, когда
// повторы исчерпаны на живом источнике — второе никогда не маскируется
// под первое.
func (s *LedgerService) Consume(ctx context.Context, userUID string, feature models.Feature) (int, error) {
	consumed, addonsContested, err := s.consumeFromAddOns(ctx, userUID, feature)
	if err != nil {
		return 0, err
	}
	if consumed {
		metrics.ConsumeOutcomes.WithLabelValues(feature.String(), "ok").Inc()
		return s.remainingAfter(ctx, userUID, feature)
	}

	consumed, grantsContested, err := s.consumeFromGrants(ctx, userUID, feature)
	if err != nil {
		return 0, err
	}
	if consumed {
		metrics.ConsumeOutcomes.WithLabelValues(feature.String(), "ok").Inc()
		return s.remainingAfter(ctx, userUID, feature)
	}

	if addonsContested || grantsContested {
		s.log.Warn("consume lost all conditional updates",
			slog.String("user_uid", userUID), sl.Feature(feature))
		metrics.ConsumeOutcomes.WithLabelValues(feature.String(), "conflict").Inc()
		return 0, ErrConflictExhausted
	}
	metrics.ConsumeOutcomes.WithLabelValues(feature.String(), "no_credit").Inc()
	return 0, ErrNoCredit
}

// consumeFromAddOns пытается списать юнит из старейшего пакета доплат.
// Возвращает (успех, исчерпаны ли попытки на непустом источнике, ошибка).
// Пустой список пакетов — штатный итог, а не конфликт.
func (s *LedgerService) consumeFromAddOns(ctx context.Context, userUID string, feature models.Feature) (bool, bool, error) {
	for attempt := 0; attempt < maxConsumeAttempts; attempt++ {
		addons, err := s.repo.ListUsableAddOns(ctx, userUID, feature)
		if err != nil {
			return false, false, err
		}
		if len(addons) == 0 {
			return false, false, nil
		}
		oldest := addons[0]
		ok, err := s.repo.DecrementAddOnRemaining(ctx, oldest.ID, oldest.QuantityRemaining)
		if err != nil {
			return false, false, err
		}
		if ok {
			return true, false, nil
		}
		metrics.ConflictRetries.Inc()
		s.log.Debug("addon conditional decrement lost race",
			slog.Int("addon_id", oldest.ID), slog.Int("attempt", attempt+1))
	}
	return false, true, nil
}

// consumeFromGrants пытается списать юнит из старейшего действующего
// гранта по тому же условному шаблону, что и пакеты.
func (s *LedgerService) consumeFromGrants(ctx context.Context, userUID string, feature models.Feature) (bool, bool, error) {
	for attempt := 0; attempt < maxConsumeAttempts; attempt++ {
		grants, err := s.repo.ListUsableGrants(ctx, userUID, feature)
		if err != nil {
			return false, false, err
		}
		if len(grants) == 0 {
			return false, false, nil
		}
		oldest := grants[0]
		ok, err := s.repo.IncrementGrantUsed(ctx, oldest.ID, feature, oldest.Allowances[feature].Used)
		if err != nil {
			return false, false, err
		}
		if ok {
			return true, false, nil
		}
		metrics.ConflictRetries.Inc()
		s.log.Debug("grant conditional increment lost race",
			slog.Int("grant_id", oldest.ID), slog.Int("attempt", attempt+1))
	}
	return false, true, nil
}

// remainingAfter пересчитывает баланс после успешного списания, чтобы
// вызывающий всегда получал авторитетный остаток, а не локальную оценку.
func (s *LedgerService) remainingAfter(ctx context.Context, userUID string, feature models.Feature) (int, error) {
	balances, err := s.balance.GetBalance(ctx, userUID)
	if err != nil {
		return 0, err
	}
	return balances[feature].Remaining, nil
}
