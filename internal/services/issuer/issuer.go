// Package issuer содержит бизнес-логику выдачи кредитов: создание
// грантов подписок и пакетов доплат по завершённой покупке, разовую
// активацию бесплатного триала и компенсационные начисления.
// Выдача идемпотентна по идентификатору транзакции платёжного
// провайдера: повтор с тем же id возвращает уже созданные записи.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/catalog"
	"github.com/magabrotheeeer/credit-ledger/internal/coupon"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/metrics"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/storage/repository"
)

var (
	// ErrAlreadyGranted — триал уже активирован; не ошибка,
	// а штатный идемпотентный исход.
	ErrAlreadyGranted = errors.New("free trial already granted")
	// ErrGrantCreation — запись гранта после захвата платежа не
	// удалась. Запрос уже опубликован в очередь сверки, оплаченная
	// покупка не может навсегда остаться без выдачи.
	ErrGrantCreation = errors.New("grant creation failed")
	// ErrEmptyPurchase — в запросе нет ни плана, ни пакетов доплат.
	ErrEmptyPurchase = errors.New("purchase selects neither plan nor add-ons")
)

// compTxnPrefix — пространство идентификаторов компенсационных
// начислений, чтобы они не пересекались с транзакциями провайдера.
const compTxnPrefix = "comp:"

// trialTxnPrefix — пространство идентификаторов активаций триала.
const trialTxnPrefix = "trial:"

// AddOnSelection — одна позиция доплат в покупке.
type AddOnSelection struct {
	Feature  models.Feature `json:"feature"`
	Quantity int            `json:"quantity"`
}

// PurchaseRequest — запрос выдачи по завершённой покупке. Сообщение
// этого же вида уходит в очередь сверки при сбое записи.
type PurchaseRequest struct {
	ProviderTxnID string           `json:"provider_txn_id"`
	UserUID       string           `json:"user_uid"`
	PlanID        string           `json:"plan_id,omitempty"`
	AddOns        []AddOnSelection `json:"addons,omitempty"`
	CouponCode    string           `json:"coupon_code,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	AmountMinor   int64            `json:"amount_minor"`
}

// IssueResult — итог выдачи: созданные (или найденные при повторе) записи.
type IssueResult struct {
	TransactionID int   `json:"transaction_id"`
	GrantID       *int  `json:"grant_id,omitempty"`
	AddOnIDs      []int `json:"addon_ids,omitempty"`
	AlreadyIssued bool  `json:"already_issued"`
}

// Repository определяет методы хранилища для выдачи кредитов.
type Repository interface {
	FindTransactionByProviderID(ctx context.Context, providerTxnID string) (*models.PurchaseTransaction, bool, error)
	FindIssuedByTransaction(ctx context.Context, transactionID int) (*repository.IssuedRecords, error)
	HasCouponUse(ctx context.Context, userUID, couponCode string) (bool, error)
	FindGrantByPlan(ctx context.Context, userUID, planID string) (int, bool, error)
	CreateIssue(ctx context.Context, txn models.PurchaseTransaction,
		grant *models.SubscriptionGrant, addons []models.AddOnCredit) (*repository.IssuedRecords, error)
}

// RetryQueue публикует неудавшиеся выдачи для последующей сверки.
type RetryQueue interface {
	PublishGrantRetry(req PurchaseRequest) error
}

// IssuerService реализует выдачу грантов и пакетов.
type IssuerService struct {
	repo  Repository
	queue RetryQueue // nil в воркере сверки: там повтор делает сама очередь
	log   *slog.Logger
	now   func() time.Time
}

// NewIssuerService создает новый экземпляр IssuerService.
func NewIssuerService(repo Repository, queue RetryQueue, log *slog.Logger) *IssuerService {
	return &IssuerService{
		repo:  repo,
		queue: queue,
		log:   log,
		now:   time.Now,
	}
}

// IssueFromPurchase записывает транзакцию покупки и создаёт грант плана
// и/или пакеты доплат одной транзакцией БД. Повтор с тем же
// provider_txn_id безопасен и возвращает уже созданные записи.
func (s *IssuerService) IssueFromPurchase(ctx context.Context, req PurchaseRequest) (*IssueResult, error) {
	const op = "issuer.IssueFromPurchase"

	if req.PlanID == "" && len(req.AddOns) == 0 {
		return nil, ErrEmptyPurchase
	}

	if result, found, err := s.findIssued(ctx, req.ProviderTxnID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	} else if found {
		s.log.Info("purchase already issued, replay is a no-op",
			slog.String("provider_txn_id", req.ProviderTxnID))
		return result, nil
	}

	txn := models.PurchaseTransaction{
		ProviderTxnID: req.ProviderTxnID,
		UserUID:       req.UserUID,
		AmountMinor:   req.AmountMinor,
		Currency:      req.Currency,
	}
	if txn.Currency == "" {
		txn.Currency = "RUB"
	}

	var grant *models.SubscriptionGrant
	if req.PlanID != "" {
		plan, err := catalog.FindPlan(req.PlanID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if req.CouponCode != "" {
			quote, err := s.evaluateCoupon(ctx, req.UserUID, req.PlanID, req.CouponCode)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			txn.CouponCode = req.CouponCode
			txn.DiscountMinor = quote.DiscountMinor
		}
		grant = s.buildGrant(req.UserUID, plan)
	}

	addons, err := buildAddOns(req.UserUID, req.AddOns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	issued, err := s.repo.CreateIssue(ctx, txn, grant, addons)
	if err != nil {
		// Уникальный индекс по provider_txn_id мог сработать из-за
		// конкурентного повтора: перечитываем перед тем, как считать
		// выдачу провалившейся.
		if result, found, findErr := s.findIssued(ctx, req.ProviderTxnID); findErr == nil && found {
			return result, nil
		}
		s.log.Error("grant creation failed after payment capture, queueing for reconciliation",
			slog.String("provider_txn_id", req.ProviderTxnID), sl.Err(err))
		metrics.GrantIssueFailures.Inc()
		if s.queue != nil {
			if pubErr := s.queue.PublishGrantRetry(req); pubErr != nil {
				s.log.Error("failed to publish grant retry", sl.Err(pubErr))
			}
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrGrantCreation, err)
	}

	s.log.Info("issued purchase records",
		slog.String("provider_txn_id", req.ProviderTxnID),
		slog.Int("transaction_id", issued.TransactionID))
	return resultFromIssued(issued, false), nil
}

// IssueFreeTrial активирует бесплатный триал, не более одного раза
// на пользователя. Повторный вызов возвращает ErrAlreadyGranted.
func (s *IssuerService) IssueFreeTrial(ctx context.Context, userUID string) (int, error) {
	const op = "issuer.IssueFreeTrial"

	if _, found, err := s.repo.FindGrantByPlan(ctx, userUID, catalog.FreeTrialPlanID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	} else if found {
		return 0, ErrAlreadyGranted
	}

	plan, err := catalog.FindPlan(catalog.FreeTrialPlanID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	txn := models.PurchaseTransaction{
		ProviderTxnID: trialTxnPrefix + userUID,
		UserUID:       userUID,
		AmountMinor:   0,
		Currency:      "RUB",
	}
	issued, err := s.repo.CreateIssue(ctx, txn, s.buildGrant(userUID, plan), nil)
	if err != nil {
		// Конкурентная активация успела первой: уникальные индексы
		// по plan_id триала и по provider_txn_id не дадут дубликата.
		if _, found, findErr := s.repo.FindGrantByPlan(ctx, userUID, catalog.FreeTrialPlanID); findErr == nil && found {
			return 0, ErrAlreadyGranted
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if issued.GrantID == nil {
		return 0, fmt.Errorf("%s: trial issue returned no grant", op)
	}
	s.log.Info("issued free trial", slog.String("user_uid", userUID),
		slog.Int("grant_id", *issued.GrantID))
	return *issued.GrantID, nil
}

// IssueCompensation начисляет пакет доплат без оплаты: так поддержка
// компенсирует юниты, списанные отменённой операцией. Начисление
// проходит как обычная транзакция с нулевой суммой и остаётся в аудите;
// "сырого" отката списаний леджер не поддерживает.
func (s *IssuerService) IssueCompensation(ctx context.Context, userUID string, selection AddOnSelection, reason string) (*IssueResult, error) {
	const op = "issuer.IssueCompensation"

	// Ключ идемпотентности включает пользователя: одинаковый номер
	// тикета у разных пользователей — это разные начисления.
	req := PurchaseRequest{
		ProviderTxnID: compTxnPrefix + userUID + ":" + strings.TrimSpace(reason),
		UserUID:       userUID,
		AddOns:        []AddOnSelection{selection},
		AmountMinor:   0,
	}
	result, err := s.IssueFromPurchase(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// evaluateCoupon проверяет промокод и ограничение "один раз на
// пользователя" по истории транзакций.
func (s *IssuerService) evaluateCoupon(ctx context.Context, userUID, planID, code string) (coupon.Quote, error) {
	used, err := s.repo.HasCouponUse(ctx, userUID, code)
	if err != nil {
		return coupon.Quote{}, err
	}
	if used {
		return coupon.Quote{}, fmt.Errorf("%w: already used by this user", coupon.ErrInvalidCoupon)
	}
	quote, err := coupon.Evaluate(planID, code, s.now())
	if err != nil {
		return coupon.Quote{}, err
	}
	if !quote.Valid {
		return coupon.Quote{}, fmt.Errorf("%w: %s", coupon.ErrInvalidCoupon, quote.Message)
	}
	return quote, nil
}

// buildGrant копирует лимиты плана в новый грант: правка каталога
// в будущем не должна менять уже выданные гранты.
func (s *IssuerService) buildGrant(userUID string, plan catalog.Plan) *models.SubscriptionGrant {
	now := s.now()
	allowances := make(map[models.Feature]models.FeatureAllowance, len(plan.Units))
	for _, feature := range models.AllFeatures() {
		allowances[feature] = models.FeatureAllowance{Total: plan.Units[feature]}
	}
	return &models.SubscriptionGrant{
		UserUID:    userUID,
		PlanID:     plan.ID,
		Status:     models.GrantStatusActive,
		StartTime:  now,
		EndTime:    now.Add(plan.Duration()),
		Allowances: allowances,
	}
}

func buildAddOns(userUID string, selections []AddOnSelection) ([]models.AddOnCredit, error) {
	var addons []models.AddOnCredit
	for _, sel := range selections {
		if _, err := models.ParseFeature(sel.Feature.String()); err != nil {
			return nil, err
		}
		if sel.Quantity <= 0 {
			return nil, fmt.Errorf("add-on quantity must be positive, got %d", sel.Quantity)
		}
		addons = append(addons, models.AddOnCredit{
			UserUID:           userUID,
			FeatureType:       sel.Feature,
			QuantityPurchased: sel.Quantity,
			QuantityRemaining: sel.Quantity,
		})
	}
	return addons, nil
}

func (s *IssuerService) findIssued(ctx context.Context, providerTxnID string) (*IssueResult, bool, error) {
	txn, found, err := s.repo.FindTransactionByProviderID(ctx, providerTxnID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	issued, err := s.repo.FindIssuedByTransaction(ctx, txn.ID)
	if err != nil {
		return nil, false, err
	}
	return resultFromIssued(issued, true), true, nil
}

func resultFromIssued(issued *repository.IssuedRecords, replay bool) *IssueResult {
	return &IssueResult{
		TransactionID: issued.TransactionID,
		GrantID:       issued.GrantID,
		AddOnIDs:      issued.AddOnIDs,
		AlreadyIssued: replay,
	}
}
