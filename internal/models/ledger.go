package models

import "time"

// Статусы гранта подписки.
const (
	// GrantStatusActive — грант действует и участвует в списаниях.
	GrantStatusActive = "active"
	// GrantStatusExpired — срок действия гранта истёк.
	GrantStatusExpired = "expired"
	// GrantStatusRevoked — грант отозван вручную.
	GrantStatusRevoked = "revoked"
)

// FeatureAllowance пара total/used для одной фичи внутри гранта.
type FeatureAllowance struct {
	Total int `json:"total"`
	Used  int `json:"used"`
}

// SubscriptionGrant представляет один выданный экземпляр плана:
// покупка, промо или бесплатный триал. Записи никогда не удаляются,
// только переводятся в неактивный статус — история нужна для аудита.
type SubscriptionGrant struct {
	ID            int                          `json:"id"`
	UserUID       string                       `json:"user_uid"`
	PlanID        string                       `json:"plan_id"`
	Status        string                       `json:"status"`
	StartTime     time.Time                    `json:"start_time"`
	EndTime       time.Time                    `json:"end_time"`
	Allowances    map[Feature]FeatureAllowance `json:"allowances"`
	TransactionID *int                         `json:"transaction_id,omitempty"`
	CreatedAt     time.Time                    `json:"created_at"`
}

// AddOnCredit представляет один купленный пакет кредитов на одну фичу.
// Пакет бессрочный, запись остаётся в истории и когда остаток равен нулю.
type AddOnCredit struct {
	ID                int       `json:"id"`
	UserUID           string    `json:"user_uid"`
	FeatureType       Feature   `json:"feature_type"`
	QuantityPurchased int       `json:"quantity_purchased"`
	QuantityRemaining int       `json:"quantity_remaining"`
	TransactionID     *int      `json:"transaction_id,omitempty"`
	PurchasedAt       time.Time `json:"purchased_at"`
}

// PurchaseTransaction — append-only запись о покупке или бесплатной
// активации. Уникальна по идентификатору транзакции платёжного
// провайдера, что даёт идемпотентность повторной выдачи.
type PurchaseTransaction struct {
	ID            int       `json:"id"`
	ProviderTxnID string    `json:"provider_txn_id"`
	UserUID       string    `json:"user_uid"`
	AmountMinor   int64     `json:"amount_minor"`
	Currency      string    `json:"currency"`
	DiscountMinor int64     `json:"discount_minor"`
	CouponCode    string    `json:"coupon_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// FeatureBalance — сведённый баланс по одной фиче:
// remaining всегда равен total - used.
type FeatureBalance struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// DummyConsume используется для приёма запроса на списание из JSON.
type DummyConsume struct {
	Feature string `json:"feature" validate:"required"` // Имя фичи
}

// DummyAddOnSelection — одна позиция доплат в запросе покупки.
type DummyAddOnSelection struct {
	Feature  string `json:"feature" validate:"required"`       // Имя фичи
	Quantity int    `json:"quantity" validate:"required,gt=0"` // Количество юнитов (>0)
}

// DummyPurchase используется для приёма запроса покупки из JSON,
// прежде чем конвертировать его в issuer.PurchaseRequest.
type DummyPurchase struct {
	ProviderTxnID string                `json:"provider_txn_id" validate:"required"` // ID транзакции провайдера
	PlanID        string                `json:"plan_id"`                             // План (опционально)
	AddOns        []DummyAddOnSelection `json:"addons" validate:"dive"`              // Пакеты доплат (опционально)
	CouponCode    string                `json:"coupon_code"`                         // Промокод (опционально)
	Currency      string                `json:"currency"`                            // Валюта, по умолчанию RUB
	AmountMinor   int64                 `json:"amount_minor" validate:"gte=0"`       // Сумма списания в минорных единицах
}

// DummyCouponPreview используется для приёма запроса оценки промокода.
type DummyCouponPreview struct {
	PlanID     string `json:"plan_id" validate:"required"`     // План
	CouponCode string `json:"coupon_code" validate:"required"` // Промокод
}
