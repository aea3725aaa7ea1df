// Package coupon реализует чистую оценку промокодов по таблице правил.
// Пакет не хранит состояние: ограничение "один промокод на пользователя"
// проверяет Grant Issuer по истории транзакций покупок.
package coupon

import (
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/catalog"
)

// ErrInvalidCoupon возвращается, когда пара план/промокод
// отсутствует в таблице правил или правило истекло.
var ErrInvalidCoupon = errors.New("invalid coupon")

// Rule описывает одно правило скидки: пара промокод/план и процент.
// Percent равный 100 означает полное обнуление цены.
// ExpiresAt nil означает бессрочное правило.
type Rule struct {
	Code      string
	PlanID    string
	Percent   int
	ExpiresAt *time.Time
}

// Quote — результат оценки промокода.
type Quote struct {
	Valid         bool   `json:"valid"`
	DiscountMinor int64  `json:"discount_minor"`
	FinalMinor    int64  `json:"final_minor"`
	Message       string `json:"message"`
}

// Таблица правил — данные, а не код: частичных совпадений нет,
// промокод действует только на явно перечисленные планы.
var rules = []Rule{
	{Code: "FULL100", PlanID: "leader_plan", Percent: 100},
	{Code: "WELCOME20", PlanID: "starter_plan", Percent: 20},
	{Code: "WELCOME20", PlanID: "pro_plan", Percent: 20},
	{Code: "COMEBACK50", PlanID: "pro_plan", Percent: 50},
}

// Evaluate возвращает оценку промокода для плана на момент now.
// Несуществующая пара план/промокод — не ошибка инфраструктуры,
// а валидный ответ с Valid=false.
func Evaluate(planID, code string, now time.Time) (Quote, error) {
	const op = "coupon.Evaluate"

	plan, err := catalog.FindPlan(planID)
	if err != nil {
		return Quote{}, fmt.Errorf("%s: %w", op, err)
	}

	for _, rule := range rules {
		if rule.Code != code || rule.PlanID != planID {
			continue
		}
		if rule.ExpiresAt != nil && now.After(*rule.ExpiresAt) {
			return Quote{
				Valid:   false,
				Message: fmt.Sprintf("coupon %s expired", code),
			}, nil
		}
		discount := plan.PriceMinor * int64(rule.Percent) / 100
		return Quote{
			Valid:         true,
			DiscountMinor: discount,
			FinalMinor:    plan.PriceMinor - discount,
			Message:       fmt.Sprintf("coupon %s applied: -%d%%", code, rule.Percent),
		}, nil
	}

	return Quote{
		Valid:   false,
		Message: fmt.Sprintf("coupon %s is not applicable to plan %s", code, planID),
	}, nil
}
