// Package catalog содержит статические определения планов подписки
// и пакетов доплат. Данные неизменяемы: исторические гранты копируют
// лимиты плана в момент выдачи, поэтому правка каталога не влияет
// на уже выданные гранты.
package catalog

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// FreeTrialPlanID — идентификатор триального плана, выдаётся
// не более одного раза на пользователя.
const FreeTrialPlanID = "free_trial"

// unlimitedUnits моделирует безлимитный лимит очень большим числом,
// чтобы логика списания оставалась единой для всех планов.
const unlimitedUnits = 1_000_000

// Plan описывает план подписки: цена в минорных единицах,
// срок действия и лимиты по каждой фиче.
type Plan struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	PriceMinor    int64                  `json:"price_minor"`
	DurationHours int                    `json:"duration_hours"`
	Units         map[models.Feature]int `json:"units"`
}

// AddOnPack описывает пакет доплат на одну фичу.
type AddOnPack struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Feature    models.Feature `json:"feature"`
	Units      int            `json:"units"`
	PriceMinor int64          `json:"price_minor"`
}

var plans = map[string]Plan{
	FreeTrialPlanID: {
		ID:            FreeTrialPlanID,
		Name:          "Free Trial",
		PriceMinor:    0,
		DurationHours: 7 * 24,
		Units: map[models.Feature]int{
			models.FeatureOptimization:    1,
			models.FeatureScoreCheck:      2,
			models.FeatureGuidedBuild:     1,
			models.FeatureOutreachMessage: 2,
		},
	},
	"starter_plan": {
		ID:            "starter_plan",
		Name:          "Starter",
		PriceMinor:    49900,
		DurationHours: 30 * 24,
		Units: map[models.Feature]int{
			models.FeatureOptimization:    5,
			models.FeatureScoreCheck:      10,
			models.FeatureGuidedBuild:     3,
			models.FeatureOutreachMessage: 10,
		},
	},
	"pro_plan": {
		ID:            "pro_plan",
		Name:          "Pro",
		PriceMinor:    99900,
		DurationHours: 30 * 24,
		Units: map[models.Feature]int{
			models.FeatureOptimization:    20,
			models.FeatureScoreCheck:      40,
			models.FeatureGuidedBuild:     10,
			models.FeatureOutreachMessage: 40,
		},
	},
	"leader_plan": {
		ID:            "leader_plan",
		Name:          "Leader",
		PriceMinor:    199900,
		DurationHours: 90 * 24,
		Units: map[models.Feature]int{
			models.FeatureOptimization:    unlimitedUnits,
			models.FeatureScoreCheck:      unlimitedUnits,
			models.FeatureGuidedBuild:     50,
			models.FeatureOutreachMessage: unlimitedUnits,
		},
	},
}

var addOnPacks = map[string]AddOnPack{
	"optimization_pack_5": {
		ID:         "optimization_pack_5",
		Name:       "Optimization x5",
		Feature:    models.FeatureOptimization,
		Units:      5,
		PriceMinor: 19900,
	},
	"score_check_pack_5": {
		ID:         "score_check_pack_5",
		Name:       "Score Check x5",
		Feature:    models.FeatureScoreCheck,
		Units:      5,
		PriceMinor: 9900,
	},
	"guided_build_pack_3": {
		ID:         "guided_build_pack_3",
		Name:       "Guided Build x3",
		Feature:    models.FeatureGuidedBuild,
		Units:      3,
		PriceMinor: 14900,
	},
	"outreach_message_pack_10": {
		ID:         "outreach_message_pack_10",
		Name:       "Outreach Message x10",
		Feature:    models.FeatureOutreachMessage,
		Units:      10,
		PriceMinor: 9900,
	},
}

// FindPlan возвращает план по идентификатору.
func FindPlan(planID string) (Plan, error) {
	plan, ok := plans[planID]
	if !ok {
		return Plan{}, fmt.Errorf("unknown plan: %q", planID)
	}
	return plan, nil
}

// FindAddOnPack возвращает пакет доплат по идентификатору.
func FindAddOnPack(packID string) (AddOnPack, error) {
	pack, ok := addOnPacks[packID]
	if !ok {
		return AddOnPack{}, fmt.Errorf("unknown add-on pack: %q", packID)
	}
	return pack, nil
}

// ListPlans возвращает все планы, триал включительно.
func ListPlans() []Plan {
	result := make([]Plan, 0, len(plans))
	for _, p := range plans {
		result = append(result, p)
	}
	return result
}

// ListAddOnPacks возвращает все пакеты доплат.
func ListAddOnPacks() []AddOnPack {
	result := make([]AddOnPack, 0, len(addOnPacks))
	for _, p := range addOnPacks {
		result = append(result, p)
	}
	return result
}

// Duration возвращает срок действия плана.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationHours) * time.Hour
}
