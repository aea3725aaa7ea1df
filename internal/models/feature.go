// Package models содержит доменные структуры кредитного леджера:
// фичи, гранты подписок, пакеты доплат, балансы и транзакции покупок,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "fmt"

// Feature — закрытое перечисление платных действий, учитываемых леджером.
// Добавление новой фичи требует расширения AllFeatures и ColumnPrefix,
// компилятор и тесты не дадут пропустить ни одно место.
type Feature string

const (
	// FeatureOptimization — оптимизация резюме.
	FeatureOptimization Feature = "optimization"
	// FeatureScoreCheck — проверка скоринга резюме.
	FeatureScoreCheck Feature = "score_check"
	// FeatureGuidedBuild — пошаговое построение резюме.
	FeatureGuidedBuild Feature = "guided_build"
	// FeatureOutreachMessage — генерация сопроводительного сообщения.
	FeatureOutreachMessage Feature = "outreach_message"
)

// AllFeatures перечисляет все фичи в фиксированном порядке.
func AllFeatures() []Feature {
	return []Feature{
		FeatureOptimization,
		FeatureScoreCheck,
		FeatureGuidedBuild,
		FeatureOutreachMessage,
	}
}

// ParseFeature проверяет строку из запроса и возвращает Feature.
func ParseFeature(s string) (Feature, error) {
	switch Feature(s) {
	case FeatureOptimization, FeatureScoreCheck, FeatureGuidedBuild, FeatureOutreachMessage:
		return Feature(s), nil
	}
	return "", fmt.Errorf("unknown feature: %q", s)
}

// ColumnPrefix возвращает префикс колонок total/used в таблице
// subscription_grants для данной фичи.
func (f Feature) ColumnPrefix() string {
	switch f {
	case FeatureOptimization:
		return "optimization"
	case FeatureScoreCheck:
		return "score_check"
	case FeatureGuidedBuild:
		return "guided_build"
	case FeatureOutreachMessage:
		return "outreach_message"
	}
	return ""
}

func (f Feature) String() string {
	return string(f)
}
