// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — упростить формирование структурированных полей лога
// для ошибок и доменных атрибутов леджера.
package sl

import (
	"log/slog"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
// Удобно использовать в логировании для единообразного вывода ошибок.
//
// Пример:
//
//	log.Error("failed to consume credit", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Feature возвращает slog.Attr с ключом "feature" для единообразного
// вывода фичи в логах списаний.
func Feature(f models.Feature) slog.Attr {
	return slog.Attr{
		Key:   "feature",
		Value: slog.StringValue(f.String()),
	}
}
