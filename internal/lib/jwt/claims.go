// Package jwt реализует генерацию и парсинг JWT токенов с пользовательскими claim полями.
//
// Сервис идентификации — внешний: здесь только проверка подписи токена
// и извлечение user_uid для обработчиков леджера.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GenerateToken создает токен с указанным user_uid.
	GenerateToken(userUID string) (string, error)
	// ParseToken возвращает *CustomClaims с user_uid.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
