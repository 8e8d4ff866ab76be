// Package jwt выпускает и проверяет bearer-токены API.
//
// Токен несёт субъект (имя клиента: бот, админ-панель, оператор) и роль.
// Роль bot даёт доступ к пользовательским операциям, admin ко всем.
package jwt

import (
	"errors"
	"time"
)

// Роли клиентов API.
const (
	RoleBot   = "bot"
	RoleAdmin = "admin"
)

// ErrUnknownRole роль не входит в список допустимых.
var ErrUnknownRole = errors.New("unknown role")

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	GenerateToken(subject, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены HMAC-SHA256 секретным ключом.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт MakerImpl с секретным ключом и временем жизни токена.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// ValidRole сообщает, что роль допустима.
func ValidRole(role string) bool {
	return role == RoleBot || role == RoleAdmin
}
