// Package models содержит доменные структуры движка подписок VPN:
// пользователей, тарифы, транзакции оплаты, подписки и уведомления.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет пользователя чат-бота. Идентификатор приходит из Telegram.
type User struct {
	ID          int64           `json:"id"`                     // Telegram ID
	DisplayName string          `json:"display_name,omitempty"` // Отображаемое имя
	ReferrerID  *int64          `json:"referrer_id,omitempty"`  // Пригласивший пользователь
	Balance     decimal.Decimal `json:"balance"`                // Баланс, всегда >= 0
	IsAdmin     bool            `json:"is_admin"`
	CreatedAt   time.Time       `json:"created_at"`
}

// HasReferrer сообщает, пришёл ли пользователь по реферальной ссылке.
func (u *User) HasReferrer() bool {
	return u.ReferrerID != nil && *u.ReferrerID != u.ID
}
