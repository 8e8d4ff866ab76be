package models

import "time"

// Subscription запись о подписке пользователя. Строки никогда не удаляются,
// только деактивируются, чтобы сохранять историю пробных периодов и статистику.
type Subscription struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Type         string    `json:"subscription_type"` // ID тарифа
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	CredentialID string    `json:"credential_id,omitempty"` // UUID клиента в панели
	InboundID    int       `json:"inbound_id,omitempty"`    // ID inbound в панели
	Active       bool      `json:"is_active"`
}

// IsLinked сообщает, привязана ли подписка к учётке в панели.
func (s *Subscription) IsLinked() bool {
	return s.CredentialID != "" && s.InboundID != 0
}

// IsActiveAt сообщает, действует ли подписка в момент now.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.Active && s.EndDate.After(now)
}

// IsExpiredAt сообщает, что срок активной подписки вышел и её пора отзывать.
func (s *Subscription) IsExpiredAt(now time.Time) bool {
	return s.Active && !s.EndDate.After(now)
}

// NewSubscription параметры создания подписки после успешного создания учётки.
type NewSubscription struct {
	UserID        int64
	TariffID      string
	CredentialID  string
	InboundID     int
	TransactionID string // пусто для пробного периода и выдачи администратором
}
