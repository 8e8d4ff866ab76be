package models

import "github.com/shopspring/decimal"

// Stats сводная статистика для администраторов.
type Stats struct {
	TotalUsers          int             `json:"total_users"`
	NewUsersToday       int             `json:"new_users_today"`
	ActiveSubscriptions int             `json:"active_subscriptions"`
	Revenue             decimal.Decimal `json:"revenue"`
	PaymentsByTariff    map[string]int  `json:"payments_by_tariff"`
	SubscriptionsByType map[string]int  `json:"subscriptions_by_type"`
}
