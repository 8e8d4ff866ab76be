package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus состояние заявки на оплату.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionRejected  TransactionStatus = "rejected"
)

// IsTerminal сообщает, что статус больше не может измениться.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionCompleted || s == TransactionRejected
}

// Transaction заявка на оплату тарифа. Переходит из pending ровно один раз.
type Transaction struct {
	ID        string            `json:"transaction_id"` // PAY_<yyyymmddHHMMSS>_<userID>
	UserID    int64             `json:"user_id"`
	Amount    decimal.Decimal   `json:"amount"`
	TariffID  string            `json:"tariff_id"`
	Status    TransactionStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// ReferralCommission начисление пригласившему пользователю за оплату реферала.
type ReferralCommission struct {
	ReferrerID    int64
	ReferredID    int64
	TransactionID string
	Amount        decimal.Decimal
	Commission    decimal.Decimal
}
