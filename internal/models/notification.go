package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationKind тип уведомления, определяет шаблон сообщения.
type NotificationKind string

const (
	NotificationSubscriptionActivated NotificationKind = "subscription_activated"
	NotificationTrialActivated        NotificationKind = "trial_activated"
	NotificationPaymentRejected       NotificationKind = "payment_rejected"
	NotificationSubscriptionRevoked   NotificationKind = "subscription_revoked"
	NotificationSubscriptionExpired   NotificationKind = "subscription_expired"
	NotificationReferralCommission    NotificationKind = "referral_commission"
	NotificationProofSubmitted        NotificationKind = "proof_submitted"
	NotificationBalanceDebited        NotificationKind = "balance_debited"
)

// Notification сообщение в очередь доставки. Для proof_submitted
// получатели берутся из списка администраторов, UserID указывает на плательщика.
type Notification struct {
	Kind          NotificationKind `json:"kind"`
	UserID        int64            `json:"user_id"`
	TransactionID string           `json:"transaction_id,omitempty"`
	TariffID      string           `json:"tariff_id,omitempty"`
	TariffName    string           `json:"tariff_name,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	Descriptor    string           `json:"descriptor,omitempty"`
	EndDate       *time.Time       `json:"end_date,omitempty"`
	FileID        string           `json:"file_id,omitempty"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
}
