// Package services реализует координатор жизненного цикла подписок VPN:
// оформление заявок, подтверждение оплаты с выдачей учётки в панели,
// пробный период, выдачу администратором и отзыв подписок.
//
// Координатор единственный решает, какая ошибка прерывает операцию,
// а какую достаточно записать в лог.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Maksim200738-droid/rockvpn/internal/cache"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
	"github.com/Maksim200738-droid/rockvpn/internal/panel"
)

// Причины отзыва подписки.
const (
	ReasonAdmin   = "admin"
	ReasonExpired = "expired"
)

// Store хранилище пользователей, транзакций и подписок.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockUser(ctx context.Context, userID int64) error

	RegisterUser(ctx context.Context, user models.User) (bool, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SetAdmin(ctx context.Context, userID int64, isAdmin bool) error
	DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

	CreatePendingTransaction(ctx context.Context, userID int64, tariffID string, amount decimal.Decimal) (*models.Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)
	LockTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)
	MostRecentPending(ctx context.Context, userID int64) (*models.Transaction, error)
	ResolveTransaction(ctx context.Context, transactionID string, status models.TransactionStatus) error

	CreateSubscription(ctx context.Context, req models.NewSubscription) (*models.Subscription, error)
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	ActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	ListUserSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]models.Subscription, error)
	HadTrial(ctx context.Context, userID int64) (bool, error)
	DeactivateSubscription(ctx context.Context, id int64) error

	CreditReferralCommission(ctx context.Context, rc models.ReferralCommission) (bool, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Gateway клиент панели 3X-UI.
type Gateway interface {
	Authenticate(ctx context.Context) error
	ListInbounds(ctx context.Context) ([]panel.Inbound, error)
	CreateInbound(ctx context.Context) (*panel.Inbound, error)
	CreateCredential(ctx context.Context, inboundID int) (panel.Credential, error)
	DeleteCredential(ctx context.Context, inboundID int, credentialID string) error
	Descriptor(cred panel.Credential) string
}

// Cache кэш действующих подписок.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Publisher очередь уведомлений.
type Publisher interface {
	Publish(ctx context.Context, message any) error
}

// Options параметры координатора из конфига.
type Options struct {
	// DefaultInboundID inbound для новых учёток. 0 означает первый из списка панели.
	DefaultInboundID int
	// CommissionRate доля суммы оплаты, начисляемая пригласившему.
	CommissionRate decimal.Decimal
	// CacheTTL верхняя граница времени жизни записи в кэше.
	CacheTTL time.Duration
}

// Activation результат выдачи подписки: запись и ссылка подключения.
type Activation struct {
	Subscription *models.Subscription `json:"subscription"`
	Descriptor   string               `json:"descriptor"`
}

// Coordinator координатор жизненного цикла подписок.
type Coordinator struct {
	store     Store
	gateway   Gateway
	cache     Cache
	publisher Publisher
	tariffs   models.Catalog
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// NewCoordinator создаёт координатор. cache и publisher могут быть nil:
// тогда кэширование и уведомления отключены.
func NewCoordinator(store Store, gateway Gateway, cache Cache, publisher Publisher,
	tariffs models.Catalog, opts Options, log *slog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		gateway:   gateway,
		cache:     cache,
		publisher: publisher,
		tariffs:   tariffs,
		opts:      opts,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Tariffs возвращает каталог тарифов.
func (c *Coordinator) Tariffs() models.Catalog {
	return c.tariffs
}

func (c *Coordinator) notify(ctx context.Context, n models.Notification) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, n); err != nil {
		c.log.Warn("failed to publish notification",
			slog.String("kind", string(n.Kind)),
			slog.Int64("user_id", n.UserID),
			sl.Err(err))
	}
}

func (c *Coordinator) invalidate(ctx context.Context, userID int64) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, cache.ActiveSubscriptionKey(userID)); err != nil {
		c.log.Warn("failed to invalidate cache", slog.Int64("user_id", userID), sl.Err(err))
	}
}
