package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Maksim200738-droid/rockvpn/internal/cache"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
	"github.com/Maksim200738-droid/rockvpn/internal/panel"
)

// Register регистрирует пользователя при первом обращении. Возвращает true, если он создан.
func (c *Coordinator) Register(ctx context.Context, user models.User) (bool, error) {
	const op = "lifecycle.Register"
	created, err := c.store.RegisterUser(ctx, user)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		c.log.Info("user registered", slog.Int64("user_id", user.ID))
	}
	return created, nil
}

// User возвращает пользователя.
func (c *Coordinator) User(ctx context.Context, userID int64) (*models.User, error) {
	const op = "lifecycle.User"
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// SetAdmin меняет флаг администратора.
func (c *Coordinator) SetAdmin(ctx context.Context, userID int64, isAdmin bool) error {
	const op = "lifecycle.SetAdmin"
	if err := c.store.SetAdmin(ctx, userID, isAdmin); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.log.Info("admin flag changed", slog.Int64("user_id", userID), slog.Bool("is_admin", isAdmin))
	return nil
}

// DebitBalance списывает сумму с баланса пользователя.
func (c *Coordinator) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	const op = "lifecycle.DebitBalance"
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: amount must be positive, got %s", op, amount)
	}
	balance, err := c.store.DebitBalance(ctx, userID, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	c.log.Info("balance debited", slog.Int64("user_id", userID), slog.String("amount", amount.String()))
	c.notify(ctx, models.Notification{
		Kind:    models.NotificationBalanceDebited,
		UserID:  userID,
		Amount:  amount,
		Balance: &balance,
	})
	return balance, nil
}

// ActiveFor возвращает действующую подписку пользователя или ErrNotFound.
// Результат кэшируется до окончания подписки, но не дольше CacheTTL.
func (c *Coordinator) ActiveFor(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "lifecycle.ActiveFor"
	key := cache.ActiveSubscriptionKey(userID)
	now := c.now()

	if c.cache != nil {
		var cached models.Subscription
		found, err := c.cache.Get(ctx, key, &cached)
		if err != nil {
			c.log.Warn("failed to read cache", slog.String("key", key), sl.Err(err))
		}
		if found && cached.IsActiveAt(now) {
			return &cached, nil
		}
	}

	sub, err := c.store.ActiveSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if c.cache != nil {
		ttl := sub.EndDate.Sub(now)
		if c.opts.CacheTTL > 0 && ttl > c.opts.CacheTTL {
			ttl = c.opts.CacheTTL
		}
		if ttl > 0 {
			if err := c.cache.Set(ctx, key, sub, ttl); err != nil {
				c.log.Warn("failed to cache subscription", slog.String("key", key), sl.Err(err))
			}
		}
	}
	return sub, nil
}

// Descriptor возвращает ссылку подключения для подписки, привязанной к учётке.
func (c *Coordinator) Descriptor(sub *models.Subscription) string {
	if !sub.IsLinked() {
		return ""
	}
	return c.gateway.Descriptor(panel.Credential{ID: sub.CredentialID, InboundID: sub.InboundID})
}

// AllFor возвращает историю подписок пользователя.
func (c *Coordinator) AllFor(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "lifecycle.AllFor"
	subs, err := c.store.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// HadTrial сообщает, был ли у пользователя пробный период.
func (c *Coordinator) HadTrial(ctx context.Context, userID int64) (bool, error) {
	const op = "lifecycle.HadTrial"
	had, err := c.store.HadTrial(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return had, nil
}

// AllActive возвращает все активные записи, ближайшие к окончанию первыми.
func (c *Coordinator) AllActive(ctx context.Context) ([]models.Subscription, error) {
	const op = "lifecycle.AllActive"
	subs, err := c.store.ListActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// TransactionByID возвращает транзакцию оплаты.
func (c *Coordinator) TransactionByID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	const op = "lifecycle.TransactionByID"
	tx, err := c.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tx, nil
}

// Stats возвращает сводную статистику.
func (c *Coordinator) Stats(ctx context.Context) (*models.Stats, error) {
	const op = "lifecycle.Stats"
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}
