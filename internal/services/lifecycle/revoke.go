package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Maksim200738-droid/rockvpn/internal/lib/metrics"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

// Revoke отзывает подписку: удаляет учётку в панели и деактивирует запись.
// Недоступность панели не мешает деактивации: ошибка только пишется в лог.
// Повторный вызов для неактивной подписки ничего не делает.
func (c *Coordinator) Revoke(ctx context.Context, subscriptionID int64, reason string) (err error) {
	const op = "lifecycle.Revoke"
	result := metrics.ResultSuccess
	defer func() {
		if err != nil {
			result = metrics.ResultFailure
		}
		metrics.Revocations.WithLabelValues(reason, result).Inc()
	}()

	sub, err := c.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !sub.Active {
		result = metrics.ResultSkipped
		return nil
	}

	log := c.log.With(
		slog.Int64("subscription_id", sub.ID),
		slog.Int64("user_id", sub.UserID),
		slog.String("reason", reason))

	if sub.IsLinked() {
		if err := c.deleteCredential(ctx, sub); err != nil {
			log.Warn("failed to delete credential, deactivating anyway",
				slog.String("credential_id", sub.CredentialID),
				sl.Err(err))
		}
	}

	if err := c.store.DeactivateSubscription(ctx, sub.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.invalidate(ctx, sub.UserID)
	log.Info("subscription revoked")

	kind := models.NotificationSubscriptionRevoked
	if reason == ReasonExpired {
		kind = models.NotificationSubscriptionExpired
	}
	end := sub.EndDate
	c.notify(ctx, models.Notification{
		Kind:       kind,
		UserID:     sub.UserID,
		TariffID:   sub.Type,
		TariffName: c.tariffs[sub.Type].Name,
		EndDate:    &end,
	})
	return nil
}

func (c *Coordinator) deleteCredential(ctx context.Context, sub *models.Subscription) error {
	if err := c.gateway.Authenticate(ctx); err != nil {
		return err
	}
	return c.gateway.DeleteCredential(ctx, sub.InboundID, sub.CredentialID)
}
