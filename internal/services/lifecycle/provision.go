package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
	"github.com/Maksim200738-droid/rockvpn/internal/panel"
)

// ClaimTrial выдаёт пробный период. Второй пробный период невозможен даже
// при параллельных вызовах: проверка и вставка идут под блокировкой пользователя,
// а уникальный индекс отсекает всё остальное.
func (c *Coordinator) ClaimTrial(ctx context.Context, userID int64) (*Activation, error) {
	const op = "lifecycle.ClaimTrial"

	activation, err := c.activate(ctx, userID, models.TariffTrial, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.log.Info("trial activated",
		slog.Int64("user_id", userID),
		slog.Int64("subscription_id", activation.Subscription.ID))

	end := activation.Subscription.EndDate
	c.notify(ctx, models.Notification{
		Kind:       models.NotificationTrialActivated,
		UserID:     userID,
		TariffID:   models.TariffTrial,
		TariffName: c.tariffs[models.TariffTrial].Name,
		Descriptor: activation.Descriptor,
		EndDate:    &end,
	})
	return activation, nil
}

// Grant выдаёт подписку по тарифу без оплаты (решение администратора).
func (c *Coordinator) Grant(ctx context.Context, userID int64, tariffID string) (*Activation, error) {
	const op = "lifecycle.Grant"

	tariff, err := c.tariffs.Lookup(tariffID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := c.store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	activation, err := c.activate(ctx, userID, tariff.ID, tariff.IsTrial())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.log.Info("subscription granted",
		slog.Int64("user_id", userID),
		slog.String("tariff", tariff.ID),
		slog.Int64("subscription_id", activation.Subscription.ID))

	end := activation.Subscription.EndDate
	c.notify(ctx, models.Notification{
		Kind:       models.NotificationSubscriptionActivated,
		UserID:     userID,
		TariffID:   tariff.ID,
		TariffName: tariff.Name,
		Descriptor: activation.Descriptor,
		EndDate:    &end,
	})
	return activation, nil
}

// activate создаёт учётку и подписку без транзакции оплаты.
func (c *Coordinator) activate(ctx context.Context, userID int64, tariffID string, checkTrial bool) (*Activation, error) {
	var (
		cred *panel.Credential
		sub  *models.Subscription
	)
	err := c.store.InTx(ctx, func(ctx context.Context) error {
		if err := c.store.LockUser(ctx, userID); err != nil {
			return err
		}
		if checkTrial {
			had, err := c.store.HadTrial(ctx, userID)
			if err != nil {
				return err
			}
			if had {
				return models.ErrTrialUsed
			}
		}
		if err := c.ensureNoActive(ctx, userID); err != nil {
			return err
		}

		created, err := c.provision(ctx)
		if err != nil {
			return err
		}
		cred = &created

		sub, err = c.store.CreateSubscription(ctx, models.NewSubscription{
			UserID:       userID,
			TariffID:     tariffID,
			CredentialID: created.ID,
			InboundID:    created.InboundID,
		})
		return err
	})
	if err != nil {
		if cred != nil {
			c.discardCredential(ctx, *cred)
		}
		return nil, err
	}

	c.invalidate(ctx, userID)
	return &Activation{Subscription: sub, Descriptor: c.gateway.Descriptor(*cred)}, nil
}

// ensureNoActive возвращает ErrActiveSubscription, если у пользователя есть действующая подписка.
func (c *Coordinator) ensureNoActive(ctx context.Context, userID int64) error {
	_, err := c.store.ActiveSubscription(ctx, userID)
	switch {
	case err == nil:
		return models.ErrActiveSubscription
	case errors.Is(err, models.ErrNotFound):
		return nil
	default:
		return err
	}
}

// provision авторизуется в панели, находит inbound и создаёт в нём учётку.
func (c *Coordinator) provision(ctx context.Context) (panel.Credential, error) {
	if err := c.gateway.Authenticate(ctx); err != nil {
		return panel.Credential{}, err
	}
	inboundID, err := c.ensureInbound(ctx)
	if err != nil {
		return panel.Credential{}, err
	}
	return c.gateway.CreateCredential(ctx, inboundID)
}

// ensureInbound выбирает inbound для новой учётки: настроенный в конфиге,
// иначе первый из списка. Если inbound'ов нет, создаётся inbound по умолчанию.
func (c *Coordinator) ensureInbound(ctx context.Context) (int, error) {
	inbounds, err := c.gateway.ListInbounds(ctx)
	if err != nil {
		return 0, err
	}
	if len(inbounds) == 0 {
		c.log.Info("panel has no inbounds, creating default")
		inb, err := c.gateway.CreateInbound(ctx)
		if err != nil {
			return 0, err
		}
		return inb.ID, nil
	}

	if c.opts.DefaultInboundID != 0 {
		for _, inb := range inbounds {
			if inb.ID == c.opts.DefaultInboundID {
				return inb.ID, nil
			}
		}
		c.log.Warn("configured inbound not found, using first",
			slog.Int("inbound_id", c.opts.DefaultInboundID),
			slog.Int("first_id", inbounds[0].ID))
	}
	return inbounds[0].ID, nil
}

// discardCredential удаляет учётку, созданную в откатившейся операции.
func (c *Coordinator) discardCredential(ctx context.Context, cred panel.Credential) {
	ctx = context.WithoutCancel(ctx)
	if err := c.gateway.DeleteCredential(ctx, cred.InboundID, cred.ID); err != nil {
		c.log.Error("failed to delete orphaned credential",
			slog.String("credential_id", cred.ID),
			slog.Int("inbound_id", cred.InboundID),
			sl.Err(err))
		return
	}
	c.log.Info("orphaned credential deleted", slog.String("credential_id", cred.ID))
}
