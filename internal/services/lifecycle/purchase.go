package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Maksim200738-droid/rockvpn/internal/lib/metrics"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
	"github.com/Maksim200738-droid/rockvpn/internal/panel"
)

// CanPurchase проверяет, может ли пользователь оформить тариф.
// nil означает, что может. Иначе ErrActiveSubscription, ErrTrialUsed или ErrUnknownTariff.
func (c *Coordinator) CanPurchase(ctx context.Context, userID int64, tariffID string) error {
	const op = "lifecycle.CanPurchase"

	tariff, err := c.tariffs.Lookup(tariffID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tariff.AdminOnly {
		return fmt.Errorf("%s: %w: %q is admin only", op, models.ErrUnknownTariff, tariffID)
	}
	if err := c.ensureNoActive(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tariff.IsTrial() {
		had, err := c.store.HadTrial(ctx, userID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if had {
			return fmt.Errorf("%s: %w", op, models.ErrTrialUsed)
		}
	}
	return nil
}

// CreatePending оформляет заявку на оплату платного тарифа.
func (c *Coordinator) CreatePending(ctx context.Context, userID int64, tariffID string) (*models.Transaction, error) {
	const op = "lifecycle.CreatePending"

	tariff, err := c.tariffs.Lookup(tariffID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !tariff.Purchasable() {
		return nil, fmt.Errorf("%s: %w: %q cannot be purchased", op, models.ErrUnknownTariff, tariffID)
	}
	if _, err := c.store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.CanPurchase(ctx, userID, tariffID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := c.store.CreatePendingTransaction(ctx, userID, tariff.ID, tariff.Price)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.log.Info("pending transaction created",
		slog.String("transaction_id", tx.ID),
		slog.Int64("user_id", userID),
		slog.String("tariff", tariff.ID))
	return tx, nil
}

// SubmitProof передаёт администраторам подтверждение оплаты по последней заявке пользователя.
// fileID идентификатор файла в Telegram, может быть пустым.
func (c *Coordinator) SubmitProof(ctx context.Context, userID int64, fileID string) (*models.Transaction, error) {
	const op = "lifecycle.SubmitProof"

	tx, err := c.store.MostRecentPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.publisher == nil {
		return nil, fmt.Errorf("%s: notifications are disabled", op)
	}

	n := models.Notification{
		Kind:          models.NotificationProofSubmitted,
		UserID:        userID,
		TransactionID: tx.ID,
		TariffID:      tx.TariffID,
		TariffName:    c.tariffs[tx.TariffID].Name,
		Amount:        tx.Amount,
		FileID:        fileID,
	}
	if err := c.publisher.Publish(ctx, n); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tx, nil
}

// Approve подтверждает оплату: создаёт учётку в панели, начисляет реферальную
// комиссию, переводит транзакцию в completed и создаёт подписку.
//
// Всё, кроме комиссии, выполняется в одной транзакции БД под блокировкой строки
// транзакции оплаты. Параллельный второй вызов ждёт блокировку, видит completed
// и получает ErrInvalidState, не обращаясь к панели. При любой ошибке транзакция
// остаётся pending, а созданная учётка удаляется.
func (c *Coordinator) Approve(ctx context.Context, transactionID string) (activation *Activation, err error) {
	const op = "lifecycle.Approve"
	defer func() {
		metrics.Approvals.WithLabelValues(outcome(err)).Inc()
	}()

	var (
		tx     *models.Transaction
		tariff models.Tariff
		cred   *panel.Credential
		sub    *models.Subscription
	)
	err = c.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		tx, err = c.store.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if tx.Status != models.TransactionPending {
			return fmt.Errorf("%w: transaction is %s", models.ErrInvalidState, tx.Status)
		}
		tariff, err = c.tariffs.Lookup(tx.TariffID)
		if err != nil {
			return err
		}
		if err := c.store.LockUser(ctx, tx.UserID); err != nil {
			return err
		}
		if err := c.ensureNoActive(ctx, tx.UserID); err != nil {
			return err
		}

		created, err := c.provision(ctx)
		if err != nil {
			return err
		}
		cred = &created

		if err := c.creditReferral(ctx, tx); err != nil {
			return err
		}
		if err := c.store.ResolveTransaction(ctx, tx.ID, models.TransactionCompleted); err != nil {
			return err
		}
		sub, err = c.store.CreateSubscription(ctx, models.NewSubscription{
			UserID:        tx.UserID,
			TariffID:      tariff.ID,
			CredentialID:  created.ID,
			InboundID:     created.InboundID,
			TransactionID: tx.ID,
		})
		return err
	})
	if err != nil {
		if cred != nil {
			c.discardCredential(ctx, *cred)
		}
		if errors.Is(err, models.ErrInvalidState) {
			c.log.Info("transaction already handled", slog.String("transaction_id", transactionID))
		} else {
			c.log.Error("approval failed", slog.String("transaction_id", transactionID), sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.invalidate(ctx, tx.UserID)
	activation = &Activation{Subscription: sub, Descriptor: c.gateway.Descriptor(*cred)}
	c.log.Info("transaction approved",
		slog.String("transaction_id", tx.ID),
		slog.Int64("user_id", tx.UserID),
		slog.Int64("subscription_id", sub.ID))

	end := sub.EndDate
	c.notify(ctx, models.Notification{
		Kind:          models.NotificationSubscriptionActivated,
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		TariffID:      tariff.ID,
		TariffName:    tariff.Name,
		Amount:        tx.Amount,
		Descriptor:    activation.Descriptor,
		EndDate:       &end,
	})
	return activation, nil
}

// Reject отклоняет заявку и уведомляет пользователя. Панель не затрагивается.
func (c *Coordinator) Reject(ctx context.Context, transactionID string) (*models.Transaction, error) {
	const op = "lifecycle.Reject"

	tx, err := c.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.store.ResolveTransaction(ctx, transactionID, models.TransactionRejected); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tx.Status = models.TransactionRejected
	c.log.Info("transaction rejected", slog.String("transaction_id", tx.ID), slog.Int64("user_id", tx.UserID))

	c.notify(ctx, models.Notification{
		Kind:          models.NotificationPaymentRejected,
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		TariffID:      tx.TariffID,
		TariffName:    c.tariffs[tx.TariffID].Name,
		Amount:        tx.Amount,
	})
	return tx, nil
}

// creditReferral начисляет комиссию пригласившему. Начисление идёт в отдельной
// транзакции БД и не откатывается, если подтверждение дальше сорвётся.
// Повтор подтверждения не начисляет комиссию второй раз.
func (c *Coordinator) creditReferral(ctx context.Context, tx *models.Transaction) error {
	user, err := c.store.GetUser(ctx, tx.UserID)
	if err != nil {
		return err
	}
	if !user.HasReferrer() || c.opts.CommissionRate.IsZero() {
		return nil
	}

	commission := tx.Amount.Mul(c.opts.CommissionRate).Round(2)
	credited, err := c.store.CreditReferralCommission(ctx, models.ReferralCommission{
		ReferrerID:    *user.ReferrerID,
		ReferredID:    user.ID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Commission:    commission,
	})
	if err != nil {
		return err
	}
	if !credited {
		return nil
	}

	c.log.Info("referral commission credited",
		slog.Int64("referrer_id", *user.ReferrerID),
		slog.String("transaction_id", tx.ID),
		slog.String("commission", commission.String()))
	c.notify(ctx, models.Notification{
		Kind:          models.NotificationReferralCommission,
		UserID:        *user.ReferrerID,
		TransactionID: tx.ID,
		Amount:        commission,
	})
	return nil
}

// outcome переводит ошибку операции в значение метки result.
// Уже обработанная транзакция считается пропуском, а не сбоем.
func outcome(err error) string {
	if errors.Is(err, models.ErrInvalidState) {
		return metrics.ResultSkipped
	}
	return metrics.Result(err)
}
