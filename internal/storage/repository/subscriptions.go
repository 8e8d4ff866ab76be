package repository

import (
	"context"
	"fmt"

	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

const (
	subscriptionColumns = `id, user_id, subscription_type, start_date, end_date,
			      COALESCE(credential_id, ''), COALESCE(inbound_id, 0), is_active`

	trialIndex = "uniq_subscriptions_trial_per_user"
)

// CreateSubscription создаёт активную подписку со сроком start + длительность тарифа.
// Неизвестный тариф даёт ErrUnknownTariff, повторный пробный период ErrTrialUsed.
func (s *Storage) CreateSubscription(ctx context.Context, req models.NewSubscription) (*models.Subscription, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tariff, err := s.tariffs.Lookup(req.TariffID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	start := s.now()
	end := start.Add(tariff.Duration)

	query := `INSERT INTO subscriptions (user_id, subscription_type, start_date, end_date,
			      credential_id, inbound_id, transaction_id, is_active)
			  VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, 0), NULLIF($7, ''), true)
			  RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(s.conn(ctx).QueryRowContext(ctx, query,
		req.UserID, tariff.ID, start, end, req.CredentialID, req.InboundID, req.TransactionID))
	if err != nil {
		if isUniqueViolation(err, trialIndex) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrTrialUsed)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// GetSubscription возвращает подписку по ID.
func (s *Storage) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sub, err := scanSubscription(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return sub, nil
}

// ActiveSubscription возвращает действующую подписку пользователя: is_active и end_date > now,
// при нескольких берётся с самой поздней датой окончания. Если такой нет, ErrNotFound.
func (s *Storage) ActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.ActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1 AND is_active AND end_date > $2
			  ORDER BY end_date DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.conn(ctx).QueryRowContext(ctx, query, userID, s.now()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return sub, nil
}

// ListUserSubscriptions возвращает всю историю подписок пользователя, новые по end_date первыми.
func (s *Storage) ListUserSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "storage.ListUserSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1
			  ORDER BY end_date DESC, id DESC`
	subs, err := s.querySubscriptions(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// ListActiveSubscriptions возвращает все строки с is_active = true, ближайшие к окончанию первыми.
func (s *Storage) ListActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	const op = "storage.ListActiveSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE is_active
			  ORDER BY end_date ASC, id ASC`
	subs, err := s.querySubscriptions(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// HadTrial проверяет по всей истории, включая неактивные строки, был ли у пользователя пробный период.
func (s *Storage) HadTrial(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.HadTrial"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var had bool
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1 AND subscription_type = $2)`,
		userID, models.TariffTrial).Scan(&had)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return had, nil
}

// DeactivateSubscription помечает подписку неактивной. Повторный вызов не ошибка.
func (s *Storage) DeactivateSubscription(ctx context.Context, id int64) error {
	const op = "storage.DeactivateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.conn(ctx).ExecContext(ctx, `UPDATE subscriptions SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

func (s *Storage) querySubscriptions(ctx context.Context, query string, args ...any) ([]models.Subscription, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	subs := make([]models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Type, &sub.StartDate, &sub.EndDate,
		&sub.CredentialID, &sub.InboundID, &sub.Active)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
