package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

// Stats собирает сводную статистику для администраторов.
func (s *Storage) Stats(ctx context.Context) (*models.Stats, error) {
	const op = "storage.Stats"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	now := s.now()
	today := now.Truncate(24 * time.Hour)
	stats := &models.Stats{
		PaymentsByTariff:    map[string]int{},
		SubscriptionsByType: map[string]int{},
	}

	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT
		    (SELECT COUNT(*) FROM users),
		    (SELECT COUNT(*) FROM users WHERE created_at >= $1),
		    (SELECT COUNT(*) FROM subscriptions WHERE is_active AND end_date > $2),
		    (SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE status = 'completed')`,
		today, now).Scan(&stats.TotalUsers, &stats.NewUsersToday, &stats.ActiveSubscriptions, &stats.Revenue)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.countBy(ctx, stats.PaymentsByTariff,
		`SELECT tariff_id, COUNT(*) FROM transactions WHERE status = 'completed' GROUP BY tariff_id`); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.countBy(ctx, stats.SubscriptionsByType,
		`SELECT subscription_type, COUNT(*) FROM subscriptions GROUP BY subscription_type`); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

func (s *Storage) countBy(ctx context.Context, dst map[string]int, query string) error {
	rows, err := s.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dst[key] = count
	}
	return rows.Err()
}
