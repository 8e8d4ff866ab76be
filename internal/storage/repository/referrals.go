package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

// CreditReferralCommission записывает реферальное начисление и зачисляет его на баланс
// пригласившего. Выполняется в собственной транзакции БД, независимо от транзакции
// в context, поэтому не откатывается вместе с ней. Начисление уникально по ID
// транзакции оплаты: повторный вызов ничего не меняет и возвращает false.
func (s *Storage) CreditReferralCommission(ctx context.Context, rc models.ReferralCommission) (bool, error) {
	const op = "storage.CreditReferralCommission"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO referral_transactions (referrer_id, referred_id, transaction_id, amount, commission)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (transaction_id) DO NOTHING
		 RETURNING id`,
		rc.ReferrerID, rc.ReferredID, rc.TransactionID, rc.Amount, rc.Commission).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + $2 WHERE id = $1`, rc.ReferrerID, rc.Commission)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if rows, err := result.RowsAffected(); err != nil || rows == 0 {
		return false, fmt.Errorf("%s: referrer %d: %w", op, rc.ReferrerID, models.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}
