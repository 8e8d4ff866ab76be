package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

// RegisterUser создаёт пользователя при первом обращении. Для существующего
// пользователя обновляется только отображаемое имя, реферер не меняется.
// Реферер сохраняется, только если он уже зарегистрирован и не совпадает с самим пользователем.
// Возвращает true, если пользователь создан.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (bool, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (id, display_name, referrer_id)
			  VALUES ($1, NULLIF($2, ''), (SELECT id FROM users WHERE id = $3 AND id <> $1))
			  ON CONFLICT (id) DO UPDATE
			      SET display_name = COALESCE(EXCLUDED.display_name, users.display_name)
			  RETURNING (xmax = 0)`
	var referrer sql.NullInt64
	if user.ReferrerID != nil {
		referrer = sql.NullInt64{Int64: *user.ReferrerID, Valid: true}
	}

	var created bool
	if err := s.conn(ctx).QueryRowContext(ctx, query, user.ID, user.DisplayName, referrer).Scan(&created); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, COALESCE(display_name, ''), referrer_id, balance, is_admin, created_at
			  FROM users
			  WHERE id = $1`
	var (
		u        models.User
		referrer sql.NullInt64
	)
	err := s.conn(ctx).QueryRowContext(ctx, query, userID).
		Scan(&u.ID, &u.DisplayName, &referrer, &u.Balance, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	if referrer.Valid {
		u.ReferrerID = &referrer.Int64
	}
	return &u, nil
}

// SetAdmin включает или выключает флаг администратора.
func (s *Storage) SetAdmin(ctx context.Context, userID int64, isAdmin bool) error {
	const op = "storage.SetAdmin"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.conn(ctx).ExecContext(ctx, `UPDATE users SET is_admin = $2 WHERE id = $1`, userID, isAdmin)
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

// DebitBalance списывает amount с баланса и возвращает новый баланс.
// Проверка и списание выполняются одним условным UPDATE, баланс не уходит в минус.
func (s *Storage) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	const op = "storage.DebitBalance"
	select {
	case <-ctx.Done():
		return decimal.Zero, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s: negative amount %s", op, amount)
	}

	query := `UPDATE users SET balance = balance - $2
			  WHERE id = $1 AND balance >= $2
			  RETURNING balance`
	var balance decimal.Decimal
	err := s.conn(ctx).QueryRowContext(ctx, query, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return decimal.Zero, fmt.Errorf("%s: %w", op, models.ErrInsufficientBalance)
}

// CreditBalance зачисляет amount на баланс и возвращает новый баланс.
func (s *Storage) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	const op = "storage.CreditBalance"
	select {
	case <-ctx.Done():
		return decimal.Zero, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s: negative amount %s", op, amount)
	}

	var balance decimal.Decimal
	err := s.conn(ctx).QueryRowContext(ctx,
		`UPDATE users SET balance = balance + $2 WHERE id = $1 RETURNING balance`, userID, amount).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return balance, nil
}
