package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

const maxIDAttempts = 20

const transactionColumns = `transaction_id, user_id, amount, tariff_id, status, created_at`

// CreatePendingTransaction записывает новую заявку на оплату в статусе pending.
// ID имеет вид PAY_<yyyymmddHHMMSS>_<userID>, при совпадении добавляется суффикс _<n>.
func (s *Storage) CreatePendingTransaction(ctx context.Context, userID int64, tariffID string, amount decimal.Decimal) (*models.Transaction, error) {
	const op = "storage.CreatePendingTransaction"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	now := s.now()
	base := fmt.Sprintf("PAY_%s_%d", now.Format("20060102150405"), userID)
	query := `INSERT INTO transactions (transaction_id, user_id, amount, tariff_id, status, created_at)
			  VALUES ($1, $2, $3, $4, 'pending', $5)
			  ON CONFLICT (transaction_id) DO NOTHING
			  RETURNING ` + transactionColumns

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := base
		if attempt > 1 {
			id = base + "_" + strconv.Itoa(attempt)
		}
		tx, err := scanTransaction(s.conn(ctx).QueryRowContext(ctx, query, id, userID, amount, tariffID, now))
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil, fmt.Errorf("%s: no free transaction id for %s", op, base)
}

// GetTransaction возвращает транзакцию по ID.
func (s *Storage) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	const op = "storage.GetTransaction"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := scanTransaction(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1`, transactionID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return tx, nil
}

// LockTransaction читает транзакцию с блокировкой строки до конца текущей транзакции БД.
// Параллельное подтверждение той же заявки ждёт здесь и затем видит итоговый статус.
func (s *Storage) LockTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	const op = "storage.LockTransaction"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := scanTransaction(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1 FOR UPDATE`, transactionID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return tx, nil
}

// MostRecentPending возвращает последнюю по времени заявку пользователя в статусе pending
// или ErrNotFound.
func (s *Storage) MostRecentPending(ctx context.Context, userID int64) (*models.Transaction, error) {
	const op = "storage.MostRecentPending"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + transactionColumns + `
			  FROM transactions
			  WHERE user_id = $1 AND status = 'pending'
			  ORDER BY created_at DESC, transaction_id DESC
			  LIMIT 1`
	tx, err := scanTransaction(s.conn(ctx).QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return tx, nil
}

// ResolveTransaction переводит транзакцию из pending в completed или rejected.
// Обновление условное (compare-and-set): если статус уже не pending,
// возвращается ErrInvalidState, если транзакции нет, ErrNotFound.
func (s *Storage) ResolveTransaction(ctx context.Context, transactionID string, status models.TransactionStatus) error {
	const op = "storage.ResolveTransaction"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if !status.IsTerminal() {
		return fmt.Errorf("%s: %w: cannot resolve to %q", op, models.ErrInvalidState, status)
	}

	result, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE transactions SET status = $2 WHERE transaction_id = $1 AND status = 'pending'`,
		transactionID, string(status))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 1 {
		return nil
	}

	if _, err := s.GetTransaction(ctx, transactionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, models.ErrInvalidState)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx     models.Transaction
		status string
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.TariffID, &status, &tx.CreatedAt); err != nil {
		return nil, err
	}
	tx.Status = models.TransactionStatus(status)
	return &tx, nil
}
