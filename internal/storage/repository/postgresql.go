// Package repository реализует хранилище на PostgreSQL: пользователей,
// журнал транзакций оплаты, подписки, реферальные начисления и статистику.
//
// Транзакция БД передаётся через context: методы, вызванные внутри InTx,
// автоматически выполняются в ней.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

const uniqueViolation = "23505"

// Storage инкапсулирует соединение с PostgreSQL и каталог тарифов,
// по которому вычисляется срок действия подписок.
type Storage struct {
	DB      *sql.DB
	tariffs models.Catalog
	now     func() time.Time
}

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string, tariffs models.Catalog) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithDB(db, tariffs), nil
}

// NewWithDB оборачивает уже открытое соединение.
func NewWithDB(db *sql.DB, tariffs models.Catalog) *Storage {
	if tariffs == nil {
		tariffs = models.NewCatalog(0)
	}
	return &Storage{
		DB:      db,
		tariffs: tariffs,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// InTx выполняет fn в транзакции БД. Вложенный вызов присоединяется к внешней транзакции.
// Любая ошибка из fn откатывает транзакцию.
func (s *Storage) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	const op = "storage.InTx"

	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LockUser берёт advisory-блокировку пользователя до конца текущей транзакции.
// Сериализует покупки, пробные периоды и выдачи для одного пользователя,
// не блокируя строку users. Вне InTx блокировка отпускается сразу.
func (s *Storage) LockUser(ctx context.Context, userID int64) error {
	const op = "storage.LockUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.conn(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check subscriptions table: %w", err)
	}
	if !exists {
		return errors.New("required table subscriptions missing")
	}
	return nil
}

func (s *Storage) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.DB
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
