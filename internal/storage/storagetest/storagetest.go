// Package storagetest поднимает PostgreSQL в testcontainers с применёнными миграциями
// и содержит фабрику тестовых данных. Используется только из тестов.
package storagetest

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Maksim200738-droid/rockvpn/internal/migrations"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
	"github.com/Maksim200738-droid/rockvpn/internal/storage/repository"
)

// MigrationsPath возвращает абсолютный путь к каталогу migrations в корне модуля.
func MigrationsPath(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok, "cannot resolve caller")
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// Setup запускает контейнер PostgreSQL, применяет миграции и возвращает хранилище.
// Контейнер останавливается в t.Cleanup.
func Setup(t *testing.T, tariffs models.Catalog) *repository.Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("rockvpn"),
		postgres.WithUsername("rockvpn"),
		postgres.WithPassword("rockvpn"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://rockvpn:rockvpn@%s:%s/rockvpn?sslmode=disable", host, port.Port())

	var storage *repository.Storage
	for range 10 {
		storage, err = repository.New(dsn, tariffs)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err, "failed to connect storage after retries")
	t.Cleanup(func() { _ = storage.Close() })

	require.NoError(t, migrations.Run(storage.DB, MigrationsPath(t)))
	return storage
}

// Factory создаёт тестовые данные напрямую через SQL.
type Factory struct {
	storage *repository.Storage
}

// NewFactory создаёт фабрику тестовых данных.
func NewFactory(storage *repository.Storage) *Factory {
	return &Factory{storage: storage}
}

// User создаёт пользователя с балансом и необязательным реферером.
func (f *Factory) User(t *testing.T, id int64, balance decimal.Decimal, referrerID *int64) {
	t.Helper()
	_, err := f.storage.DB.Exec(`INSERT INTO users (id, display_name, referrer_id, balance) VALUES ($1, $2, $3, $4)`,
		id, fmt.Sprintf("user%d", id), referrerID, balance)
	require.NoError(t, err)
}

// Subscription вставляет подписку с произвольным окном действия.
func (f *Factory) Subscription(t *testing.T, userID int64, subType string, start, end time.Time,
	credentialID string, inboundID int, active bool) int64 {
	t.Helper()
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions
		(user_id, subscription_type, start_date, end_date, credential_id, inbound_id, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, 0), $7) RETURNING id`,
		userID, subType, start, end, credentialID, inboundID, active).Scan(&id)
	require.NoError(t, err)
	return id
}

// Verification проверки состояния БД.
type Verification struct {
	storage *repository.Storage
}

// NewVerification создаёт набор проверок.
func NewVerification(storage *repository.Storage) *Verification {
	return &Verification{storage: storage}
}

// CountActive возвращает число действующих подписок пользователя.
func (v *Verification) CountActive(t *testing.T, userID int64) int {
	t.Helper()
	var n int
	err := v.storage.DB.QueryRow(`SELECT COUNT(*) FROM subscriptions
		WHERE user_id = $1 AND is_active AND end_date > NOW()`, userID).Scan(&n)
	require.NoError(t, err)
	return n
}

// CountSubscriptions возвращает число подписок пользователя указанного типа за всю историю.
func (v *Verification) CountSubscriptions(t *testing.T, userID int64, subType string) int {
	t.Helper()
	var n int
	err := v.storage.DB.QueryRow(`SELECT COUNT(*) FROM subscriptions
		WHERE user_id = $1 AND subscription_type = $2`, userID, subType).Scan(&n)
	require.NoError(t, err)
	return n
}

// SubscriptionsForTransaction возвращает число подписок, созданных по транзакции.
func (v *Verification) SubscriptionsForTransaction(t *testing.T, transactionID string) int {
	t.Helper()
	var n int
	err := v.storage.DB.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE transaction_id = $1`, transactionID).Scan(&n)
	require.NoError(t, err)
	return n
}

// OrphanSubscriptions возвращает число подписок, чья транзакция не в статусе completed.
func (v *Verification) OrphanSubscriptions(t *testing.T) int {
	t.Helper()
	var n int
	err := v.storage.DB.QueryRow(`SELECT COUNT(*) FROM subscriptions s
		JOIN transactions t ON t.transaction_id = s.transaction_id
		WHERE t.status <> 'completed'`).Scan(&n)
	require.NoError(t, err)
	return n
}

// Balance возвращает баланс пользователя.
func (v *Verification) Balance(t *testing.T, userID int64) decimal.Decimal {
	t.Helper()
	var b decimal.Decimal
	require.NoError(t, v.storage.DB.QueryRow(`SELECT balance FROM users WHERE id = $1`, userID).Scan(&b))
	return b
}
