package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func getTestDB(t *testing.T) (*sql.DB, func()) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func getMigrationsPath(t *testing.T) string {
	projectRoot, err := filepath.Abs("../..")
	require.NoError(t, err)
	return filepath.Join(projectRoot, "migrations")
}

func exists(t *testing.T, db *sql.DB, query string, args ...any) bool {
	t.Helper()
	var ok bool
	require.NoError(t, db.QueryRow(query, args...).Scan(&ok))
	return ok
}

func TestRunMigrations(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	require.NoError(t, Run(db, getMigrationsPath(t)))

	for _, table := range []string{"users", "transactions", "subscriptions", "referral_transactions"} {
		require.True(t, exists(t, db, `SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1)`, table), "table %s should exist", table)
	}

	for _, index := range []string{"idx_subscriptions_active_end", "uniq_subscriptions_trial_per_user"} {
		require.True(t, exists(t, db, `SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public' AND tablename = 'subscriptions' AND indexname = $1)`, index),
			"index %s should exist", index)
	}
}

func TestRunMigrations_Constraints(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()
	require.NoError(t, Run(db, getMigrationsPath(t)))

	_, err := db.Exec(`INSERT INTO users (id, balance) VALUES (1, -1)`)
	require.Error(t, err, "negative balance must be rejected")

	_, err = db.Exec(`INSERT INTO users (id) VALUES (2)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO transactions (transaction_id, user_id, amount, tariff_id, status)
		VALUES ('PAY_1', 2, 99, '1_99', 'paid')`)
	require.Error(t, err, "unknown status must be rejected")

	insertTrial := `INSERT INTO subscriptions (user_id, subscription_type, start_date, end_date, is_active)
		VALUES (2, 'trial', NOW(), NOW() + INTERVAL '3 days', false)`
	_, err = db.Exec(insertTrial)
	require.NoError(t, err)
	_, err = db.Exec(insertTrial)
	require.Error(t, err, "second trial must be rejected")
}

func TestMigrationIdempotency(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	migrationsPath := getMigrationsPath(t)
	require.NoError(t, Run(db, migrationsPath))
	require.NoError(t, Run(db, migrationsPath), "running migrations twice should not fail")
}
