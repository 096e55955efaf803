package settlement

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wageadvance/internal/platform/config"
	"wageadvance/internal/platform/db"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	cfg := config.Load()
	cfg.DatabaseURL = dbURL
	pool, err := db.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool, "../../../migrations"))
	return pool
}

func insertEmployee(t *testing.T, pool *pgxpool.Pool) (companyID, employeeID string) {
	t.Helper()
	ctx := context.Background()
	tag := uuid.NewString()
	require.NoError(t, pool.QueryRow(ctx,
		"INSERT INTO companies (name, rif, email, is_approved) VALUES ($1,$2,$3,true) RETURNING id",
		"Settle Co", "J-"+tag, tag+"@co.test").Scan(&companyID))
	var userID string
	require.NoError(t, pool.QueryRow(ctx,
		"INSERT INTO users (email, password_hash, role, company_id) VALUES ($1,'x','employee',$2) RETURNING id",
		tag+"@emp.test", companyID).Scan(&userID))
	require.NoError(t, pool.QueryRow(ctx, `
    INSERT INTO employees (user_id, company_id, first_name, last_name, email, cedula, monthly_salary)
    VALUES ($1,$2,'Ana','Diaz',$3,$4,1000) RETURNING id
  `, userID, companyID, tag+"@emp.test", "V"+tag[:8]).Scan(&employeeID))
	return companyID, employeeID
}

func insertApprovedAdvance(t *testing.T, pool *pgxpool.Pool, companyID, employeeID string, amount decimal.Decimal, createdAt time.Time) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
    INSERT INTO advance_transactions (employee_id, company_id, requested_amount, net_amount, status, created_at)
    VALUES ($1,$2,$3,$3,'approved',$4)
  `, employeeID, companyID, amount, createdAt)
	require.NoError(t, err)
}

func TestStoreSettleRerunAddsToExistingSettlement(t *testing.T) {
	pool := newTestPool(t)
	store := NewStore(pool)
	ctx := context.Background()
	companyID, employeeID := insertEmployee(t, pool)

	billingDate := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	cutoff := billingDate.AddDate(0, 0, 1)
	insertApprovedAdvance(t, pool, companyID, employeeID, decimal.RequireFromString("100.00"), billingDate.Add(9*time.Hour))

	first, grouped, err := store.Settle(ctx, companyID, billingDate, cutoff)
	require.NoError(t, err)
	require.True(t, grouped)
	assert.Equal(t, 1, first.AdvanceCount)
	assert.Equal(t, 1, first.AddedCount)

	_, grouped, err = store.Settle(ctx, companyID, billingDate, cutoff)
	require.NoError(t, err)
	assert.False(t, grouped)

	insertApprovedAdvance(t, pool, companyID, employeeID, decimal.RequireFromString("40.00"), billingDate.Add(18*time.Hour))

	second, grouped, err := store.Settle(ctx, companyID, billingDate, cutoff)
	require.NoError(t, err)
	require.True(t, grouped)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.AdvanceCount)
	assert.Equal(t, 1, second.AddedCount)
	assert.True(t, second.TotalAmount.Equal(decimal.RequireFromString("140")))

	listed, err := store.ListByCompany(ctx, companyID, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 2, listed[0].AdvanceCount)

	var unsettled int
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT count(*) FROM advance_transactions WHERE company_id = $1 AND settlement_id IS DISTINCT FROM $2",
		companyID, first.ID).Scan(&unsettled))
	assert.Zero(t, unsettled)
}
