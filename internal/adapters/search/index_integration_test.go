package search_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/reybrally/order-pipeline/internal/adapters/search"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

/* ---------- setup helpers ---------- */

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	// Если задан TEST_PG_DSN — используем его (локальный Postgres)
	if dsn := os.Getenv("TEST_PG_DSN"); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			t.Fatalf("pgxpool.New: %v", err)
		}
		t.Cleanup(func() { pool.Close() })
		applySchema(t, pool)
		return pool
	}

	// Иначе — поднимем Postgres через testcontainers
	pgC, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("search"),
		postgres.WithUsername("user"),
		postgres.WithPassword("pass"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable&pool_max_conns=5")
	if err != nil {
		t.Fatalf("conn string: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	applySchema(t, pool)
	return pool
}

func applySchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, search.Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE search_documents;`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func doc(orderID string, amount float64) attrvalue.Document {
	return attrvalue.Document{
		"orderId":       orderID,
		"customerId":    "cust-1",
		"paymentStatus": "SUCCESS",
		"amount":        amount,
	}
}

/* ---------- tests ---------- */

func TestIndexUpsertIdempotent(t *testing.T) {
	pool := setupPool(t)
	ix := search.NewIndex(pool)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, "ORD-1", doc("ORD-1", 100)))
	// передоставка того же документа — то же итоговое состояние
	require.NoError(t, ix.Upsert(ctx, "ORD-1", doc("ORD-1", 100)))

	got, err := ix.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", got.DocID)
	assert.Equal(t, 100.0, got.Doc.Float("amount"))
}

func TestIndexLastWriteWins(t *testing.T) {
	pool := setupPool(t)
	ix := search.NewIndex(pool)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, "ORD-2", doc("ORD-2", 100)))
	require.NoError(t, ix.Upsert(ctx, "ORD-2", doc("ORD-2", 250)))

	got, err := ix.Get(ctx, "ORD-2")
	require.NoError(t, err)
	assert.Equal(t, 250.0, got.Doc.Float("amount"))
}

func TestIndexGetMiss(t *testing.T) {
	pool := setupPool(t)
	ix := search.NewIndex(pool)

	_, err := ix.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, search.ErrDocNotFound)
}

func TestIndexSearchByField(t *testing.T) {
	pool := setupPool(t)
	ix := search.NewIndex(pool)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, "ORD-3", doc("ORD-3", 10)))
	require.NoError(t, ix.Upsert(ctx, "ORD-4", doc("ORD-4", 20)))

	found, err := ix.Search(ctx, "customerId", "cust-1", 10)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = ix.Search(ctx, "orderId", "ORD-3", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ORD-3", found[0].DocID)
}
