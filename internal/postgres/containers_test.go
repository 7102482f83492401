//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/config"
)

type testDB struct {
	container testcontainers.Container
	dsn       string
	pool      *pgxpool.Pool
}

// startPostgres runs a disposable Postgres, applies migrations and returns
// a connected pool. Cleanup is registered on t.
func startPostgres(ctx context.Context, t *testing.T) *testDB {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "market",
			"POSTGRES_PASSWORD": "market",
			"POSTGRES_DB":       "market",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to create postgres container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://market:market@%s:%s/market?sslmode=disable", host, port.Port())
	if err := Migrate(dsn, zap.NewNop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cfg := config.DefaultConfig().Postgres
	cfg.DSN = dsn
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return &testDB{container: container, dsn: dsn, pool: pool}
}

func (db *testDB) categoryID(ctx context.Context, t *testing.T, name string) string {
	t.Helper()
	var id string
	if err := db.pool.QueryRow(ctx, `SELECT id::text FROM categories WHERE name = $1`, name).Scan(&id); err != nil {
		t.Fatalf("category %q: %v", name, err)
	}
	return id
}

func (db *testDB) insertListing(ctx context.Context, t *testing.T, title, description, categoryID string, available bool, createdAt time.Time) string {
	t.Helper()
	var id string
	err := db.pool.QueryRow(ctx,
		`INSERT INTO listings (title, description, category_id, price, seller_id, is_available, created_at)
		 VALUES ($1, $2, $3::uuid, 25.00, 'seller-1', $4, $5)
		 RETURNING id::text`,
		title, description, categoryID, available, createdAt,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert listing: %v", err)
	}
	return id
}
