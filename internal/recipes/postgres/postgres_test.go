package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/recipes"
)

// Интеграционные тесты: PostgreSQL через testcontainers-go, миграции из ./migrations.
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/recipes/postgres -v -race -count=1

func repoRootFromThisFile() string {
	// internal/recipes/postgres/... -> подняться на 3 уровня до корня.
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", ".."))
}

func readMigration(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(repoRootFromThisFile(), "migrations", name)
	b, err := os.ReadFile(path)
	require.NoError(t, err, "read migration %s", path)
	return string(b)
}

// startPostgres поднимает PostgreSQL и возвращает хранилище и пул для подготовки данных.
func startPostgres(t *testing.T) (*Storage, *pgxpool.Pool) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, readMigration(t, "1_init_recipes.up.sql"))
	require.NoError(t, err)

	st, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st, pool
}

func TestIntegration_OwnerOfAndWriteRating(t *testing.T) {
	st, pool := startPostgres(t)
	ctx := context.Background()

	recipe, owner := uuid.New(), uuid.New()
	_, err := pool.Exec(ctx, `INSERT INTO recipes (id, owner_id) VALUES ($1, $2)`, recipe, owner)
	require.NoError(t, err)

	got, err := st.OwnerOf(ctx, recipe)
	require.NoError(t, err)
	require.Equal(t, owner, got)

	require.NoError(t, st.WriteRating(ctx, recipe, 4.5, 2))

	var (
		avg   float64
		count int
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT avg_rating, review_count FROM recipes WHERE id = $1`, recipe).Scan(&avg, &count))
	require.InDelta(t, 4.5, avg, 1e-9)
	require.Equal(t, 2, count)

	require.NoError(t, st.Ping(ctx))
}

func TestIntegration_MissingRecipe(t *testing.T) {
	st, _ := startPostgres(t)
	ctx := context.Background()

	_, err := st.OwnerOf(ctx, uuid.New())
	require.ErrorIs(t, err, recipes.ErrRecipeNotFound)

	require.ErrorIs(t, st.WriteRating(ctx, uuid.New(), 1, 1), recipes.ErrRecipeNotFound)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), "://not a url")
	require.Error(t, err)
}
