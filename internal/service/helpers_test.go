package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/cache"
	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/repository"
)

const sqliteMigrations = "../repository/migrations/sqlite"

func newTestStore(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(sqliteMigrations))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// newFileStore is newTestStore backed by a file, for tests that need a second
// connection to the same database.
func newFileStore(t *testing.T) (*repository.Repository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	repo, err := repository.NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(sqliteMigrations))
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCache(client, time.Minute, zap.NewNop()), mr
}

func seedProduct(t *testing.T, store *repository.Repository, name, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		CategoryID:    1,
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	require.NoError(t, store.CreateProduct(context.Background(), p))
	return p
}

func stockOf(t *testing.T, store *repository.Repository, productID int64) int {
	t.Helper()
	p, err := store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}
