package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_store/internal/domain"
	db "github.com/fjod/go_store/internal/repository"
)

func setupTestDB(t *testing.T) *db.Repository {
	t.Helper()
	// Use in-memory database for tests
	repo, err := db.NewSQLiteRepository(":memory:")
	require.NoError(t, err)

	require.NoError(t, repo.RunMigrations("./migrations/sqlite"))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createProduct(t *testing.T, repo *db.Repository, name, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		CategoryID:    1,
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

func TestGetProduct_SeededAfterMigrations(t *testing.T) {
	repo := setupTestDB(t)

	p, err := repo.GetProduct(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "Mechanical Keyboard", p.Name)
	assert.True(t, decimal.RequireFromString("89.99").Equal(p.Price))
	assert.Equal(t, 25, p.StockQuantity)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetProduct(context.Background(), 9999)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateProduct_RejectsNegativeStock(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.CreateProduct(context.Background(), &domain.Product{Name: "Broken", Price: decimal.NewFromInt(1), StockQuantity: -1})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeductStock(t *testing.T) {
	ctx := context.Background()

	t.Run("takes units off", func(t *testing.T) {
		repo := setupTestDB(t)
		p := createProduct(t, repo, "Widget", "10.00", 5)

		require.NoError(t, repo.DeductStock(ctx, p.ID, 3))

		got, err := repo.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.StockQuantity)
	})

	t.Run("down to zero", func(t *testing.T) {
		repo := setupTestDB(t)
		p := createProduct(t, repo, "Widget", "10.00", 2)

		require.NoError(t, repo.DeductStock(ctx, p.ID, 2))

		got, err := repo.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.StockQuantity)
	})

	t.Run("insufficient leaves stock untouched", func(t *testing.T) {
		repo := setupTestDB(t)
		p := createProduct(t, repo, "Widget", "10.00", 2)

		err := repo.DeductStock(ctx, p.ID, 3)

		var stockErr *domain.StockError
		require.True(t, errors.As(err, &stockErr))
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, 2, stockErr.Available)
		assert.Equal(t, 3, stockErr.Requested)
		assert.Equal(t, "Widget", stockErr.ProductName)
		assert.Contains(t, err.Error(), "2 available")

		got, err := repo.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.StockQuantity)
	})

	t.Run("unknown product", func(t *testing.T) {
		repo := setupTestDB(t)

		err := repo.DeductStock(ctx, 9999, 1)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		repo := setupTestDB(t)
		p := createProduct(t, repo, "Widget", "10.00", 2)

		assert.Error(t, repo.DeductStock(ctx, p.ID, 0))
	})
}

func TestRestockStock(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Widget", "10.00", 1)

	require.NoError(t, repo.RestockStock(ctx, p.ID, 4))

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)

	assert.ErrorIs(t, repo.RestockStock(ctx, 9999, 1), domain.ErrNotFound)
}

func TestGetOrCreateCart_IsLazyAndStable(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first, err := repo.GetOrCreateCart(ctx, 42)
	require.NoError(t, err)
	second, err := repo.GetOrCreateCart(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(42), second.UserID)
	assert.Empty(t, second.Items)
}

func TestMergeCartItem_SingleRowPerProduct(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Widget", "10.00", 10)
	cart, err := repo.GetOrCreateCart(ctx, 1)
	require.NoError(t, err)

	q, err := repo.MergeCartItem(ctx, cart.ID, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, q)

	q, err = repo.MergeCartItem(ctx, cart.ID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, q)

	cart, err = repo.GetOrCreateCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	item := cart.Items[0]
	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, "Widget", item.Name)
	assert.Equal(t, 10, item.StockQuantity)
	assert.True(t, decimal.RequireFromString("50").Equal(item.Subtotal()))
}

func TestCartItemLifecycle(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	a := createProduct(t, repo, "A", "1.00", 10)
	b := createProduct(t, repo, "B", "2.00", 10)
	cart, err := repo.GetOrCreateCart(ctx, 7)
	require.NoError(t, err)
	_, err = repo.MergeCartItem(ctx, cart.ID, a.ID, 1)
	require.NoError(t, err)
	_, err = repo.MergeCartItem(ctx, cart.ID, b.ID, 1)
	require.NoError(t, err)

	cart, err = repo.GetOrCreateCart(ctx, 7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	itemID := cart.Items[0].ID

	require.NoError(t, repo.SetCartItemQuantity(ctx, itemID, 4))
	item, err := repo.GetCartItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)
	assert.Equal(t, cart.ID, item.CartID)

	require.NoError(t, repo.DeleteCartItem(ctx, itemID))
	require.NoError(t, repo.DeleteCartItem(ctx, itemID))
	_, err = repo.GetCartItem(ctx, itemID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.SetCartItemQuantity(ctx, itemID, 1), domain.ErrNotFound)

	n, err := repo.ClearCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	cart, err = repo.GetOrCreateCart(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func newOrder(userID int64, product *domain.Product, qty int, createdAt time.Time) *domain.Order {
	item := domain.OrderItem{
		ProductID:       product.ID,
		ProductName:     product.Name,
		Quantity:        qty,
		PriceAtPurchase: product.Price,
	}
	return &domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		TotalAmount:     item.LineTotal(),
		ShippingAddress: "1 Main St",
		PaymentMethod:   "CARD",
		Items:           []domain.OrderItem{item},
		CreatedAt:       createdAt,
	}
}

func TestCreateOrder_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Widget", "12.50", 10)

	order := newOrder(3, p, 2, time.Now().UTC())
	require.NoError(t, repo.CreateOrder(ctx, order))
	require.NotZero(t, order.Items[0].ID)

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, int64(3), got.UserID)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.True(t, decimal.RequireFromString("25.00").Equal(got.TotalAmount))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Widget", got.Items[0].ProductName)
	assert.True(t, decimal.RequireFromString("12.50").Equal(got.Items[0].PriceAtPurchase))

	assert.ErrorIs(t, repo.CreateOrder(ctx, order), db.ErrDuplicateOrder)
}

func TestGetOrderByID_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetOrderByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListOrders_NewestFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Widget", "1.00", 10)
	base := time.Now().UTC()

	older := newOrder(1, p, 1, base.Add(-time.Hour))
	newer := newOrder(1, p, 1, base)
	other := newOrder(2, p, 1, base.Add(-30*time.Minute))
	for _, o := range []*domain.Order{older, newer, other} {
		require.NoError(t, repo.CreateOrder(ctx, o))
	}

	mine, err := repo.ListOrdersByUserID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, newer.ID, mine[0].ID)
	assert.Equal(t, older.ID, mine[1].ID)

	all, err := repo.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{newer.ID, other.ID, older.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	none, err := repo.ListOrdersByUserID(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCompareAndSetStatus(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Widget", "1.00", 10)
	order := newOrder(1, p, 1, time.Now().UTC())
	require.NoError(t, repo.CreateOrder(ctx, order))

	ok, err := repo.CompareAndSetStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSetStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
}

func TestCountOrdersByStatus_ZeroFilled(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Widget", "1.00", 10)
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.CreateOrder(ctx, newOrder(1, p, 1, time.Now().UTC())))
	}

	counts, err := repo.CountOrdersByStatus(ctx)

	require.NoError(t, err)
	assert.Len(t, counts, len(domain.AllOrderStatuses))
	assert.Equal(t, 2, counts[domain.OrderStatusPending])
	assert.Equal(t, 0, counts[domain.OrderStatusDelivered])
}

func TestInTx_RollsBackOnError(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Widget", "1.00", 5)
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(q db.Queries) error {
		if err := q.DeductStock(ctx, p.ID, 5); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
}

func TestInTx_Commits(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Widget", "1.00", 5)

	err := repo.InTx(ctx, func(q db.Queries) error {
		return q.DeductStock(ctx, p.ID, 2)
	})

	require.NoError(t, err)
	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)
}

func TestOutbox(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first := &db.OutboxEvent{AggregateId: "a", EventType: domain.EventOrderCreated, Payload: []byte(`{"n":1}`)}
	second := &db.OutboxEvent{AggregateId: "b", EventType: domain.EventOrderStatusChanged, Payload: []byte(`{"n":2}`)}
	require.NoError(t, repo.EnqueueEvent(ctx, first))
	require.NoError(t, repo.EnqueueEvent(ctx, second))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.JSONEq(t, `{"n":1}`, string(events[0].Payload))
	assert.Equal(t, domain.EventOrderStatusChanged, events[1].EventType)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, first.ID))
	assert.Error(t, repo.MarkEventAsProcessed(ctx, first.ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, second.ID, events[0].ID)
}

func TestContextCancellation(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetProduct(ctx, 1)
	assert.Error(t, err)
}
