package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_store/internal/cache"
	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/repository"
	"github.com/fjod/go_store/pkg/logger"
)

// CartCache holds rendered carts for display only. Delete rotates the user's
// version and Set is ignored unless the version it gets is still current.
type CartCache interface {
	Get(ctx context.Context, userID int64) (*domain.Cart, error)
	Version(ctx context.Context, userID int64) (string, error)
	Set(ctx context.Context, userID int64, version string, cart *domain.Cart) error
	Delete(ctx context.Context, userID int64) error
}

type CartService struct {
	store repository.Store
	cache CartCache // nil disables caching
	sfg   singleflight.Group
	log   *zap.Logger
}

func NewCartService(store repository.Store, cache CartCache, log *zap.Logger) *CartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{
		store: store,
		cache: cache,
		log:   log,
	}
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	if s.cache != nil {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.FromContext(ctx, s.log).Warn("cart cache get failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		// read before the store so a change committed in between voids the fill
		fill := s.cache != nil
		var version string
		if fill {
			var errVer error
			if version, errVer = s.cache.Version(ctx, userID); errVer != nil {
				fill = false
				logger.FromContext(ctx, s.log).Warn("cart cache version failed", zap.Int64("user_id", userID), zap.Error(errVer))
			}
		}

		cart, err := s.store.GetOrCreateCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		if fill {
			if errSet := s.cache.Set(ctx, userID, version, cart); errSet != nil {
				logger.FromContext(ctx, s.log).Warn("cart cache set failed", zap.Int64("user_id", userID), zap.Error(errSet))
			}
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem puts quantity units of a product in the cart, merging with an existing
// line for the same product. The merged quantity must fit in current stock.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}

	var cart *domain.Cart
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		product, err := q.GetProduct(ctx, productID)
		if err != nil {
			return err
		}

		current, err := q.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		existing := 0
		for _, item := range current.Items {
			if item.ProductID == productID {
				existing = item.Quantity
			}
		}
		if err := checkStock(product, existing+quantity); err != nil {
			return err
		}

		merged, err := q.MergeCartItem(ctx, current.ID, productID, quantity)
		if err != nil {
			return err
		}
		// a concurrent add may have landed between the read and the upsert
		if err := checkStock(product, merged); err != nil {
			return err
		}

		cart, err = q.GetOrCreateCart(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	invalidateCache(s.cache, s.log, userID)
	return cart, nil
}

// UpdateItem sets a line's quantity; zero or less removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*domain.Cart, error) {
	var cart *domain.Cart
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		current, err := q.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		item, ok := current.FindItem(itemID)
		if !ok {
			return missingItemError(ctx, q, itemID)
		}

		if quantity <= 0 {
			if err := q.DeleteCartItem(ctx, itemID); err != nil {
				return err
			}
		} else {
			product, err := q.GetProduct(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if err := checkStock(product, quantity); err != nil {
				return err
			}
			if err := q.SetCartItemQuantity(ctx, itemID, quantity); err != nil {
				return err
			}
		}

		cart, err = q.GetOrCreateCart(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	invalidateCache(s.cache, s.log, userID)
	return cart, nil
}

// RemoveItem deletes a line from the user's cart. Removing a line that no longer
// exists returns the cart unchanged.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) (*domain.Cart, error) {
	var cart *domain.Cart
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		current, err := q.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		if _, ok := current.FindItem(itemID); !ok {
			err := missingItemError(ctx, q, itemID)
			if errors.Is(err, domain.ErrNotFound) {
				cart = current
				return nil
			}
			return err
		}

		if err := q.DeleteCartItem(ctx, itemID); err != nil {
			return err
		}
		cart, err = q.GetOrCreateCart(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	invalidateCache(s.cache, s.log, userID)
	return cart, nil
}

func (s *CartService) ClearCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	var cart *domain.Cart
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		current, err := q.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		if _, err := q.ClearCart(ctx, current.ID); err != nil {
			return err
		}
		current.Items = []domain.CartItem{}
		cart = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateCache(s.cache, s.log, userID)
	return cart, nil
}

// missingItemError explains why itemID is not in the caller's cart: it belongs
// to someone else, or it does not exist.
func missingItemError(ctx context.Context, q repository.Queries, itemID int64) error {
	if _, err := q.GetCartItem(ctx, itemID); err != nil {
		return err
	}
	return domain.ErrItemNotOwned
}

// invalidateCache drops the cached cart after a committed change. Failures are
// logged only; the entry expires on its own.
func invalidateCache(c CartCache, log *zap.Logger, userID int64) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Delete(ctx, userID); err != nil {
		log.Warn("cart cache invalidate failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
