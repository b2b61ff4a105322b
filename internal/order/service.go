package order

import (
	"context"

	"ordersaga/internal/logger"

	"go.uber.org/zap"
)

// Service fronts the ledger. Reads go through the cache; a successful commit
// primes it so the first getOrder after creation is served without a query.
type Service interface {
	Commit(ctx context.Context, customerID int64, items []PricedItem, quote PriceQuote) (*Order, error)
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	ListCustomerOrders(ctx context.Context, customerID int64, limit int) ([]*Order, error)
}

type service struct {
	repo  Repository
	cache Cache
}

// NewService wires the ledger with an optional cache; nil disables caching.
func NewService(repo Repository, cache Cache) Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &service{repo: repo, cache: cache}
}

func (s *service) Commit(
	ctx context.Context,
	customerID int64,
	items []PricedItem,
	quote PriceQuote,
) (*Order, error) {
	o, err := s.repo.Commit(ctx, customerID, items, quote)
	if err != nil {
		return nil, err
	}
	o = o.asStored()
	s.cache.Set(context.WithoutCancel(ctx), o)
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "GetOrder"),
		zap.Int64("order_id", orderID),
	)

	if o, ok := s.cache.Get(ctx, orderID); ok {
		log.Debug("order served from cache")
		return o, nil
	}

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, o)
	return o, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, customerID int64, limit int) ([]*Order, error) {
	return s.repo.ListByCustomer(ctx, customerID, limit)
}
