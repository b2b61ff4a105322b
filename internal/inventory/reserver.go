package inventory

import (
	"context"
	"fmt"

	"ordersaga/internal/logger"
	"ordersaga/internal/order"

	"go.uber.org/zap"
)

type ProductGetter interface {
	GetProduct(ctx context.Context, productID int64) (*Product, error)
}

// Reserver checks stock line by line. It does not hold or decrement
// anything; the decrement happens inside the order commit.
type Reserver struct {
	products ProductGetter
}

func NewReserver(products ProductGetter) *Reserver {
	return &Reserver{products: products}
}

// Reserve returns one PricedItem per requested line in request order, priced
// from inventory. The first unsatisfiable line stops the walk; later lines
// are never queried.
func (r *Reserver) Reserve(ctx context.Context, items []order.RequestedItem) ([]order.PricedItem, error) {
	const op = "inventory.Reserve"

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "inventory"),
		zap.Int("line_count", len(items)),
	)

	priced := make([]order.PricedItem, 0, len(items))
	for i, it := range items {
		p, err := r.products.GetProduct(ctx, it.ProductID)
		if err != nil {
			log.Warn("inventory lookup failed",
				zap.Int("index", i),
				zap.Int64("product_id", it.ProductID),
				zap.Error(err),
			)
			return nil, order.E(kindOf(err), op, err)
		}

		if p.QuantityAvailable < it.Quantity {
			log.Warn("insufficient stock",
				zap.Int64("product_id", it.ProductID),
				zap.Int64("requested", it.Quantity),
				zap.Int64("available", p.QuantityAvailable),
			)
			return nil, order.E(order.KindBusinessRule, op, fmt.Errorf(
				"%w for product %d: available %d, requested %d",
				order.ErrInsufficientStock, it.ProductID, p.QuantityAvailable, it.Quantity,
			))
		}

		priced = append(priced, order.PricedItem{
			ProductID:   it.ProductID,
			ProductName: p.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   p.UnitPrice,
		})
	}

	log.Info("stock confirmed for all lines")
	return priced, nil
}
