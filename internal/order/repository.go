package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ordersaga/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Repository is the order ledger. Commit is the only write path; it is
// all-or-nothing.
type Repository interface {
	Commit(ctx context.Context, customerID int64, items []PricedItem, quote PriceQuote) (*Order, error)
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Commit writes the order header, its lines and the stock decrements in one
// transaction. The write is detached from ctx cancellation: once BeginTx
// succeeds the transaction either commits or rolls back on its own terms.
func (r *repository) Commit(
	ctx context.Context,
	customerID int64,
	items []PricedItem,
	quote PriceQuote,
) (*Order, error) {
	const op = "order.Commit"

	log := logger.FromCtx(ctx).With(
		zap.String("method", "Commit"),
		zap.Int64("customer_id", customerID),
		zap.Int("line_count", len(quote.Items)),
	)

	if !quote.TotalAmount.IsPositive() {
		log.Warn("refusing to commit order with non-positive total",
			zap.String("total_amount", quote.TotalAmount.String()),
		)
		return nil, E(KindBusinessRule, op, ErrZeroTotal)
	}
	if len(quote.Items) != len(items) {
		return nil, E(KindBusinessRule, op, ErrQuoteMismatch)
	}

	ctx = context.WithoutCancel(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", pqFields(err)...)
		return nil, E(KindPersistence, op, err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	o := &Order{
		CustomerID:  customerID,
		Subtotal:    quote.Subtotal,
		Discount:    quote.Discount,
		Tax:         quote.Tax,
		TotalAmount: quote.TotalAmount,
		Status:      StatusConfirmed,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			customer_id, subtotal, discount,
			tax, total_amount, status
		) VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`,
		o.CustomerID,
		o.Subtotal,
		o.Discount,
		o.Tax,
		o.TotalAmount,
		string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		log.Error("failed to insert order", pqFields(err)...)
		return nil, E(KindPersistence, op, err)
	}

	names := make(map[int64]string, len(items))
	for _, it := range items {
		names[it.ProductID] = it.ProductName
	}

	o.Lines = make([]OrderLine, 0, len(quote.Items))
	for _, line := range quote.Items {
		ol := OrderLine{
			OrderID:         o.ID,
			ProductID:       line.ProductID,
			ProductName:     names[line.ProductID],
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountedPrice: line.DiscountedPrice,
			DiscountPercent: line.DiscountPercent,
			LineTotal:       line.LineTotal,
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (
				order_id, product_id, quantity, unit_price,
				discounted_price, discount_percentage, line_total
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`,
			ol.OrderID,
			ol.ProductID,
			ol.Quantity,
			ol.UnitPrice,
			ol.DiscountedPrice,
			ol.DiscountPercent,
			ol.LineTotal,
		).Scan(&ol.ID)
		if err != nil {
			log.Error("failed to insert order item",
				append(pqFields(err), zap.Int64("product_id", ol.ProductID))...,
			)
			return nil, E(KindPersistence, op, err)
		}

		o.Lines = append(o.Lines, ol)
	}

	// Stock is re-checked here; a concurrent order may have taken it since
	// the reservation read.
	for _, adj := range StockAdjustments(items) {
		res, err := tx.ExecContext(ctx, `
			UPDATE inventory
			SET quantity_available = quantity_available + $1,
				last_updated = NOW()
			WHERE product_id = $2 AND quantity_available + $1 >= 0
		`, adj.QuantityDelta, adj.ProductID)
		if err != nil {
			log.Error("failed to adjust stock",
				append(pqFields(err), zap.Int64("product_id", adj.ProductID))...,
			)
			return nil, E(KindPersistence, op, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, E(KindPersistence, op, err)
		}
		if n != 1 {
			log.Warn("stock no longer sufficient at commit",
				zap.Int64("product_id", adj.ProductID),
				zap.Int64("quantity_delta", adj.QuantityDelta),
			)
			return nil, E(KindBusinessRule, op,
				fmt.Errorf("%w: product %d", ErrStockConflict, adj.ProductID))
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order transaction", pqFields(err)...)
		return nil, E(KindPersistence, op, err)
	}

	log.Info("order committed",
		zap.Int64("order_id", o.ID),
		zap.String("total_amount", o.TotalAmount.StringFixed(2)),
	)

	return o, nil
}

func (r *repository) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	const op = "order.GetOrder"

	log := logger.FromCtx(ctx).With(
		zap.String("method", "GetOrder"),
		zap.Int64("order_id", orderID),
	)

	var (
		o      Order
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, subtotal, discount, tax,
			total_amount, status, created_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(
		&o.ID, &o.CustomerID, &o.Subtotal, &o.Discount, &o.Tax,
		&o.TotalAmount, &status, &o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("order not found")
		return nil, ErrOrderNotFound
	}
	if err != nil {
		log.Error("failed to query order", pqFields(err)...)
		return nil, E(KindPersistence, op, err)
	}
	o.Status = OrderStatus(status)

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id,
			COALESCE(i.product_name, ''),
			oi.quantity, oi.unit_price, oi.discounted_price,
			oi.discount_percentage, oi.line_total
		FROM order_items oi
		LEFT JOIN inventory i ON i.product_id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		log.Error("failed to query order items", pqFields(err)...)
		return nil, E(KindPersistence, op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(
			&l.ID, &l.OrderID, &l.ProductID, &l.ProductName,
			&l.Quantity, &l.UnitPrice, &l.DiscountedPrice,
			&l.DiscountPercent, &l.LineTotal,
		); err != nil {
			log.Error("failed to scan order item", zap.Error(err))
			return nil, E(KindPersistence, op, err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, E(KindPersistence, op, err)
	}

	return &o, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*Order, error) {
	const op = "order.ListByCustomer"

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, subtotal, discount, tax,
			total_amount, status, created_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list customer orders",
			append(pqFields(err), zap.Int64("customer_id", customerID))...,
		)
		return nil, E(KindPersistence, op, err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		var (
			o      Order
			status string
		)
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &o.Subtotal, &o.Discount, &o.Tax,
			&o.TotalAmount, &status, &o.CreatedAt,
		); err != nil {
			return nil, E(KindPersistence, op, err)
		}
		o.Status = OrderStatus(status)
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, E(KindPersistence, op, err)
	}

	return orders, nil
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// pqFields adds the Postgres error code when the driver reports one.
func pqFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		fields = append(fields,
			zap.String("pg_code", string(pqErr.Code)),
			zap.String("pg_constraint", pqErr.Constraint),
		)
	}
	return fields
}
