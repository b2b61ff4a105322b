package saga

import (
	"context"
	"sync"
	"time"

	"ordersaga/internal/events"
	"ordersaga/internal/logger"
	"ordersaga/internal/metrics"
	"ordersaga/internal/notification"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var pointsPerUnit = decimal.NewFromInt(10)

// Task is the post-commit work for one order.
type Task struct {
	OrderID     int64
	CustomerID  int64
	TotalAmount decimal.Decimal

	ctx context.Context
}

// LoyaltyPoints is floor(total / 10).
func (t Task) LoyaltyPoints() int64 {
	return t.TotalAmount.Div(pointsPerUnit).Floor().IntPart()
}

type LoyaltyAccruer interface {
	AddLoyaltyPoints(ctx context.Context, customerID, points int64) (int64, error)
}

type Notifier interface {
	Send(ctx context.Context, orderID int64, notificationType string) (string, error)
}

type EventPublisher interface {
	PublishOrderConfirmed(ctx context.Context, ev events.OrderConfirmed) error
}

type DispatcherConfig struct {
	Workers             int
	QueueSize           int
	LoyaltyTimeout      time.Duration
	NotificationTimeout time.Duration
	EventTimeout        time.Duration
}

// Dispatcher runs side effects on a fixed pool of workers. Every failure is
// logged and counted, never returned.
type Dispatcher struct {
	cfg       DispatcherConfig
	loyalty   LoyaltyAccruer
	notifier  Notifier
	publisher EventPublisher
	metrics   *metrics.Registry

	tasks  chan Task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts cfg.Workers goroutines. publisher may be nil.
func NewDispatcher(
	cfg DispatcherConfig,
	loyalty LoyaltyAccruer,
	notifier Notifier,
	publisher EventPublisher,
	reg *metrics.Registry,
) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	d := &Dispatcher{
		cfg:       cfg,
		loyalty:   loyalty,
		notifier:  notifier,
		publisher: publisher,
		metrics:   reg,
		tasks:     make(chan Task, cfg.QueueSize),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

// AfterCommit queues t without blocking. When the queue is full, or the
// dispatcher is closed, the task is dropped with a warning.
func (d *Dispatcher) AfterCommit(ctx context.Context, t Task) {
	t.ctx = detach(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.closed {
		select {
		case d.tasks <- t:
			return
		default:
		}
	}

	d.metrics.Counter("side_effects_dropped").Inc()
	logger.FromCtx(ctx).Warn("side effects dropped",
		zap.Int64("order_id", t.OrderID),
		zap.Bool("closed", d.closed),
	)
}

// Close stops intake and waits for queued tasks to finish or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.run(t)
	}
}

func (d *Dispatcher) run(t Task) {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "side_effects"),
		zap.Int64("order_id", t.OrderID),
		zap.Int64("customer_id", t.CustomerID),
	)

	if points := t.LoyaltyPoints(); points > 0 {
		d.call(ctx, d.cfg.LoyaltyTimeout, func(ctx context.Context) error {
			total, err := d.loyalty.AddLoyaltyPoints(ctx, t.CustomerID, points)
			if err != nil {
				log.Warn("loyalty accrual failed", zap.Int64("points", points), zap.Error(err))
				return err
			}
			log.Info("loyalty points added", zap.Int64("points", points), zap.Int64("total_points", total))
			return nil
		})
	} else {
		log.Debug("loyalty accrual skipped", zap.Int64("points", points))
	}

	d.call(ctx, d.cfg.NotificationTimeout, func(ctx context.Context) error {
		id, err := d.notifier.Send(ctx, t.OrderID, notification.TypeOrderConfirmation)
		if err != nil {
			log.Warn("notification failed", zap.Error(err))
			return err
		}
		log.Info("notification sent", zap.String("notification_id", id))
		return nil
	})

	if d.publisher == nil {
		return
	}
	d.call(ctx, d.cfg.EventTimeout, func(ctx context.Context) error {
		err := d.publisher.PublishOrderConfirmed(ctx, events.OrderConfirmed{
			OrderID:     t.OrderID,
			CustomerID:  t.CustomerID,
			TotalAmount: t.TotalAmount.StringFixed(2),
		})
		if err != nil {
			log.Warn("order event publish failed", zap.Error(err))
		}
		return err
	})
}

// call bounds fn by timeout and counts its failure. A panic inside fn
// counts as a failure.
func (d *Dispatcher) call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			d.metrics.Counter("side_effects_failed").Inc()
			logger.FromCtx(ctx).Error("side effect panicked", zap.Any("panic", p))
		}
	}()

	if err := fn(ctx); err != nil {
		d.metrics.Counter("side_effects_failed").Inc()
	}
}

// detach keeps request id and trace linkage but drops the request's
// cancellation and deadline.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
