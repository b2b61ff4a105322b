package saga

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ordersaga/internal/logger"
	"ordersaga/internal/metrics"
	"ordersaga/internal/order"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Stage tags which step rejected an order. Validation failures carry no tag.
type Stage string

const (
	StageValidation Stage = ""
	StageInventory  Stage = "inventory_check"
	StagePricing    Stage = "pricing_calculation"
	StageCommit     Stage = "database_save"
)

type State string

const (
	StateValidating  State = "validating"
	StateReserving   State = "reserving"
	StateQuoting     State = "quoting"
	StateCommitting  State = "committing"
	StateDispatching State = "dispatching"
	StateDone        State = "done"
	StateRejected    State = "rejected"
)

type StockReserver interface {
	Reserve(ctx context.Context, items []order.RequestedItem) ([]order.PricedItem, error)
}

type PriceQuoter interface {
	Quote(ctx context.Context, items []order.PricedItem, region string) (order.PriceQuote, error)
}

type Ledger interface {
	Commit(ctx context.Context, customerID int64, items []order.PricedItem, quote order.PriceQuote) (*order.Order, error)
}

// SideEffects receives committed orders. AfterCommit must not block and
// must not report failure.
type SideEffects interface {
	AfterCommit(ctx context.Context, t Task)
}

// Result is the Done state.
type Result struct {
	Order   *order.Order
	Items   []order.PricedItem
	Quote   order.PriceQuote
	History []State
}

// Rejection is the Rejected state. Nothing is persisted when a Rejection is
// returned.
type Rejection struct {
	Stage   Stage
	Err     error
	History []State
}

func (r *Rejection) Error() string {
	if r.Stage == StageValidation {
		return r.Err.Error()
	}
	return fmt.Sprintf("%s: %v", r.Stage, r.Err)
}

func (r *Rejection) Unwrap() error { return r.Err }

func (r *Rejection) ClientFault() bool {
	return order.KindOf(r.Err).ClientFault()
}

// StatusCode maps the failure kind onto HTTP: the request's fault is 400,
// ours is 500.
func (r *Rejection) StatusCode() int {
	if r.ClientFault() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type Saga struct {
	reserver StockReserver
	quoter   PriceQuoter
	ledger   Ledger
	effects  SideEffects
	metrics  *metrics.Registry
	tracer   trace.Tracer
}

func New(
	reserver StockReserver,
	quoter PriceQuoter,
	ledger Ledger,
	effects SideEffects,
	reg *metrics.Registry,
) *Saga {
	return &Saga{
		reserver: reserver,
		quoter:   quoter,
		ledger:   ledger,
		effects:  effects,
		metrics:  reg,
		tracer:   otel.Tracer("ordersaga/saga"),
	}
}

// run is the state of one CreateOrder call.
type run struct {
	s       *Saga
	log     *zap.Logger
	history []State
}

func (r *run) enter(st State) {
	r.history = append(r.history, st)
	r.log.Debug("saga transition", zap.String("state", string(st)))
}

func (r *run) reject(span trace.Span, stage Stage, err error) *Rejection {
	r.enter(StateRejected)

	// Reservation and pricing failures are never ours to own, even when a
	// collaborator client returns an unclassified error.
	if stage == StageInventory || stage == StagePricing {
		var oe *order.Error
		if !errors.As(err, &oe) {
			err = order.E(order.KindUnavailable, string(stage), err)
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, string(stage))

	label := string(stage)
	if label == "" {
		label = "validation"
	}
	r.s.metrics.Counter("orders_rejected", attribute.String("stage", label)).Inc()

	kind := order.KindOf(err)
	fields := []zap.Field{
		zap.String("stage", label),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if kind.ClientFault() {
		r.log.Warn("order rejected", fields...)
	} else {
		r.log.Error("order rejected", fields...)
	}

	return &Rejection{Stage: stage, Err: err, History: r.history}
}

// CreateOrder drives one order through
// validating, reserving, quoting, committing and dispatching. Stages run
// strictly in sequence and nothing is retried. The error is always a
// *Rejection.
func (s *Saga) CreateOrder(ctx context.Context, in order.CreateOrderInput) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "saga.CreateOrder")
	defer span.End()

	r := &run{
		s:   s,
		log: logger.FromCtx(ctx).With(zap.String("layer", "saga")),
	}
	total := metrics.StartTimer()
	defer s.metrics.Observe("saga_total", total)

	r.enter(StateValidating)
	req, err := order.Validate(in)
	if err != nil {
		return nil, r.reject(span, StageValidation, err)
	}
	span.SetAttributes(
		attribute.Int64("order.customer_id", req.CustomerID),
		attribute.Int("order.line_count", len(req.LineItems)),
	)
	r.log = r.log.With(zap.Int64("customer_id", req.CustomerID))

	r.enter(StateReserving)
	items, err := stage(ctx, s, StageInventory, func(ctx context.Context) ([]order.PricedItem, error) {
		return s.reserver.Reserve(ctx, req.LineItems)
	})
	if err != nil {
		return nil, r.reject(span, StageInventory, err)
	}

	r.enter(StateQuoting)
	quote, err := stage(ctx, s, StagePricing, func(ctx context.Context) (order.PriceQuote, error) {
		return s.quoter.Quote(ctx, items, req.Region)
	})
	if err != nil {
		return nil, r.reject(span, StagePricing, err)
	}

	r.enter(StateCommitting)
	o, err := stage(ctx, s, StageCommit, func(ctx context.Context) (*order.Order, error) {
		return s.ledger.Commit(ctx, req.CustomerID, items, quote)
	})
	if err != nil {
		return nil, r.reject(span, StageCommit, err)
	}
	span.SetAttributes(attribute.Int64("order.id", o.ID))

	r.enter(StateDispatching)
	if s.effects != nil {
		s.effects.AfterCommit(ctx, Task{
			OrderID:     o.ID,
			CustomerID:  o.CustomerID,
			TotalAmount: o.TotalAmount,
		})
	}

	r.enter(StateDone)
	s.metrics.Counter("orders_confirmed").Inc()
	r.log.Info("order confirmed",
		zap.Int64("order_id", o.ID),
		zap.String("total_amount", o.TotalAmount.StringFixed(2)),
	)

	return &Result{Order: o, Items: items, Quote: quote, History: r.history}, nil
}

// stage runs fn inside its own span and latency series.
func stage[T any](ctx context.Context, s *Saga, st Stage, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "saga."+string(st))
	defer span.End()

	t := metrics.StartTimer()
	v, err := fn(ctx)
	s.metrics.Observe("saga_stage", t, attribute.String("stage", string(st)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}
