package order

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrZeroTotal         = errors.New("quote total amount is zero")
	ErrStockConflict     = errors.New("stock changed before commit")
	ErrQuoteMismatch     = errors.New("quote does not match reserved items")
)

// Kind classifies a failure for the client-fault/server-fault decision.
type Kind string

const (
	KindInput        Kind = "input"
	KindUnavailable  Kind = "collaborator_unavailable"
	KindBusinessRule Kind = "business_rule"
	KindPersistence  Kind = "persistence"
	KindSideEffect   Kind = "side_effect"
)

// ClientFault reports whether a failure of this kind is attributed to the
// request rather than to this service.
func (k Kind) ClientFault() bool {
	return k != KindPersistence && k != ""
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and the operation that produced it.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
// Unclassified errors are treated as persistence faults.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindInput
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// ValidationError names the first offending field. Index is the line item
// position, or -1 for top-level fields.
type ValidationError struct {
	Field  string
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("line_items[%d].%s: %s", e.Index, e.Field, e.Reason)
}
