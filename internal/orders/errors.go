package orders

import (
	"fmt"

	pkgerrors "github.com/neferdidi/boba-backend/pkg/errors"
)

// RejectKind names why an order was refused.
type RejectKind string

const (
	RejectEmptyOrder         RejectKind = "empty_order"
	RejectOrderingClosed     RejectKind = "ordering_closed"
	RejectProductUnavailable RejectKind = "product_unavailable"
	RejectInvalidQuantity    RejectKind = "invalid_quantity"
)

// OrderError is a business rejection from PlaceOrder. Nothing is written when
// one is returned.
type OrderError struct {
	Kind      RejectKind
	ProductID int64
}

func (e *OrderError) Error() string {
	switch e.Kind {
	case RejectEmptyOrder:
		return "order has no items"
	case RejectOrderingClosed:
		return "ordering is closed"
	case RejectProductUnavailable:
		return fmt.Sprintf("product %d is unavailable", e.ProductID)
	case RejectInvalidQuantity:
		return fmt.Sprintf("invalid quantity for product %d", e.ProductID)
	default:
		return string(e.Kind)
	}
}

// APIError maps the rejection onto the shared error envelope.
func (e *OrderError) APIError() *pkgerrors.Error {
	details := map[string]any{"reason": string(e.Kind)}
	if e.ProductID > 0 {
		details["product_id"] = e.ProductID
	}
	code := pkgerrors.CodeValidation
	if e.Kind == RejectOrderingClosed {
		code = pkgerrors.CodeStateConflict
	}
	return pkgerrors.New(code, e.Error()).WithDetails(details)
}
