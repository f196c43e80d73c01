package orders

import (
	"github.com/neferdidi/boba-backend/internal/pricing"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	"github.com/neferdidi/boba-backend/pkg/pagination"
)

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID  int64                `json:"product_id" validate:"required,gt=0"`
	Quantity   int                  `json:"quantity" validate:"required"`
	Size       string               `json:"size,omitempty" validate:"omitempty,max=32"`
	SugarLevel string               `json:"sugar_level,omitempty" validate:"omitempty,max=32"`
	IceLevel   string               `json:"ice_level,omitempty" validate:"omitempty,max=32"`
	Toppings   []pricing.ToppingRef `json:"toppings,omitempty" validate:"max=20"`
}

// PlaceOrderInput carries a customer order. Prices are always recomputed from
// the catalog; the client never supplies amounts.
type PlaceOrderInput struct {
	UserID        *string     `json:"-"`
	CustomerName  string      `json:"customer_name" validate:"omitempty,max=64"`
	CustomerPhone string      `json:"customer_phone" validate:"omitempty,max=32"`
	Notes         string      `json:"notes" validate:"omitempty,max=500"`
	Items         []ItemInput `json:"items" validate:"dive"`
}

// ListFilters narrow the admin and customer order lists.
type ListFilters struct {
	Status        *enums.OrderStatus
	CycleID       *int64
	UserID        *string
	CustomerPhone string
}

type ListParams struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// OrderView is an order decorated with its items and cycle placement.
type OrderView struct {
	models.Order
	Items         []models.OrderItem    `json:"items"`
	Cycle         *models.OrderingCycle `json:"cycle"`
	IsActiveCycle bool                  `json:"is_active_cycle"`
	Expired       bool                  `json:"expired"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}
