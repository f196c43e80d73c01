package orders

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neferdidi/boba-backend/internal/cycles"
	"github.com/neferdidi/boba-backend/internal/pricing"
	"github.com/neferdidi/boba-backend/internal/settings"
	"github.com/neferdidi/boba-backend/pkg/db"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	pkgerrors "github.com/neferdidi/boba-backend/pkg/errors"
	"github.com/neferdidi/boba-backend/pkg/logger"
	"github.com/neferdidi/boba-backend/pkg/metrics"
	"github.com/neferdidi/boba-backend/pkg/pagination"
	"gorm.io/gorm"
)

const (
	maxOrderNumberAttempts = 3
	maxItemQuantity        = 99
	orderNumberSavepoint   = "order_number"
	orderNumberAlphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo     Repository
	Cycles   cycles.Repository
	Lookup   CycleLookup
	Settings *settings.Repository
	Pricing  *pricing.Engine
	TxRunner txRunner
	Logger   *logger.Logger
	Metrics  *metrics.OrderingMetrics
	Now      func() time.Time
}

// Service places, lists and updates orders.
type Service struct {
	repo     Repository
	cycles   cycles.Repository
	lookup   CycleLookup
	settings *settings.Repository
	pricing  *pricing.Engine
	tx       txRunner
	logg     *logger.Logger
	metrics  *metrics.OrderingMetrics
	now      func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Cycles == nil {
		return nil, fmt.Errorf("cycles repository required")
	}
	if params.Lookup == nil {
		return nil, fmt.Errorf("cycle lookup required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if params.Pricing == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     params.Repo,
		cycles:   params.Cycles,
		lookup:   params.Lookup,
		settings: params.Settings,
		pricing:  params.Pricing,
		tx:       params.TxRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// PlaceOrder prices and stores an order in the active cycle. Business
// rejections come back as *OrderError with nothing written.
func (s *Service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if rejection := validateItems(input.Items); rejection != nil {
		return nil, s.reject(ctx, rejection)
	}

	var order *models.Order
	var rejection *OrderError
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		open, err := s.settings.WithTx(tx).OrderingOpen(ctx)
		if err != nil {
			return err
		}
		cycleRepo := s.cycles.WithTx(tx)
		active, err := cycleRepo.FindActive(ctx)
		if err != nil {
			return err
		}
		if !open || active == nil {
			rejection = &OrderError{Kind: RejectOrderingClosed}
			return rejection
		}

		repo := s.repo.WithTx(tx)
		products, err := repo.FindActiveProducts(ctx, productIDs(input.Items))
		if err != nil {
			return err
		}
		for _, item := range input.Items {
			if _, ok := products[item.ProductID]; !ok {
				rejection = &OrderError{Kind: RejectProductUnavailable, ProductID: item.ProductID}
				return rejection
			}
		}

		engine := s.pricing.WithTx(tx)
		var refs []pricing.ToppingRef
		for _, item := range input.Items {
			refs = append(refs, item.Toppings...)
		}
		lookup, err := engine.BatchGetToppingProducts(ctx, refs)
		if err != nil {
			return err
		}

		built, err := s.buildOrder(ctx, engine, input, products, lookup)
		if err != nil {
			return err
		}
		built.CycleID = &active.ID

		if err := s.insertWithNumber(ctx, tx, repo, built); err != nil {
			return err
		}
		if err := cycleRepo.AddToTotal(ctx, active.ID, built.TotalAmount); err != nil {
			return err
		}
		order = built
		return nil
	})
	if rejection != nil {
		return nil, s.reject(ctx, rejection)
	}
	if err != nil {
		s.logg.Error(ctx, "place order failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransaction, err, "place order failed")
	}

	s.metrics.IncPlaced()
	s.logg.Info(s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID), map[string]any{
		"order_number": order.OrderNumber,
		"cycle_id":     *order.CycleID,
		"total_amount": order.TotalAmount,
	}), "order placed")
	return order, nil
}

func (s *Service) buildOrder(ctx context.Context, engine *pricing.Engine, input PlaceOrderInput, products map[int64]models.Product, lookup pricing.ToppingLookup) (*models.Order, error) {
	now := s.now().UTC()
	order := &models.Order{
		ID:            uuid.NewString(),
		UserID:        input.UserID,
		CustomerName:  optional(input.CustomerName),
		CustomerPhone: optional(input.CustomerPhone),
		Notes:         optional(input.Notes),
		Status:        enums.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	subtotals := make([]float64, 0, len(input.Items))
	for _, item := range input.Items {
		product := products[item.ProductID]
		price, err := engine.CalculateItemPrice(ctx, product, item.Size, item.Toppings, lookup)
		if err != nil {
			return nil, err
		}
		subtotal := pricing.Multiply(price.Price, item.Quantity)
		subtotals = append(subtotals, subtotal)
		order.Items = append(order.Items, models.OrderItem{
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductPrice: price.Price,
			Quantity:     item.Quantity,
			Subtotal:     subtotal,
			Size:         optional(item.Size),
			SizePrice:    price.SizePrice,
			SugarLevel:   optional(item.SugarLevel),
			IceLevel:     optional(item.IceLevel),
			Toppings:     price.ToppingsWithPrice,
			CreatedAt:    now,
		})
	}

	order.TotalAmount = pricing.Sum(subtotals...)
	order.FinalAmount = order.TotalAmount
	return order, nil
}

// insertWithNumber retries on order number collisions inside a savepoint so the
// surrounding transaction stays usable.
func (s *Service) insertWithNumber(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	var err error
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = s.newOrderNumber()
		if spErr := tx.SavePoint(orderNumberSavepoint).Error; spErr != nil {
			return spErr
		}
		err = repo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if rbErr := tx.RollbackTo(orderNumberSavepoint).Error; rbErr != nil {
			return rbErr
		}
		if !db.IsUniqueViolation(err, "order_number") {
			return err
		}
		for i := range order.Items {
			order.Items[i].ID = 0
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt+1), "order number collision; regenerating")
	}
	return fmt.Errorf("allocate order number: %w", err)
}

// GetOrder returns one order with its items and cycle placement.
func (s *Service) GetOrder(ctx context.Context, id string) (*OrderView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.decorateOne(ctx, *order)
}

// ListOrders pages through orders newest first.
func (s *Service) ListOrders(ctx context.Context, params ListParams) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Filters.Status != nil && !params.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	rows, err := s.repo.List(ctx, params.Filters, pagination.LimitWithBuffer(params.Pagination.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Page(rows, params.Pagination.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})

	views, err := s.decorate(ctx, rows)
	if err != nil {
		return nil, err
	}
	out := &OrderList{Orders: views}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// placement is the cycle context order views are judged against.
type placement struct {
	active      *models.OrderingCycle
	latestEnded *models.OrderingCycle
	stored      map[int64]models.OrderingCycle
}

func (s *Service) loadPlacement(ctx context.Context, rows []models.Order) (placement, error) {
	var p placement
	var err error
	if p.active, err = s.lookup.ActiveCycle(ctx); err != nil {
		return p, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cycle")
	}
	if p.latestEnded, err = s.lookup.LatestEndedCycle(ctx); err != nil {
		return p, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest ended cycle")
	}
	var ids []int64
	for _, o := range rows {
		if o.CycleID != nil {
			ids = append(ids, *o.CycleID)
		}
	}
	if p.stored, err = s.lookup.CyclesByID(ctx, ids); err != nil {
		return p, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order cycles")
	}
	return p, nil
}

func (p placement) view(o models.Order, items []models.OrderItem, classified *models.OrderingCycle) OrderView {
	v := OrderView{Order: o, Items: items}
	if o.CycleID != nil {
		if c, ok := p.stored[*o.CycleID]; ok {
			v.Cycle = &c
		}
	} else {
		v.Cycle = classified
	}
	v.IsActiveCycle = v.Cycle != nil && cycles.IsActiveCycle(v.Cycle, p.active)
	v.Expired = cycles.IsOrderExpired(o, p.active, p.latestEnded)
	return v
}

// decorate attaches items, the owning cycle and the expiry flag. The stored
// cycle_id wins; orders without one are classified by creation time.
func (s *Service) decorate(ctx context.Context, rows []models.Order) ([]OrderView, error) {
	views := make([]OrderView, 0, len(rows))
	if len(rows) == 0 {
		return views, nil
	}

	ids := make([]string, 0, len(rows))
	var unassigned []time.Time
	for _, o := range rows {
		ids = append(ids, o.ID)
		if o.CycleID == nil {
			unassigned = append(unassigned, o.CreatedAt)
		}
	}
	items, err := s.pricing.BatchGetOrderItems(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	p, err := s.loadPlacement(ctx, rows)
	if err != nil {
		return nil, err
	}
	classified, err := s.lookup.FindOrderCyclesBatch(ctx, unassigned)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "classify orders")
	}

	for _, o := range rows {
		var owner *models.OrderingCycle
		if c, ok := classified[o.CreatedAt.UTC()]; ok && o.CycleID == nil {
			owner = &c
		}
		views = append(views, p.view(o, items[o.ID], owner))
	}
	return views, nil
}

// decorateOne is decorate for a single order.
func (s *Service) decorateOne(ctx context.Context, o models.Order) (*OrderView, error) {
	items, err := s.pricing.BatchGetOrderItems(ctx, []string{o.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	p, err := s.loadPlacement(ctx, []models.Order{o})
	if err != nil {
		return nil, err
	}
	var owner *models.OrderingCycle
	if o.CycleID == nil {
		if owner, err = s.lookup.FindOrderCycle(ctx, o.CreatedAt); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "classify order")
		}
	}
	v := p.view(o, items[o.ID], owner)
	return &v, nil
}

// UpdateStatus changes an order's status. Cancelled orders are final, and
// cancelling an order in the active cycle takes it out of the running total.
func (s *Service) UpdateStatus(ctx context.Context, id string, raw string) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	status, err := enums.ParseOrderStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
	}
	ctx = s.logg.WithOrderID(ctx, id)

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == status {
			updated = order
			return nil
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.StateConflict("order_cancelled", "cancelled orders cannot change status")
		}

		if err := repo.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		if status == enums.OrderStatusCancelled && order.CycleID != nil {
			cycleRepo := s.cycles.WithTx(tx)
			active, err := cycleRepo.FindActive(ctx)
			if err != nil {
				return err
			}
			if active != nil && active.ID == *order.CycleID {
				if err := cycleRepo.AddToTotal(ctx, active.ID, -order.TotalAmount); err != nil {
					return err
				}
			}
		}
		order.Status = status
		updated = order
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		s.logg.Error(ctx, "update order status failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransaction, err, "update order status failed")
	}
	return updated, nil
}

func (s *Service) reject(ctx context.Context, rejection *OrderError) error {
	s.metrics.IncRejected(string(rejection.Kind))
	fields := map[string]any{"reason": string(rejection.Kind)}
	if rejection.ProductID > 0 {
		fields["product_id"] = rejection.ProductID
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "order rejected")
	return rejection
}

// newOrderNumber is BO, the last 8 digits of the unix millis, and 3 random
// uppercase base36 characters.
func (s *Service) newOrderNumber() string {
	millis := strconv.FormatInt(s.now().UnixMilli(), 10)
	if len(millis) > 8 {
		millis = millis[len(millis)-8:]
	}
	var b strings.Builder
	b.WriteString("BO")
	b.WriteString(millis)
	for i := 0; i < 3; i++ {
		b.WriteByte(orderNumberAlphabet[rand.IntN(len(orderNumberAlphabet))])
	}
	return b.String()
}

func validateItems(items []ItemInput) *OrderError {
	if len(items) == 0 {
		return &OrderError{Kind: RejectEmptyOrder}
	}
	for _, item := range items {
		if item.ProductID <= 0 {
			return &OrderError{Kind: RejectProductUnavailable, ProductID: item.ProductID}
		}
		if item.Quantity <= 0 || item.Quantity > maxItemQuantity {
			return &OrderError{Kind: RejectInvalidQuantity, ProductID: item.ProductID}
		}
	}
	return nil
}

func productIDs(items []ItemInput) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// IsRejection reports whether err is a business rejection from PlaceOrder.
func IsRejection(err error) (*OrderError, bool) {
	var rejection *OrderError
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}
