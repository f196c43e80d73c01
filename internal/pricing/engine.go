package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/neferdidi/boba-backend/internal/repo"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	"github.com/neferdidi/boba-backend/pkg/logger"
	"gorm.io/gorm"
)

// ToppingLookup maps topping refs to active catalog rows.
type ToppingLookup map[LookupKey]models.Product

// Find resolves a non-inline ref.
func (l ToppingLookup) Find(ref ToppingRef) (models.Product, bool) {
	key, ok := ref.Key()
	if !ok || l == nil {
		return models.Product{}, false
	}
	p, ok := l[key]
	return p, ok
}

// ItemPrice is the priced result for one order line (unit price, before quantity).
type ItemPrice struct {
	Price             float64                  `json:"price"`
	SizePrice         float64                  `json:"size_price"`
	ToppingNames      []string                 `json:"topping_names"`
	ToppingsWithPrice []models.ToppingSnapshot `json:"toppings_with_price"`
}

// Engine prices order lines and performs the batched catalog/item lookups.
type Engine struct {
	repo.Base
	logg *logger.Logger
}

// NewEngine builds a pricing engine bound to the provided DB.
func NewEngine(db *gorm.DB, logg *logger.Logger) *Engine {
	return &Engine{Base: repo.NewBase(db), logg: logg}
}

// WithTx returns an engine reading through the transaction handle.
func (e *Engine) WithTx(tx *gorm.DB) *Engine {
	return &Engine{Base: e.Base.WithTx(tx), logg: e.logg}
}

// CalculateItemPrice prices one unit of product in size with toppings. When
// lookup is nil the engine fetches the referenced toppings itself. Bad size
// data and missing toppings degrade with a warning; only a failed lookup query
// returns an error.
func (e *Engine) CalculateItemPrice(ctx context.Context, product models.Product, size string, toppings []ToppingRef, lookup ToppingLookup) (ItemPrice, error) {
	if lookup == nil && needsLookup(toppings) {
		fetched, err := e.BatchGetToppingProducts(ctx, toppings)
		if err != nil {
			return ItemPrice{}, err
		}
		lookup = fetched
	}

	base := product.Price
	size = strings.TrimSpace(size)
	if size != "" {
		prices, err := ParseSizes(product.Sizes)
		if err != nil {
			e.warn(ctx, "pricing.sizes_malformed", map[string]any{
				"product_id":     product.ID,
				"product_name":   product.Name,
				"requested_size": size,
				"error":          err.Error(),
			})
		}
		if p, ok := prices[size]; ok && p > 0 {
			base = p
		}
	}

	result := ItemPrice{
		SizePrice:         base,
		ToppingNames:      make([]string, 0, len(toppings)),
		ToppingsWithPrice: make([]models.ToppingSnapshot, 0, len(toppings)),
	}
	parts := make([]float64, 0, len(toppings)+1)
	parts = append(parts, base)

	for _, ref := range toppings {
		snap := models.ToppingSnapshot{Name: ref.Label()}
		switch ref.Kind {
		case RefInline:
			snap.Price = ref.Price
		default:
			if topping, ok := lookup.Find(ref); ok {
				snap = models.ToppingSnapshot{Name: topping.Name, Price: topping.Price}
			} else {
				e.warn(ctx, "pricing.topping_missing", map[string]any{
					"topping":      ref.Label(),
					"topping_kind": string(ref.Kind),
					"product_id":   product.ID,
					"product_name": product.Name,
				})
			}
		}
		parts = append(parts, snap.Price)
		result.ToppingNames = append(result.ToppingNames, snap.Name)
		result.ToppingsWithPrice = append(result.ToppingsWithPrice, snap)
	}

	result.Price = Sum(parts...)
	return result, nil
}

// ParseSizes decodes a product's size→price JSON. Numeric strings are accepted;
// other non-numeric values are skipped. Malformed input yields an empty map and
// an error for logging.
func ParseSizes(raw *string) (map[string]float64, error) {
	prices := map[string]float64{}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return prices, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(*raw), &decoded); err != nil {
		return prices, fmt.Errorf("decode sizes: %w", err)
	}
	for name, value := range decoded {
		if d, ok := toDecimal(value); ok {
			prices[name] = d.InexactFloat64()
		}
	}
	return prices, nil
}

// BatchGetToppingProducts fetches every referenced active product in one query.
// Duplicate refs collapse; unmatched or inactive refs are absent from the result.
func (e *Engine) BatchGetToppingProducts(ctx context.Context, refs []ToppingRef) (ToppingLookup, error) {
	lookup := ToppingLookup{}

	var ids []int64
	var names []string
	seen := map[LookupKey]struct{}{}
	for _, ref := range refs {
		key, ok := ref.Key()
		if !ok || key.Value == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if ref.Kind == RefByID {
			ids = append(ids, ref.ID)
		} else {
			names = append(names, ref.Name)
		}
	}
	if len(seen) == 0 {
		return lookup, nil
	}

	q := e.DB(ctx).Where("status = ?", enums.RecordStatusActive)
	switch {
	case len(ids) > 0 && len(names) > 0:
		q = q.Where("(id IN ? OR name IN ?)", ids, names)
	case len(ids) > 0:
		q = q.Where("id IN ?", ids)
	default:
		q = q.Where("name IN ?", names)
	}

	var products []models.Product
	if err := q.Order("id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("batch topping lookup: %w", err)
	}

	for _, p := range products {
		if key, _ := ByID(p.ID).Key(); hasKey(seen, key) {
			lookup[key] = p
		}
		// lowest id wins when several active products share a name
		if key, _ := ByName(p.Name).Key(); hasKey(seen, key) {
			if _, taken := lookup[key]; !taken {
				lookup[key] = p
			}
		}
	}
	return lookup, nil
}

// BatchGetOrderItems loads items for many orders in one query, ordered by
// order_id then id. Every requested id maps to a (possibly empty) list.
func (e *Engine) BatchGetOrderItems(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	grouped := map[string][]models.OrderItem{}
	unique := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		if id == "" {
			continue
		}
		if _, dup := grouped[id]; dup {
			continue
		}
		grouped[id] = []models.OrderItem{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return grouped, nil
	}

	var items []models.OrderItem
	err := e.DB(ctx).
		Where("order_id IN ?", unique).
		Order("order_id ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("batch order items: %w", err)
	}
	for _, item := range items {
		grouped[item.OrderID] = append(grouped[item.OrderID], item)
	}
	return grouped, nil
}

func needsLookup(refs []ToppingRef) bool {
	for _, ref := range refs {
		if ref.Kind != RefInline {
			return true
		}
	}
	return false
}

func hasKey(set map[LookupKey]struct{}, key LookupKey) bool {
	_, ok := set[key]
	return ok
}

func (e *Engine) warn(ctx context.Context, msg string, fields map[string]any) {
	if e.logg == nil {
		return
	}
	e.logg.Warn(e.logg.WithFields(ctx, fields), msg)
}
