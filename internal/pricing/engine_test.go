package pricing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/neferdidi/boba-backend/pkg/db/dbtest"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func mustCreateProduct(t *testing.T, db *gorm.DB, name string, price float64, sizes *string, status enums.RecordStatus) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: price, Sizes: sizes, Status: status}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestCalculateItemPriceSizes(t *testing.T) {
	engine := NewEngine(nil, nil)
	ctx := context.Background()
	product := models.Product{ID: 1, Name: "Milk Tea", Price: 100, Sizes: strPtr(`{"large":150,"small":"80"}`)}

	got, err := engine.CalculateItemPrice(ctx, product, "large", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Price)
	assert.Equal(t, 150.0, got.SizePrice)
	assert.Empty(t, got.ToppingNames)

	got, err = engine.CalculateItemPrice(ctx, product, "medium", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Price, "unknown size falls back to flat price")

	got, err = engine.CalculateItemPrice(ctx, product, "small", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.Price)

	got, err = engine.CalculateItemPrice(ctx, product, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Price)
}

func TestCalculateItemPriceMalformedSizesDegrades(t *testing.T) {
	engine := NewEngine(nil, nil)
	product := models.Product{ID: 2, Name: "Broken", Price: 42.5, Sizes: strPtr(`{"large":`)}

	got, err := engine.CalculateItemPrice(context.Background(), product, "large", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.Price)

	prices, err := ParseSizes(product.Sizes)
	assert.Error(t, err)
	assert.Empty(t, prices)
}

func TestCalculateItemPriceInlineToppingsNeedNoStore(t *testing.T) {
	engine := NewEngine(nil, nil)
	product := models.Product{ID: 3, Name: "Green Tea", Price: 0.1}

	got, err := engine.CalculateItemPrice(context.Background(), product, "", []ToppingRef{Inline("Foam", 0.2)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.3, got.Price)
	assert.Equal(t, []string{"Foam"}, got.ToppingNames)
}

func TestCalculateItemPriceResolvesToppings(t *testing.T) {
	client := dbtest.Open(t)
	db := client.DB()
	ctx := context.Background()

	drink := mustCreateProduct(t, db, "Milk Tea", 100, strPtr(`{"large":150}`), enums.RecordStatusActive)
	pearls := mustCreateProduct(t, db, "Pearls", 10, nil, enums.RecordStatusActive)
	mustCreateProduct(t, db, "Pudding", 12, nil, enums.RecordStatusInactive)

	engine := NewEngine(db, nil)
	refs := []ToppingRef{ByID(pearls.ID), ByName("Pudding"), Inline("Cheese foam", 15.5), ByID(9999)}

	got, err := engine.CalculateItemPrice(ctx, drink, "large", refs, nil)
	require.NoError(t, err)
	assert.Equal(t, 175.5, got.Price)
	assert.Equal(t, 150.0, got.SizePrice)
	assert.Equal(t, []string{"Pearls", "Pudding", "Cheese foam", "9999"}, got.ToppingNames)
	assert.Equal(t, models.ToppingSnapshot{Name: "Pudding", Price: 0}, got.ToppingsWithPrice[1], "inactive topping keeps its label at zero price")

	// a supplied lookup is used as-is
	got, err = engine.CalculateItemPrice(ctx, drink, "", []ToppingRef{ByID(pearls.ID)}, ToppingLookup{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Price)
}

func TestBatchGetToppingProductsCollapsesDuplicates(t *testing.T) {
	client := dbtest.Open(t)
	db := client.DB()
	first := mustCreateProduct(t, db, "Pearls", 10, nil, enums.RecordStatusActive)
	require.Equal(t, int64(1), first.ID)

	var refs []ToppingRef
	require.NoError(t, json.Unmarshal([]byte(`["1","1","1"]`), &refs))

	lookup, err := NewEngine(db, nil).BatchGetToppingProducts(context.Background(), refs)
	require.NoError(t, err)
	assert.Len(t, lookup, 1)

	p, ok := lookup.Find(ByID(1))
	require.True(t, ok)
	assert.Equal(t, "Pearls", p.Name)
}

func TestBatchGetToppingProductsByIDAndName(t *testing.T) {
	client := dbtest.Open(t)
	db := client.DB()
	pearls := mustCreateProduct(t, db, "Pearls", 10, nil, enums.RecordStatusActive)
	mustCreateProduct(t, db, "Pearls", 11, nil, enums.RecordStatusActive)
	mustCreateProduct(t, db, "Retired", 5, nil, enums.RecordStatusInactive)

	lookup, err := NewEngine(db, nil).BatchGetToppingProducts(context.Background(),
		[]ToppingRef{ByID(pearls.ID), ByName("Pearls"), ByName("Retired"), ByName("Nope"), Inline("x", 1)})
	require.NoError(t, err)
	assert.Len(t, lookup, 2)

	byName, ok := lookup.Find(ByName("Pearls"))
	require.True(t, ok)
	assert.Equal(t, pearls.ID, byName.ID, "lowest id wins for a shared name")

	_, ok = lookup.Find(ByName("Retired"))
	assert.False(t, ok)

	empty, err := NewEngine(db, nil).BatchGetToppingProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBatchGetOrderItems(t *testing.T) {
	client := dbtest.Open(t)
	db := client.DB()
	ctx := context.Background()

	orderA := models.Order{ID: uuid.NewString(), OrderNumber: "BO00000001AAA", TotalAmount: 30, FinalAmount: 30, Status: enums.OrderStatusPending}
	orderB := models.Order{ID: uuid.NewString(), OrderNumber: "BO00000002BBB", TotalAmount: 0, FinalAmount: 0, Status: enums.OrderStatusPending}
	require.NoError(t, db.Create(&orderA).Error)
	require.NoError(t, db.Create(&orderB).Error)

	items := []models.OrderItem{
		{OrderID: orderA.ID, ProductID: 1, ProductName: "Milk Tea", ProductPrice: 10, Quantity: 1, Subtotal: 10, Toppings: []models.ToppingSnapshot{{Name: "Pearls", Price: 0}}},
		{OrderID: orderA.ID, ProductID: 2, ProductName: "Green Tea", ProductPrice: 10, Quantity: 2, Subtotal: 20},
	}
	require.NoError(t, db.Create(&items).Error)

	grouped, err := NewEngine(db, nil).BatchGetOrderItems(ctx, []string{orderA.ID, orderB.ID, orderA.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, grouped, 3)

	require.Len(t, grouped[orderA.ID], 2)
	assert.Equal(t, "Milk Tea", grouped[orderA.ID][0].ProductName)
	assert.Equal(t, "Green Tea", grouped[orderA.ID][1].ProductName)
	assert.Equal(t, []models.ToppingSnapshot{{Name: "Pearls", Price: 0}}, grouped[orderA.ID][0].Toppings)

	assert.NotNil(t, grouped[orderB.ID])
	assert.Empty(t, grouped[orderB.ID])
	assert.NotNil(t, grouped["missing"])
	assert.Empty(t, grouped["missing"])

	empty, err := NewEngine(db, nil).BatchGetOrderItems(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
