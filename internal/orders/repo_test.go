package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neferdidi/boba-backend/pkg/db/dbtest"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	"github.com/neferdidi/boba-backend/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedOrder(t *testing.T, db *gorm.DB, n int, at time.Time, status enums.OrderStatus, phone string) models.Order {
	t.Helper()
	o := models.Order{
		ID:          uuid.NewString(),
		OrderNumber: fmt.Sprintf("BO%08dXYZ", n),
		TotalAmount: 10,
		FinalAmount: 10,
		Status:      status,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if phone != "" {
		o.CustomerPhone = &phone
	}
	require.NoError(t, db.Create(&o).Error)
	return o
}

func TestRepositoryCreatePersistsItems(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	size := "large"
	order := &models.Order{
		ID:          uuid.NewString(),
		OrderNumber: "BO12345678ABC",
		TotalAmount: 31,
		FinalAmount: 31,
		Status:      enums.OrderStatusPending,
		Items: []models.OrderItem{{
			ProductID:    1,
			ProductName:  "Milk Tea",
			ProductPrice: 31,
			Quantity:     1,
			Subtotal:     31,
			Size:         &size,
			SizePrice:    30,
			Toppings:     []models.ToppingSnapshot{{Name: "Pearls", Price: 1}},
		}},
	}
	require.NoError(t, repo.Create(ctx, order))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BO12345678ABC", got.OrderNumber)

	var items []models.OrderItem
	require.NoError(t, client.DB().Where("order_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, []models.ToppingSnapshot{{Name: "Pearls", Price: 1}}, items[0].Toppings)

	missing, err := repo.FindByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryListFiltersAndCursor(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	a := seedOrder(t, client.DB(), 1, base, enums.OrderStatusPending, "111")
	b := seedOrder(t, client.DB(), 2, base.Add(time.Minute), enums.OrderStatusPaid, "222")
	c := seedOrder(t, client.DB(), 3, base.Add(2*time.Minute), enums.OrderStatusPending, "111")

	all, err := repo.List(ctx, ListFilters{}, 10, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	pending := enums.OrderStatusPending
	filtered, err := repo.List(ctx, ListFilters{Status: &pending, CustomerPhone: "111"}, 10, nil)
	require.NoError(t, err)
	require.Len(t, filtered, 2)

	after, err := repo.List(ctx, ListFilters{}, 10, &pagination.Cursor{CreatedAt: b.CreatedAt, ID: b.ID})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, a.ID, after[0].ID)
}

func TestRepositoryUpdateStatusAndProducts(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	o := seedOrder(t, client.DB(), 1, time.Now().UTC(), enums.OrderStatusPending, "")
	require.NoError(t, repo.UpdateStatus(ctx, o.ID, enums.OrderStatusPaid))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.NewString(), enums.OrderStatusPaid), gorm.ErrRecordNotFound)

	active := models.Product{Name: "Tea", Price: 20, Status: enums.RecordStatusActive}
	inactive := models.Product{Name: "Old", Price: 20, Status: enums.RecordStatusInactive}
	require.NoError(t, client.DB().Create(&active).Error)
	require.NoError(t, client.DB().Create(&inactive).Error)

	products, err := repo.FindActiveProducts(ctx, []int64{active.ID, inactive.ID, 999})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Tea", products[active.ID].Name)

	empty, err := repo.FindActiveProducts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
