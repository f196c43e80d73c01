package orders

import (
	"context"
	"time"

	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	"github.com/neferdidi/boba-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders and the catalog rows
// they are priced from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, status enums.OrderStatus) error
	FindActiveProducts(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}

// CycleLookup places orders in ordering cycles for read views.
type CycleLookup interface {
	ActiveCycle(ctx context.Context) (*models.OrderingCycle, error)
	LatestEndedCycle(ctx context.Context) (*models.OrderingCycle, error)
	CyclesByID(ctx context.Context, ids []int64) (map[int64]models.OrderingCycle, error)
	FindOrderCycle(ctx context.Context, createdAt time.Time) (*models.OrderingCycle, error)
	FindOrderCyclesBatch(ctx context.Context, times []time.Time) (map[time.Time]models.OrderingCycle, error)
}
