package cycles

import (
	"context"

	"github.com/neferdidi/boba-backend/internal/pricing"
	"github.com/neferdidi/boba-backend/internal/repo"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	"gorm.io/gorm"
)

// OrderStats aggregates a cycle's orders.
type OrderStats struct {
	TotalOrders      int64   `json:"total_orders"`
	TotalAmount      float64 `json:"total_amount"`
	TotalDiscount    float64 `json:"total_discount"`
	TotalFinalAmount float64 `json:"total_final_amount"`
	PendingCount     int64   `json:"pending_count"`
	PaidCount        int64   `json:"paid_count"`
	CompletedCount   int64   `json:"completed_count"`
	CancelledCount   int64   `json:"cancelled_count"`
}

// Repository defines persistence operations for ordering cycles and the orders
// they own.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActive(ctx context.Context) (*models.OrderingCycle, error)
	FindLatestEnded(ctx context.Context) (*models.OrderingCycle, error)
	FindByID(ctx context.Context, id int64) (*models.OrderingCycle, error)
	FindByIDs(ctx context.Context, ids []int64) ([]models.OrderingCycle, error)
	ListAll(ctx context.Context) ([]models.OrderingCycle, error)
	ListRecent(ctx context.Context, limit int) ([]models.OrderingCycle, error)
	Create(ctx context.Context, cycle *models.OrderingCycle) error
	Update(ctx context.Context, id int64, updates map[string]any) error
	AddToTotal(ctx context.Context, id int64, amount float64) error
	ListOrphanOrders(ctx context.Context) ([]models.Order, error)
	AssignOrders(ctx context.Context, cycleID int64, orderIDs []string) error
	ListPendingOrders(ctx context.Context, cycleID int64) ([]models.Order, error)
	UpdateOrderAmounts(ctx context.Context, orderID string, discount, final float64) error
	CancelPendingOrders(ctx context.Context, cycleID int64) (int64, error)
	CountOrders(ctx context.Context, cycleID int64) (int64, error)
	SumLiveOrderTotals(ctx context.Context, cycleID int64) (float64, error)
	OrderStats(ctx context.Context, cycleID int64) (OrderStats, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a cycles repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) FindActive(ctx context.Context) (*models.OrderingCycle, error) {
	return r.first(r.DB(ctx).Where("status = ?", enums.CycleStatusActive).Order("id DESC"))
}

func (r *repository) FindLatestEnded(ctx context.Context) (*models.OrderingCycle, error) {
	return r.first(r.DB(ctx).Where("status = ?", enums.CycleStatusEnded).Order("id DESC"))
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.OrderingCycle, error) {
	return r.first(r.DB(ctx).Where("id = ?", id))
}

func (r *repository) FindByIDs(ctx context.Context, ids []int64) ([]models.OrderingCycle, error) {
	var cycles []models.OrderingCycle
	if len(ids) == 0 {
		return cycles, nil
	}
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&cycles).Error; err != nil {
		return nil, err
	}
	return cycles, nil
}

// first returns nil, nil when nothing matches.
func (r *repository) first(q *gorm.DB) (*models.OrderingCycle, error) {
	return repo.TakeOrNil[models.OrderingCycle](q)
}

func (r *repository) ListAll(ctx context.Context) ([]models.OrderingCycle, error) {
	var cycles []models.OrderingCycle
	if err := r.DB(ctx).Order("id ASC").Find(&cycles).Error; err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *repository) ListRecent(ctx context.Context, limit int) ([]models.OrderingCycle, error) {
	var cycles []models.OrderingCycle
	q := r.DB(ctx).Order("start_time DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&cycles).Error; err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *repository) Create(ctx context.Context, cycle *models.OrderingCycle) error {
	return r.DB(ctx).Create(cycle).Error
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	return r.DB(ctx).Model(&models.OrderingCycle{}).Where("id = ?", id).Updates(updates).Error
}

// AddToTotal adds amount to the running total in decimal space. Callers hold the
// writer transaction, so the read and the write cannot interleave.
func (r *repository) AddToTotal(ctx context.Context, id int64, amount float64) error {
	var cycle models.OrderingCycle
	if err := r.DB(ctx).Select("id", "total_amount").Where("id = ?", id).Take(&cycle).Error; err != nil {
		return err
	}
	return r.DB(ctx).Model(&models.OrderingCycle{}).
		Where("id = ?", id).
		Update("total_amount", pricing.Sum(cycle.TotalAmount, amount)).Error
}

func (r *repository) ListOrphanOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.DB(ctx).Where("cycle_id IS NULL").Order("created_at ASC, id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) AssignOrders(ctx context.Context, cycleID int64, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.DB(ctx).Model(&models.Order{}).
		Where("id IN ? AND cycle_id IS NULL", orderIDs).
		Update("cycle_id", cycleID).Error
}

func (r *repository) ListPendingOrders(ctx context.Context, cycleID int64) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB(ctx).
		Where("cycle_id = ? AND status = ?", cycleID, enums.OrderStatusPending).
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) UpdateOrderAmounts(ctx context.Context, orderID string, discount, final float64) error {
	return repo.RequireAffected(r.DB(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{"discount_amount": discount, "final_amount": final}))
}

func (r *repository) CancelPendingOrders(ctx context.Context, cycleID int64) (int64, error) {
	res := r.DB(ctx).Model(&models.Order{}).
		Where("cycle_id = ? AND status = ?", cycleID, enums.OrderStatusPending).
		Update("status", enums.OrderStatusCancelled)
	return res.RowsAffected, res.Error
}

func (r *repository) CountOrders(ctx context.Context, cycleID int64) (int64, error) {
	var n int64
	err := r.DB(ctx).Model(&models.Order{}).Where("cycle_id = ?", cycleID).Count(&n).Error
	return n, err
}

func (r *repository) SumLiveOrderTotals(ctx context.Context, cycleID int64) (float64, error) {
	var total float64
	err := r.DB(ctx).Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("cycle_id = ? AND status <> ?", cycleID, enums.OrderStatusCancelled).
		Scan(&total).Error
	return total, err
}

func (r *repository) OrderStats(ctx context.Context, cycleID int64) (OrderStats, error) {
	var stats OrderStats
	err := r.DB(ctx).Model(&models.Order{}).
		Select(`COUNT(*) AS total_orders,
			COALESCE(SUM(total_amount), 0) AS total_amount,
			COALESCE(SUM(discount_amount), 0) AS total_discount,
			COALESCE(SUM(final_amount), 0) AS total_final_amount,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending_count,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END), 0) AS paid_count,
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed_count,
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) AS cancelled_count`).
		Where("cycle_id = ?", cycleID).
		Scan(&stats).Error
	return stats, err
}
