package models

import (
	"time"

	"github.com/neferdidi/boba-backend/pkg/enums"
)

// OrderingCycle is a bounded window in which orders accumulate toward one shared
// discount tier. EndTime is nil exactly while Status is active.
type OrderingCycle struct {
	ID           int64             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CycleNumber  string            `gorm:"column:cycle_number;not null;uniqueIndex" json:"cycle_number"`
	StartTime    time.Time         `gorm:"column:start_time;not null" json:"start_time"`
	EndTime      *time.Time        `gorm:"column:end_time" json:"end_time"`
	Status       enums.CycleStatus `gorm:"column:status;type:text;not null;default:'active'" json:"status"`
	TotalAmount  float64           `gorm:"column:total_amount;not null;default:0" json:"total_amount"`
	DiscountRate float64           `gorm:"column:discount_rate;not null;default:0" json:"discount_rate"`
	ConfirmedAt  *time.Time        `gorm:"column:confirmed_at" json:"confirmed_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (OrderingCycle) TableName() string { return "ordering_cycles" }

// IsActive reports whether the cycle is still accepting orders.
func (c *OrderingCycle) IsActive() bool {
	return c != nil && c.Status == enums.CycleStatusActive
}
