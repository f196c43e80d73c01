package models

import (
	"time"

	"github.com/neferdidi/boba-backend/pkg/enums"
)

// DiscountRule is one tier band. DiscountRate is a percentage (10 means 10%).
// A nil MaxAmount leaves the band unbounded above.
type DiscountRule struct {
	ID           int64              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MinAmount    float64            `gorm:"column:min_amount;not null" json:"min_amount"`
	MaxAmount    *float64           `gorm:"column:max_amount" json:"max_amount"`
	DiscountRate float64            `gorm:"column:discount_rate;not null" json:"discount_rate"`
	Description  *string            `gorm:"column:description" json:"description,omitempty"`
	Status       enums.RecordStatus `gorm:"column:status;type:text;not null;default:'active'" json:"status"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (DiscountRule) TableName() string { return "discount_rules" }

// Applies reports whether the rule is active and amount falls inside its band.
// Both bounds are inclusive.
func (r DiscountRule) Applies(amount float64) bool {
	if r.Status != enums.RecordStatusActive {
		return false
	}
	if amount < r.MinAmount {
		return false
	}
	return r.MaxAmount == nil || amount <= *r.MaxAmount
}
