package models

import (
	"time"

	"github.com/neferdidi/boba-backend/pkg/enums"
)

// Order is a customer order. FinalAmount always equals the rounded difference
// of TotalAmount and DiscountAmount.
type Order struct {
	ID             string            `gorm:"column:id;primaryKey" json:"id"`
	OrderNumber    string            `gorm:"column:order_number;not null;uniqueIndex" json:"order_number"`
	UserID         *string           `gorm:"column:user_id" json:"user_id,omitempty"`
	CustomerName   *string           `gorm:"column:customer_name" json:"customer_name,omitempty"`
	CustomerPhone  *string           `gorm:"column:customer_phone" json:"customer_phone,omitempty"`
	TotalAmount    float64           `gorm:"column:total_amount;not null" json:"total_amount"`
	DiscountAmount float64           `gorm:"column:discount_amount;not null;default:0" json:"discount_amount"`
	FinalAmount    float64           `gorm:"column:final_amount;not null" json:"final_amount"`
	Status         enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	CycleID        *int64            `gorm:"column:cycle_id" json:"cycle_id"`
	Notes          *string           `gorm:"column:notes" json:"notes,omitempty"`
	Items          []OrderItem       `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
