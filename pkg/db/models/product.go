package models

import (
	"time"

	"github.com/neferdidi/boba-backend/pkg/enums"
)

// Product is a catalog entry. Drinks and toppings share the table; Sizes holds a
// raw JSON object of size name to price and is parsed leniently.
type Product struct {
	ID          int64              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string             `gorm:"column:name;not null" json:"name"`
	Description *string            `gorm:"column:description" json:"description,omitempty"`
	Price       float64            `gorm:"column:price;not null" json:"price"`
	Sizes       *string            `gorm:"column:sizes" json:"sizes,omitempty"`
	Status      enums.RecordStatus `gorm:"column:status;type:text;not null;default:'active'" json:"status"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string { return "products" }
