package models

import "time"

// ToppingSnapshot freezes a topping's label and price at order time.
type ToppingSnapshot struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OrderItem is an immutable price snapshot of one order line.
type OrderItem struct {
	ID           int64             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID      string            `gorm:"column:order_id;not null;index" json:"order_id"`
	ProductID    int64             `gorm:"column:product_id;not null" json:"product_id"`
	ProductName  string            `gorm:"column:product_name;not null" json:"product_name"`
	ProductPrice float64           `gorm:"column:product_price;not null" json:"product_price"`
	Quantity     int               `gorm:"column:quantity;not null" json:"quantity"`
	Subtotal     float64           `gorm:"column:subtotal;not null" json:"subtotal"`
	Size         *string           `gorm:"column:size" json:"size,omitempty"`
	SizePrice    float64           `gorm:"column:size_price;not null;default:0" json:"size_price"`
	SugarLevel   *string           `gorm:"column:sugar_level" json:"sugar_level,omitempty"`
	IceLevel     *string           `gorm:"column:ice_level" json:"ice_level,omitempty"`
	Toppings     []ToppingSnapshot `gorm:"column:toppings;type:text;serializer:json" json:"toppings"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }
