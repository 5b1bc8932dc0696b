package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
	"github.com/shopspring/decimal"
)

// Order is the paid side of a purchase or an upgrade. Payment itself happens elsewhere;
// this service only reads the settled amount.
type Order struct {
	ID         string            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNo    string            `gorm:"column:order_no;type:varchar(64);not null;uniqueIndex" json:"order_no"`
	UserID     string            `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	ProductID  string            `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Type       types.OrderType   `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Status     types.OrderStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	PaidAmount decimal.Decimal   `gorm:"column:paid_amount;type:numeric(12,2);not null;default:0" json:"paid_amount"`
	PaidAt     *time.Time        `gorm:"column:paid_at" json:"paid_at"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (Order) TableName() string {
	return "membership_order"
}

func (o *Order) IsPaid() bool {
	return o != nil && o.Status == types.OrderStatusPaid
}
