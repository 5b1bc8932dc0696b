package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
	"github.com/shopspring/decimal"
)

// Product is a sellable item. Membership products are linked to a level.
type Product struct {
	ID           string              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name         string              `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Type         types.ProductType   `gorm:"column:type;type:varchar(32);not null;index:idx_product_level,priority:2" json:"type"`
	LevelID      *string             `gorm:"column:level_id;type:uuid;index:idx_product_level,priority:1" json:"level_id"`
	DurationDays int                 `gorm:"column:duration_days;not null;default:0" json:"duration_days"`
	PriceYearly  decimal.NullDecimal `gorm:"column:price_yearly;type:numeric(12,2)" json:"price_yearly"`
	PriceMonthly decimal.NullDecimal `gorm:"column:price_monthly;type:numeric(12,2)" json:"price_monthly"`
	// GiftPoints are granted alongside a purchased membership.
	GiftPoints int64               `gorm:"column:gift_points;not null;default:0" json:"gift_points"`
	Status     types.ProductStatus `gorm:"column:status;type:varchar(32);not null;default:'active'" json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (Product) TableName() string {
	return "product"
}

// HasPrice reports whether the product carries a yearly or monthly price.
func (p *Product) HasPrice() bool {
	return p != nil && (p.PriceYearly.Valid || p.PriceMonthly.Valid)
}
