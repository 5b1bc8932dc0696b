package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
	"github.com/shopspring/decimal"
)

// Benefit defines an entitlement kind. ID is a stable code such as "storage_quota".
type Benefit struct {
	ID              string                       `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	Name            string                       `gorm:"column:name;type:varchar(128);not null" json:"name"`
	ConsumptionMode types.BenefitConsumptionMode `gorm:"column:consumption_mode;type:varchar(16);not null" json:"consumption_mode"`
	UnitType        types.BenefitUnitType        `gorm:"column:unit_type;type:varchar(16);not null" json:"unit_type"`
	// DefaultValue applies when a user holds no active grant.
	DefaultValue decimal.Decimal `gorm:"column:default_value;type:numeric(38,0);not null;default:0" json:"default_value"`
	SortOrder    int             `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Benefit) TableName() string {
	return "benefit"
}

// LevelBenefit links a benefit and its value to a membership level.
type LevelBenefit struct {
	ID           string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	LevelID      string          `gorm:"column:level_id;type:uuid;not null;uniqueIndex:idx_level_benefit,priority:1" json:"level_id"`
	BenefitID    string          `gorm:"column:benefit_id;type:varchar(64);not null;uniqueIndex:idx_level_benefit,priority:2" json:"benefit_id"`
	BenefitValue decimal.Decimal `gorm:"column:benefit_value;type:numeric(38,0);not null" json:"benefit_value"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (LevelBenefit) TableName() string {
	return "level_benefit"
}

// UserBenefit is one entitlement instance held by a user for a window.
type UserBenefit struct {
	ID           string                      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID       string                      `gorm:"column:user_id;type:varchar(64);not null;index:idx_user_benefit_user,priority:1" json:"user_id"`
	BenefitID    string                      `gorm:"column:benefit_id;type:varchar(64);not null;index:idx_user_benefit_user,priority:2" json:"benefit_id"`
	BenefitValue decimal.Decimal             `gorm:"column:benefit_value;type:numeric(38,0);not null" json:"benefit_value"`
	SourceType   types.UserBenefitSourceType `gorm:"column:source_type;type:varchar(32);not null;index:idx_user_benefit_source,priority:1" json:"source_type"`
	SourceID     string                      `gorm:"column:source_id;type:varchar(64);not null;index:idx_user_benefit_source,priority:2" json:"source_id"`
	EffectiveAt  time.Time                   `gorm:"column:effective_at;not null" json:"effective_at"`
	ExpiredAt    time.Time                   `gorm:"column:expired_at;not null" json:"expired_at"`
	Status       types.UserBenefitStatus     `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func (UserBenefit) TableName() string {
	return "user_benefit"
}

// InEffect reports whether the grant is active and its window contains at.
func (b *UserBenefit) InEffect(at time.Time) bool {
	return b != nil &&
		b.Status == types.UserBenefitStatusActive &&
		!b.EffectiveAt.After(at) &&
		b.ExpiredAt.After(at)
}
