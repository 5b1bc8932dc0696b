package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
)

// MembershipLevel is a membership tier. A smaller SortOrder is a higher tier.
type MembershipLevel struct {
	ID          string                      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string                      `gorm:"column:name;type:varchar(64);not null" json:"name"`
	SortOrder   int                         `gorm:"column:sort_order;not null;index" json:"sort_order"`
	Description string                      `gorm:"column:description;type:text" json:"description"`
	Status      types.MembershipLevelStatus `gorm:"column:status;type:varchar(32);not null;default:'active'" json:"status"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

func (MembershipLevel) TableName() string {
	return "membership_level"
}

// IsHigherThan reports whether l ranks above other.
func (l *MembershipLevel) IsHigherThan(other *MembershipLevel) bool {
	return l != nil && other != nil && l.SortOrder < other.SortOrder
}
