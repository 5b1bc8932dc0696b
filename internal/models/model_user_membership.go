package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
	"gorm.io/gorm"
)

// UserMembership is one tenure of a user at one level.
// Several ACTIVE rows may coexist; the current one is the highest level whose window contains now.
type UserMembership struct {
	ID        string                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string                 `gorm:"column:user_id;type:varchar(64);not null;index:idx_membership_user_status,priority:1" json:"user_id"`
	LevelID   string                 `gorm:"column:level_id;type:uuid;not null" json:"level_id"`
	StartDate time.Time              `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time              `gorm:"column:end_date;not null" json:"end_date"`
	Status    types.MembershipStatus `gorm:"column:status;type:varchar(32);not null;index:idx_membership_user_status,priority:2" json:"status"`
	// SourceType decides what SourceID refers to: an order for purchases and upgrades,
	// a code for redemptions, an operator for gifts.
	SourceType types.MembershipSourceType `gorm:"column:source_type;type:varchar(32);not null" json:"source_type"`
	SourceID   string                     `gorm:"column:source_id;type:varchar(64)" json:"source_id"`
	// SettlementAt is only set once the membership is settled by an upgrade.
	SettlementAt *time.Time     `gorm:"column:settlement_at" json:"settlement_at"`
	AutoRenew    bool           `gorm:"column:auto_renew;not null;default:false" json:"auto_renew"`
	Remark       string         `gorm:"column:remark;type:varchar(255)" json:"remark"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (UserMembership) TableName() string {
	return "user_membership"
}

// Valid reports whether the membership is active and its window contains at.
func (m *UserMembership) Valid(at time.Time) bool {
	return m != nil &&
		m.Status == types.MembershipStatusActive &&
		!m.StartDate.After(at) &&
		m.EndDate.After(at)
}
