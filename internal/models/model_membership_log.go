package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
	"gorm.io/datatypes"
)

// MembershipLog records changes to user memberships.
// Use case: troubleshooting and support lookups.
type MembershipLog struct {
	ID           string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID       string `gorm:"column:user_id;type:varchar(64);index:idx_membership_log_user_id,priority:1;not null" json:"user_id"`
	MembershipID string `gorm:"column:membership_id;type:uuid;index;not null" json:"membership_id"`
	// Reason is the change reason.
	Reason types.MembershipChangeReason `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	// Before stores membership data before the change in JSON format.
	Before datatypes.JSONType[*UserMembership] `gorm:"column:before;type:jsonb;default:'null'" json:"before"`
	// After stores membership data after the change in JSON format.
	After datatypes.JSONType[*UserMembership] `gorm:"column:after;type:jsonb;default:'null'" json:"after"`
	// Extra stores additional context such as the order or operator that triggered the change.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
}

func (MembershipLog) TableName() string {
	return "membership_log"
}
