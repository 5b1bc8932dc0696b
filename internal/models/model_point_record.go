package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
)

// PointRecord is a lot of points with its own expiry. Lots are consumed earliest-expiring first.
// Remaining is PointAmount minus Used for valid lots; a settled lot keeps Used and moves the rest
// to TransferOut.
type PointRecord struct {
	ID               string                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID           string                  `gorm:"column:user_id;type:varchar(64);not null;index:idx_point_user_status_expire,priority:1" json:"user_id"`
	UserMembershipID *string                 `gorm:"column:user_membership_id;type:uuid;index" json:"user_membership_id"`
	PointAmount      int64                   `gorm:"column:point_amount;not null" json:"point_amount"`
	Used             int64                   `gorm:"column:used;not null;default:0" json:"used"`
	Remaining        int64                   `gorm:"column:remaining;not null" json:"remaining"`
	SourceType       types.PointSourceType   `gorm:"column:source_type;type:varchar(32);not null" json:"source_type"`
	SourceID         string                  `gorm:"column:source_id;type:varchar(64)" json:"source_id"`
	EffectiveAt      time.Time               `gorm:"column:effective_at;not null" json:"effective_at"`
	ExpiredAt        time.Time               `gorm:"column:expired_at;not null;index:idx_point_user_status_expire,priority:3" json:"expired_at"`
	Status           types.PointRecordStatus `gorm:"column:status;type:varchar(32);not null;index:idx_point_user_status_expire,priority:2" json:"status"`
	// TransferOut is the balance moved out during an upgrade settlement.
	TransferOut        int64      `gorm:"column:transfer_out;not null;default:0" json:"transfer_out"`
	TransferToRecordID *string    `gorm:"column:transfer_to_record_id;type:uuid" json:"transfer_to_record_id"`
	SettlementAt       *time.Time `gorm:"column:settlement_at" json:"settlement_at"`
	Remark             string     `gorm:"column:remark;type:varchar(255)" json:"remark"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (PointRecord) TableName() string {
	return "point_record"
}

// Usable reports whether the lot can be consumed at the given time.
func (r *PointRecord) Usable(at time.Time) bool {
	return r != nil &&
		r.Status == types.PointRecordStatusValid &&
		r.Remaining > 0 &&
		r.ExpiredAt.After(at)
}
