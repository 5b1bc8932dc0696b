package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MembershipWindow is the validity window of a membership at some point of a settlement.
type MembershipWindow struct {
	MembershipID string    `json:"membership_id"`
	LevelID      string    `json:"level_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// UpgradeCalculation snapshots the inputs and outputs of the upgrade price computation.
type UpgradeCalculation struct {
	PaidAmount             decimal.Decimal `json:"paid_amount"`
	OriginalTotalDays      int             `json:"original_total_days"`
	RemainingDays          int             `json:"remaining_days"`
	DailyValue             decimal.Decimal `json:"daily_value"`
	TargetYearlyPrice      decimal.Decimal `json:"target_yearly_price"`
	TargetDailyValue       decimal.Decimal `json:"target_daily_value"`
	OriginalRemainingValue decimal.Decimal `json:"original_remaining_value"`
	TargetRemainingValue   decimal.Decimal `json:"target_remaining_value"`
}

// TransferredPointRecord summarizes one lot migrated during settlement.
type TransferredPointRecord struct {
	PointRecordID string    `json:"point_record_id"`
	SourceType    string    `json:"source_type"`
	PointAmount   int64     `json:"point_amount"`
	Used          int64     `json:"used"`
	TransferOut   int64     `json:"transfer_out"`
	ExpiredAt     time.Time `json:"expired_at"`
}

// UpgradeDetails is the structured audit snapshot of one upgrade.
type UpgradeDetails struct {
	SettlementDate time.Time `json:"settlement_date"`
	// PrePurchase is true when the settlement happened before the old membership started.
	PrePurchase bool `json:"pre_purchase"`
	// OldMembership is the window before settlement; OldMembershipSettled after.
	OldMembership          MembershipWindow         `json:"old_membership"`
	OldMembershipSettled   MembershipWindow         `json:"old_membership_settled"`
	NewMembership          MembershipWindow         `json:"new_membership"`
	Calculation            UpgradeCalculation       `json:"calculation"`
	TransferredPointRecord []TransferredPointRecord `json:"transferred_point_records"`
	TransferRecordID       *string                  `json:"transfer_record_id,omitempty"`
	CompensationRecordID   *string                  `json:"compensation_record_id,omitempty"`
	OrderNo                string                   `json:"order_no"`
}

// UpgradeRecord is the immutable audit of one upgrade transaction.
type UpgradeRecord struct {
	ID                string                              `gorm:"column:id;type:uuid;primaryKey;index:idx_upgrade_user_id,priority:2,sort:desc" json:"id"`
	UserID            string                              `gorm:"column:user_id;type:varchar(64);not null;index:idx_upgrade_user_id,priority:1" json:"user_id"`
	FromMembershipID  string                              `gorm:"column:from_membership_id;type:uuid;not null;index" json:"from_membership_id"`
	ToMembershipID    string                              `gorm:"column:to_membership_id;type:uuid;not null;uniqueIndex" json:"to_membership_id"`
	OrderID           string                              `gorm:"column:order_id;type:varchar(64);not null;uniqueIndex" json:"order_id"`
	UpgradePrice      decimal.Decimal                     `gorm:"column:upgrade_price;type:numeric(12,2);not null" json:"upgrade_price"`
	PointCompensation int64                               `gorm:"column:point_compensation;not null;default:0" json:"point_compensation"`
	TransferPoints    int64                               `gorm:"column:transfer_points;not null;default:0" json:"transfer_points"`
	Details           datatypes.JSONType[*UpgradeDetails] `gorm:"column:details;type:jsonb;default:'null'" json:"details"`
	CreatedAt         time.Time                           `json:"created_at"`
}

func (UpgradeRecord) TableName() string {
	return "upgrade_record"
}

// OriginalFromWindow returns the pre-settlement window of the membership this upgrade settled.
func (r *UpgradeRecord) OriginalFromWindow() (MembershipWindow, bool) {
	if r == nil || r.Details.Data() == nil {
		return MembershipWindow{}, false
	}
	w := r.Details.Data().OldMembership
	if w.StartDate.IsZero() || w.EndDate.IsZero() {
		return MembershipWindow{}, false
	}
	return w, true
}
