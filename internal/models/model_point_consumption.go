package models

import "time"

// PointConsumption records the part of one spend that was taken from a single lot.
type PointConsumption struct {
	ID            string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID        string    `gorm:"column:user_id;type:varchar(64);not null;index:idx_point_consumption_user,priority:1" json:"user_id"`
	PointRecordID string    `gorm:"column:point_record_id;type:uuid;not null;index" json:"point_record_id"`
	Amount        int64     `gorm:"column:amount;not null" json:"amount"`
	Remark        string    `gorm:"column:remark;type:varchar(255)" json:"remark"`
	ConsumedAt    time.Time `gorm:"column:consumed_at;not null;index:idx_point_consumption_user,priority:2" json:"consumed_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (PointConsumption) TableName() string {
	return "point_consumption"
}
