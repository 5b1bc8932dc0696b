package models

import "time"

// UserStorageUsage is maintained by the storage accounting pipeline; this service only reads it.
type UserStorageUsage struct {
	UserID    string    `gorm:"column:user_id;type:varchar(64);primaryKey" json:"user_id"`
	UsedBytes int64     `gorm:"column:used_bytes;not null;default:0" json:"used_bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserStorageUsage) TableName() string {
	return "user_storage_usage"
}
