// models/gorm_models.go
package models

import (
	"time"
)

// GormRoomSnapshot 房间快照表
type GormRoomSnapshot struct {
	ID           uint      `gorm:"primaryKey"`
	RoomID       string    `gorm:"uniqueIndex;not null"`
	JoinCode     string    `gorm:"index;not null"`
	Stage        string    `gorm:"not null"`
	Version      int64     `gorm:"not null"`
	Data         []byte    `gorm:"type:jsonb;not null"` // 完整RoomSnapshot的JSON
	LastActivity time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (GormRoomSnapshot) TableName() string {
	return "room_snapshots"
}
