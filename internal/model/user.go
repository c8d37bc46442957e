package model

import (
	"time"
)

type User struct {
	ID            uint64    `gorm:"primaryKey"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex:idx_email;not null"`
	Password      string    `gorm:"type:varchar(255);not null"`
	Name          string    `gorm:"type:varchar(100);not null;index"`
	Avatar        string    `gorm:"type:varchar(255)"`
	Status        string    `gorm:"type:varchar(150)"`
	IsOnline      bool      `gorm:"type:tinyint(1);not null;default:0"`
	LastSeen      time.Time `gorm:"not null"`
	Notifications bool      `gorm:"type:tinyint(1);not null;default:1"`
	Sound         bool      `gorm:"type:tinyint(1);not null;default:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Blocks []UserBlock `gorm:"foreignKey:UserID;references:ID"`
}

func (User) TableName() string {
	return "users"
}

// UserBlock 屏蔽关系, 仅记录不参与投递
type UserBlock struct {
	UserID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	BlockedID uint64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

func (UserBlock) TableName() string {
	return "user_blocks"
}

// BlockedIDs 屏蔽用户 ID 集合
func (u *User) BlockedIDs() []uint64 {
	ids := make([]uint64, 0, len(u.Blocks))
	for _, b := range u.Blocks {
		ids = append(ids, b.BlockedID)
	}
	return ids
}
