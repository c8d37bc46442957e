package dto

import "time"

type RegisterDTO struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

type CredentialDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthDTO struct {
	Token string   `json:"token"`
	User  *UserDTO `json:"user"`
}

// UserDTO 本人可见的完整资料
type UserDTO struct {
	ID            uint64    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Avatar        string    `json:"avatar"`
	Status        string    `json:"status"`
	IsOnline      bool      `json:"isOnline"`
	LastSeen      time.Time `json:"lastSeen"`
	Notifications bool      `json:"notifications"`
	Sound         bool      `json:"sound"`
	BlockedUsers  []uint64  `json:"blockedUsers"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UserBrief 对外公开的资料, 不含邮箱与设置
type UserBrief struct {
	ID       uint64    `json:"id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	Status   string    `json:"status"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

type UpdateProfileDTO struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=100"`
	Status        *string `json:"status" validate:"omitempty,max=150"`
	Avatar        *string `json:"avatar" validate:"omitempty,max=255"`
	Notifications *bool   `json:"notifications"`
	Sound         *bool   `json:"sound"`
}

type SearchUserDTO struct {
	Search   string `form:"search" validate:"max=100"`
	Page     int    `form:"page" validate:"min=0"`
	PageSize int    `form:"pageSize" validate:"min=0,max=100"`
}

type BlockDTO struct {
	UserID  uint64 `json:"userId"`
	Blocked bool   `json:"blocked"`
}
