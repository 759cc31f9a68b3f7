package models

import (
	"time"
)

// User 用户，由身份提供方同步创建
type User struct {
	BaseModel
	ExternalID   string     `json:"external_id" gorm:"uniqueIndex;not null;size:100"`
	Name         string     `json:"name" gorm:"size:100"`
	Email        string     `json:"email" gorm:"size:255;index"`
	Phone        string     `json:"phone" gorm:"size:30"`
	Role         Role       `json:"role" gorm:"type:varchar(20);not null;default:'tenant';index"`
	IsActive     bool       `json:"is_active" gorm:"not null;default:true"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// ChangeRoleRequest 修改角色请求
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=tenant landlord admin"`
}
