package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification 站内通知
type Notification struct {
	BaseModel
	UserID  uint       `json:"user_id" gorm:"not null;index"`
	Title   string     `json:"title" gorm:"not null;size:200"`
	Message string     `json:"message" gorm:"type:text"`
	Type    string     `json:"type" gorm:"size:20;default:'info'"`
	IsRead  bool       `json:"is_read" gorm:"not null;default:false;index"`
	ReadAt  *time.Time `json:"read_at"`
}

// TableName 表名
func (Notification) TableName() string {
	return "notifications"
}

const (
	NotificationTypeInfo        = "info"
	NotificationTypePayment     = "payment"
	NotificationTypeMaintenance = "maintenance"
	NotificationTypeLease       = "lease"
	NotificationTypeSystem      = "system"
)

// ScheduledNotification 延迟通知，持久化后由调度器投递（至少一次）
type ScheduledNotification struct {
	BaseModel
	UserID      uint           `json:"user_id" gorm:"not null;index"`
	TemplateKey string         `json:"template_key" gorm:"not null;size:50"`
	Variables   datatypes.JSON `json:"variables"`
	DueAt       time.Time      `json:"due_at" gorm:"not null;index"`
	Status      string         `json:"status" gorm:"size:20;not null;index"`
	Attempts    int            `json:"attempts" gorm:"not null;default:0"`
	LastError   string         `json:"last_error" gorm:"type:text"`
	SentAt      *time.Time     `json:"sent_at"`
}

// TableName 表名
func (ScheduledNotification) TableName() string {
	return "scheduled_notifications"
}

const (
	ScheduledStatusPending = "pending"
	ScheduledStatusSent    = "sent"
	ScheduledStatusFailed  = "failed"
)

// CreateNotificationRequest 发送通知请求，ScheduledAt 非空时延迟投递
type CreateNotificationRequest struct {
	UserID      uint                   `json:"user_id" binding:"required"`
	TemplateKey string                 `json:"template_key" binding:"omitempty,max=50"`
	Title       string                 `json:"title" binding:"max=200"`
	Message     string                 `json:"message" binding:"max=5000"`
	Type        string                 `json:"type" binding:"omitempty,oneof=info payment maintenance lease system"`
	Variables   map[string]interface{} `json:"variables"`
	ScheduledAt *time.Time             `json:"scheduled_at"`
}

// MarkNotificationsRequest 标记已读
type MarkNotificationsRequest struct {
	IDs []uint `json:"ids"`
	All bool   `json:"all"`
}
