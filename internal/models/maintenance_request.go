package models

import "time"

// MaintenanceRequest 维修请求
type MaintenanceRequest struct {
	BaseModel
	UnitID      uint       `json:"unit_id" gorm:"not null;index"`
	TenantID    *uint      `json:"tenant_id" gorm:"index"`
	Title       string     `json:"title" gorm:"not null;size:200"`
	Description string     `json:"description" gorm:"type:text"`
	Priority    string     `json:"priority" gorm:"size:20;default:'medium'"`
	Status      string     `json:"status" gorm:"size:20;not null;index"`
	CompletedAt *time.Time `json:"completed_at"`

	Unit *Unit `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
}

// TableName 表名
func (MaintenanceRequest) TableName() string {
	return "maintenance_requests"
}

const (
	MaintenanceStatusPending    = "pending"
	MaintenanceStatusInProgress = "in_progress"
	MaintenanceStatusCompleted  = "completed"
	MaintenanceStatusCancelled  = "cancelled"
)

const (
	MaintenancePriorityLow    = "low"
	MaintenancePriorityMedium = "medium"
	MaintenancePriorityHigh   = "high"
	MaintenancePriorityUrgent = "urgent"
)

var maintenanceTransitions = map[string][]string{
	MaintenanceStatusPending:    {MaintenanceStatusInProgress, MaintenanceStatusCancelled},
	MaintenanceStatusInProgress: {MaintenanceStatusCompleted, MaintenanceStatusCancelled},
}

// CanTransitionTo 状态流转校验
func (m *MaintenanceRequest) CanTransitionTo(status string) bool {
	for _, next := range maintenanceTransitions[m.Status] {
		if next == status {
			return true
		}
	}
	return false
}

// CreateMaintenanceRequest 创建维修请求
type CreateMaintenanceRequest struct {
	UnitID      uint   `json:"unit_id"` // 租客可不填，默认当前租约单元
	Title       string `json:"title" binding:"required,min=2,max=200"`
	Description string `json:"description" binding:"max=5000"`
	Priority    string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
}

// UpdateMaintenanceStatusRequest 更新维修状态
type UpdateMaintenanceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending in_progress completed cancelled"`
}
