package models

import "time"

// CalendarEvent 日程
type CalendarEvent struct {
	BaseModel
	OwnerID     uint      `json:"owner_id" gorm:"not null;index"`
	PropertyID  *uint     `json:"property_id" gorm:"index"`
	Title       string    `json:"title" gorm:"not null;size:200"`
	Description string    `json:"description" gorm:"type:text"`
	EventType   string    `json:"event_type" gorm:"size:20;default:'other'"`
	StartsAt    time.Time `json:"starts_at" gorm:"not null;index"`
	EndsAt      time.Time `json:"ends_at" gorm:"not null"`
	AllDay      bool      `json:"all_day" gorm:"default:false"`
}

// TableName 表名
func (CalendarEvent) TableName() string {
	return "calendar_events"
}

// CreateCalendarEventRequest 创建日程
type CreateCalendarEventRequest struct {
	PropertyID  *uint     `json:"property_id"`
	Title       string    `json:"title" binding:"required,min=1,max=200"`
	Description string    `json:"description" binding:"max=2000"`
	EventType   string    `json:"event_type" binding:"omitempty,oneof=inspection maintenance lease_end rent_due meeting other"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	EndsAt      time.Time `json:"ends_at"`
	AllDay      bool      `json:"all_day"`
}
