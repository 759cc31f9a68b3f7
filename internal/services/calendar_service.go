package services

import (
	"context"
	"time"

	"rentflow/internal/models"
	apperrors "rentflow/pkg/errors"

	"gorm.io/gorm"
)

// CalendarService 日程
type CalendarService struct {
	db *gorm.DB
}

func NewCalendarService(db *gorm.DB) *CalendarService {
	return &CalendarService{db: db}
}

// Create 创建日程，未给结束时间时全天事件到当天结束，否则一小时
func (s *CalendarService) Create(ctx context.Context, actor Actor, req *models.CreateCalendarEventRequest) (*models.CalendarEvent, error) {
	if !actor.Role.Can(models.CapManageCalendar) {
		return nil, apperrors.Forbidden("无权创建日程")
	}
	if req.PropertyID != nil {
		var property models.Property
		if err := s.db.WithContext(ctx).First(&property, *req.PropertyID).Error; err != nil {
			return nil, notFoundOr(err, "物业不存在")
		}
		if err := ensureManages(actor, &property); err != nil {
			return nil, err
		}
	}

	startsAt := req.StartsAt.UTC()
	endsAt := req.EndsAt.UTC()
	if req.AllDay {
		startsAt = models.TruncateDay(startsAt)
	}
	if req.EndsAt.IsZero() {
		if req.AllDay {
			endsAt = startsAt.Add(24*time.Hour - time.Second)
		} else {
			endsAt = startsAt.Add(time.Hour)
		}
	}
	if endsAt.Before(startsAt) {
		return nil, apperrors.Validation("结束时间不能早于开始时间")
	}

	eventType := req.EventType
	if eventType == "" {
		eventType = "other"
	}

	event := &models.CalendarEvent{
		OwnerID:     actor.UserID,
		PropertyID:  req.PropertyID,
		Title:       req.Title,
		Description: req.Description,
		EventType:   eventType,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		AllDay:      req.AllDay,
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// List 查询与 [from, to) 有交集的日程
func (s *CalendarService) List(ctx context.Context, actor Actor, from, to time.Time) ([]models.CalendarEvent, error) {
	if !to.After(from) {
		return nil, apperrors.Validation("时间范围无效")
	}
	query := s.db.WithContext(ctx).
		Where("starts_at < ? AND ends_at >= ?", to.UTC(), from.UTC())
	if !actor.IsAdmin() {
		query = query.Where("owner_id = ?", actor.UserID)
	}

	var events []models.CalendarEvent
	err := query.Order("starts_at").Find(&events).Error
	return events, err
}

// Delete 删除自己的日程，管理员可删除任意日程
func (s *CalendarService) Delete(ctx context.Context, actor Actor, id uint) error {
	var event models.CalendarEvent
	if err := s.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return notFoundOr(err, "日程不存在")
	}
	if !actor.IsAdmin() && event.OwnerID != actor.UserID {
		return apperrors.Forbidden("无权删除该日程")
	}
	return s.db.WithContext(ctx).Delete(&event).Error
}
