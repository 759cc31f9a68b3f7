package services

import (
	"context"
	"fmt"
	"time"

	"rentflow/internal/models"
	"rentflow/internal/notify"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/logger"
	"rentflow/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaintenanceService 维修请求
type MaintenanceService struct {
	db            *gorm.DB
	notifications *NotificationService
	now           func() time.Time
}

func NewMaintenanceService(db *gorm.DB, notifications *NotificationService) *MaintenanceService {
	return &MaintenanceService{
		db:            db,
		notifications: notifications,
		now:           utcNow,
	}
}

// MaintenanceFilter 维修请求查询条件
type MaintenanceFilter struct {
	Status string
	UnitID uint
}

// Create 租客为当前租约单元提交，房东/管理员可为任意名下单元创建
func (s *MaintenanceService) Create(ctx context.Context, actor Actor, req *models.CreateMaintenanceRequest) (*models.MaintenanceRequest, error) {
	db := s.db.WithContext(ctx)
	priority := req.Priority
	if priority == "" {
		priority = models.MaintenancePriorityMedium
	}

	item := &models.MaintenanceRequest{
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		Status:      models.MaintenanceStatusPending,
	}

	var property *models.Property
	if actor.IsTenant() {
		lease, err := activeLeaseForTenant(db, actor.UserID)
		if err != nil {
			return nil, err
		}
		if lease == nil {
			return nil, apperrors.NotFound("当前没有生效中的租约")
		}
		if req.UnitID != 0 && req.UnitID != lease.UnitID {
			return nil, apperrors.Forbidden("只能为自己租住的单元提交维修请求")
		}
		tenantID := actor.UserID
		item.UnitID = lease.UnitID
		item.TenantID = &tenantID
		if lease.Unit != nil {
			property = lease.Unit.Property
		}
	} else {
		if req.UnitID == 0 {
			return nil, apperrors.Validation("请指定单元")
		}
		var unit models.Unit
		if err := db.Preload("Property").First(&unit, req.UnitID).Error; err != nil {
			return nil, notFoundOr(err, "单元不存在")
		}
		if err := ensureManages(actor, unit.Property); err != nil {
			return nil, err
		}
		item.UnitID = unit.ID
		property = unit.Property

		// 记到当前租客名下，便于通知
		var leases []models.Lease
		if err := db.Where("unit_id = ? AND status = ?", unit.ID, models.LeaseStatusActive).Limit(1).Find(&leases).Error; err != nil {
			return nil, err
		}
		if len(leases) > 0 {
			tenantID := leases[0].TenantID
			item.TenantID = &tenantID
		}
	}

	if err := db.Create(item).Error; err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"maintenance_id": item.ID,
		"unit_id":        item.UnitID,
		"priority":       item.Priority,
	}).Info("维修请求已创建")

	if s.notifications != nil && actor.IsTenant() && property != nil {
		s.notifications.NotifyStaff(ctx, property.OwnerID, models.NotificationTypeMaintenance,
			"新的维修请求", fmt.Sprintf("%s（优先级 %s）", item.Title, item.Priority))
	}
	return item, nil
}

// Get 获取维修请求
func (s *MaintenanceService) Get(ctx context.Context, actor Actor, id uint) (*models.MaintenanceRequest, error) {
	var item models.MaintenanceRequest
	if err := s.scoped(s.db.WithContext(ctx).Model(&models.MaintenanceRequest{}), actor).
		Preload("Unit.Property").
		First(&item, id).Error; err != nil {
		return nil, notFoundOr(err, "维修请求不存在")
	}
	return &item, nil
}

// List 分页查询维修请求
func (s *MaintenanceService) List(ctx context.Context, actor Actor, filter MaintenanceFilter, page *pagination.PageParams) ([]models.MaintenanceRequest, int64, error) {
	query := s.scoped(s.db.WithContext(ctx).Model(&models.MaintenanceRequest{}), actor)
	if filter.Status != "" {
		query = query.Where("maintenance_requests.status = ?", filter.Status)
	}
	if filter.UnitID != 0 {
		query = query.Where("maintenance_requests.unit_id = ?", filter.UnitID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.MaintenanceRequest
	err := query.Preload("Unit.Property").
		Order("maintenance_requests.created_at DESC, maintenance_requests.id DESC").
		Scopes(page.Scope()).
		Find(&items).Error
	return items, total, err
}

func (s *MaintenanceService) scoped(query *gorm.DB, actor Actor) *gorm.DB {
	switch {
	case actor.IsAdmin():
		return query
	case actor.IsTenant():
		return query.Where("maintenance_requests.tenant_id = ?", actor.UserID)
	default:
		return query.Where("maintenance_requests.unit_id IN (?)", ownedUnitIDs(s.db, actor.UserID))
	}
}

// UpdateStatus 状态流转：pending -> in_progress -> completed，pending/in_progress 可取消
func (s *MaintenanceService) UpdateStatus(ctx context.Context, actor Actor, id uint, status string) (*models.MaintenanceRequest, error) {
	if !actor.Role.Can(models.CapManageMaintenance) {
		return nil, apperrors.Forbidden("无权修改维修状态")
	}
	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if item.Status == status {
		return item, nil
	}
	if !item.CanTransitionTo(status) {
		return nil, apperrors.InvalidState("维修请求不能从 %s 变为 %s", item.Status, status)
	}

	updates := map[string]interface{}{"status": status}
	if status == models.MaintenanceStatusCompleted {
		updates["completed_at"] = s.now()
	}
	res := s.db.WithContext(ctx).Model(&models.MaintenanceRequest{}).
		Where("id = ? AND status = ?", item.ID, item.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Conflict("维修请求已被其他人修改")
	}

	previous := item.Status
	item, err = s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	logger.GetLogger().WithFields(logrus.Fields{
		"maintenance_id": item.ID,
		"from":           previous,
		"to":             status,
	}).Info("维修状态已更新")

	if s.notifications != nil && item.TenantID != nil {
		var tenant models.User
		if err := s.db.WithContext(ctx).First(&tenant, *item.TenantID).Error; err == nil {
			s.notifications.NotifyUser(ctx, &tenant, models.NotificationTypeMaintenance, notify.TemplateMaintenanceStatus,
				map[string]interface{}{"title": item.Title, "status": item.Status})
		}
	}
	return item, nil
}
