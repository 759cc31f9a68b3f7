package services

import (
	"context"

	"rentflow/internal/models"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/logger"
	"rentflow/pkg/pagination"

	"gorm.io/gorm"
)

// PropertyService 物业管理
type PropertyService struct {
	db *gorm.DB
}

func NewPropertyService(db *gorm.DB) *PropertyService {
	return &PropertyService{db: db}
}

// PropertyFilter 物业查询条件
type PropertyFilter struct {
	Status  string
	Keyword string
}

// Create 创建物业，管理员可指定所属房东
func (s *PropertyService) Create(ctx context.Context, actor Actor, req *models.CreatePropertyRequest) (*models.Property, error) {
	ownerID := actor.UserID
	if actor.IsAdmin() && req.OwnerID != 0 {
		var owner models.User
		if err := s.db.WithContext(ctx).First(&owner, req.OwnerID).Error; err != nil {
			return nil, notFoundOr(err, "房东不存在")
		}
		if !owner.Role.IsStaff() {
			return nil, apperrors.Validation("物业所有者必须是房东或管理员")
		}
		ownerID = owner.ID
	}
	if ownerID == 0 {
		return nil, apperrors.Validation("缺少物业所有者")
	}

	propertyType := req.Type
	if propertyType == "" {
		propertyType = models.PropertyTypeApartment
	}

	property := &models.Property{
		OwnerID:     ownerID,
		Name:        req.Name,
		Address:     req.Address,
		City:        req.City,
		Type:        propertyType,
		Status:      models.PropertyStatusActive,
		Description: req.Description,
	}
	if err := s.db.WithContext(ctx).Create(property).Error; err != nil {
		return nil, err
	}
	return property, nil
}

// Get 获取物业
func (s *PropertyService) Get(ctx context.Context, actor Actor, id uint) (*models.Property, error) {
	property, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := ensureManages(actor, property); err != nil {
		return nil, err
	}
	return property, nil
}

func (s *PropertyService) load(db *gorm.DB, id uint) (*models.Property, error) {
	var property models.Property
	if err := db.Preload("Owner").First(&property, id).Error; err != nil {
		return nil, notFoundOr(err, "物业不存在")
	}
	return &property, nil
}

// List 分页查询物业，房东只能看到自己的
func (s *PropertyService) List(ctx context.Context, actor Actor, filter PropertyFilter, page *pagination.PageParams) ([]models.Property, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Property{})
	if !actor.IsAdmin() {
		query = query.Where("owner_id = ?", actor.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("name LIKE ? OR address LIKE ? OR city LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var properties []models.Property
	err := query.Order("created_at DESC").Scopes(page.Scope()).Find(&properties).Error
	return properties, total, err
}

// Update 更新物业
func (s *PropertyService) Update(ctx context.Context, actor Actor, id uint, req *models.UpdatePropertyRequest) (*models.Property, error) {
	property, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.Type != nil {
		updates["type"] = *req.Type
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return property, nil
	}

	if err := s.db.WithContext(ctx).Model(property).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.load(s.db.WithContext(ctx), id)
}

// Delete 删除物业及其单元，存在租约记录时拒绝
func (s *PropertyService) Delete(ctx context.Context, actor Actor, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if err := ensureManages(actor, property); err != nil {
			return err
		}

		unitIDs := tx.Model(&models.Unit{}).Select("id").Where("property_id = ?", id)

		var active int64
		if err := tx.Model(&models.Lease{}).
			Where("unit_id IN (?) AND status = ?", unitIDs, models.LeaseStatusActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return apperrors.Conflict("物业下有生效中的租约，无法删除")
		}

		var history int64
		if err := tx.Model(&models.Lease{}).Where("unit_id IN (?)", unitIDs).Count(&history).Error; err != nil {
			return err
		}
		if history > 0 {
			return apperrors.Conflict("物业存在历史租约，请改为停用")
		}

		if err := tx.Where("property_id = ?", id).Delete(&models.Unit{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Property{}, id).Error; err != nil {
			return err
		}

		logger.GetLogger().WithField("property_id", id).Info("物业已删除")
		return nil
	})
}
