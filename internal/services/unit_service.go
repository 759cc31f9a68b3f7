package services

import (
	"context"

	"rentflow/internal/database"
	"rentflow/internal/models"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/pagination"

	"gorm.io/gorm"
)

// UnitService 单元库存，total_units 与单元增删在同一事务中维护
type UnitService struct {
	db *gorm.DB
}

func NewUnitService(db *gorm.DB) *UnitService {
	return &UnitService{db: db}
}

// UnitFilter 单元查询条件
type UnitFilter struct {
	PropertyID uint
	Status     string
}

// Create 在物业下创建单元
func (s *UnitService) Create(ctx context.Context, actor Actor, propertyID uint, req *models.CreateUnitRequest) (*models.Unit, error) {
	if req.RentAmount.IsNegative() || req.DepositAmount.IsNegative() {
		return nil, apperrors.Validation("租金和押金不能为负数")
	}
	status := req.Status
	if status == "" {
		status = models.UnitStatusVacant
	}
	if status == models.UnitStatusOccupied {
		return nil, apperrors.InvalidState("单元状态 occupied 只能由租约设置")
	}

	unit := &models.Unit{
		PropertyID:    propertyID,
		UnitNumber:    req.UnitNumber,
		Bedrooms:      req.Bedrooms,
		Bathrooms:     req.Bathrooms,
		SquareFeet:    req.SquareFeet,
		RentAmount:    req.RentAmount,
		DepositAmount: req.DepositAmount,
		Status:        status,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var property models.Property
		if err := tx.First(&property, propertyID).Error; err != nil {
			return notFoundOr(err, "物业不存在")
		}
		if err := ensureManages(actor, &property); err != nil {
			return err
		}

		if err := tx.Create(unit).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperrors.Conflict("单元编号 %s 已存在", req.UnitNumber)
			}
			return err
		}
		return tx.Model(&models.Property{}).Where("id = ?", propertyID).
			UpdateColumn("total_units", gorm.Expr("total_units + ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}
	return unit, nil
}

// Get 获取单元
func (s *UnitService) Get(ctx context.Context, actor Actor, id uint) (*models.Unit, error) {
	unit, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := ensureManages(actor, unit.Property); err != nil {
		return nil, err
	}
	return unit, nil
}

func (s *UnitService) load(db *gorm.DB, id uint) (*models.Unit, error) {
	var unit models.Unit
	if err := db.Preload("Property").First(&unit, id).Error; err != nil {
		return nil, notFoundOr(err, "单元不存在")
	}
	return &unit, nil
}

// List 分页查询单元
func (s *UnitService) List(ctx context.Context, actor Actor, filter UnitFilter, page *pagination.PageParams) ([]models.Unit, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Unit{})
	if !actor.IsAdmin() {
		query = query.Where("units.id IN (?)", ownedUnitIDs(s.db, actor.UserID))
	}
	if filter.PropertyID != 0 {
		query = query.Where("units.property_id = ?", filter.PropertyID)
	}
	if filter.Status != "" {
		query = query.Where("units.status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var units []models.Unit
	err := query.Preload("Property").
		Order("units.property_id, units.unit_number").
		Scopes(page.Scope()).
		Find(&units).Error
	return units, total, err
}

// ListVacant 可分配的空置单元
func (s *UnitService) ListVacant(ctx context.Context, actor Actor) ([]models.Unit, error) {
	query := s.db.WithContext(ctx).
		Joins("JOIN properties ON properties.id = units.property_id").
		Where("units.status = ? AND properties.status = ?", models.UnitStatusVacant, models.PropertyStatusActive)
	if !actor.IsAdmin() {
		query = query.Where("properties.owner_id = ?", actor.UserID)
	}

	var units []models.Unit
	err := query.Preload("Property").
		Order("units.property_id, units.unit_number").
		Find(&units).Error
	return units, err
}

// Update 更新单元，occupied 状态只能由租约流程改变
func (s *UnitService) Update(ctx context.Context, actor Actor, id uint, req *models.UpdateUnitRequest) (*models.Unit, error) {
	unit, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Status != nil && *req.Status != unit.Status {
		if *req.Status == models.UnitStatusOccupied || unit.Status == models.UnitStatusOccupied {
			return nil, apperrors.InvalidState("单元出租状态由租约管理")
		}
		updates["status"] = *req.Status
	}
	if req.UnitNumber != nil {
		updates["unit_number"] = *req.UnitNumber
	}
	if req.Bedrooms != nil {
		updates["bedrooms"] = *req.Bedrooms
	}
	if req.Bathrooms != nil {
		updates["bathrooms"] = *req.Bathrooms
	}
	if req.SquareFeet != nil {
		updates["square_feet"] = *req.SquareFeet
	}
	if req.RentAmount != nil {
		if req.RentAmount.IsNegative() {
			return nil, apperrors.Validation("租金不能为负数")
		}
		updates["rent_amount"] = *req.RentAmount
	}
	if req.DepositAmount != nil {
		if req.DepositAmount.IsNegative() {
			return nil, apperrors.Validation("押金不能为负数")
		}
		updates["deposit_amount"] = *req.DepositAmount
	}
	if len(updates) == 0 {
		return unit, nil
	}

	// 修改状态时以读到的状态为条件，期间被分配或释放则冲突
	query := s.db.WithContext(ctx).Model(&models.Unit{}).Where("id = ?", id)
	if _, ok := updates["status"]; ok {
		query = query.Where("status = ?", unit.Status)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return nil, apperrors.Conflict("单元编号已存在")
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Conflict("单元状态已被其他操作修改")
	}
	return s.load(s.db.WithContext(ctx), id)
}

// Delete 删除单元，已出租或有租约记录时拒绝
func (s *UnitService) Delete(ctx context.Context, actor Actor, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if err := ensureManages(actor, unit.Property); err != nil {
			return err
		}
		if unit.Status == models.UnitStatusOccupied {
			return apperrors.InvalidState("单元已出租，无法删除")
		}

		var leases int64
		if err := tx.Model(&models.Lease{}).Where("unit_id = ?", id).Count(&leases).Error; err != nil {
			return err
		}
		if leases > 0 {
			return apperrors.Conflict("单元存在租约记录，无法删除")
		}

		if err := tx.Delete(&models.Unit{}, id).Error; err != nil {
			return err
		}
		return tx.Model(&models.Property{}).Where("id = ? AND total_units > 0", unit.PropertyID).
			UpdateColumn("total_units", gorm.Expr("total_units - ?", 1)).Error
	})
}
