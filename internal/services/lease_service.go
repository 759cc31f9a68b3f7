package services

import (
	"context"
	"time"

	"rentflow/internal/database"
	"rentflow/internal/models"
	"rentflow/internal/notify"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/logger"
	"rentflow/pkg/metrics"
	"rentflow/pkg/pagination"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaseService 租约生命周期：分配、终止、到期
type LeaseService struct {
	db       *gorm.DB
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time
}

// NewLeaseService 创建租约服务，notifier 可为 nil
func NewLeaseService(db *gorm.DB, m *metrics.Metrics, notifier Notifier) *LeaseService {
	return &LeaseService{
		db:       db,
		metrics:  m,
		notifier: notifier,
		now:      utcNow,
	}
}

// AllocateParams 分配参数
type AllocateParams struct {
	TenantID      uint
	UnitID        uint
	RentAmount    decimal.Decimal
	DepositAmount decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
	PaymentDay    int
}

// LeaseFilter 租约查询条件
type LeaseFilter struct {
	Status   string
	UnitID   uint
	TenantID uint
}

func (p *AllocateParams) validate() error {
	if p.TenantID == 0 || p.UnitID == 0 {
		return apperrors.Validation("租客和单元不能为空")
	}
	if p.RentAmount.IsNegative() {
		return apperrors.Validation("租金不能为负数")
	}
	if p.DepositAmount.IsNegative() {
		return apperrors.Validation("押金不能为负数")
	}
	if !p.EndDate.After(p.StartDate) {
		return apperrors.Validation("结束日期必须晚于开始日期")
	}
	if p.PaymentDay == 0 {
		p.PaymentDay = models.MinPaymentDay
	}
	if p.PaymentDay < models.MinPaymentDay || p.PaymentDay > models.MaxPaymentDay {
		return apperrors.Validation("付款日必须在 %d-%d 之间", models.MinPaymentDay, models.MaxPaymentDay)
	}
	return nil
}

// Allocate 创建生效租约并把单元标记为已出租，两步写入在同一事务中完成
func (s *LeaseService) Allocate(ctx context.Context, actor Actor, p AllocateParams) (*models.Lease, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.StartDate = models.TruncateDay(p.StartDate)
	p.EndDate = models.TruncateDay(p.EndDate)

	var lease *models.Lease
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant models.User
		if err := tx.First(&tenant, p.TenantID).Error; err != nil {
			return notFoundOr(err, "租客不存在")
		}
		if !tenant.IsActive {
			return apperrors.Validation("租客账号已停用")
		}
		if tenant.Role != models.RoleTenant {
			return apperrors.Validation("该用户不是租客")
		}

		// 锁定单元行，串行化同一单元的并发分配
		var unit models.Unit
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&unit, p.UnitID).Error; err != nil {
			return notFoundOr(err, "单元不存在")
		}
		var property models.Property
		if err := tx.First(&property, unit.PropertyID).Error; err != nil {
			return notFoundOr(err, "物业不存在")
		}
		if err := ensureManages(actor, &property); err != nil {
			return err
		}

		var active int64
		if err := tx.Model(&models.Lease{}).
			Where("unit_id = ? AND status = ?", unit.ID, models.LeaseStatusActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return apperrors.Conflict("单元已出租")
		}
		if unit.Status != models.UnitStatusVacant {
			return apperrors.InvalidState("单元当前状态为 %s，无法分配", unit.Status)
		}

		lease = &models.Lease{
			UnitID:        unit.ID,
			TenantID:      tenant.ID,
			StartDate:     p.StartDate,
			EndDate:       p.EndDate,
			RentAmount:    p.RentAmount,
			DepositAmount: p.DepositAmount,
			PaymentDay:    p.PaymentDay,
			Status:        models.LeaseStatusActive,
		}
		if err := tx.Create(lease).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperrors.Conflict("单元已出租")
			}
			return err
		}

		return tx.Model(&unit).Update("status", models.UnitStatusOccupied).Error
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindConflict {
			s.metrics.LeaseEvent("conflict")
		}
		return nil, err
	}

	s.metrics.LeaseEvent("allocated")
	logger.GetLogger().WithFields(logrus.Fields{
		"lease_id":  lease.ID,
		"unit_id":   lease.UnitID,
		"tenant_id": lease.TenantID,
	}).Info("单元已分配")
	return lease, nil
}

// Terminate 终止生效中的租约并释放单元
func (s *LeaseService) Terminate(ctx context.Context, actor Actor, leaseID uint) (*models.Lease, error) {
	now := s.now()
	today := models.TruncateDay(now)

	var lease models.Lease
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&lease, leaseID).Error; err != nil {
			return notFoundOr(err, "租约不存在")
		}
		if err := s.ensureManagesUnit(tx, actor, lease.UnitID); err != nil {
			return err
		}
		if !lease.IsActive() {
			return apperrors.InvalidState("租约状态为 %s，无法终止", lease.Status)
		}

		if err := tx.Model(&lease).Updates(map[string]interface{}{
			"status":        models.LeaseStatusTerminated,
			"end_date":      today,
			"terminated_at": now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Unit{}).Where("id = ?", lease.UnitID).
			Update("status", models.UnitStatusVacant).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LeaseEvent("terminated")
	logger.GetLogger().WithFields(logrus.Fields{
		"lease_id": lease.ID,
		"unit_id":  lease.UnitID,
	}).Info("租约已终止")
	return &lease, nil
}

// ExpireOverdue 把结束日期早于 today 的生效租约置为过期，返回处理数量
func (s *LeaseService) ExpireOverdue(ctx context.Context, today time.Time) (int, error) {
	today = models.TruncateDay(today)

	var candidates []models.Lease
	if err := s.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", models.LeaseStatusActive, today).
		Preload("Tenant").Preload("Unit").
		Find(&candidates).Error; err != nil {
		return 0, err
	}

	expired := 0
	for i := range candidates {
		lease := &candidates[i]
		changed := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// 重新检查，避免与终止操作并发
			res := tx.Model(&models.Lease{}).
				Where("id = ? AND status = ?", lease.ID, models.LeaseStatusActive).
				Update("status", models.LeaseStatusExpired)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			if err := tx.Model(&models.Unit{}).Where("id = ?", lease.UnitID).
				Update("status", models.UnitStatusVacant).Error; err != nil {
				return err
			}
			changed = true
			return nil
		})
		if err != nil {
			logger.GetLogger().WithError(err).WithField("lease_id", lease.ID).Error("租约过期处理失败")
			continue
		}
		if !changed {
			continue
		}

		expired++
		s.metrics.LeaseEvent("expired")
		s.notifyExpired(ctx, lease)
	}

	if expired > 0 {
		logger.GetLogger().Infof("已处理 %d 个到期租约", expired)
	}
	return expired, nil
}

func (s *LeaseService) notifyExpired(ctx context.Context, lease *models.Lease) {
	if s.notifier == nil || lease.Tenant == nil {
		return
	}
	vars := map[string]interface{}{
		"tenant_name": lease.Tenant.Name,
		"end_date":    formatDate(lease.EndDate),
	}
	if lease.Unit != nil {
		vars["unit"] = lease.Unit.UnitNumber
	}
	err := s.notifier.Send(ctx, notify.Message{
		Type:      notify.TemplateLeaseExpired,
		Recipient: recipientOf(lease.Tenant),
		Variables: vars,
	})
	if err != nil {
		logger.GetLogger().WithError(err).WithField("lease_id", lease.ID).Warn("租约到期通知发送失败")
	}
}

// Get 获取租约详情
func (s *LeaseService) Get(ctx context.Context, actor Actor, id uint) (*models.Lease, error) {
	var lease models.Lease
	err := s.db.WithContext(ctx).
		Preload("Unit.Property").Preload("Tenant").
		First(&lease, id).Error
	if err != nil {
		return nil, notFoundOr(err, "租约不存在")
	}

	switch {
	case actor.IsAdmin():
	case actor.IsTenant():
		if lease.TenantID != actor.UserID {
			return nil, apperrors.Forbidden("无权查看该租约")
		}
	default:
		if lease.Unit == nil || ensureManages(actor, lease.Unit.Property) != nil {
			return nil, apperrors.Forbidden("无权查看该租约")
		}
	}
	return &lease, nil
}

// List 分页查询租约，租客只能看到自己的，房东只能看到名下单元的
func (s *LeaseService) List(ctx context.Context, actor Actor, filter LeaseFilter, page *pagination.PageParams) ([]models.Lease, int64, error) {
	query := s.scoped(s.db.WithContext(ctx).Model(&models.Lease{}), actor)
	if filter.Status != "" {
		query = query.Where("leases.status = ?", filter.Status)
	}
	if filter.UnitID != 0 {
		query = query.Where("leases.unit_id = ?", filter.UnitID)
	}
	if filter.TenantID != 0 {
		query = query.Where("leases.tenant_id = ?", filter.TenantID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var leases []models.Lease
	err := query.Preload("Unit.Property").Preload("Tenant").
		Order("leases.created_at DESC").
		Scopes(page.Scope()).
		Find(&leases).Error
	return leases, total, err
}

// ActiveLeaseForTenant 租客当前生效的租约，没有时返回 nil
func (s *LeaseService) ActiveLeaseForTenant(ctx context.Context, tenantID uint) (*models.Lease, error) {
	return activeLeaseForTenant(s.db.WithContext(ctx), tenantID)
}

func activeLeaseForTenant(db *gorm.DB, tenantID uint) (*models.Lease, error) {
	var leases []models.Lease
	err := db.Where("tenant_id = ? AND status = ?", tenantID, models.LeaseStatusActive).
		Preload("Unit.Property").
		Order("start_date DESC").
		Limit(1).
		Find(&leases).Error
	if err != nil {
		return nil, err
	}
	if len(leases) == 0 {
		return nil, nil
	}
	return &leases[0], nil
}

func (s *LeaseService) scoped(query *gorm.DB, actor Actor) *gorm.DB {
	switch {
	case actor.IsAdmin():
		return query
	case actor.IsTenant():
		return query.Where("leases.tenant_id = ?", actor.UserID)
	default:
		return query.Where("leases.unit_id IN (?)", ownedUnitIDs(s.db, actor.UserID))
	}
}

func (s *LeaseService) ensureManagesUnit(tx *gorm.DB, actor Actor, unitID uint) error {
	if actor.IsAdmin() {
		return nil
	}
	var unit models.Unit
	if err := tx.Preload("Property").First(&unit, unitID).Error; err != nil {
		return notFoundOr(err, "单元不存在")
	}
	return ensureManages(actor, unit.Property)
}
