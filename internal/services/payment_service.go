package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rentflow/internal/models"
	"rentflow/internal/notify"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/logger"
	"rentflow/pkg/metrics"
	"rentflow/pkg/pagination"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const recentPaymentsLimit = 5

// PaymentService 付款登记、审核与租客看板
type PaymentService struct {
	db            *gorm.DB
	notifications *NotificationService
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewPaymentService notifications 可为 nil
func NewPaymentService(db *gorm.DB, notifications *NotificationService, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		db:            db,
		notifications: notifications,
		metrics:       m,
		now:           utcNow,
	}
}

// PaymentFilter 付款查询条件
type PaymentFilter struct {
	LeaseID  uint
	TenantID uint
	Status   string
}

// Dashboard 租客看板，Allocated=false 表示当前没有生效租约
type Dashboard struct {
	Allocated      bool             `json:"allocated"`
	Lease          *models.Lease    `json:"lease,omitempty"`
	Unit           *models.Unit     `json:"unit,omitempty"`
	Property       *models.Property `json:"property,omitempty"`
	Balance        *Balance         `json:"balance,omitempty"`
	RecentPayments []models.Payment `json:"recent_payments,omitempty"`
}

// Create 租客提交或房东登记付款
func (s *PaymentService) Create(ctx context.Context, actor Actor, req *models.CreatePaymentRequest) (*models.Payment, error) {
	required := models.CapRecordPayments
	if actor.IsTenant() {
		required = models.CapSubmitPayments
	}
	if !actor.Role.Can(required) {
		return nil, apperrors.Forbidden("无权创建付款")
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.Validation("付款金额必须大于0")
	}

	paymentDate := models.TruncateDay(s.now())
	if req.PaymentDate != "" {
		d, err := models.ParseDate(req.PaymentDate)
		if err != nil {
			return nil, apperrors.Validation("付款日期格式错误")
		}
		paymentDate = d
	}

	lease, err := s.resolveLease(ctx, actor, req.LeaseID)
	if err != nil {
		return nil, err
	}

	reference := strings.TrimSpace(req.ReferenceNumber)
	if reference == "" {
		reference = newReference()
	}

	payment := &models.Payment{
		LeaseID:         lease.ID,
		TenantID:        lease.TenantID,
		Amount:          req.Amount,
		PaymentDate:     paymentDate,
		PaymentMethod:   req.PaymentMethod,
		ReferenceNumber: reference,
		Status:          models.PaymentStatusPending,
		Notes:           req.Notes,
		RecordedBy:      actor.UserID,
	}
	if !actor.IsTenant() && req.Verified {
		now := s.now()
		payment.Status = models.PaymentStatusVerified
		payment.VerifiedBy = &actor.UserID
		payment.VerifiedAt = &now
	}

	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}

	event := "submitted"
	if !actor.IsTenant() {
		event = "recorded"
	}
	s.metrics.PaymentEvent(event)
	logger.GetLogger().WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"lease_id":   lease.ID,
		"status":     payment.Status,
		"recorded":   actor.UserID,
	}).Info("付款已创建")

	s.afterCreate(ctx, actor, lease, payment)
	return payment, nil
}

// resolveLease 租客只能为自己的生效租约付款，房东只能登记名下单元的租约
func (s *PaymentService) resolveLease(ctx context.Context, actor Actor, leaseID uint) (*models.Lease, error) {
	db := s.db.WithContext(ctx)

	if actor.IsTenant() {
		if leaseID == 0 {
			lease, err := activeLeaseForTenant(db, actor.UserID)
			if err != nil {
				return nil, err
			}
			if lease == nil {
				return nil, apperrors.NotFound("当前没有生效中的租约")
			}
			return lease, nil
		}
		var lease models.Lease
		if err := db.Preload("Unit.Property").First(&lease, leaseID).Error; err != nil {
			return nil, notFoundOr(err, "租约不存在")
		}
		if lease.TenantID != actor.UserID {
			return nil, apperrors.Forbidden("无权为该租约付款")
		}
		if !lease.IsActive() {
			return nil, apperrors.InvalidState("租约状态为 %s，无法付款", lease.Status)
		}
		return &lease, nil
	}

	if leaseID == 0 {
		return nil, apperrors.Validation("请指定租约")
	}
	var lease models.Lease
	if err := db.Preload("Unit.Property").First(&lease, leaseID).Error; err != nil {
		return nil, notFoundOr(err, "租约不存在")
	}
	if lease.Unit == nil {
		return nil, apperrors.NotFound("单元不存在")
	}
	if err := ensureManages(actor, lease.Unit.Property); err != nil {
		return nil, err
	}
	return &lease, nil
}

func (s *PaymentService) afterCreate(ctx context.Context, actor Actor, lease *models.Lease, payment *models.Payment) {
	if s.notifications == nil {
		return
	}
	var tenant models.User
	if err := s.db.WithContext(ctx).First(&tenant, payment.TenantID).Error; err != nil {
		logger.GetLogger().WithError(err).WithField("payment_id", payment.ID).Warn("加载租客失败，跳过通知")
		return
	}

	key := notify.TemplatePaymentSubmitted
	switch {
	case payment.IsPaid():
		key = notify.TemplatePaymentVerified
	case !actor.IsTenant():
		key = notify.TemplatePaymentRecorded
	}
	s.notifications.NotifyUser(ctx, &tenant, models.NotificationTypePayment, key, paymentVars(&tenant, payment, ""))

	// 租客提交的付款提醒房东审核
	if actor.IsTenant() && lease.Unit != nil && lease.Unit.Property != nil {
		s.notifications.NotifyStaff(ctx, lease.Unit.Property.OwnerID, models.NotificationTypePayment,
			"新的付款待审核",
			fmt.Sprintf("%s 提交了 %s 的付款（%s），参考号 %s", tenant.Name, payment.Amount.StringFixed(2), formatDate(payment.PaymentDate), payment.ReferenceNumber))
	}
}

func paymentVars(tenant *models.User, p *models.Payment, reason string) map[string]interface{} {
	vars := map[string]interface{}{
		"tenant_name":  tenant.Name,
		"amount":       p.Amount.StringFixed(2),
		"payment_date": formatDate(p.PaymentDate),
		"reference":    p.ReferenceNumber,
	}
	if reason != "" {
		vars["reason"] = reason
	}
	return vars
}

func newReference() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}

// Review 审核付款：只能处理 pending 状态
func (s *PaymentService) Review(ctx context.Context, actor Actor, req *models.ReviewPaymentRequest) (*models.Payment, error) {
	if !actor.Role.Can(models.CapReviewPayments) {
		return nil, apperrors.Forbidden("无权审核付款")
	}
	if req.Action != "verify" && req.Action != "reject" {
		return nil, apperrors.Validation("无效的审核操作: %s", req.Action)
	}

	now := s.now()
	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, req.PaymentID).Error; err != nil {
			return notFoundOr(err, "付款记录不存在")
		}

		var lease models.Lease
		if err := tx.Preload("Unit.Property").First(&lease, payment.LeaseID).Error; err != nil {
			return notFoundOr(err, "租约不存在")
		}
		if !actor.IsAdmin() {
			if lease.Unit == nil {
				return apperrors.NotFound("单元不存在")
			}
			if err := ensureManages(actor, lease.Unit.Property); err != nil {
				return err
			}
		}

		if payment.Status != models.PaymentStatusPending {
			return apperrors.InvalidState("付款状态为 %s，无法审核", payment.Status)
		}

		updates := map[string]interface{}{}
		if req.Action == "verify" {
			updates["status"] = models.PaymentStatusVerified
			updates["verified_by"] = actor.UserID
			updates["verified_at"] = now
		} else {
			updates["status"] = models.PaymentStatusRejected
			updates["rejection_reason"] = req.Reason
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&payment, payment.ID).Error
	})
	if err != nil {
		return nil, err
	}

	event := "verified"
	key := notify.TemplatePaymentVerified
	if payment.Status == models.PaymentStatusRejected {
		event = "rejected"
		key = notify.TemplatePaymentRejected
	}
	s.metrics.PaymentEvent(event)
	logger.GetLogger().WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"status":     payment.Status,
		"operator":   actor.UserID,
	}).Info("付款已审核")

	if s.notifications != nil {
		var tenant models.User
		if err := s.db.WithContext(ctx).First(&tenant, payment.TenantID).Error; err == nil {
			s.notifications.NotifyUser(ctx, &tenant, models.NotificationTypePayment, key, paymentVars(&tenant, &payment, payment.RejectionReason))
		}
	}
	return &payment, nil
}

// Get 获取付款记录
func (s *PaymentService) Get(ctx context.Context, actor Actor, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.scoped(s.db.WithContext(ctx).Model(&models.Payment{}), actor).
		Preload("Lease.Unit.Property").
		First(&payment, id).Error; err != nil {
		return nil, notFoundOr(err, "付款记录不存在")
	}
	return &payment, nil
}

// List 分页查询付款，租客只能看到自己的
func (s *PaymentService) List(ctx context.Context, actor Actor, filter PaymentFilter, page *pagination.PageParams) ([]models.Payment, int64, error) {
	query := s.scoped(s.db.WithContext(ctx).Model(&models.Payment{}), actor)
	if filter.LeaseID != 0 {
		query = query.Where("payments.lease_id = ?", filter.LeaseID)
	}
	if filter.TenantID != 0 {
		query = query.Where("payments.tenant_id = ?", filter.TenantID)
	}
	if filter.Status != "" {
		query = query.Where("payments.status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	err := query.Order("payments.payment_date DESC, payments.id DESC").
		Scopes(page.Scope()).
		Find(&payments).Error
	return payments, total, err
}

func (s *PaymentService) scoped(query *gorm.DB, actor Actor) *gorm.DB {
	switch {
	case actor.IsAdmin():
		return query
	case actor.IsTenant():
		return query.Where("payments.tenant_id = ?", actor.UserID)
	default:
		leaseIDs := s.db.Model(&models.Lease{}).Select("id").Where("unit_id IN (?)", ownedUnitIDs(s.db, actor.UserID))
		return query.Where("payments.lease_id IN (?)", leaseIDs)
	}
}

// TenantDashboard 租客看板：当前租约、单元、物业、应缴余额和最近付款
func (s *PaymentService) TenantDashboard(ctx context.Context, tenantID uint) (*Dashboard, error) {
	db := s.db.WithContext(ctx)

	lease, err := activeLeaseForTenant(db, tenantID)
	if err != nil {
		return nil, err
	}
	if lease == nil {
		return &Dashboard{Allocated: false}, nil
	}

	var payments []models.Payment
	if err := db.Where("lease_id = ?", lease.ID).
		Order("payment_date DESC, id DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}

	balance := ComputeBalance(lease, payments, s.now())
	recent := payments
	if len(recent) > recentPaymentsLimit {
		recent = recent[:recentPaymentsLimit]
	}

	d := &Dashboard{
		Allocated:      true,
		Lease:          lease,
		Balance:        &balance,
		RecentPayments: recent,
	}
	if lease.Unit != nil {
		d.Unit = lease.Unit
		d.Property = lease.Unit.Property
	}
	return d, nil
}
