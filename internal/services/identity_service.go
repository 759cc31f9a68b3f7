package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentflow/internal/database"
	"rentflow/internal/models"
	"rentflow/pkg/config"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/logger"
	"rentflow/pkg/pagination"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

// 身份提供方事件类型
const (
	IdentityEventUserCreated = "user.created"
	IdentityEventUserUpdated = "user.updated"
	IdentityEventUserDeleted = "user.deleted"
)

// 旧版按邮箱关键字推断管理员
var legacyAdminKeywords = []string{"admin", "landlord", "owner", "manager"}

// IdentityService 身份同步与用户管理
type IdentityService struct {
	db  *gorm.DB
	cfg config.IdentityConfig
	now func() time.Time
}

func NewIdentityService(db *gorm.DB, cfg config.IdentityConfig) *IdentityService {
	return &IdentityService{
		db:  db,
		cfg: cfg,
		now: utcNow,
	}
}

// SyncInput 身份提供方同步的用户资料
type SyncInput struct {
	ExternalID    string
	Name          string
	Email         string
	Phone         string
	RequestedRole string // public_metadata.role
}

// IdentityEvent 解析后的 webhook 事件
type IdentityEvent struct {
	Type string
	User SyncInput
}

// UserFilter 用户查询条件
type UserFilter struct {
	Role    string
	Keyword string
	Active  *bool
}

// ParseClerkEvent 解析身份提供方 webhook：{type, data}
func ParseClerkEvent(body []byte) (*IdentityEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.Validation("无效的JSON")
	}
	root := gjson.ParseBytes(body)
	eventType := root.Get("type").String()
	if eventType == "" {
		return nil, apperrors.Validation("缺少事件类型")
	}
	data := root.Get("data")
	externalID := data.Get("id").String()
	if externalID == "" {
		return nil, apperrors.Validation("缺少用户ID")
	}

	name := strings.TrimSpace(data.Get("first_name").String() + " " + data.Get("last_name").String())
	if name == "" {
		name = data.Get("username").String()
	}

	return &IdentityEvent{
		Type: eventType,
		User: SyncInput{
			ExternalID:    externalID,
			Name:          name,
			Email:         primaryOf(data, "email_addresses", "primary_email_address_id", "email_address"),
			Phone:         primaryOf(data, "phone_numbers", "primary_phone_number_id", "phone_number"),
			RequestedRole: data.Get("public_metadata.role").String(),
		},
	}, nil
}

// primaryOf 取主联系方式，没有匹配时取第一个
func primaryOf(data gjson.Result, listKey, primaryKey, valueKey string) string {
	list := data.Get(listKey).Array()
	if len(list) == 0 {
		return ""
	}
	primaryID := data.Get(primaryKey).String()
	for _, item := range list {
		if primaryID != "" && item.Get("id").String() == primaryID {
			return item.Get(valueKey).String()
		}
	}
	return list[0].Get(valueKey).String()
}

// HandleEvent 处理 webhook 事件，未知类型直接忽略
func (s *IdentityService) HandleEvent(ctx context.Context, ev *IdentityEvent) (*models.User, error) {
	switch ev.Type {
	case IdentityEventUserCreated, IdentityEventUserUpdated:
		user, _, err := s.SyncUser(ctx, ev.User)
		return user, err
	case IdentityEventUserDeleted:
		err := s.DeactivateUser(ctx, ev.User.ExternalID)
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, nil
		}
		return nil, err
	default:
		logger.GetLogger().WithField("type", ev.Type).Debug("忽略身份事件")
		return nil, nil
	}
}

// SyncUser 按 external_id 幂等同步用户。首次同步分配角色，之后只更新联系方式，不改角色。
func (s *IdentityService) SyncUser(ctx context.Context, in SyncInput) (*models.User, bool, error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.ExternalID == "" {
		return nil, false, apperrors.Validation("external_id 不能为空")
	}

	user, created, err := s.syncOnce(ctx, in)
	if err != nil && database.IsUniqueViolation(err) {
		// 并发的首次同步，另一方已创建，按更新处理
		user, created, err = s.syncOnce(ctx, in)
	}
	if err != nil {
		return nil, false, err
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"external_id": user.ExternalID,
		"user_id":     user.ID,
		"role":        user.Role,
		"created":     created,
	}).Info("用户已同步")
	return user, created, nil
}

func (s *IdentityService) syncOnce(ctx context.Context, in SyncInput) (*models.User, bool, error) {
	now := s.now()
	var user models.User
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("external_id = ?", in.ExternalID).First(&user).Error
		if err == nil {
			return tx.Model(&user).Updates(map[string]interface{}{
				"name":           in.Name,
				"email":          in.Email,
				"phone":          in.Phone,
				"is_active":      true,
				"last_synced_at": now,
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user = models.User{
			ExternalID:   in.ExternalID,
			Name:         in.Name,
			Email:        in.Email,
			Phone:        in.Phone,
			Role:         s.resolveRole(in),
			IsActive:     true,
			LastSyncedAt: &now,
		}
		created = true
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &user, created, nil
}

// resolveRole 首次同步时的角色：public_metadata > 配置的邮箱名单 > 旧关键字规则(可选) > 租客
func (s *IdentityService) resolveRole(in SyncInput) models.Role {
	if role, ok := models.ParseRole(in.RequestedRole); ok {
		return role
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != "" {
		if containsFold(s.cfg.AdminEmails, email) {
			return models.RoleAdmin
		}
		if containsFold(s.cfg.LandlordEmails, email) {
			return models.RoleLandlord
		}
		if s.cfg.RoleHeuristic {
			for _, kw := range legacyAdminKeywords {
				if strings.Contains(email, kw) {
					return models.RoleAdmin
				}
			}
		}
	}
	return models.RoleTenant
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), s) {
			return true
		}
	}
	return false
}

// DeactivateUser 停用用户，租约与付款记录保留
func (s *IdentityService) DeactivateUser(ctx context.Context, externalID string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("external_id = ?", externalID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("用户不存在")
	}
	logger.GetLogger().WithField("external_id", externalID).Info("用户已停用")
	return nil
}

// ChangeRole 管理员修改用户角色
func (s *IdentityService) ChangeRole(ctx context.Context, actor Actor, userID uint, role models.Role) (*models.User, error) {
	if !actor.Role.Can(models.CapManageUsers) {
		return nil, apperrors.Forbidden("只有管理员可以修改角色")
	}
	if !role.Valid() {
		return nil, apperrors.Validation("无效的角色: %s", role)
	}
	if actor.UserID != 0 && actor.UserID == userID {
		return nil, apperrors.InvalidState("不能修改自己的角色")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "用户不存在")
	}
	if user.Role == role {
		return &user, nil
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("role", role).Error; err != nil {
		return nil, err
	}
	user.Role = role

	logger.GetLogger().WithFields(logrus.Fields{
		"user_id":  user.ID,
		"role":     role,
		"operator": actor.UserID,
	}).Info("用户角色已修改")
	return &user, nil
}

// GetByExternalID 认证时按 external_id 查找用户
func (s *IdentityService) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "用户不存在")
	}
	return &user, nil
}

// GetByID 根据ID获取用户
func (s *IdentityService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "用户不存在")
	}
	return &user, nil
}

// List 分页查询用户
func (s *IdentityService) List(ctx context.Context, filter UserFilter, page *pagination.PageParams) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR phone LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := query.Order("created_at DESC").Scopes(page.Scope()).Find(&users).Error
	return users, total, err
}
