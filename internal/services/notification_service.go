package services

import (
	"context"
	"encoding/json"
	"time"

	"rentflow/internal/models"
	"rentflow/internal/notify"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/logger"
	"rentflow/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dispatcher 外发通知，入队和同步投递
type Dispatcher interface {
	Notifier
	Deliverer
}

// NotificationService 站内通知、外发通知和延迟通知
type NotificationService struct {
	db          *gorm.DB
	dispatcher  Dispatcher
	publisher   Publisher
	templates   *notify.Templates
	maxAttempts int
	now         func() time.Time
}

// NewNotificationService dispatcher 和 publisher 可为 nil
func NewNotificationService(db *gorm.DB, dispatcher Dispatcher, publisher Publisher, maxAttempts int) *NotificationService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &NotificationService{
		db:          db,
		dispatcher:  dispatcher,
		publisher:   publisher,
		templates:   notify.MustTemplates(),
		maxAttempts: maxAttempts,
		now:         utcNow,
	}
}

// SendResult 立即发送返回站内通知，延迟发送返回计划记录
type SendResult struct {
	Notification *models.Notification          `json:"notification,omitempty"`
	Scheduled    *models.ScheduledNotification `json:"scheduled,omitempty"`
}

// Create 创建站内通知并推送给在线用户
func (s *NotificationService) Create(ctx context.Context, userID uint, typ, title, message string) (*models.Notification, error) {
	if typ == "" {
		typ = models.NotificationTypeInfo
	}
	n := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, userChannel(userID), n); err != nil {
			logger.GetLogger().WithError(err).WithField("user_id", userID).Warn("推送站内通知失败")
		}
	}
	return n, nil
}

// NotifyUser 站内通知加外发通知，失败只记录日志，不影响主流程
func (s *NotificationService) NotifyUser(ctx context.Context, user *models.User, typ, templateKey string, vars map[string]interface{}) {
	if user == nil {
		return
	}
	log := logger.GetLogger().WithFields(logrus.Fields{"user_id": user.ID, "template": templateKey})

	content, err := s.templates.Render(templateKey, vars)
	if err != nil {
		log.WithError(err).Warn("渲染通知失败")
		return
	}
	if _, err := s.Create(ctx, user.ID, typ, content.Title, content.Body); err != nil {
		log.WithError(err).Warn("创建站内通知失败")
	}

	if s.dispatcher == nil {
		return
	}
	err = s.dispatcher.Send(ctx, notify.Message{
		Type:      templateKey,
		Recipient: recipientOf(user),
		Variables: vars,
	})
	if err != nil {
		log.WithError(err).Warn("外发通知失败")
	}
}

// NotifyStaff 给物业所有者发站内通知
func (s *NotificationService) NotifyStaff(ctx context.Context, ownerID uint, typ, title, message string) {
	if ownerID == 0 {
		return
	}
	if _, err := s.Create(ctx, ownerID, typ, title, message); err != nil {
		logger.GetLogger().WithError(err).WithField("user_id", ownerID).Warn("创建站内通知失败")
	}
}

// Send 发送通知给指定用户，ScheduledAt 晚于当前时间时改为延迟发送
func (s *NotificationService) Send(ctx context.Context, req *models.CreateNotificationRequest) (*SendResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, req.UserID).Error; err != nil {
		return nil, notFoundOr(err, "用户不存在")
	}
	if !user.IsActive {
		return nil, apperrors.InvalidState("用户已停用")
	}

	key := req.TemplateKey
	vars := req.Variables
	if key == "" {
		if req.Title == "" && req.Message == "" {
			return nil, apperrors.Validation("标题和内容不能同时为空")
		}
		key = notify.TemplateGeneral
		vars = map[string]interface{}{"title": req.Title, "message": req.Message}
	}
	if !s.templates.Has(key) {
		return nil, apperrors.Validation("未知的通知模板: %s", key)
	}

	if req.ScheduledAt != nil && req.ScheduledAt.After(s.now()) {
		scheduled, err := s.Schedule(ctx, user.ID, key, vars, *req.ScheduledAt)
		if err != nil {
			return nil, err
		}
		return &SendResult{Scheduled: scheduled}, nil
	}

	content, err := s.templates.Render(key, vars)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	n, err := s.Create(ctx, user.ID, req.Type, content.Title, content.Body)
	if err != nil {
		return nil, err
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Send(ctx, notify.Message{Type: key, Recipient: recipientOf(&user), Variables: vars}); err != nil {
			logger.GetLogger().WithError(err).WithField("user_id", user.ID).Warn("外发通知失败")
		}
	}
	return &SendResult{Notification: n}, nil
}

// List 当前用户的通知
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, page *pagination.PageParams) ([]models.Notification, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Notification
	err := query.Order("created_at DESC, id DESC").Scopes(page.Scope()).Find(&items).Error
	return items, total, err
}

// MarkRead 标记指定通知已读，只影响自己的通知
func (s *NotificationService) MarkRead(ctx context.Context, userID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, apperrors.Validation("请指定通知ID")
	}
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND id IN ? AND is_read = ?", userID, ids, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now()})
	return res.RowsAffected, res.Error
}

// MarkAllRead 全部标记已读
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now()})
	return res.RowsAffected, res.Error
}

// UnreadCount 未读数量
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// Schedule 持久化一条延迟通知，由调度器到期投递
func (s *NotificationService) Schedule(ctx context.Context, userID uint, templateKey string, vars map[string]interface{}, dueAt time.Time) (*models.ScheduledNotification, error) {
	if !s.templates.Has(templateKey) {
		return nil, apperrors.Validation("未知的通知模板: %s", templateKey)
	}
	raw, err := json.Marshal(vars)
	if err != nil {
		return nil, apperrors.Validation("变量无法序列化: %v", err)
	}

	row := &models.ScheduledNotification{
		UserID:      userID,
		TemplateKey: templateKey,
		Variables:   datatypes.JSON(raw),
		DueAt:       dueAt.UTC(),
		Status:      models.ScheduledStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// ProcessDue 投递到期的延迟通知。失败累计重试次数，超过上限标记 failed。
func (s *NotificationService) ProcessDue(ctx context.Context, limit int) (sent int, failed int, err error) {
	if limit <= 0 {
		limit = 100
	}
	now := s.now()

	var due []models.ScheduledNotification
	if err := s.db.WithContext(ctx).
		Where("status = ? AND due_at <= ?", models.ScheduledStatusPending, now).
		Order("due_at").
		Limit(limit).
		Find(&due).Error; err != nil {
		return 0, 0, err
	}

	for i := range due {
		row := &due[i]

		// 乐观锁领取：attempts 未被其他实例修改才继续
		claim := s.db.WithContext(ctx).Model(&models.ScheduledNotification{}).
			Where("id = ? AND status = ? AND attempts = ?", row.ID, models.ScheduledStatusPending, row.Attempts).
			UpdateColumn("attempts", gorm.Expr("attempts + ?", 1))
		if claim.Error != nil {
			return sent, failed, claim.Error
		}
		if claim.RowsAffected == 0 {
			continue
		}
		row.Attempts++

		if deliverErr := s.deliverScheduled(ctx, row); deliverErr != nil {
			status := models.ScheduledStatusPending
			if row.Attempts >= s.maxAttempts {
				status = models.ScheduledStatusFailed
				failed++
			}
			logger.GetLogger().WithError(deliverErr).WithFields(logrus.Fields{
				"scheduled_id": row.ID,
				"attempts":     row.Attempts,
			}).Warn("延迟通知投递失败")
			if err := s.db.WithContext(ctx).Model(row).Updates(map[string]interface{}{
				"status":     status,
				"last_error": deliverErr.Error(),
			}).Error; err != nil {
				return sent, failed, err
			}
			continue
		}

		if err := s.db.WithContext(ctx).Model(row).Updates(map[string]interface{}{
			"status":     models.ScheduledStatusSent,
			"sent_at":    s.now(),
			"last_error": "",
		}).Error; err != nil {
			return sent, failed, err
		}
		sent++
	}
	return sent, failed, nil
}

func (s *NotificationService) deliverScheduled(ctx context.Context, row *models.ScheduledNotification) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, row.UserID).Error; err != nil {
		return notFoundOr(err, "用户不存在")
	}

	vars := map[string]interface{}{}
	if len(row.Variables) > 0 {
		if err := json.Unmarshal(row.Variables, &vars); err != nil {
			return apperrors.Validation("变量格式错误: %v", err)
		}
	}
	content, err := s.templates.Render(row.TemplateKey, vars)
	if err != nil {
		return err
	}

	// 先外发，成功后再写站内通知，避免重试产生重复站内通知
	if s.dispatcher != nil {
		if _, err := s.dispatcher.Deliver(ctx, notify.Message{
			Type:      row.TemplateKey,
			Recipient: recipientOf(&user),
			Variables: vars,
		}); err != nil {
			return err
		}
	}
	_, err = s.Create(ctx, user.ID, models.NotificationTypeInfo, content.Title, content.Body)
	return err
}
