package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentflow/internal/models"
	"rentflow/internal/notify"
	apperrors "rentflow/pkg/errors"

	"gorm.io/gorm"
)

// Actor 当前操作人
type Actor struct {
	UserID uint
	Role   models.Role
}

// SystemActor 命令行和定时任务使用的管理员身份
func SystemActor() Actor {
	return Actor{Role: models.RoleAdmin}
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) IsTenant() bool {
	return a.Role == models.RoleTenant
}

// Notifier 外发通知（入队即返回）
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Deliverer 同步投递，用于需要知道结果的延迟通知
type Deliverer interface {
	Deliver(ctx context.Context, msg notify.Message) ([]notify.Result, error)
}

// Publisher 站内通知实时推送
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// notFoundOr 把 gorm.ErrRecordNotFound 转成业务 NotFound
func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(format, args...)
	}
	return err
}

// ensureManages 房东只能操作自己的物业，管理员不受限
func ensureManages(actor Actor, property *models.Property) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == models.RoleLandlord && property != nil && property.OwnerID == actor.UserID {
		return nil
	}
	return apperrors.Forbidden("无权操作该物业")
}

// ownedUnitIDs 房东名下所有单元ID子查询
func ownedUnitIDs(db *gorm.DB, ownerID uint) *gorm.DB {
	return db.Model(&models.Unit{}).
		Select("units.id").
		Joins("JOIN properties ON properties.id = units.property_id").
		Where("properties.owner_id = ?", ownerID)
}

// recipientOf 通知收件人
func recipientOf(u *models.User) notify.Recipient {
	if u == nil {
		return notify.Recipient{}
	}
	return notify.Recipient{Name: u.Name, Email: u.Email, Phone: u.Phone}
}

func formatDate(t time.Time) string {
	return t.UTC().Format(models.DateLayout)
}

func userChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// UserChannel 用户站内通知推送频道
func UserChannel(userID uint) string {
	return userChannel(userID)
}
