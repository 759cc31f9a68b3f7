package services

import (
	"rentflow/internal/notify"
	"rentflow/pkg/config"
	"rentflow/pkg/logger"
	"rentflow/pkg/metrics"
	"rentflow/pkg/queue"

	"gorm.io/gorm"
)

// Container 组装好的服务集合，serve 命令和接口测试共用
type Container struct {
	DB            *gorm.DB
	Queue         *queue.RedisQueue
	Metrics       *metrics.Metrics
	Dispatcher    *notify.Dispatcher
	Identity      *IdentityService
	Properties    *PropertyService
	Units         *UnitService
	Leases        *LeaseService
	Payments      *PaymentService
	Maintenance   *MaintenanceService
	Notifications *NotificationService
	Calendar      *CalendarService
	Scheduler     *Scheduler
}

// NewContainer q 为 nil 时通知在后台直接投递，不做实时推送
func NewContainer(db *gorm.DB, q *queue.RedisQueue, cfg *config.Config, m *metrics.Metrics, opts ...notify.Option) *Container {
	opts = append([]notify.Option{notify.WithMetrics(m)}, opts...)
	dispatcher := notify.NewDispatcher(q, cfg.Notify, logger.GetLogger(), opts...)

	var publisher Publisher
	if q != nil {
		publisher = q
	}

	notifications := NewNotificationService(db, dispatcher, publisher, cfg.Notify.MaxAttempts)
	leases := NewLeaseService(db, m, dispatcher)

	return &Container{
		DB:            db,
		Queue:         q,
		Metrics:       m,
		Dispatcher:    dispatcher,
		Identity:      NewIdentityService(db, cfg.Identity),
		Properties:    NewPropertyService(db),
		Units:         NewUnitService(db),
		Leases:        leases,
		Payments:      NewPaymentService(db, notifications, m),
		Maintenance:   NewMaintenanceService(db, notifications),
		Notifications: notifications,
		Calendar:      NewCalendarService(db),
		Scheduler:     NewScheduler(cfg.Scheduler, leases, notifications),
	}
}
