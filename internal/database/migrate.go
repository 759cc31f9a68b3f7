package database

import (
	"fmt"

	"rentflow/internal/models"
	"rentflow/pkg/logger"

	"gorm.io/gorm"
)

// 同一单元最多一个 active 租约，由存储层保证
const activeLeaseIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_leases_one_active_per_unit ON leases (unit_id) WHERE status = 'active'`

// Migrate 执行数据库迁移
func Migrate() error {
	return MigrateDB(DB)
}

// MigrateDB 对指定连接执行迁移
func MigrateDB(db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Unit{},
		&models.Lease{},
		&models.Payment{},
		&models.MaintenanceRequest{},
		&models.Notification{},
		&models.ScheduledNotification{},
		&models.CalendarEvent{},
	)
	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	if err := db.Exec(activeLeaseIndexSQL).Error; err != nil {
		return fmt.Errorf("创建租约唯一索引失败: %w", err)
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}
