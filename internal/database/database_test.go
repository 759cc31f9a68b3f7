package database

import (
	"context"
	"strconv"
	"testing"
	"time"

	"rentflow/internal/models"
	"rentflow/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, MigrateDB(db))
	return db
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, MigrateDB(db))
}

func TestMigrate_ActiveLeaseUniqueIndex(t *testing.T) {
	db := newTestDB(t)

	owner := &models.User{ExternalID: "owner", Role: models.RoleLandlord, IsActive: true}
	tenant := &models.User{ExternalID: "tenant", Role: models.RoleTenant, IsActive: true}
	require.NoError(t, db.Create(owner).Error)
	require.NoError(t, db.Create(tenant).Error)
	property := &models.Property{OwnerID: owner.ID, Name: "Block A", Status: models.PropertyStatusActive}
	require.NoError(t, db.Create(property).Error)
	unit := &models.Unit{PropertyID: property.ID, UnitNumber: "1", Status: models.UnitStatusVacant}
	require.NoError(t, db.Create(unit).Error)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lease := func(status string) *models.Lease {
		return &models.Lease{
			UnitID: unit.ID, TenantID: tenant.ID, StartDate: start, EndDate: start.AddDate(1, 0, 0),
			RentAmount: decimal.NewFromInt(100), PaymentDay: 1, Status: status,
		}
	}

	require.NoError(t, db.Create(lease(models.LeaseStatusActive)).Error)
	// 非 active 的租约不受约束
	require.NoError(t, db.Create(lease(models.LeaseStatusTerminated)).Error)
	require.NoError(t, db.Create(lease(models.LeaseStatusTerminated)).Error)

	err := db.Create(lease(models.LeaseStatusActive)).Error
	assert.True(t, IsUniqueViolation(err), "expected unique violation, got %v", err)
}

func TestMigrate_UnitNumberUniqueWithinProperty(t *testing.T) {
	db := newTestDB(t)

	owner := &models.User{ExternalID: "owner", Role: models.RoleLandlord, IsActive: true}
	require.NoError(t, db.Create(owner).Error)
	p1 := &models.Property{OwnerID: owner.ID, Name: "P1"}
	p2 := &models.Property{OwnerID: owner.ID, Name: "P2"}
	require.NoError(t, db.Create(p1).Error)
	require.NoError(t, db.Create(p2).Error)

	require.NoError(t, db.Create(&models.Unit{PropertyID: p1.ID, UnitNumber: "A1", Status: models.UnitStatusVacant}).Error)
	require.NoError(t, db.Create(&models.Unit{PropertyID: p2.ID, UnitNumber: "A1", Status: models.UnitStatusVacant}).Error)

	err := db.Create(&models.Unit{PropertyID: p1.ID, UnitNumber: "A1", Status: models.UnitStatusVacant}).Error
	assert.True(t, IsUniqueViolation(err), "expected unique violation, got %v", err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, IsUniqueViolation(gorm.ErrRecordNotFound))
}

func TestNewNotificationQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	q := NewNotificationQueue(config.RedisConfig{Host: mr.Host(), Port: port, Prefix: "rf-test"})
	defer q.Close()

	require.NoError(t, q.Ping(context.Background()))
	require.NoError(t, q.Publish(context.Background(), "notifications:user:1", map[string]string{"k": "v"}))
}
