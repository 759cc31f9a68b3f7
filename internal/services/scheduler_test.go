package services

import (
	"context"
	"testing"
	"time"

	"rentflow/internal/models"
	"rentflow/internal/notify"
	"rentflow/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_ProcessesDueNotifications(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	tenant := f.user(models.RoleTenant)
	dispatcher := &fakeNotifier{}
	notifications := NewNotificationService(db, dispatcher, nil, 3)
	leases := NewLeaseService(db, nil, nil)

	row, err := notifications.Schedule(context.Background(), tenant.ID, notify.TemplateRentReminder,
		map[string]interface{}{"amount": "20000"}, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	s := NewScheduler(config.SchedulerConfig{
		NotificationSpec:  "@every 1s",
		LeaseExpirySpec:   "5 0 * * *",
		NotificationBatch: 10,
	}, leases, notifications)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.Start())

	require.Eventually(t, func() bool {
		var stored models.ScheduledNotification
		if err := db.First(&stored, row.ID).Error; err != nil {
			return false
		}
		return stored.Status == models.ScheduledStatusSent
	}, 5*time.Second, 100*time.Millisecond)
	assert.Equal(t, []string{notify.TemplateRentReminder}, dispatcher.types())
}

func TestScheduler_InvalidSpec(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduler(config.SchedulerConfig{NotificationSpec: "not a spec", LeaseExpirySpec: "@daily"},
		NewLeaseService(db, nil, nil), NewNotificationService(db, nil, nil, 3))
	assert.Error(t, s.Start())
	s.Stop()
}

func TestScheduler_LeaseExpiryJob(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	landlord := f.user(models.RoleLandlord)
	tenant := f.user(models.RoleTenant)
	unit := f.unit(f.property(landlord), 20000)

	leases := NewLeaseService(db, nil, nil)
	lease, err := leases.Allocate(context.Background(), actorOf(landlord), allocateParams(tenant, unit))
	require.NoError(t, err)
	leases.now = fixedClock("2026-01-05T00:05:00Z")

	s := NewScheduler(config.SchedulerConfig{}, leases, NewNotificationService(db, nil, nil, 3))
	s.runLeaseExpiry()

	assert.Equal(t, models.LeaseStatusExpired, f.reloadLease(lease.ID).Status)
	assert.Equal(t, models.UnitStatusVacant, f.reloadUnit(unit.ID).Status)
}
