package services

import (
	"context"
	"testing"
	"time"

	"rentflow/internal/models"
	apperrors "rentflow/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCalendarService_CreateDefaults(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	landlord := f.user(models.RoleLandlord)
	svc := NewCalendarService(db)
	ctx := context.Background()

	event, err := svc.Create(ctx, actorOf(landlord), &models.CreateCalendarEventRequest{
		Title:    "看房",
		StartsAt: mustTime("2025-04-01T10:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, "other", event.EventType)
	assert.Equal(t, mustTime("2025-04-01T11:00:00Z"), event.EndsAt)

	allDay, err := svc.Create(ctx, actorOf(landlord), &models.CreateCalendarEventRequest{
		Title:    "年检",
		StartsAt: mustTime("2025-04-02T10:00:00Z"),
		AllDay:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, mustTime("2025-04-02T00:00:00Z"), allDay.StartsAt)
	assert.Equal(t, mustTime("2025-04-02T23:59:59Z"), allDay.EndsAt)

	_, err = svc.Create(ctx, actorOf(landlord), &models.CreateCalendarEventRequest{
		Title:    "反了",
		StartsAt: mustTime("2025-04-02T10:00:00Z"),
		EndsAt:   mustTime("2025-04-02T09:00:00Z"),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCalendarService_Permissions(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	landlord := f.user(models.RoleLandlord)
	other := f.user(models.RoleLandlord)
	tenant := f.user(models.RoleTenant)
	property := f.property(landlord)
	svc := NewCalendarService(db)
	ctx := context.Background()

	_, err := svc.Create(ctx, actorOf(tenant), &models.CreateCalendarEventRequest{Title: "x", StartsAt: mustTime("2025-04-01T10:00:00Z")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Create(ctx, actorOf(other), &models.CreateCalendarEventRequest{PropertyID: &property.ID, Title: "x", StartsAt: mustTime("2025-04-01T10:00:00Z")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	missing := uint(9999)
	_, err = svc.Create(ctx, actorOf(landlord), &models.CreateCalendarEventRequest{PropertyID: &missing, Title: "x", StartsAt: mustTime("2025-04-01T10:00:00Z")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	event, err := svc.Create(ctx, actorOf(landlord), &models.CreateCalendarEventRequest{PropertyID: &property.ID, Title: "检查", StartsAt: mustTime("2025-04-01T10:00:00Z")})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, actorOf(other), event.ID), apperrors.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, actorOf(landlord), event.ID))
	assert.ErrorIs(t, svc.Delete(ctx, actorOf(landlord), event.ID), apperrors.ErrNotFound)
}

func TestCalendarService_ListOverlap(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	landlord := f.user(models.RoleLandlord)
	other := f.user(models.RoleLandlord)
	svc := NewCalendarService(db)
	ctx := context.Background()

	create := func(actor Actor, title, start, end string) {
		_, err := svc.Create(ctx, actor, &models.CreateCalendarEventRequest{Title: title, StartsAt: mustTime(start), EndsAt: mustTime(end)})
		require.NoError(t, err)
	}
	create(actorOf(landlord), "跨月", "2025-03-30T10:00:00Z", "2025-04-02T10:00:00Z")
	create(actorOf(landlord), "四月", "2025-04-15T10:00:00Z", "2025-04-15T11:00:00Z")
	create(actorOf(landlord), "五月", "2025-05-01T00:00:00Z", "2025-05-01T01:00:00Z")
	create(actorOf(other), "别人", "2025-04-10T10:00:00Z", "2025-04-10T11:00:00Z")

	from, to := mustTime("2025-04-01T00:00:00Z"), mustTime("2025-05-01T00:00:00Z")
	events, err := svc.List(ctx, actorOf(landlord), from, to)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "跨月", events[0].Title)
	assert.Equal(t, "四月", events[1].Title)

	all, err := svc.List(ctx, SystemActor(), from, to)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.List(ctx, actorOf(landlord), to, from)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
