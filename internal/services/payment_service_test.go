package services

import (
	"context"
	"errors"
	"testing"

	"rentflow/internal/models"
	"rentflow/internal/notify"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/metrics"
	"rentflow/pkg/pagination"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentEnv struct {
	f          *fixture
	landlord   *models.User
	tenant     *models.User
	unit       *models.Unit
	lease      *models.Lease
	leases     *LeaseService
	payments   *PaymentService
	dispatcher *fakeNotifier
}

func newPaymentEnv(t *testing.T, clock string) *paymentEnv {
	t.Helper()
	db := newTestDB(t)
	f := newFixture(t, db)
	env := &paymentEnv{f: f, dispatcher: &fakeNotifier{}}
	env.landlord = f.user(models.RoleLandlord)
	env.tenant = f.user(models.RoleTenant)
	env.unit = f.unit(f.property(env.landlord), 20000)

	env.leases = NewLeaseService(db, nil, nil)
	env.leases.now = fixedClock(clock)
	notifications := NewNotificationService(db, env.dispatcher, nil, 3)
	env.payments = NewPaymentService(db, notifications, metrics.New("test"))
	env.payments.now = fixedClock(clock)

	lease, err := env.leases.Allocate(context.Background(), actorOf(env.landlord), allocateParams(env.tenant, env.unit))
	require.NoError(t, err)
	env.lease = lease
	return env
}

func TestPaymentService_EndToEndScenario(t *testing.T) {
	env := newPaymentEnv(t, "2025-01-20T10:00:00Z")
	ctx := context.Background()

	assert.Equal(t, models.UnitStatusOccupied, env.f.reloadUnit(env.unit.ID).Status)

	payment, err := env.payments.Create(ctx, actorOf(env.landlord), &models.CreatePaymentRequest{
		LeaseID:       env.lease.ID,
		Amount:        decimal.NewFromInt(20000),
		PaymentDate:   "2025-01-05",
		PaymentMethod: models.PaymentMethodBankTransfer,
		Verified:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusVerified, payment.Status)
	assert.NotEmpty(t, payment.ReferenceNumber)

	dash, err := env.payments.TenantDashboard(ctx, env.tenant.ID)
	require.NoError(t, err)
	require.True(t, dash.Allocated)
	assert.True(t, dash.Balance.CurrentBalance.IsZero())
	assert.Equal(t, day("2025-02-05"), dash.Balance.NextPaymentDue)
	require.NotNil(t, dash.Unit)
	require.NotNil(t, dash.Property)
	assert.Len(t, dash.RecentPayments, 1)

	terminated, err := env.leases.Terminate(ctx, actorOf(env.landlord), env.lease.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusTerminated, terminated.Status)
	assert.Equal(t, day("2025-01-20"), env.f.reloadLease(env.lease.ID).EndDate.UTC())
	assert.Equal(t, models.UnitStatusVacant, env.f.reloadUnit(env.unit.ID).Status)

	dash, err = env.payments.TenantDashboard(ctx, env.tenant.ID)
	require.NoError(t, err)
	assert.False(t, dash.Allocated)
	assert.Nil(t, dash.Balance)
}

func TestPaymentService_TenantSubmitAndReview(t *testing.T) {
	env := newPaymentEnv(t, "2025-03-02T10:00:00Z")
	ctx := context.Background()

	dash, err := env.payments.TenantDashboard(ctx, env.tenant.ID)
	require.NoError(t, err)
	assert.True(t, dash.Balance.CurrentBalance.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, day("2025-03-05"), dash.Balance.NextPaymentDue)

	// 租客不填租约，默认当前生效租约；Verified 对租客无效
	payment, err := env.payments.Create(ctx, actorOf(env.tenant), &models.CreatePaymentRequest{
		Amount:        decimal.NewFromInt(20000),
		PaymentMethod: models.PaymentMethodMobileMoney,
		Verified:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, env.lease.ID, payment.LeaseID)
	assert.Equal(t, day("2025-03-02"), payment.PaymentDate)
	assert.Equal(t, []string{notify.TemplatePaymentSubmitted}, env.dispatcher.types())

	// pending 不计入已缴
	dash, err = env.payments.TenantDashboard(ctx, env.tenant.ID)
	require.NoError(t, err)
	assert.False(t, dash.Balance.PaidThisMonth)

	_, err = env.payments.Review(ctx, actorOf(env.tenant), &models.ReviewPaymentRequest{PaymentID: payment.ID, Action: "verify"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	verified, err := env.payments.Review(ctx, actorOf(env.landlord), &models.ReviewPaymentRequest{PaymentID: payment.ID, Action: "verify"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusVerified, verified.Status)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, env.landlord.ID, *verified.VerifiedBy)
	assert.NotNil(t, verified.VerifiedAt)

	dash, err = env.payments.TenantDashboard(ctx, env.tenant.ID)
	require.NoError(t, err)
	assert.True(t, dash.Balance.CurrentBalance.IsZero())
	assert.Equal(t, day("2025-04-05"), dash.Balance.NextPaymentDue)

	// 终态不能再审核
	_, err = env.payments.Review(ctx, actorOf(env.landlord), &models.ReviewPaymentRequest{PaymentID: payment.ID, Action: "reject"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = env.payments.Review(ctx, actorOf(env.landlord), &models.ReviewPaymentRequest{PaymentID: 999, Action: "verify"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// 房东收到待审核的站内通知
	var staffNotices int64
	require.NoError(t, env.f.db.Model(&models.Notification{}).Where("user_id = ?", env.landlord.ID).Count(&staffNotices).Error)
	assert.Equal(t, int64(1), staffNotices)
}

func TestPaymentService_Reject(t *testing.T) {
	env := newPaymentEnv(t, "2025-03-02T10:00:00Z")
	ctx := context.Background()

	payment, err := env.payments.Create(ctx, actorOf(env.tenant), &models.CreatePaymentRequest{
		Amount: decimal.NewFromInt(100), PaymentMethod: models.PaymentMethodCash, ReferenceNumber: "R-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "R-1", payment.ReferenceNumber)

	rejected, err := env.payments.Review(ctx, SystemActor(), &models.ReviewPaymentRequest{PaymentID: payment.ID, Action: "reject", Reason: "金额不符"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, rejected.Status)
	assert.Equal(t, "金额不符", rejected.RejectionReason)
	assert.Contains(t, env.dispatcher.types(), notify.TemplatePaymentRejected)

	_, err = env.payments.Review(ctx, SystemActor(), &models.ReviewPaymentRequest{PaymentID: payment.ID, Action: "verify"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestPaymentService_NotificationFailureDoesNotFailPayment(t *testing.T) {
	env := newPaymentEnv(t, "2025-03-02T10:00:00Z")
	env.dispatcher.err = errors.New("smtp unreachable")
	ctx := context.Background()

	payment, err := env.payments.Create(ctx, actorOf(env.tenant), &models.CreatePaymentRequest{
		Amount: decimal.NewFromInt(100), PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	verified, err := env.payments.Review(ctx, actorOf(env.landlord), &models.ReviewPaymentRequest{PaymentID: payment.ID, Action: "verify"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusVerified, verified.Status)
	assert.Len(t, env.dispatcher.types(), 2)
}

func TestPaymentService_CreateRejections(t *testing.T) {
	env := newPaymentEnv(t, "2025-03-02T10:00:00Z")
	other := env.f.user(models.RoleTenant)
	otherLandlord := env.f.user(models.RoleLandlord)
	ctx := context.Background()

	valid := func() *models.CreatePaymentRequest {
		return &models.CreatePaymentRequest{LeaseID: env.lease.ID, Amount: decimal.NewFromInt(100), PaymentMethod: models.PaymentMethodCash}
	}

	req := valid()
	req.Amount = decimal.Zero
	_, err := env.payments.Create(ctx, actorOf(env.tenant), req)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	req = valid()
	req.PaymentDate = "03/02/2025"
	_, err = env.payments.Create(ctx, actorOf(env.tenant), req)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.payments.Create(ctx, actorOf(other), valid())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	req = valid()
	req.LeaseID = 0
	_, err = env.payments.Create(ctx, actorOf(other), req)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.payments.Create(ctx, actorOf(otherLandlord), valid())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	req = valid()
	req.LeaseID = 0
	_, err = env.payments.Create(ctx, actorOf(env.landlord), req)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.leases.Terminate(ctx, SystemActor(), env.lease.ID)
	require.NoError(t, err)
	_, err = env.payments.Create(ctx, actorOf(env.tenant), valid())
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	// 房东可为已结束的租约补登记
	_, err = env.payments.Create(ctx, actorOf(env.landlord), valid())
	assert.NoError(t, err)
}

func TestPaymentService_ListScoping(t *testing.T) {
	env := newPaymentEnv(t, "2025-03-02T10:00:00Z")
	ctx := context.Background()
	otherLandlord := env.f.user(models.RoleLandlord)
	otherTenant := env.f.user(models.RoleTenant)

	for i := 0; i < 3; i++ {
		_, err := env.payments.Create(ctx, actorOf(env.tenant), &models.CreatePaymentRequest{
			Amount: decimal.NewFromInt(100), PaymentMethod: models.PaymentMethodCash,
		})
		require.NoError(t, err)
	}

	page := pagination.Normalize("1", "2")
	items, total, err := env.payments.List(ctx, actorOf(env.landlord), PaymentFilter{}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)

	_, total, err = env.payments.List(ctx, actorOf(env.tenant), PaymentFilter{Status: models.PaymentStatusPending}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	_, total, err = env.payments.List(ctx, actorOf(otherLandlord), PaymentFilter{}, page)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, total, err = env.payments.List(ctx, actorOf(otherTenant), PaymentFilter{}, page)
	require.NoError(t, err)
	assert.Zero(t, total)

	got, err := env.payments.Get(ctx, actorOf(env.tenant), items[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got.Lease)

	_, err = env.payments.Get(ctx, actorOf(otherTenant), items[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPaymentService_CreateRequiresPaymentCapability(t *testing.T) {
	env := newPaymentEnv(t, "2025-01-20T10:00:00Z")
	ctx := context.Background()
	req := &models.CreatePaymentRequest{LeaseID: env.lease.ID, Amount: decimal.NewFromInt(100)}

	_, err := env.payments.Create(ctx, Actor{UserID: env.landlord.ID, Role: models.Role("auditor")}, req)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	var count int64
	require.NoError(t, env.f.db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = env.payments.Create(ctx, actorOf(env.tenant), req)
	require.NoError(t, err)
	_, err = env.payments.Create(ctx, actorOf(env.landlord), req)
	require.NoError(t, err)
}
