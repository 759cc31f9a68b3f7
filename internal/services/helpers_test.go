package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"rentflow/internal/database"
	"rentflow/internal/models"
	"rentflow/internal/notify"
	"rentflow/pkg/config"
	"rentflow/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

type fixture struct {
	t  *testing.T
	db *gorm.DB
	n  int
}

func newFixture(t *testing.T, db *gorm.DB) *fixture {
	return &fixture{t: t, db: db}
}

func (f *fixture) user(role models.Role) *models.User {
	f.t.Helper()
	f.n++
	u := &models.User{
		ExternalID: fmt.Sprintf("user_%d", f.n),
		Name:       fmt.Sprintf("%s %d", role, f.n),
		Email:      fmt.Sprintf("%s%d@example.com", role, f.n),
		Role:       role,
		IsActive:   true,
	}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

func (f *fixture) property(owner *models.User) *models.Property {
	f.t.Helper()
	f.n++
	p := &models.Property{OwnerID: owner.ID, Name: fmt.Sprintf("Block %d", f.n), Status: models.PropertyStatusActive, Type: models.PropertyTypeApartment}
	require.NoError(f.t, f.db.Create(p).Error)
	return p
}

func (f *fixture) unit(p *models.Property, rent int64) *models.Unit {
	f.t.Helper()
	f.n++
	u := &models.Unit{PropertyID: p.ID, UnitNumber: fmt.Sprintf("U%d", f.n), RentAmount: decimal.NewFromInt(rent), Status: models.UnitStatusVacant}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

func (f *fixture) reloadUnit(id uint) *models.Unit {
	f.t.Helper()
	var u models.Unit
	require.NoError(f.t, f.db.First(&u, id).Error)
	return &u
}

func (f *fixture) reloadLease(id uint) *models.Lease {
	f.t.Helper()
	var l models.Lease
	require.NoError(f.t, f.db.First(&l, id).Error)
	return &l
}

func actorOf(u *models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

func allocateParams(tenant *models.User, unit *models.Unit) AllocateParams {
	return AllocateParams{
		TenantID:      tenant.ID,
		UnitID:        unit.ID,
		RentAmount:    decimal.NewFromInt(20000),
		DepositAmount: decimal.NewFromInt(20000),
		StartDate:     day("2025-01-01"),
		EndDate:       day("2025-12-31"),
		PaymentDay:    5,
	}
}

// fakeNotifier 记录发送的消息，可模拟失败
type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []notify.Message
}

func (n *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *fakeNotifier) Deliver(_ context.Context, msg notify.Message) ([]notify.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	if n.err != nil {
		return []notify.Result{{Channel: notify.ChannelEmail, Error: n.err.Error()}}, n.err
	}
	return []notify.Result{{Channel: notify.ChannelEmail, Success: true}}, nil
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Type)
	}
	return out
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	channels []string
}

func (p *fakePublisher) Publish(_ context.Context, channel string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	return p.err
}

// counterValue 从注册表读取带某个标签的计数器值
func counterValue(t *testing.T, m *metrics.Metrics, name, label, value string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
