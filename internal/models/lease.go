package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lease 租约，同一单元最多一个 active 租约
type Lease struct {
	BaseModel
	UnitID        uint            `json:"unit_id" gorm:"not null;index"`
	TenantID      uint            `json:"tenant_id" gorm:"not null;index"`
	StartDate     time.Time       `json:"start_date" gorm:"not null"`
	EndDate       time.Time       `json:"end_date" gorm:"not null;index"`
	RentAmount    decimal.Decimal `json:"rent_amount" gorm:"type:decimal(12,2);not null;default:0"`
	DepositAmount decimal.Decimal `json:"deposit_amount" gorm:"type:decimal(12,2);not null;default:0"`
	PaymentDay    int             `json:"payment_day" gorm:"not null;default:1"`
	Status        string          `json:"status" gorm:"size:20;not null;index"`
	TerminatedAt  *time.Time      `json:"terminated_at"`

	Unit   *Unit `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	Tenant *User `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// TableName 表名
func (Lease) TableName() string {
	return "leases"
}

// 租约状态：pending -> active -> {terminated, expired}
const (
	LeaseStatusPending    = "pending"
	LeaseStatusActive     = "active"
	LeaseStatusExpired    = "expired"
	LeaseStatusTerminated = "terminated"
)

// 付款日范围，避开短月
const (
	MinPaymentDay = 1
	MaxPaymentDay = 28
)

// IsActive 是否生效中
func (l *Lease) IsActive() bool {
	return l.Status == LeaseStatusActive
}

// AllocateLeaseRequest 分配单元（创建租约）请求
type AllocateLeaseRequest struct {
	TenantID      uint            `json:"tenant_id" binding:"required"`
	UnitID        uint            `json:"unit_id" binding:"required"`
	RentAmount    decimal.Decimal `json:"rent_amount"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	StartDate     string          `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate       string          `json:"end_date" binding:"required,datetime=2006-01-02"`
	PaymentDay    int             `json:"payment_day" binding:"omitempty,min=1,max=28"`
}
