package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment 租金支付记录
type Payment struct {
	BaseModel
	LeaseID         uint            `json:"lease_id" gorm:"not null;index"`
	TenantID        uint            `json:"tenant_id" gorm:"not null;index"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	PaymentDate     time.Time       `json:"payment_date" gorm:"not null;index"`
	PaymentMethod   string          `json:"payment_method" gorm:"size:30"`
	ReferenceNumber string          `json:"reference_number" gorm:"size:100;index"`
	Status          string          `json:"status" gorm:"size:20;not null;index"`
	Notes           string          `json:"notes" gorm:"type:text"`
	RecordedBy      uint            `json:"recorded_by"`
	VerifiedBy      *uint           `json:"verified_by"`
	VerifiedAt      *time.Time      `json:"verified_at"`
	RejectionReason string          `json:"rejection_reason" gorm:"size:500"`

	Lease *Lease `json:"lease,omitempty" gorm:"foreignKey:LeaseID"`
}

// TableName 表名
func (Payment) TableName() string {
	return "payments"
}

// 支付状态：pending -> verified | rejected，completed 为历史数据中的已确认
const (
	PaymentStatusPending   = "pending"
	PaymentStatusVerified  = "verified"
	PaymentStatusCompleted = "completed"
	PaymentStatusRejected  = "rejected"
)

const (
	PaymentMethodCash         = "cash"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodMobileMoney  = "mobile_money"
	PaymentMethodCard         = "card"
	PaymentMethodCheque       = "cheque"
)

// IsPaid 已确认到账
func (p *Payment) IsPaid() bool {
	return p.Status == PaymentStatusVerified || p.Status == PaymentStatusCompleted
}

// IsTerminal 已核验或已拒绝
func (p *Payment) IsTerminal() bool {
	return p.IsPaid() || p.Status == PaymentStatusRejected
}

// CreatePaymentRequest 提交/登记支付请求
type CreatePaymentRequest struct {
	LeaseID         uint            `json:"lease_id"` // 租客可不填，默认当前生效租约
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     string          `json:"payment_date" binding:"omitempty,datetime=2006-01-02"`
	PaymentMethod   string          `json:"payment_method" binding:"required,oneof=cash bank_transfer mobile_money card cheque"`
	ReferenceNumber string          `json:"reference_number" binding:"max=100"`
	Notes           string          `json:"notes" binding:"max=1000"`
	Verified        bool            `json:"verified"` // 房东登记时可直接确认
}

// ReviewPaymentRequest 核验支付请求，由处理器从路径和请求体组装
type ReviewPaymentRequest struct {
	PaymentID uint
	Action    string
	Reason    string
}
