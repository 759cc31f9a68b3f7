package notify

import "time"

// 模板键
const (
	TemplatePaymentSubmitted  = "payment_submitted"
	TemplatePaymentRecorded   = "payment_recorded"
	TemplatePaymentVerified   = "payment_verified"
	TemplatePaymentRejected   = "payment_rejected"
	TemplateMaintenanceStatus = "maintenance_status"
	TemplateRentReminder      = "rent_reminder"
	TemplateLeaseExpired      = "lease_expired"
	TemplateGeneral           = "general"
)

// Recipient 收件人，邮箱和手机号至少有一个才会外发
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Message 一条待投递的通知
type Message struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // 模板键
	Recipient Recipient              `json:"recipient"`
	Variables map[string]interface{} `json:"variables,omitempty"`
	QueuedAt  time.Time              `json:"queued_at"`
}

// Result 单个通道的投递结果
type Result struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
