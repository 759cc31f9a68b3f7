package services

import (
	"time"

	"rentflow/internal/models"

	"github.com/shopspring/decimal"
)

// Balance 当月应缴与下次付款日
type Balance struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	NextPaymentDue time.Time       `json:"next_payment_due"`
	PaidThisMonth  bool            `json:"paid_this_month"`
}

// ComputeBalance 按自然月判断当月是否已缴，只看是否有已确认的付款，不核对金额。
// 下次付款日取 payment_day，早于今天则顺延一个月。
func ComputeBalance(lease *models.Lease, payments []models.Payment, today time.Time) Balance {
	today = models.TruncateDay(today.UTC())
	year, month, _ := today.Date()

	day := lease.PaymentDay
	if day < models.MinPaymentDay {
		day = models.MinPaymentDay
	}

	paid := false
	for i := range payments {
		p := &payments[i]
		if !p.IsPaid() {
			continue
		}
		py, pm, _ := p.PaymentDate.UTC().Date()
		if py == year && pm == month {
			paid = true
			break
		}
	}

	b := Balance{PaidThisMonth: paid}
	if paid {
		b.CurrentBalance = decimal.Zero
		b.NextPaymentDue = dueDateIn(year, month+1, day)
	} else {
		b.CurrentBalance = lease.RentAmount
		b.NextPaymentDue = dueDateIn(year, month, day)
	}
	if b.NextPaymentDue.Before(today) {
		b.NextPaymentDue = dueDateIn(b.NextPaymentDue.Year(), b.NextPaymentDue.Month()+1, day)
	}
	return b
}
