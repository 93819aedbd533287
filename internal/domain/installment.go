package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	InstallmentStatusPending = "pending"
	InstallmentStatusPaid    = "paid"
	InstallmentStatusOverdue = "overdue"
)

// Installment is one scheduled EMI. Installments are generated in full at loan
// creation and never deleted; a payment only mutates the status and paid
// fields in place.
type Installment struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	LoanID             string          `json:"loan_id" db:"loan_id"`
	InstallmentNumber  int             `json:"installment_number" db:"installment_number"`
	DueDate            time.Time       `json:"due_date" db:"due_date"`
	DueDateDay         int             `json:"due_date_day" db:"due_date_day"`
	InstallmentAmount  decimal.Decimal `json:"installment_amount" db:"installment_amount"`
	InterestComponent  decimal.Decimal `json:"interest_component" db:"interest_component"`
	PrincipalComponent decimal.Decimal `json:"principal_component" db:"principal_component"`
	Status             string          `json:"status" db:"status"`
	PaidDate           *time.Time      `json:"paid_date,omitempty" db:"paid_date"`
	PaidAmount         decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	LateFee            decimal.Decimal `json:"late_fee" db:"late_fee"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

type ScheduleResponse struct {
	LoanID   string         `json:"loan_id"`
	Schedule []*Installment `json:"schedule"`
}
