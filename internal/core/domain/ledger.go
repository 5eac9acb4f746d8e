package domain

import "time"

// FeePaymentStatus is the derived settlement state of a student's ledger.
type FeePaymentStatus string

const (
	FeePaymentStatusPaid    FeePaymentStatus = "paid"
	FeePaymentStatusPartial FeePaymentStatus = "partial"
	FeePaymentStatusPending FeePaymentStatus = "pending"
)

// PaymentRecord is one applied payment in a ledger's history. The receipt
// number is the gateway reference id and is what makes reconciliation
// idempotent.
type PaymentRecord struct {
	Amount        int64     `json:"amount"`
	PaymentDate   time.Time `json:"paymentDate"`
	PaymentMethod string    `json:"paymentMethod"`
	ReceiptNumber string    `json:"receiptNumber"`
	Description   string    `json:"description"`
	EnteredBy     string    `json:"enteredBy"`
	EnteredAt     time.Time `json:"enteredAt"`
}

// FeeLedger is the running fee position for one student. It is a value type:
// ApplyPayment returns an updated copy and never mutates the receiver, so a
// stale in-memory ledger can never be patched in place. Version backs the
// optimistic-concurrency check in the store.
type FeeLedger struct {
	StudentID     string           `json:"studentId"`
	TotalFee      int64            `json:"totalFee"`
	PaidAmount    int64            `json:"paidAmount"`
	PendingAmount int64            `json:"pendingAmount"`
	PaymentStatus FeePaymentStatus `json:"paymentStatus"`
	History       []PaymentRecord  `json:"feeHistory"`
	LastPaymentAt *time.Time       `json:"lastPaymentDate,omitempty"`
	UpdatedBy     string           `json:"updatedBy,omitempty"`
	Version       int64            `json:"-"`
}

// Recompute derives PendingAmount and PaymentStatus from TotalFee and
// PaidAmount. Every mutation path goes through it.
func (l FeeLedger) Recompute() FeeLedger {
	pending := l.TotalFee - l.PaidAmount
	if pending < 0 {
		pending = 0
	}
	l.PendingAmount = pending

	switch {
	case pending <= 0:
		l.PaymentStatus = FeePaymentStatusPaid
	case l.PaidAmount > 0:
		l.PaymentStatus = FeePaymentStatusPartial
	default:
		l.PaymentStatus = FeePaymentStatusPending
	}
	return l
}

// HasReceipt reports whether a payment with the given receipt number was
// already applied to this ledger.
func (l FeeLedger) HasReceipt(receiptNumber string) bool {
	for _, rec := range l.History {
		if rec.ReceiptNumber == receiptNumber {
			return true
		}
	}
	return false
}

// ApplyPayment returns a copy of the ledger with the payment appended to the
// history and the paid/pending amounts recomputed. The caller is responsible
// for the HasReceipt idempotency check.
func (l FeeLedger) ApplyPayment(rec PaymentRecord) FeeLedger {
	history := make([]PaymentRecord, len(l.History), len(l.History)+1)
	copy(history, l.History)
	l.History = append(history, rec)

	l.PaidAmount += rec.Amount
	l.LastPaymentAt = &rec.PaymentDate
	l.UpdatedBy = rec.EnteredBy
	return l.Recompute()
}
