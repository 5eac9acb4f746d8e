package domain

import "time"

// ReconciliationFailure records a completed transaction whose ledger write
// failed. The payment is real — the gateway confirmed it — so the row stays
// until the reconciler is re-run for the transaction.
type ReconciliationFailure struct {
	TransactionUUID string    `json:"transactionUuid"`
	StudentID       string    `json:"studentId"`
	Amount          int64     `json:"amount"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"createdAt"`
}
