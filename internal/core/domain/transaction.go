package domain

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// FeeCategory enumerates the fee buckets a payment can be applied to.
type FeeCategory string

const (
	FeeCategoryTuition   FeeCategory = "tuition"
	FeeCategoryAdmission FeeCategory = "admission"
	FeeCategoryExam      FeeCategory = "exam"
	FeeCategoryLibrary   FeeCategory = "library"
	FeeCategoryTransport FeeCategory = "transport"
	FeeCategoryHostel    FeeCategory = "hostel"
	FeeCategoryOther     FeeCategory = "other"
)

// ValidFeeCategory reports whether s is one of the enumerated fee categories.
func ValidFeeCategory(s string) bool {
	switch FeeCategory(s) {
	case FeeCategoryTuition, FeeCategoryAdmission, FeeCategoryExam,
		FeeCategoryLibrary, FeeCategoryTransport, FeeCategoryHostel, FeeCategoryOther:
		return true
	}
	return false
}

// TransactionStatus represents the lifecycle state of a fee payment attempt.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// PaymentMethodEsewa is the only gateway currently wired.
const PaymentMethodEsewa = "esewa"

// Transaction is one attempt to pay some amount toward a student's pending
// fee. The transaction uuid doubles as the idempotency key; amounts are whole
// rupees. TotalAmount is always Amount + TaxAmount — mutate amounts through
// SetAmounts only.
type Transaction struct {
	TransactionUUID string            `json:"transactionUuid"`
	StudentID       string            `json:"studentId"`
	UserID          string            `json:"userId"` // Principal who initiated the payment
	FeeCategory     FeeCategory       `json:"feeType"`
	Amount          int64             `json:"amount"`
	TaxAmount       int64             `json:"taxAmount"`
	TotalAmount     int64             `json:"totalAmount"`
	Description     string            `json:"description"`
	Status          TransactionStatus `json:"status"`
	PaymentMethod   string            `json:"paymentMethod"`
	ReferenceID     *string           `json:"referenceId,omitempty"`     // Assigned by the gateway on completion
	GatewayResponse json.RawMessage   `json:"esewaResponse,omitempty"`   // Raw status payload, write-once
	FailureReason   *string           `json:"failureReason,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	VerifiedAt      *time.Time        `json:"verifiedAt,omitempty"`
}

// NewTransaction builds a pending transaction for the given student and fee.
func NewTransaction(uuid, studentID, userID string, category FeeCategory, amount, taxAmount int64, description string) *Transaction {
	t := &Transaction{
		TransactionUUID: uuid,
		StudentID:       studentID,
		UserID:          userID,
		FeeCategory:     category,
		Description:     description,
		Status:          TransactionStatusPending,
		PaymentMethod:   PaymentMethodEsewa,
		CreatedAt:       time.Now().UTC(),
	}
	t.SetAmounts(amount, taxAmount)
	return t
}

// SetAmounts updates the amount fields, keeping the total derivation intact.
func (t *Transaction) SetAmounts(amount, taxAmount int64) {
	t.Amount = amount
	t.TaxAmount = taxAmount
	t.TotalAmount = amount + taxAmount
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status != TransactionStatusPending
}

// IsCompleted returns true if the payment was verified with the gateway.
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

const uuidRandAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewTransactionUUID generates a transaction identifier of the form
// TXN-<unix-millis>-<13 base36 chars>-<16 hex chars>. Both random components
// come from crypto/rand; the issuer still checks the store for a collision
// and fails closed rather than retrying with a weaker id.
func NewTransactionUUID() (string, error) {
	randomPart := make([]byte, 13)
	max := big.NewInt(int64(len(uuidRandAlphabet)))
	for i := range randomPart {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating transaction uuid: %w", err)
		}
		randomPart[i] = uuidRandAlphabet[n.Int64()]
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generating transaction uuid: %w", err)
	}

	return fmt.Sprintf("TXN-%d-%s-%s",
		time.Now().UnixMilli(), randomPart, hex.EncodeToString(randomBytes)), nil
}
