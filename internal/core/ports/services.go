package ports

import (
	"context"
	"encoding/json"
	"time"

	"school-fee-gateway/internal/core/domain"
)

// SignatureService produces and checks the keyed-hash signatures the eSewa
// gateway expects.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(totalAmount int64, transactionUUID, productCode string) string
}

// TokenService validates JWTs issued by the school identity service.
type TokenService interface {
	Generate(userID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed principal.
type TokenClaims struct {
	UserID string
	Role   string
}

// GatewayStatus is the gateway's answer to a transaction status query.
type GatewayStatus struct {
	Status          string          // "COMPLETE" means the money moved
	TransactionUUID string
	ReferenceID     string
	TotalAmount     int64
	Raw             json.RawMessage // Stored on the transaction verbatim
}

// Complete reports whether the gateway considers the transaction settled.
func (s *GatewayStatus) Complete() bool {
	return s.Status == "COMPLETE"
}

// GatewayClient queries the external payment gateway's status endpoint. An
// error return means the status is unknown, not that the payment failed.
type GatewayClient interface {
	LookupStatus(ctx context.Context, productCode string, totalAmount int64, transactionUUID string) (*GatewayStatus, error)
}

// VerifyCache is the Redis fast path for idempotent re-verification: the
// serialized verify result for a completed transaction, keyed by uuid.
type VerifyCache interface {
	Get(ctx context.Context, transactionUUID string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, transactionUUID string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// PaymentService is the payment transaction engine: issuance, verification,
// ledger reconciliation, and pending-transaction cleanup.
type PaymentService interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	// Reconcile re-runs the idempotent ledger reconciler for a completed
	// transaction (recovery path for ledger write failures).
	Reconcile(ctx context.Context, transactionUUID string) error
	CleanupStudent(ctx context.Context, studentID string) (int64, error)
	CleanupStale(ctx context.Context) (int64, error)
}

// InitiateRequest holds validated input for payment initiation.
type InitiateRequest struct {
	StudentID   string
	FeeCategory string
	Amount      int64
	TaxAmount   int64
	Description string
	ActorID     string // Authenticated principal
}

// InitiateResult is everything the caller needs to redirect to the gateway.
// The signing secret itself is never returned.
type InitiateResult struct {
	TransactionUUID string
	TotalAmount     int64
	ProductCode     string
	Signature       string
}

// VerifyRequest holds the gateway callback parameters.
type VerifyRequest struct {
	TransactionUUID string
	Amount          int64
	ReferenceID     string
}

// VerifyResult reports the transaction's terminal state after verification.
type VerifyResult struct {
	TransactionUUID string                   `json:"transactionUuid"`
	TotalAmount     int64                    `json:"totalAmount"`
	ReferenceID     string                   `json:"referenceId"`
	Status          domain.TransactionStatus `json:"status"`
	CreatedAt       time.Time                `json:"createdAt"`
}

// ReportingService exposes the payment read model.
type ReportingService interface {
	History(ctx context.Context, studentID string) ([]domain.Transaction, error)
	Status(ctx context.Context, transactionUUID string) (*domain.Transaction, error)
	Stats(ctx context.Context) (*PaymentStats, error)
	ReconciliationFailures(ctx context.Context) ([]domain.ReconciliationFailure, error)
}
