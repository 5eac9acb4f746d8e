package dto

import "encoding/json"

// SignedFieldNames is the fixed field list the gateway signature covers, in
// signing order.
const SignedFieldNames = "total_amount,transaction_uuid,product_code"

// InitiatePaymentRequest is the request body for payment initiation.
type InitiatePaymentRequest struct {
	StudentID   string `json:"studentId" binding:"required,safe_id,max=64"`
	FeeType     string `json:"feeType" binding:"required,max=32"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	TaxAmount   int64  `json:"taxAmount" binding:"omitempty,gte=0"`
	Description string `json:"description" binding:"omitempty,max=255"`
}

// InitiatePaymentResponse carries everything the client needs to build the
// gateway redirect form. The signing secret never appears here.
type InitiatePaymentResponse struct {
	TransactionUUID  string `json:"transactionUuid"`
	TotalAmount      int64  `json:"totalAmount"`
	ProductCode      string `json:"productCode"`
	Signature        string `json:"signature"`
	SignedFieldNames string `json:"signedFieldNames"`
}

// VerifyPaymentRequest is the request body for the gateway callback.
type VerifyPaymentRequest struct {
	TransactionUUID string `json:"transactionUuid" binding:"required,max=100"`
	Amount          int64  `json:"amount" binding:"omitempty,gte=0"`
	ReferenceID     string `json:"referenceId" binding:"omitempty,max=100"`
}

// VerifyPaymentResponse is the terminal verification outcome.
type VerifyPaymentResponse struct {
	TransactionUUID string `json:"transactionUuid"`
	TotalAmount     int64  `json:"totalAmount"`
	ReferenceID     string `json:"referenceId"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
}

// TransactionResponse is the read-model view of a transaction.
type TransactionResponse struct {
	TransactionUUID string          `json:"transactionUuid"`
	StudentID       string          `json:"studentId"`
	FeeType         string          `json:"feeType"`
	Amount          int64           `json:"amount"`
	TaxAmount       int64           `json:"taxAmount"`
	TotalAmount     int64           `json:"totalAmount"`
	Description     string          `json:"description,omitempty"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"paymentMethod"`
	ReferenceID     *string         `json:"referenceId,omitempty"`
	EsewaResponse   json.RawMessage `json:"esewaResponse,omitempty"`
	FailureReason   *string         `json:"failureReason,omitempty"`
	CreatedAt       string          `json:"createdAt"`
	VerifiedAt      *string         `json:"verifiedAt,omitempty"`
}

// TransactionListResponse wraps a student's transaction history.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Total int                   `json:"total"`
}

// CleanupResponse reports how many pending transactions were removed.
type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

// StatsResponse is the admin dashboard aggregate.
type StatsResponse struct {
	TotalTransactions int64 `json:"totalTransactions"`
	Pending           int64 `json:"pending"`
	Completed         int64 `json:"completed"`
	Failed            int64 `json:"failed"`
	TotalCollected    int64 `json:"totalCollected"`
}

// ReconciliationFailureResponse is one queued ledger failure.
type ReconciliationFailureResponse struct {
	TransactionUUID string `json:"transactionUuid"`
	StudentID       string `json:"studentId"`
	Amount          int64  `json:"amount"`
	Reason          string `json:"reason"`
	CreatedAt       string `json:"createdAt"`
}
