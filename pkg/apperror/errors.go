package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"` // Extra fields surfaced to the client
	Err        error          `json:"-"`                 // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithDetails attaches client-visible detail fields to the error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// ---- Fee Payment Business Logic (FEE) ----

// Validation returns a FEE_001 bad-input error.
func Validation(message string) *AppError {
	return New("FEE_001", message, http.StatusBadRequest)
}

// ErrAmountExceedsPending carries the exact pending amount so the caller can
// retry with a corrected value.
func ErrAmountExceedsPending(amount, pending int64) *AppError {
	return New("FEE_002",
		fmt.Sprintf("Payment amount (Rs.%d) cannot exceed pending amount (Rs.%d)", amount, pending),
		http.StatusBadRequest,
	).WithDetails(map[string]any{"pendingAmount": pending})
}

func ErrNotFound(entity string) *AppError {
	return New("FEE_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrTransactionConflict signals a duplicate-key race during initiation.
// Stale pending transactions have been cleaned up; the caller should retry.
func ErrTransactionConflict() *AppError {
	return New("FEE_004",
		"Transaction conflict detected. Old transactions have been cleaned up. Please try again.",
		http.StatusConflict,
	).WithDetails(map[string]any{"shouldRetry": true})
}

func ErrNoFeeStructure() *AppError {
	return New("FEE_005", "No fee structure set for this student. Please contact administration.", http.StatusBadRequest)
}

func ErrNothingPending() *AppError {
	return New("FEE_006", "All fees have been paid. No pending amount.", http.StatusBadRequest)
}

// ---- Gateway (GATE) ----

// ErrGatewayUnavailable means the gateway status call itself failed. The
// transaction stays pending and a human has to look at it.
func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GATE_001",
		"Unable to verify payment with eSewa. Please contact support.",
		http.StatusBadGateway, err,
	).WithDetails(map[string]any{"requiresManualReview": true})
}

// ErrVerificationFailed means the gateway answered with a non-complete status.
func ErrVerificationFailed(gatewayStatus string) *AppError {
	return New("GATE_002", "Payment verification failed", http.StatusBadRequest).
		WithDetails(map[string]any{"esewaStatus": gatewayStatus})
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden(role string) *AppError {
	return New("AUTH_002", fmt.Sprintf("%s access required", role), http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrConfiguration is fatal to the operation and not retryable by the caller.
func ErrConfiguration(message string) *AppError {
	return New("SYS_002", message, http.StatusInternalServerError)
}

func ErrUUIDGeneration() *AppError {
	return New("SYS_003", "Transaction ID generation failed. Please try again.", http.StatusInternalServerError)
}
