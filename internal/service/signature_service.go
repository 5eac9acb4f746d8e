package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// EsewaSignatureService implements ports.SignatureService using HMAC-SHA256.
type EsewaSignatureService struct{}

// NewEsewaSignatureService creates a new HMAC-SHA256 signature service.
func NewEsewaSignatureService() *EsewaSignatureService {
	return &EsewaSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using secretKey.
// Returns the base64-encoded signature, as eSewa expects.
func (s *EsewaSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA256(secretKey, payload).
// Uses constant-time comparison to prevent timing attacks.
func (s *EsewaSignatureService) Verify(secretKey string, payload string, signature string) bool {
	expected := s.Sign(secretKey, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// BuildCanonicalString constructs the canonical payload for signing.
// Format: total_amount=AMOUNT,transaction_uuid=UUID,product_code=CODE
// Field order is fixed; eSewa rejects signatures over any other ordering.
func (s *EsewaSignatureService) BuildCanonicalString(totalAmount int64, transactionUUID, productCode string) string {
	return fmt.Sprintf("total_amount=%d,transaction_uuid=%s,product_code=%s", totalAmount, transactionUUID, productCode)
}
