package handler

import (
	"school-fee-gateway/internal/adapter/http/dto"
	"school-fee-gateway/internal/adapter/http/middleware"
	"school-fee-gateway/internal/core/ports"
	"school-fee-gateway/pkg/apperror"
	"school-fee-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles payment lifecycle endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Initiate handles POST /api/v1/payments/initiate.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.paymentSvc.Initiate(c.Request.Context(), ports.InitiateRequest{
		StudentID:   req.StudentID,
		FeeCategory: req.FeeType,
		Amount:      req.Amount,
		TaxAmount:   req.TaxAmount,
		Description: req.Description,
		ActorID:     userID.(string),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.InitiatePaymentResponse{
		TransactionUUID:  result.TransactionUUID,
		TotalAmount:      result.TotalAmount,
		ProductCode:      result.ProductCode,
		Signature:        result.Signature,
		SignedFieldNames: dto.SignedFieldNames,
	})
}

// Verify handles POST /api/v1/payments/verify. The gateway callback carries
// no JWT, so this route is public but rate limited.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.paymentSvc.Verify(c.Request.Context(), ports.VerifyRequest{
		TransactionUUID: req.TransactionUUID,
		Amount:          req.Amount,
		ReferenceID:     req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.VerifyPaymentResponse{
		TransactionUUID: result.TransactionUUID,
		TotalAmount:     result.TotalAmount,
		ReferenceID:     result.ReferenceID,
		Status:          string(result.Status),
		CreatedAt:       result.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// CleanupStudent handles DELETE /api/v1/payments/cleanup/:studentId.
func (h *PaymentHandler) CleanupStudent(c *gin.Context) {
	studentID := c.Param("studentId")

	deleted, err := h.paymentSvc.CleanupStudent(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CleanupResponse{Deleted: deleted})
}

// CleanupStale handles POST /api/v1/admin/payments/cleanup-stale.
func (h *PaymentHandler) CleanupStale(c *gin.Context) {
	deleted, err := h.paymentSvc.CleanupStale(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CleanupResponse{Deleted: deleted})
}

// Reconcile handles POST /api/v1/admin/reconciliation-failures/:transactionUuid/rerun.
func (h *PaymentHandler) Reconcile(c *gin.Context) {
	transactionUUID := c.Param("transactionUuid")

	if err := h.paymentSvc.Reconcile(c.Request.Context(), transactionUUID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"transactionUuid": transactionUUID, "reconciled": true})
}
