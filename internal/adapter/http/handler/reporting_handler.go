package handler

import (
	"school-fee-gateway/internal/adapter/http/dto"
	"school-fee-gateway/internal/core/domain"
	"school-fee-gateway/internal/core/ports"
	"school-fee-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReportingHandler handles the payment read model endpoints.
type ReportingHandler struct {
	reportingSvc ports.ReportingService
}

// NewReportingHandler creates a new ReportingHandler.
func NewReportingHandler(reportingSvc ports.ReportingService) *ReportingHandler {
	return &ReportingHandler{reportingSvc: reportingSvc}
}

// History handles GET /api/v1/payments/history/:studentId.
func (h *ReportingHandler) History(c *gin.Context) {
	studentID := c.Param("studentId")

	txns, err := h.reportingSvc.History(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	response.OK(c, dto.TransactionListResponse{Items: items, Total: len(items)})
}

// Status handles GET /api/v1/payments/status/:transactionUuid.
func (h *ReportingHandler) Status(c *gin.Context) {
	transactionUUID := c.Param("transactionUuid")

	txn, err := h.reportingSvc.Status(c.Request.Context(), transactionUUID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

// Stats handles GET /api/v1/admin/payments/stats.
func (h *ReportingHandler) Stats(c *gin.Context) {
	stats, err := h.reportingSvc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.StatsResponse{
		TotalTransactions: stats.TotalTransactions,
		Pending:           stats.Pending,
		Completed:         stats.Completed,
		Failed:            stats.Failed,
		TotalCollected:    stats.TotalCollected,
	})
}

// ReconciliationFailures handles GET /api/v1/admin/reconciliation-failures.
func (h *ReportingHandler) ReconciliationFailures(c *gin.Context) {
	failures, err := h.reportingSvc.ReconciliationFailures(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ReconciliationFailureResponse, 0, len(failures))
	for _, f := range failures {
		items = append(items, dto.ReconciliationFailureResponse{
			TransactionUUID: f.TransactionUUID,
			StudentID:       f.StudentID,
			Amount:          f.Amount,
			Reason:          f.Reason,
			CreatedAt:       f.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	response.OK(c, items)
}

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		TransactionUUID: t.TransactionUUID,
		StudentID:       t.StudentID,
		FeeType:         string(t.FeeCategory),
		Amount:          t.Amount,
		TaxAmount:       t.TaxAmount,
		TotalAmount:     t.TotalAmount,
		Description:     t.Description,
		Status:          string(t.Status),
		PaymentMethod:   t.PaymentMethod,
		ReferenceID:     t.ReferenceID,
		EsewaResponse:   t.GatewayResponse,
		FailureReason:   t.FailureReason,
		CreatedAt:       t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if t.VerifiedAt != nil {
		s := t.VerifiedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.VerifiedAt = &s
	}
	return resp
}
