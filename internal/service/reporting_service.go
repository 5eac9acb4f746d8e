package service

import (
	"context"

	"school-fee-gateway/internal/core/domain"
	"school-fee-gateway/internal/core/ports"
	"school-fee-gateway/pkg/apperror"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	txRepo    ports.TransactionRepository
	reconRepo ports.ReconciliationLogRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	txRepo ports.TransactionRepository,
	reconRepo ports.ReconciliationLogRepository,
) ports.ReportingService {
	return &reportingService{
		txRepo:    txRepo,
		reconRepo: reconRepo,
	}
}

// History returns the student's transactions, newest first.
func (s *reportingService) History(ctx context.Context, studentID string) ([]domain.Transaction, error) {
	if studentID == "" {
		return nil, apperror.Validation("student id is required")
	}

	txns, err := s.txRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return txns, nil
}

// Status returns a single transaction by uuid.
func (s *reportingService) Status(ctx context.Context, transactionUUID string) (*domain.Transaction, error) {
	if transactionUUID == "" {
		return nil, apperror.Validation("transaction uuid is required")
	}

	txn, err := s.txRepo.GetByUUID(ctx, transactionUUID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	return txn, nil
}

// Stats returns aggregated payment statistics for the admin dashboard.
func (s *reportingService) Stats(ctx context.Context) (*ports.PaymentStats, error) {
	stats, err := s.txRepo.GetStats(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

// ReconciliationFailures returns queued ledger failures awaiting a re-run.
func (s *reportingService) ReconciliationFailures(ctx context.Context) ([]domain.ReconciliationFailure, error) {
	failures, err := s.reconRepo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return failures, nil
}
