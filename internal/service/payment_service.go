package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"school-fee-gateway/config"
	"school-fee-gateway/internal/core/domain"
	"school-fee-gateway/internal/core/ports"
	"school-fee-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	// verifyCacheTTL bounds how long a completed verification result is served
	// from Redis before falling back to the store.
	verifyCacheTTL = 24 * time.Hour

	// ledgerRetryAttempts is the number of optimistic-concurrency retries for
	// a ledger write before the reconciliation is queued for manual re-run.
	ledgerRetryAttempts = 3
)

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	txRepo      ports.TransactionRepository
	ledgerRepo  ports.LedgerRepository
	reconRepo   ports.ReconciliationLogRepository
	gateway     ports.GatewayClient
	sigSvc      ports.SignatureService
	verifyCache ports.VerifyCache
	transactor  ports.DBTransactor
	esewa       config.EsewaConfig
	retention   time.Duration
	log         zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	txRepo ports.TransactionRepository,
	ledgerRepo ports.LedgerRepository,
	reconRepo ports.ReconciliationLogRepository,
	gateway ports.GatewayClient,
	sigSvc ports.SignatureService,
	verifyCache ports.VerifyCache,
	transactor ports.DBTransactor,
	esewa config.EsewaConfig,
	pendingRetention time.Duration,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		txRepo:      txRepo,
		ledgerRepo:  ledgerRepo,
		reconRepo:   reconRepo,
		gateway:     gateway,
		sigSvc:      sigSvc,
		verifyCache: verifyCache,
		transactor:  transactor,
		esewa:       esewa,
		retention:   pendingRetention,
		log:         log,
	}
}

// Initiate issues a new pending transaction for the student, supersedes any
// previous pending attempts, and returns the signed gateway form parameters.
func (s *PaymentServiceImpl) Initiate(ctx context.Context, req ports.InitiateRequest) (*ports.InitiateResult, error) {
	if !domain.ValidFeeCategory(req.FeeCategory) {
		return nil, apperror.Validation(fmt.Sprintf("invalid fee category: %s", req.FeeCategory))
	}
	if req.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}
	if req.TaxAmount < 0 {
		return nil, apperror.Validation("tax amount cannot be negative")
	}
	if s.esewa.SecretKey == "" {
		return nil, apperror.ErrConfiguration("eSewa secret key is not configured")
	}

	// The ledger gates issuance: no fee structure or nothing pending means no
	// new transaction.
	ledger, err := s.ledgerRepo.GetByStudent(ctx, req.StudentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load ledger: %w", err))
	}
	if ledger == nil {
		return nil, apperror.ErrNoFeeStructure()
	}
	if ledger.PendingAmount <= 0 {
		return nil, apperror.ErrNothingPending()
	}
	if req.Amount > ledger.PendingAmount {
		return nil, apperror.ErrAmountExceedsPending(req.Amount, ledger.PendingAmount)
	}

	// Supersede: a new attempt invalidates any earlier pending ones for this
	// student, so at most one pending transaction exists per student.
	superseded, err := s.txRepo.DeletePendingByStudent(ctx, req.StudentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("supersede pending transactions: %w", err))
	}
	if superseded > 0 {
		s.log.Info().
			Str("student_id", req.StudentID).
			Int64("superseded", superseded).
			Msg("superseded pending transactions")
	}

	transactionUUID, err := domain.NewTransactionUUID()
	if err != nil {
		s.log.Error().Err(err).Msg("transaction uuid generation failed")
		return nil, apperror.ErrUUIDGeneration()
	}

	txn := domain.NewTransaction(
		transactionUUID,
		req.StudentID,
		req.ActorID,
		domain.FeeCategory(req.FeeCategory),
		req.Amount,
		req.TaxAmount,
		req.Description,
	)

	if err := s.txRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			return nil, apperror.ErrTransactionConflict()
		}
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	canonical := s.sigSvc.BuildCanonicalString(txn.TotalAmount, txn.TransactionUUID, s.esewa.ProductCode)
	signature := s.sigSvc.Sign(s.esewa.SecretKey, canonical)

	s.log.Info().
		Str("transaction_uuid", txn.TransactionUUID).
		Str("student_id", req.StudentID).
		Str("fee_type", req.FeeCategory).
		Int64("total_amount", txn.TotalAmount).
		Msg("payment initiated")

	return &ports.InitiateResult{
		TransactionUUID: txn.TransactionUUID,
		TotalAmount:     txn.TotalAmount,
		ProductCode:     s.esewa.ProductCode,
		Signature:       signature,
	}, nil
}

// Verify confirms a transaction with the gateway, transitions it to completed
// exactly once, and reconciles the student's fee ledger. Re-verifying an
// already-completed transaction is idempotent and served from cache when
// possible.
func (s *PaymentServiceImpl) Verify(ctx context.Context, req ports.VerifyRequest) (*ports.VerifyResult, error) {
	if req.TransactionUUID == "" {
		return nil, apperror.Validation("transaction uuid is required")
	}

	// Redis fast path for repeated callbacks.
	cached, err := s.verifyCache.Get(ctx, req.TransactionUUID)
	if err != nil {
		s.log.Warn().Err(err).Str("transaction_uuid", req.TransactionUUID).Msg("verify cache read failed, falling through to DB")
	}
	if cached != nil {
		var result ports.VerifyResult
		if err := json.Unmarshal(cached, &result); err == nil {
			return &result, nil
		}
		s.log.Warn().Str("transaction_uuid", req.TransactionUUID).Msg("corrupt verify cache entry, falling through to DB")
	}

	txn, err := s.txRepo.GetByUUID(ctx, req.TransactionUUID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}

	if txn.IsCompleted() {
		result := verifyResultFrom(txn)
		s.cacheVerifyResult(ctx, result)
		return result, nil
	}
	if txn.IsTerminal() {
		return nil, apperror.ErrVerificationFailed(string(txn.Status))
	}

	if req.Amount > 0 && req.Amount != txn.TotalAmount {
		return nil, apperror.Validation(
			fmt.Sprintf("amount mismatch: expected Rs.%d, got Rs.%d", txn.TotalAmount, req.Amount))
	}

	status, err := s.lookupGatewayStatus(ctx, txn, req.ReferenceID)
	if err != nil {
		s.log.Error().Err(err).
			Str("transaction_uuid", txn.TransactionUUID).
			Msg("gateway status lookup failed, transaction stays pending")
		return nil, apperror.ErrGatewayUnavailable(err)
	}

	if !status.Complete() {
		if mErr := s.txRepo.MarkFailed(ctx, txn.TransactionUUID, status.Status); mErr != nil {
			s.log.Error().Err(mErr).Str("transaction_uuid", txn.TransactionUUID).Msg("failed to mark transaction failed")
		}
		s.log.Warn().
			Str("transaction_uuid", txn.TransactionUUID).
			Str("gateway_status", status.Status).
			Msg("payment verification failed")
		return nil, apperror.ErrVerificationFailed(status.Status)
	}

	referenceID := status.ReferenceID
	if referenceID == "" {
		referenceID = req.ReferenceID
	}
	if referenceID == "" {
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("gateway returned COMPLETE without a reference id"))
	}

	verifiedAt := time.Now().UTC()
	transitioned, err := s.txRepo.MarkCompleted(ctx, txn.TransactionUUID, referenceID, status.Raw, verifiedAt)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete transaction: %w", err))
	}
	if !transitioned {
		// A concurrent verification won the race; the transaction is already
		// terminal. Serve the stored outcome.
		current, err := s.txRepo.GetByUUID(ctx, txn.TransactionUUID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("reload transaction: %w", err))
		}
		if current == nil || !current.IsCompleted() {
			return nil, apperror.ErrVerificationFailed(string(domain.TransactionStatusFailed))
		}
		result := verifyResultFrom(current)
		s.cacheVerifyResult(ctx, result)
		return result, nil
	}

	txn.Status = domain.TransactionStatusCompleted
	txn.ReferenceID = &referenceID
	txn.VerifiedAt = &verifiedAt

	// The completed transaction is already committed; a ledger failure must
	// not roll it back. Failures are queued for an operator re-run instead.
	if err := s.reconcileLedger(ctx, txn, referenceID, verifiedAt); err != nil {
		s.log.Error().Err(err).
			Str("transaction_uuid", txn.TransactionUUID).
			Str("student_id", txn.StudentID).
			Msg("ledger reconciliation failed for completed transaction")
		failure := &domain.ReconciliationFailure{
			TransactionUUID: txn.TransactionUUID,
			StudentID:       txn.StudentID,
			Amount:          txn.TotalAmount,
			Reason:          err.Error(),
			CreatedAt:       verifiedAt,
		}
		if rErr := s.reconRepo.Record(ctx, failure); rErr != nil {
			s.log.Error().Err(rErr).Str("transaction_uuid", txn.TransactionUUID).Msg("failed to record reconciliation failure")
		}
	}

	s.log.Info().
		Str("transaction_uuid", txn.TransactionUUID).
		Str("student_id", txn.StudentID).
		Str("reference_id", referenceID).
		Int64("total_amount", txn.TotalAmount).
		Msg("payment verified")

	result := verifyResultFrom(txn)
	s.cacheVerifyResult(ctx, result)
	return result, nil
}

// Reconcile re-runs the ledger reconciler for a completed transaction. It is
// the recovery path for queued reconciliation failures and is idempotent by
// receipt number.
func (s *PaymentServiceImpl) Reconcile(ctx context.Context, transactionUUID string) error {
	txn, err := s.txRepo.GetByUUID(ctx, transactionUUID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load transaction: %w", err))
	}
	if txn == nil {
		return apperror.ErrNotFound("Transaction")
	}
	if !txn.IsCompleted() {
		return apperror.Validation("only completed transactions can be reconciled")
	}
	if txn.ReferenceID == nil || *txn.ReferenceID == "" {
		return apperror.Validation("transaction has no gateway reference id")
	}

	paidAt := txn.CreatedAt
	if txn.VerifiedAt != nil {
		paidAt = *txn.VerifiedAt
	}

	if err := s.reconcileLedger(ctx, txn, *txn.ReferenceID, paidAt); err != nil {
		return apperror.InternalError(fmt.Errorf("reconcile ledger: %w", err))
	}

	if err := s.reconRepo.Resolve(ctx, transactionUUID); err != nil {
		s.log.Warn().Err(err).Str("transaction_uuid", transactionUUID).Msg("failed to resolve reconciliation failure entry")
	}

	s.log.Info().
		Str("transaction_uuid", transactionUUID).
		Str("student_id", txn.StudentID).
		Msg("ledger reconciled")
	return nil
}

// CleanupStudent deletes the student's pending transactions so a fresh
// attempt can be issued. Completed transactions are never touched.
func (s *PaymentServiceImpl) CleanupStudent(ctx context.Context, studentID string) (int64, error) {
	if studentID == "" {
		return 0, apperror.Validation("student id is required")
	}

	deleted, err := s.txRepo.DeletePendingByStudent(ctx, studentID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("cleanup student transactions: %w", err))
	}

	s.log.Info().
		Str("student_id", studentID).
		Int64("deleted", deleted).
		Msg("pending transactions cleaned up for student")
	return deleted, nil
}

// CleanupStale deletes pending transactions older than the configured
// retention window across all students.
func (s *PaymentServiceImpl) CleanupStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.retention)

	deleted, err := s.txRepo.DeletePendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("cleanup stale transactions: %w", err))
	}

	s.log.Info().
		Time("cutoff", cutoff).
		Int64("deleted", deleted).
		Msg("stale pending transactions cleaned up")
	return deleted, nil
}

// lookupGatewayStatus queries the gateway, or fabricates a COMPLETE answer
// when verification is skipped. Config validation guarantees the bypass never
// runs against the production gateway.
func (s *PaymentServiceImpl) lookupGatewayStatus(ctx context.Context, txn *domain.Transaction, callbackRefID string) (*ports.GatewayStatus, error) {
	if s.esewa.SkipVerification {
		referenceID := callbackRefID
		if referenceID == "" {
			referenceID = txn.TransactionUUID
		}
		s.log.Warn().
			Str("transaction_uuid", txn.TransactionUUID).
			Msg("gateway verification skipped (test mode)")

		raw, _ := json.Marshal(map[string]any{
			"status":           "COMPLETE",
			"ref_id":           referenceID,
			"transaction_uuid": txn.TransactionUUID,
			"total_amount":     txn.TotalAmount,
		})
		return &ports.GatewayStatus{
			Status:          "COMPLETE",
			TransactionUUID: txn.TransactionUUID,
			ReferenceID:     referenceID,
			TotalAmount:     txn.TotalAmount,
			Raw:             raw,
		}, nil
	}

	return s.gateway.LookupStatus(ctx, s.esewa.ProductCode, txn.TotalAmount, txn.TransactionUUID)
}

// reconcileLedger applies the completed payment to the student's fee ledger
// with optimistic-concurrency retries. The receipt-number check makes the
// whole operation idempotent under re-runs.
func (s *PaymentServiceImpl) reconcileLedger(ctx context.Context, txn *domain.Transaction, receiptNumber string, paidAt time.Time) error {
	var lastErr error
	for attempt := 1; attempt <= ledgerRetryAttempts; attempt++ {
		ledger, err := s.ledgerRepo.GetByStudent(ctx, txn.StudentID)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		if ledger == nil {
			return fmt.Errorf("no fee ledger for student %s", txn.StudentID)
		}
		if ledger.HasReceipt(receiptNumber) {
			return nil
		}

		record := domain.PaymentRecord{
			Amount:        txn.TotalAmount,
			PaymentDate:   paidAt,
			PaymentMethod: txn.PaymentMethod,
			ReceiptNumber: receiptNumber,
			Description:   txn.Description,
			EnteredBy:     txn.UserID,
			EnteredAt:     time.Now().UTC(),
		}
		updated := ledger.ApplyPayment(record)

		err = s.applyLedgerUpdate(ctx, &updated, &record)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			s.log.Warn().
				Str("student_id", txn.StudentID).
				Int("attempt", attempt).
				Msg("ledger version conflict, retrying")
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("ledger update exhausted %d attempts: %w", ledgerRetryAttempts, lastErr)
}

func (s *PaymentServiceImpl) applyLedgerUpdate(ctx context.Context, ledger *domain.FeeLedger, record *domain.PaymentRecord) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.ledgerRepo.Update(ctx, dbTx, ledger, record); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PaymentServiceImpl) cacheVerifyResult(ctx context.Context, result *ports.VerifyResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.verifyCache.Set(ctx, result.TransactionUUID, payload, verifyCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("transaction_uuid", result.TransactionUUID).Msg("failed to cache verify result")
	}
}

func verifyResultFrom(txn *domain.Transaction) *ports.VerifyResult {
	result := &ports.VerifyResult{
		TransactionUUID: txn.TransactionUUID,
		TotalAmount:     txn.TotalAmount,
		Status:          txn.Status,
		CreatedAt:       txn.CreatedAt,
	}
	if txn.ReferenceID != nil {
		result.ReferenceID = *txn.ReferenceID
	}
	return result
}
