package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"school-fee-gateway/config"
	"school-fee-gateway/internal/core/domain"
	"school-fee-gateway/internal/core/ports"
	"school-fee-gateway/internal/core/ports/mocks"
	"school-fee-gateway/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testEsewaConfig = config.EsewaConfig{
	SecretKey:     "test-secret-key",
	ProductCode:   "EPAYTEST",
	Environment:   "development",
	StatusTimeout: 10 * time.Second,
}

type paymentTestDeps struct {
	svc         *PaymentServiceImpl
	txRepo      *mocks.MockTransactionRepository
	ledgerRepo  *mocks.MockLedgerRepository
	reconRepo   *mocks.MockReconciliationLogRepository
	gateway     *mocks.MockGatewayClient
	sigSvc      *mocks.MockSignatureService
	verifyCache *mocks.MockVerifyCache
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupPaymentService(t *testing.T) *paymentTestDeps {
	ctrl := gomock.NewController(t)
	d := &paymentTestDeps{
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		ledgerRepo:  mocks.NewMockLedgerRepository(ctrl),
		reconRepo:   mocks.NewMockReconciliationLogRepository(ctrl),
		gateway:     mocks.NewMockGatewayClient(ctrl),
		sigSvc:      mocks.NewMockSignatureService(ctrl),
		verifyCache: mocks.NewMockVerifyCache(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewPaymentService(
		d.txRepo, d.ledgerRepo, d.reconRepo, d.gateway,
		d.sigSvc, d.verifyCache, d.transactor,
		testEsewaConfig, 5*time.Minute, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func assertAppError(t *testing.T, err error, code string) *apperror.AppError {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func testLedger(studentID string, totalFee, paid int64) *domain.FeeLedger {
	l := domain.FeeLedger{StudentID: studentID, TotalFee: totalFee, PaidAmount: paid, Version: 1}.Recompute()
	return &l
}

func pendingTxn(uuid, studentID string, amount, tax int64) *domain.Transaction {
	return domain.NewTransaction(uuid, studentID, "user-1", domain.FeeCategoryTuition, amount, tax, "first term tuition")
}

// ==================== Initiate Tests ====================

func TestPaymentService_Initiate_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := ports.InitiateRequest{
		StudentID:   "student-1",
		FeeCategory: "tuition",
		Amount:      10000,
		TaxAmount:   500,
		Description: "first term tuition",
		ActorID:     "user-1",
	}

	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(testLedger("student-1", 30000, 10000), nil)
	d.txRepo.EXPECT().DeletePendingByStudent(ctx, "student-1").Return(int64(1), nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.sigSvc.EXPECT().BuildCanonicalString(int64(10500), gomock.Any(), "EPAYTEST").Return("canonical")
	d.sigSvc.EXPECT().Sign("test-secret-key", "canonical").Return("signed-base64")

	result, err := d.svc.Initiate(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "EPAYTEST", result.ProductCode)
	assert.Equal(t, "signed-base64", result.Signature)
	assert.Equal(t, int64(10500), result.TotalAmount)
	assert.Contains(t, result.TransactionUUID, "TXN-")
}

func TestPaymentService_Initiate_InvalidCategory(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Initiate(context.Background(), ports.InitiateRequest{
		StudentID:   "student-1",
		FeeCategory: "sports",
		Amount:      1000,
	})
	assertAppError(t, err, "FEE_001")
}

func TestPaymentService_Initiate_NonPositiveAmount(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Initiate(context.Background(), ports.InitiateRequest{
		StudentID:   "student-1",
		FeeCategory: "tuition",
		Amount:      0,
	})
	assertAppError(t, err, "FEE_001")
}

func TestPaymentService_Initiate_NoFeeStructure(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(nil, nil)

	_, err := d.svc.Initiate(ctx, ports.InitiateRequest{
		StudentID:   "student-1",
		FeeCategory: "tuition",
		Amount:      1000,
	})
	assertAppError(t, err, "FEE_005")
}

func TestPaymentService_Initiate_NothingPending(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(testLedger("student-1", 30000, 30000), nil)

	_, err := d.svc.Initiate(ctx, ports.InitiateRequest{
		StudentID:   "student-1",
		FeeCategory: "tuition",
		Amount:      1000,
	})
	assertAppError(t, err, "FEE_006")
}

func TestPaymentService_Initiate_AmountExceedsPending(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(testLedger("student-1", 30000, 18000), nil)

	_, err := d.svc.Initiate(ctx, ports.InitiateRequest{
		StudentID:   "student-1",
		FeeCategory: "tuition",
		Amount:      15000,
	})
	appErr := assertAppError(t, err, "FEE_002")
	assert.Equal(t, int64(12000), appErr.Details["pendingAmount"])
}

func TestPaymentService_Initiate_DuplicateUUID(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(testLedger("student-1", 30000, 0), nil)
	d.txRepo.EXPECT().DeletePendingByStudent(ctx, "student-1").Return(int64(0), nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any()).Return(domain.ErrDuplicateTransaction)

	_, err := d.svc.Initiate(ctx, ports.InitiateRequest{
		StudentID:   "student-1",
		FeeCategory: "tuition",
		Amount:      5000,
	})
	appErr := assertAppError(t, err, "FEE_004")
	assert.Equal(t, true, appErr.Details["shouldRetry"])
}

// ==================== Verify Tests ====================

func TestPaymentService_Verify_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)
	tx := &mockTx{}
	raw := json.RawMessage(`{"status":"COMPLETE","ref_id":"REF-001"}`)

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	d.gateway.EXPECT().LookupStatus(ctx, "EPAYTEST", int64(10500), "TXN-100").Return(&ports.GatewayStatus{
		Status:          "COMPLETE",
		TransactionUUID: "TXN-100",
		ReferenceID:     "REF-001",
		TotalAmount:     10500,
		Raw:             raw,
	}, nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, "TXN-100", "REF-001", []byte(raw), gomock.Any()).Return(true, nil)
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(testLedger("student-1", 30000, 0), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().Update(ctx, tx, gomock.Any(), gomock.Any()).Return(nil)
	d.verifyCache.EXPECT().Set(ctx, "TXN-100", gomock.Any(), verifyCacheTTL).Return(nil)

	result, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100", Amount: 10500})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Status)
	assert.Equal(t, "REF-001", result.ReferenceID)
	assert.Equal(t, int64(10500), result.TotalAmount)
}

func TestPaymentService_Verify_CacheHit(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	cached, _ := json.Marshal(ports.VerifyResult{
		TransactionUUID: "TXN-100",
		TotalAmount:     10500,
		ReferenceID:     "REF-001",
		Status:          domain.TransactionStatusCompleted,
	})
	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(cached, nil)

	result, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100"})
	require.NoError(t, err)
	assert.Equal(t, "REF-001", result.ReferenceID)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Status)
}

func TestPaymentService_Verify_AlreadyCompleted(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	refID := "REF-001"
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)
	txn.Status = domain.TransactionStatusCompleted
	txn.ReferenceID = &refID

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	d.verifyCache.EXPECT().Set(ctx, "TXN-100", gomock.Any(), verifyCacheTTL).Return(nil)

	result, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Status)
	assert.Equal(t, "REF-001", result.ReferenceID)
}

func TestPaymentService_Verify_NotFound(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.verifyCache.EXPECT().Get(ctx, "TXN-404").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-404").Return(nil, nil)

	_, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-404"})
	assertAppError(t, err, "FEE_003")
}

func TestPaymentService_Verify_AmountMismatch(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)

	_, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100", Amount: 9999})
	assertAppError(t, err, "FEE_001")
}

func TestPaymentService_Verify_GatewayUnavailable(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	d.gateway.EXPECT().LookupStatus(ctx, "EPAYTEST", int64(10500), "TXN-100").Return(nil, errors.New("connection refused"))

	_, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100"})
	appErr := assertAppError(t, err, "GATE_001")
	assert.Equal(t, true, appErr.Details["requiresManualReview"])
}

func TestPaymentService_Verify_GatewayNotComplete(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	d.gateway.EXPECT().LookupStatus(ctx, "EPAYTEST", int64(10500), "TXN-100").Return(&ports.GatewayStatus{
		Status: "PENDING",
	}, nil)
	d.txRepo.EXPECT().MarkFailed(ctx, "TXN-100", "PENDING").Return(nil)

	_, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100"})
	appErr := assertAppError(t, err, "GATE_002")
	assert.Equal(t, "PENDING", appErr.Details["esewaStatus"])
}

func TestPaymentService_Verify_RaceLost(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)
	raw := json.RawMessage(`{"status":"COMPLETE","ref_id":"REF-001"}`)

	refID := "REF-001"
	completed := pendingTxn("TXN-100", "student-1", 10000, 500)
	completed.Status = domain.TransactionStatusCompleted
	completed.ReferenceID = &refID

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	d.gateway.EXPECT().LookupStatus(ctx, "EPAYTEST", int64(10500), "TXN-100").Return(&ports.GatewayStatus{
		Status:      "COMPLETE",
		ReferenceID: "REF-001",
		Raw:         raw,
	}, nil)
	// The conditional update reports the transaction was no longer pending.
	d.txRepo.EXPECT().MarkCompleted(ctx, "TXN-100", "REF-001", []byte(raw), gomock.Any()).Return(false, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(completed, nil)
	d.verifyCache.EXPECT().Set(ctx, "TXN-100", gomock.Any(), verifyCacheTTL).Return(nil)

	result, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Status)
	assert.Equal(t, "REF-001", result.ReferenceID)
}

func TestPaymentService_Verify_LedgerVersionConflictRetries(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)
	tx := &mockTx{}
	raw := json.RawMessage(`{"status":"COMPLETE","ref_id":"REF-001"}`)

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	d.gateway.EXPECT().LookupStatus(ctx, "EPAYTEST", int64(10500), "TXN-100").Return(&ports.GatewayStatus{
		Status:      "COMPLETE",
		ReferenceID: "REF-001",
		Raw:         raw,
	}, nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, "TXN-100", "REF-001", []byte(raw), gomock.Any()).Return(true, nil)

	// First attempt loses the optimistic race, second succeeds.
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(testLedger("student-1", 30000, 0), nil).Times(2)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	gomock.InOrder(
		d.ledgerRepo.EXPECT().Update(ctx, tx, gomock.Any(), gomock.Any()).Return(domain.ErrVersionConflict),
		d.ledgerRepo.EXPECT().Update(ctx, tx, gomock.Any(), gomock.Any()).Return(nil),
	)
	d.verifyCache.EXPECT().Set(ctx, "TXN-100", gomock.Any(), verifyCacheTTL).Return(nil)

	result, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Status)
}

func TestPaymentService_Verify_ReconciliationFailureQueued(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)
	raw := json.RawMessage(`{"status":"COMPLETE","ref_id":"REF-001"}`)

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	d.gateway.EXPECT().LookupStatus(ctx, "EPAYTEST", int64(10500), "TXN-100").Return(&ports.GatewayStatus{
		Status:      "COMPLETE",
		ReferenceID: "REF-001",
		Raw:         raw,
	}, nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, "TXN-100", "REF-001", []byte(raw), gomock.Any()).Return(true, nil)
	// Ledger is missing: the reconciler cannot run, the failure is queued, and
	// the verification still reports success because the money moved.
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(nil, nil)
	d.reconRepo.EXPECT().Record(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, f *domain.ReconciliationFailure) error {
			assert.Equal(t, "TXN-100", f.TransactionUUID)
			assert.Equal(t, "student-1", f.StudentID)
			assert.Equal(t, int64(10500), f.Amount)
			return nil
		})
	d.verifyCache.EXPECT().Set(ctx, "TXN-100", gomock.Any(), verifyCacheTTL).Return(nil)

	result, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Status)
}

func TestPaymentService_Verify_IdempotentByReceipt(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)
	raw := json.RawMessage(`{"status":"COMPLETE","ref_id":"REF-001"}`)

	ledger := testLedger("student-1", 30000, 10500)
	ledger.History = []domain.PaymentRecord{{ReceiptNumber: "REF-001", Amount: 10500}}

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	d.gateway.EXPECT().LookupStatus(ctx, "EPAYTEST", int64(10500), "TXN-100").Return(&ports.GatewayStatus{
		Status:      "COMPLETE",
		ReferenceID: "REF-001",
		Raw:         raw,
	}, nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, "TXN-100", "REF-001", []byte(raw), gomock.Any()).Return(true, nil)
	// Receipt already applied: no transaction begins, no ledger write.
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(ledger, nil)
	d.verifyCache.EXPECT().Set(ctx, "TXN-100", gomock.Any(), verifyCacheTTL).Return(nil)

	_, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100"})
	require.NoError(t, err)
}

func TestPaymentService_Verify_SkipVerification(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	skipCfg := testEsewaConfig
	skipCfg.SkipVerification = true
	d.svc = NewPaymentService(
		d.txRepo, d.ledgerRepo, d.reconRepo, d.gateway,
		d.sigSvc, d.verifyCache, d.transactor,
		skipCfg, 5*time.Minute, zerolog.Nop(),
	)

	ctx := context.Background()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)
	tx := &mockTx{}

	d.verifyCache.EXPECT().Get(ctx, "TXN-100").Return(nil, nil)
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	// No gateway call: the bypass fabricates a COMPLETE status.
	d.txRepo.EXPECT().MarkCompleted(ctx, "TXN-100", "REF-CB", gomock.Any(), gomock.Any()).Return(true, nil)
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(testLedger("student-1", 30000, 0), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().Update(ctx, tx, gomock.Any(), gomock.Any()).Return(nil)
	d.verifyCache.EXPECT().Set(ctx, "TXN-100", gomock.Any(), verifyCacheTTL).Return(nil)

	result, err := d.svc.Verify(ctx, ports.VerifyRequest{TransactionUUID: "TXN-100", ReferenceID: "REF-CB"})
	require.NoError(t, err)
	assert.Equal(t, "REF-CB", result.ReferenceID)
}

// ==================== Reconcile Tests ====================

func TestPaymentService_Reconcile_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	refID := "REF-001"
	now := time.Now().UTC()
	txn := pendingTxn("TXN-100", "student-1", 10000, 500)
	txn.Status = domain.TransactionStatusCompleted
	txn.ReferenceID = &refID
	txn.VerifiedAt = &now
	tx := &mockTx{}

	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(txn, nil)
	d.ledgerRepo.EXPECT().GetByStudent(ctx, "student-1").Return(testLedger("student-1", 30000, 0), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().Update(ctx, tx, gomock.Any(), gomock.Any()).Return(nil)
	d.reconRepo.EXPECT().Resolve(ctx, "TXN-100").Return(nil)

	err := d.svc.Reconcile(ctx, "TXN-100")
	require.NoError(t, err)
}

func TestPaymentService_Reconcile_NotCompleted(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-100").Return(pendingTxn("TXN-100", "student-1", 10000, 0), nil)

	err := d.svc.Reconcile(ctx, "TXN-100")
	assertAppError(t, err, "FEE_001")
}

func TestPaymentService_Reconcile_NotFound(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.txRepo.EXPECT().GetByUUID(ctx, "TXN-404").Return(nil, nil)

	err := d.svc.Reconcile(ctx, "TXN-404")
	assertAppError(t, err, "FEE_003")
}

// ==================== Cleanup Tests ====================

func TestPaymentService_CleanupStudent_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.txRepo.EXPECT().DeletePendingByStudent(ctx, "student-1").Return(int64(2), nil)

	deleted, err := d.svc.CleanupStudent(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestPaymentService_CleanupStudent_EmptyID(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.CleanupStudent(context.Background(), "")
	assertAppError(t, err, "FEE_001")
}

func TestPaymentService_CleanupStale_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.txRepo.EXPECT().DeletePendingOlderThan(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, cutoff time.Time) (int64, error) {
			// The cutoff honours the 5 minute retention window.
			assert.WithinDuration(t, time.Now().UTC().Add(-5*time.Minute), cutoff, 5*time.Second)
			return int64(3), nil
		})

	deleted, err := d.svc.CleanupStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
