package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"school-fee-gateway/internal/core/domain"
	"school-fee-gateway/internal/core/ports"
	"school-fee-gateway/internal/core/ports/mocks"
	"school-fee-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type handlerTestDeps struct {
	router       *gin.Engine
	paymentSvc   *mocks.MockPaymentService
	reportingSvc *mocks.MockReportingService
	tokenSvc     *mocks.MockTokenService
	ctrl         *gomock.Controller
}

func setupHandlers(t *testing.T) *handlerTestDeps {
	ctrl := gomock.NewController(t)
	d := &handlerTestDeps{
		paymentSvc:   mocks.NewMockPaymentService(ctrl),
		reportingSvc: mocks.NewMockReportingService(ctrl),
		tokenSvc:     mocks.NewMockTokenService(ctrl),
		ctrl:         ctrl,
	}
	d.router = SetupRouter(RouterDeps{
		PaymentSvc:   d.paymentSvc,
		ReportingSvc: d.reportingSvc,
		TokenSvc:     d.tokenSvc,
		Logger:       zerolog.Nop(),
	})
	return d
}

func (d *handlerTestDeps) expectAuth(userID, role string) {
	d.tokenSvc.EXPECT().Validate("test-token").Return(&ports.TokenClaims{UserID: userID, Role: role}, nil)
}

func doRequest(r *gin.Engine, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPaymentHandler_Initiate_Success(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("user-1", "accountant")

	d.paymentSvc.EXPECT().Initiate(gomock.Any(), ports.InitiateRequest{
		StudentID:   "student-1",
		FeeCategory: "tuition",
		Amount:      10000,
		TaxAmount:   500,
		Description: "first term",
		ActorID:     "user-1",
	}).Return(&ports.InitiateResult{
		TransactionUUID: "TXN-100",
		TotalAmount:     10500,
		ProductCode:     "EPAYTEST",
		Signature:       "c2ln",
	}, nil)

	w := doRequest(d.router, http.MethodPost, "/api/v1/payments/initiate",
		`{"studentId":"student-1","feeType":"tuition","amount":10000,"taxAmount":500,"description":"first term"}`, true)

	require.Equal(t, http.StatusCreated, w.Code)
	var envelope struct {
		Data struct {
			TransactionUUID  string `json:"transactionUuid"`
			TotalAmount      int64  `json:"totalAmount"`
			ProductCode      string `json:"productCode"`
			Signature        string `json:"signature"`
			SignedFieldNames string `json:"signedFieldNames"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "TXN-100", envelope.Data.TransactionUUID)
	assert.Equal(t, int64(10500), envelope.Data.TotalAmount)
	assert.Equal(t, "total_amount,transaction_uuid,product_code", envelope.Data.SignedFieldNames)
}

func TestPaymentHandler_Initiate_Unauthenticated(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()

	w := doRequest(d.router, http.MethodPost, "/api/v1/payments/initiate",
		`{"studentId":"student-1","feeType":"tuition","amount":10000}`, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_001")
}

func TestPaymentHandler_Initiate_BadBody(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("user-1", "accountant")

	// studentId fails safe_id validation
	w := doRequest(d.router, http.MethodPost, "/api/v1/payments/initiate",
		`{"studentId":"1; DROP TABLE","feeType":"tuition","amount":10000}`, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "FEE_001")
}

func TestPaymentHandler_Initiate_ExceedsPending(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("user-1", "accountant")

	d.paymentSvc.EXPECT().Initiate(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrAmountExceedsPending(15000, 12000))

	w := doRequest(d.router, http.MethodPost, "/api/v1/payments/initiate",
		`{"studentId":"student-1","feeType":"tuition","amount":15000}`, true)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var envelope struct {
		ErrorCode string         `json:"error_code"`
		Details   map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "FEE_002", envelope.ErrorCode)
	assert.Equal(t, float64(12000), envelope.Details["pendingAmount"])
}

func TestPaymentHandler_Verify_Success_NoAuthRequired(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()

	d.paymentSvc.EXPECT().Verify(gomock.Any(), ports.VerifyRequest{
		TransactionUUID: "TXN-100",
		Amount:          10500,
		ReferenceID:     "REF-001",
	}).Return(&ports.VerifyResult{
		TransactionUUID: "TXN-100",
		TotalAmount:     10500,
		ReferenceID:     "REF-001",
		Status:          domain.TransactionStatusCompleted,
		CreatedAt:       time.Now().UTC(),
	}, nil)

	w := doRequest(d.router, http.MethodPost, "/api/v1/payments/verify",
		`{"transactionUuid":"TXN-100","amount":10500,"referenceId":"REF-001"}`, false)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
}

func TestPaymentHandler_Verify_GatewayFailed(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()

	d.paymentSvc.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrVerificationFailed("PENDING"))

	w := doRequest(d.router, http.MethodPost, "/api/v1/payments/verify",
		`{"transactionUuid":"TXN-100"}`, false)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "GATE_002")
	assert.Contains(t, w.Body.String(), "PENDING")
}

func TestReportingHandler_History(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("user-1", "accountant")

	d.reportingSvc.EXPECT().History(gomock.Any(), "student-1").Return([]domain.Transaction{
		*domain.NewTransaction("TXN-1", "student-1", "user-1", domain.FeeCategoryTuition, 10000, 500, "tuition"),
	}, nil)

	w := doRequest(d.router, http.MethodGet, "/api/v1/payments/history/student-1", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
	assert.Contains(t, w.Body.String(), "TXN-1")
}

func TestReportingHandler_Status_NotFound(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("user-1", "accountant")

	d.reportingSvc.EXPECT().Status(gomock.Any(), "TXN-404").
		Return(nil, apperror.ErrNotFound("Transaction"))

	w := doRequest(d.router, http.MethodGet, "/api/v1/payments/status/TXN-404", "", true)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "FEE_003")
}

func TestPaymentHandler_CleanupStudent_AdminOnly(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("user-1", "accountant")

	w := doRequest(d.router, http.MethodDelete, "/api/v1/payments/cleanup/student-1", "", true)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_002")
}

func TestPaymentHandler_CleanupStudent_AsAdmin(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("admin-1", "admin")

	d.paymentSvc.EXPECT().CleanupStudent(gomock.Any(), "student-1").Return(int64(2), nil)

	w := doRequest(d.router, http.MethodDelete, "/api/v1/payments/cleanup/student-1", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":2`)
}

func TestPaymentHandler_CleanupStale(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("admin-1", "admin")

	d.paymentSvc.EXPECT().CleanupStale(gomock.Any()).Return(int64(5), nil)

	w := doRequest(d.router, http.MethodPost, "/api/v1/admin/payments/cleanup-stale", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":5`)
}

func TestPaymentHandler_ReconcileRerun(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("admin-1", "admin")

	d.paymentSvc.EXPECT().Reconcile(gomock.Any(), "TXN-100").Return(nil)

	w := doRequest(d.router, http.MethodPost, "/api/v1/admin/reconciliation-failures/TXN-100/rerun", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reconciled":true`)
}

func TestReportingHandler_Stats(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("admin-1", "admin")

	d.reportingSvc.EXPECT().Stats(gomock.Any()).Return(&ports.PaymentStats{
		TotalTransactions: 10,
		Completed:         7,
		TotalCollected:    70000,
	}, nil)

	w := doRequest(d.router, http.MethodGet, "/api/v1/admin/payments/stats", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalCollected":70000`)
}

func TestReportingHandler_ReconciliationFailures(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()
	d.expectAuth("admin-1", "admin")

	d.reportingSvc.EXPECT().ReconciliationFailures(gomock.Any()).Return([]domain.ReconciliationFailure{
		{TransactionUUID: "TXN-1", StudentID: "student-1", Amount: 10500, Reason: "no fee ledger", CreatedAt: time.Now()},
	}, nil)

	w := doRequest(d.router, http.MethodGet, "/api/v1/admin/reconciliation-failures", "", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no fee ledger")
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	d := setupHandlers(t)
	defer d.ctrl.Finish()

	w := doRequest(d.router, http.MethodGet, "/health", "", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}
