package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"school-fee-gateway/internal/core/domain"
	"school-fee-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[string]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[t.TransactionUUID]; ok {
		return domain.ErrDuplicateTransaction
	}
	cp := *t
	r.transactions[t.TransactionUUID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByUUID(ctx context.Context, transactionUUID string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[transactionUUID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) MarkCompleted(ctx context.Context, transactionUUID, referenceID string, payload []byte, verifiedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[transactionUUID]
	if !ok {
		return false, nil
	}
	// Conditional transition, same as the UPDATE ... WHERE status='pending'.
	if t.Status != domain.TransactionStatusPending {
		return false, nil
	}
	t.Status = domain.TransactionStatusCompleted
	t.ReferenceID = &referenceID
	t.GatewayResponse = payload
	at := verifiedAt
	t.VerifiedAt = &at
	return true, nil
}

func (r *inMemoryTransactionRepo) MarkFailed(ctx context.Context, transactionUUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[transactionUUID]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	if t.Status != domain.TransactionStatusPending {
		return nil
	}
	t.Status = domain.TransactionStatusFailed
	t.FailureReason = &reason
	return nil
}

func (r *inMemoryTransactionRepo) DeletePendingByStudent(ctx context.Context, studentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for uuid, t := range r.transactions {
		if t.StudentID == studentID && t.Status == domain.TransactionStatusPending {
			delete(r.transactions, uuid)
			deleted++
		}
	}
	return deleted, nil
}

func (r *inMemoryTransactionRepo) DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for uuid, t := range r.transactions {
		if t.Status == domain.TransactionStatusPending && t.CreatedAt.Before(cutoff) {
			delete(r.transactions, uuid)
			deleted++
		}
	}
	return deleted, nil
}

func (r *inMemoryTransactionRepo) ListByStudent(ctx context.Context, studentID string) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.StudentID == studentID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (r *inMemoryTransactionRepo) GetStats(ctx context.Context) (*ports.PaymentStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &ports.PaymentStats{}
	for _, t := range r.transactions {
		stats.TotalTransactions++
		switch t.Status {
		case domain.TransactionStatusPending:
			stats.Pending++
		case domain.TransactionStatusCompleted:
			stats.Completed++
			stats.TotalCollected += t.TotalAmount
		case domain.TransactionStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	ledgers map[string]*domain.FeeLedger
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{ledgers: make(map[string]*domain.FeeLedger)}
}

func (r *inMemoryLedgerRepo) seed(l domain.FeeLedger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := l.Recompute()
	r.ledgers[l.StudentID] = &cp
}

func (r *inMemoryLedgerRepo) GetByStudent(ctx context.Context, studentID string) (*domain.FeeLedger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[studentID]
	if !ok {
		return nil, nil
	}
	cp := *l
	cp.History = append([]domain.PaymentRecord(nil), l.History...)
	return &cp, nil
}

// Update enforces the same optimistic version check as the real store: the
// write only lands if the stored version still matches the version the
// caller read.
func (r *inMemoryLedgerRepo) Update(ctx context.Context, tx pgx.Tx, ledger *domain.FeeLedger, record *domain.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.ledgers[ledger.StudentID]
	if !ok {
		return fmt.Errorf("fee ledger not found")
	}
	if stored.Version != ledger.Version {
		return domain.ErrVersionConflict
	}
	cp := *ledger
	cp.History = append([]domain.PaymentRecord(nil), ledger.History...)
	cp.Version = stored.Version + 1
	r.ledgers[ledger.StudentID] = &cp
	return nil
}

// --- In-Memory Reconciliation Log Repo ---

type inMemoryReconciliationLogRepo struct {
	mu       sync.RWMutex
	failures map[string]*domain.ReconciliationFailure
	resolved map[string]bool
}

func newInMemoryReconciliationLogRepo() *inMemoryReconciliationLogRepo {
	return &inMemoryReconciliationLogRepo{
		failures: make(map[string]*domain.ReconciliationFailure),
		resolved: make(map[string]bool),
	}
}

func (r *inMemoryReconciliationLogRepo) Record(ctx context.Context, f *domain.ReconciliationFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.failures[f.TransactionUUID] = &cp
	r.resolved[f.TransactionUUID] = false
	return nil
}

func (r *inMemoryReconciliationLogRepo) List(ctx context.Context) ([]domain.ReconciliationFailure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.ReconciliationFailure
	for uuid, f := range r.failures {
		if !r.resolved[uuid] {
			result = append(result, *f)
		}
	}
	return result, nil
}

func (r *inMemoryReconciliationLogRepo) Resolve(ctx context.Context, transactionUUID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.failures[transactionUUID]; ok {
		r.resolved[transactionUUID] = true
	}
	return nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }

// --- Stub Gateway Client ---

// stubGateway answers status lookups with a fixed status. Concurrency-safe so
// racing verifications can share one instance.
type stubGateway struct {
	mu     sync.Mutex
	status string
	refID  string
	err    error
	calls  int
}

func newStubGateway(status, refID string) *stubGateway {
	return &stubGateway{status: status, refID: refID}
}

func (g *stubGateway) LookupStatus(ctx context.Context, productCode string, totalAmount int64, transactionUUID string) (*ports.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	raw := fmt.Sprintf(`{"product_code":%q,"transaction_uuid":%q,"total_amount":%d,"status":%q,"ref_id":%q}`,
		productCode, transactionUUID, totalAmount, g.status, g.refID)
	return &ports.GatewayStatus{
		Status:          g.status,
		TransactionUUID: transactionUUID,
		ReferenceID:     g.refID,
		TotalAmount:     totalAmount,
		Raw:             []byte(raw),
	}, nil
}
