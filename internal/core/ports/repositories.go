package ports

import (
	"context"
	"time"

	"school-fee-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// TransactionRepository defines persistence operations for fee payment
// transactions. The store enforces a uniqueness constraint on the
// transaction uuid; Create returns domain.ErrDuplicateTransaction when it is
// violated.
type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByUUID(ctx context.Context, transactionUUID string) (*domain.Transaction, error)
	// MarkCompleted transitions a transaction from pending to completed with
	// a conditional update. It returns false when the transaction was not in
	// pending state, so racing verifications transition exactly once.
	MarkCompleted(ctx context.Context, transactionUUID, referenceID string, payload []byte, verifiedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, transactionUUID, reason string) error
	DeletePendingByStudent(ctx context.Context, studentID string) (int64, error)
	DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// Reporting queries
	ListByStudent(ctx context.Context, studentID string) ([]domain.Transaction, error)
	GetStats(ctx context.Context) (*PaymentStats, error)
}

// PaymentStats holds aggregated payment statistics for the admin dashboard.
type PaymentStats struct {
	TotalTransactions int64
	Pending           int64
	Completed         int64
	Failed            int64
	TotalCollected    int64 // Sum of completed totalAmounts
}

// LedgerRepository defines persistence operations for student fee ledgers.
// Update enforces an optimistic version check and returns
// domain.ErrVersionConflict when the persisted version moved; the
// payment-record insert and the ledger update run inside the supplied
// database transaction.
type LedgerRepository interface {
	GetByStudent(ctx context.Context, studentID string) (*domain.FeeLedger, error)
	Update(ctx context.Context, tx pgx.Tx, ledger *domain.FeeLedger, record *domain.PaymentRecord) error
}

// ReconciliationLogRepository records ledger writes that failed after a
// transaction completed, so an operator can re-run the reconciler.
type ReconciliationLogRepository interface {
	Record(ctx context.Context, f *domain.ReconciliationFailure) error
	List(ctx context.Context) ([]domain.ReconciliationFailure, error)
	Resolve(ctx context.Context, transactionUUID string) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
