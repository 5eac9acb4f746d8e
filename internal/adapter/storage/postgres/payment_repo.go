package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"school-fee-gateway/internal/core/domain"
	"school-fee-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// PaymentRepo implements ports.TransactionRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const transactionColumns = `transaction_uuid, student_id, user_id, fee_type, amount, tax_amount, total_amount,
		description, status, payment_method, reference_id, gateway_response, failure_reason, created_at, verified_at`

// Create inserts a new pending transaction. A duplicate transaction uuid maps
// to domain.ErrDuplicateTransaction.
func (r *PaymentRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		t.TransactionUUID, t.StudentID, t.UserID, t.FeeCategory,
		t.Amount, t.TaxAmount, t.TotalAmount,
		t.Description, t.Status, t.PaymentMethod,
		t.ReferenceID, t.GatewayResponse, t.FailureReason,
		t.CreatedAt, t.VerifiedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateTransaction
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByUUID fetches a transaction by its uuid. Returns nil, nil when absent.
func (r *PaymentRepo) GetByUUID(ctx context.Context, transactionUUID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_uuid = $1`

	return r.scanTransaction(r.pool.QueryRow(ctx, query, transactionUUID))
}

// MarkCompleted transitions a pending transaction to completed. The status
// predicate makes the transition exactly-once under racing verifications: the
// loser sees zero rows affected and gets false back.
func (r *PaymentRepo) MarkCompleted(ctx context.Context, transactionUUID, referenceID string, payload []byte, verifiedAt time.Time) (bool, error) {
	query := `UPDATE transactions
		SET status = $2, reference_id = $3, gateway_response = $4, verified_at = $5
		WHERE transaction_uuid = $1 AND status = $6`

	tag, err := r.pool.Exec(ctx, query,
		transactionUUID, domain.TransactionStatusCompleted, referenceID, payload, verifiedAt,
		domain.TransactionStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark transaction completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions a pending transaction to failed with the gateway's
// reason. Terminal transactions are left untouched.
func (r *PaymentRepo) MarkFailed(ctx context.Context, transactionUUID, reason string) error {
	query := `UPDATE transactions
		SET status = $2, failure_reason = $3
		WHERE transaction_uuid = $1 AND status = $4`

	_, err := r.pool.Exec(ctx, query,
		transactionUUID, domain.TransactionStatusFailed, reason, domain.TransactionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark transaction failed: %w", err)
	}
	return nil
}

// DeletePendingByStudent removes the student's pending transactions and
// returns how many were deleted. Terminal transactions are never deleted.
func (r *PaymentRepo) DeletePendingByStudent(ctx context.Context, studentID string) (int64, error) {
	query := `DELETE FROM transactions WHERE student_id = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, query, studentID, domain.TransactionStatusPending)
	if err != nil {
		return 0, fmt.Errorf("delete pending transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeletePendingOlderThan removes pending transactions created before cutoff.
func (r *PaymentRepo) DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM transactions WHERE status = $1 AND created_at < $2`

	tag, err := r.pool.Exec(ctx, query, domain.TransactionStatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByStudent fetches the student's transactions, newest first.
func (r *PaymentRepo) ListByStudent(ctx context.Context, studentID string) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE student_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

// GetStats returns aggregate transaction counts and the total collected.
func (r *PaymentRepo) GetStats(ctx context.Context) (*ports.PaymentStats, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE status = 'completed'),
		COUNT(*) FILTER (WHERE status = 'failed'),
		COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0)
		FROM transactions`

	var stats ports.PaymentStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalTransactions, &stats.Pending, &stats.Completed, &stats.Failed, &stats.TotalCollected,
	)
	if err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	return &stats, nil
}

func (r *PaymentRepo) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.TransactionUUID, &t.StudentID, &t.UserID, &t.FeeCategory,
		&t.Amount, &t.TaxAmount, &t.TotalAmount,
		&t.Description, &t.Status, &t.PaymentMethod,
		&t.ReferenceID, &t.GatewayResponse, &t.FailureReason,
		&t.CreatedAt, &t.VerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
