package postgres

import (
	"context"
	"fmt"

	"school-fee-gateway/internal/core/domain"
)

// ReconciliationLogRepo implements ports.ReconciliationLogRepository.
type ReconciliationLogRepo struct {
	pool Pool
}

// NewReconciliationLogRepo creates a new ReconciliationLogRepo.
func NewReconciliationLogRepo(pool Pool) *ReconciliationLogRepo {
	return &ReconciliationLogRepo{pool: pool}
}

// Record upserts a reconciliation failure keyed by transaction uuid, so
// repeated failed re-runs keep a single open entry with the latest reason.
func (r *ReconciliationLogRepo) Record(ctx context.Context, f *domain.ReconciliationFailure) error {
	query := `INSERT INTO reconciliation_failures (transaction_uuid, student_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_uuid)
		DO UPDATE SET reason = EXCLUDED.reason, created_at = EXCLUDED.created_at, resolved_at = NULL`

	_, err := r.pool.Exec(ctx, query, f.TransactionUUID, f.StudentID, f.Amount, f.Reason, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("record reconciliation failure: %w", err)
	}
	return nil
}

// List returns unresolved failures, oldest first.
func (r *ReconciliationLogRepo) List(ctx context.Context) ([]domain.ReconciliationFailure, error) {
	query := `SELECT transaction_uuid, student_id, amount, reason, created_at
		FROM reconciliation_failures WHERE resolved_at IS NULL ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation failures: %w", err)
	}
	defer rows.Close()

	var failures []domain.ReconciliationFailure
	for rows.Next() {
		var f domain.ReconciliationFailure
		if err := rows.Scan(&f.TransactionUUID, &f.StudentID, &f.Amount, &f.Reason, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation failure: %w", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reconciliation failures: %w", err)
	}
	return failures, nil
}

// Resolve marks the failure entry closed after a successful re-run.
func (r *ReconciliationLogRepo) Resolve(ctx context.Context, transactionUUID string) error {
	query := `UPDATE reconciliation_failures SET resolved_at = NOW() WHERE transaction_uuid = $1`

	_, err := r.pool.Exec(ctx, query, transactionUUID)
	if err != nil {
		return fmt.Errorf("resolve reconciliation failure: %w", err)
	}
	return nil
}
