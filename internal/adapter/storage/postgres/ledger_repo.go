package postgres

import (
	"context"
	"errors"
	"fmt"

	"school-fee-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository over the fee_ledgers and
// fee_payments tables.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// GetByStudent loads a student's ledger with its payment history. Returns
// nil, nil when the student has no fee structure.
func (r *LedgerRepo) GetByStudent(ctx context.Context, studentID string) (*domain.FeeLedger, error) {
	query := `SELECT student_id, total_fee, paid_amount, pending_amount, payment_status,
		last_payment_at, updated_by, version
		FROM fee_ledgers WHERE student_id = $1`

	var l domain.FeeLedger
	err := r.pool.QueryRow(ctx, query, studentID).Scan(
		&l.StudentID, &l.TotalFee, &l.PaidAmount, &l.PendingAmount, &l.PaymentStatus,
		&l.LastPaymentAt, &l.UpdatedBy, &l.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	history, err := r.loadHistory(ctx, studentID)
	if err != nil {
		return nil, err
	}
	l.History = history
	return &l, nil
}

func (r *LedgerRepo) loadHistory(ctx context.Context, studentID string) ([]domain.PaymentRecord, error) {
	query := `SELECT amount, payment_date, payment_method, receipt_number, description, entered_by, entered_at
		FROM fee_payments WHERE student_id = $1 ORDER BY payment_date ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("load payment history: %w", err)
	}
	defer rows.Close()

	var history []domain.PaymentRecord
	for rows.Next() {
		var rec domain.PaymentRecord
		if err := rows.Scan(
			&rec.Amount, &rec.PaymentDate, &rec.PaymentMethod,
			&rec.ReceiptNumber, &rec.Description, &rec.EnteredBy, &rec.EnteredAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment record: %w", err)
		}
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment history: %w", err)
	}
	return history, nil
}

// Update persists the recomputed ledger and inserts the applied payment
// record in one database transaction. The version predicate rejects writes
// based on a stale read: zero rows affected means another writer got there
// first, and the caller re-reads and retries.
func (r *LedgerRepo) Update(ctx context.Context, tx pgx.Tx, ledger *domain.FeeLedger, record *domain.PaymentRecord) error {
	query := `UPDATE fee_ledgers
		SET paid_amount = $2, pending_amount = $3, payment_status = $4,
		    last_payment_at = $5, updated_by = $6, version = version + 1
		WHERE student_id = $1 AND version = $7`

	tag, err := tx.Exec(ctx, query,
		ledger.StudentID, ledger.PaidAmount, ledger.PendingAmount, ledger.PaymentStatus,
		ledger.LastPaymentAt, ledger.UpdatedBy, ledger.Version,
	)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}

	insert := `INSERT INTO fee_payments (student_id, amount, payment_date, payment_method,
		receipt_number, description, entered_by, entered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, insert,
		ledger.StudentID, record.Amount, record.PaymentDate, record.PaymentMethod,
		record.ReceiptNumber, record.Description, record.EnteredBy, record.EnteredAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}
