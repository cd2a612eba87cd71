package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/randgate/backend/internal/domain"
)

// EntitlementRepository persists entitlements and the payment event ledger.
type EntitlementRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewEntitlementRepository creates a new EntitlementRepository.
func NewEntitlementRepository(db *sql.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db, now: time.Now}
}

// IsPaid reports whether the user holds a paid entitlement.
func (r *EntitlementRepository) IsPaid(ctx context.Context, userID int64) (bool, error) {
	var paid bool
	err := r.db.QueryRowContext(ctx, `SELECT paid FROM entitlements WHERE user_id = $1`, userID).Scan(&paid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to read entitlement: %v", domain.ErrStore, err)
	}
	return paid, nil
}

// Find returns the entitlement record for a user. A user without a record
// is returned as unpaid.
func (r *EntitlementRepository) Find(ctx context.Context, userID int64) (*domain.Entitlement, error) {
	ent := domain.Entitlement{UserID: userID}
	var paidAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT paid, paid_at FROM entitlements WHERE user_id = $1`, userID,
	).Scan(&ent.Paid, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &ent, nil
		}
		return nil, fmt.Errorf("%w: failed to find entitlement: %v", domain.ErrStore, err)
	}
	if paidAt.Valid {
		t := paidAt.Time
		ent.PaidAt = &t
	}
	return &ent, nil
}

// MarkPaid grants the entitlement and records the payment event in one
// transaction. The first grant wins: paid_at is never rewritten. It reports
// whether this call performed the unpaid to paid transition.
func (r *EntitlementRepository) MarkPaid(ctx context.Context, userID int64, evt *domain.PaymentEvent) (bool, error) {
	now := r.now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrStore, err)
	}
	defer tx.Rollback()

	if evt != nil && evt.TransactionID != "" {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payment_events (transaction_id, user_id, amount, currency, status, received_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (transaction_id) DO NOTHING
		`, evt.TransactionID, userID, evt.Amount, evt.Currency, evt.Status, now)
		if err != nil {
			return false, fmt.Errorf("%w: failed to record payment event: %v", domain.ErrStore, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO entitlements (user_id, paid, paid_at)
		VALUES ($1, TRUE, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, now)
	if err != nil {
		return false, fmt.Errorf("%w: failed to mark paid: %v", domain.ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to read affected rows: %v", domain.ErrStore, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: failed to commit: %v", domain.ErrStore, err)
	}
	return n == 1, nil
}

// Events lists the recorded payment events of a user, newest first.
func (r *EntitlementRepository) Events(ctx context.Context, userID int64) ([]*domain.PaymentEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, user_id, amount, currency, status, received_at
		FROM payment_events WHERE user_id = $1 ORDER BY received_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list payment events: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var events []*domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		if err := rows.Scan(&e.TransactionID, &e.UserID, &e.Amount, &e.Currency, &e.Status, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan payment event: %v", domain.ErrStore, err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate payment events: %v", domain.ErrStore, err)
	}
	return events, nil
}

// Stats counts paid users and recorded events.
func (r *EntitlementRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	var s domain.Stats
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entitlements WHERE paid`).Scan(&s.PaidUsers); err != nil {
		return nil, fmt.Errorf("%w: failed to count entitlements: %v", domain.ErrStore, err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_events`).Scan(&s.RecordedEvents); err != nil {
		return nil, fmt.Errorf("%w: failed to count payment events: %v", domain.ErrStore, err)
	}
	return &s, nil
}

// Ping checks the database connection.
func (r *EntitlementRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
