package repo

import (
	"context"
	"database/sql"
)

// Payment states stored in the payments table.
const (
	PaymentStateCaptured = "captured"
	PaymentStateFailed   = "failed"
)

// PaymentsRepo records capture attempts and provider webhooks.
type PaymentsRepo struct {
	db *sql.DB
}

// NewPaymentsRepo creates repo.
func NewPaymentsRepo(db *sql.DB) *PaymentsRepo { return &PaymentsRepo{db: db} }

// RecordCapture inserts a capture attempt.
func (r *PaymentsRepo) RecordCapture(ctx context.Context, jobID string, amountCents int64, state, providerTxn, failure string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO payments (job_id, amount_cents, provider, state, provider_txn_id, failure_reason) VALUES (?,?,?,?,?,?)`,
		jobID, amountCents, "gateway", state, nullString(providerTxn), nullString(failure))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SaveWebhook stores webhook payload.
func (r *PaymentsRepo) SaveWebhook(ctx context.Context, signature string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO payment_webhooks (provider, signature, body_json) VALUES (?,?,?)`, "gateway", signature, payload)
	return err
}
