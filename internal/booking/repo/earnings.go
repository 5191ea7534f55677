package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mechanicBack/internal/booking/earnings"
	"mechanicBack/internal/booking/models"
)

// EarningsRepo keeps mechanic earnings buckets and the per-job credit ledger.
type EarningsRepo struct {
	db *sql.DB
}

// NewEarningsRepo constructs an EarningsRepo.
func NewEarningsRepo(db *sql.DB) *EarningsRepo {
	return &EarningsRepo{db: db}
}

// Get returns the stored buckets. A mechanic without earnings gets zero buckets.
func (r *EarningsRepo) Get(ctx context.Context, mechanicID int64) (models.Earnings, error) {
	e := models.Earnings{MechanicID: mechanicID}
	err := r.db.QueryRowContext(ctx, `SELECT today_cents, week_cents, month_cents, updated_at FROM mechanic_earnings WHERE mechanic_id = ?`, mechanicID).
		Scan(&e.TodayCents, &e.WeekCents, &e.MonthCents, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, nil
	}
	if err != nil {
		return models.Earnings{}, err
	}
	return e, nil
}

// Credit adds amount for jobID once. The second call for the same job returns applied=false
// and leaves the buckets untouched.
func (r *EarningsRepo) Credit(ctx context.Context, mechanicID int64, jobID string, amountCents int64, now time.Time, loc *time.Location) (applied bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT IGNORE INTO job_earnings (job_id, mechanic_id, amount_cents, created_at) VALUES (?,?,?,?)`, jobID, mechanicID, amountCents, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, tx.Commit()
	}

	current, err := lockEarnings(ctx, tx, mechanicID)
	if err != nil {
		return false, err
	}
	next := earnings.Add(current, amountCents, now, loc)
	if err = saveEarnings(ctx, tx, next); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// CashOut resets the week bucket and records the payout. It returns the paid amount.
func (r *EarningsRepo) CashOut(ctx context.Context, mechanicID int64, now time.Time, loc *time.Location) (paid int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := lockEarnings(ctx, tx, mechanicID)
	if err != nil {
		return 0, err
	}
	next, paid := earnings.CashOut(current, now, loc)
	if err = saveEarnings(ctx, tx, next); err != nil {
		return 0, err
	}
	if paid > 0 {
		if _, err = tx.ExecContext(ctx, `INSERT INTO mechanic_cashouts (mechanic_id, amount_cents, created_at) VALUES (?,?,?)`, mechanicID, paid, now); err != nil {
			return 0, err
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return paid, nil
}

func lockEarnings(ctx context.Context, tx *sql.Tx, mechanicID int64) (models.Earnings, error) {
	e := models.Earnings{MechanicID: mechanicID}
	err := tx.QueryRowContext(ctx, `SELECT today_cents, week_cents, month_cents, updated_at FROM mechanic_earnings WHERE mechanic_id = ? FOR UPDATE`, mechanicID).
		Scan(&e.TodayCents, &e.WeekCents, &e.MonthCents, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, nil
	}
	return e, err
}

func saveEarnings(ctx context.Context, tx *sql.Tx, e models.Earnings) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO mechanic_earnings (mechanic_id, today_cents, week_cents, month_cents, updated_at) VALUES (?,?,?,?,?) ON DUPLICATE KEY UPDATE today_cents = VALUES(today_cents), week_cents = VALUES(week_cents), month_cents = VALUES(month_cents), updated_at = VALUES(updated_at)`,
		e.MechanicID, e.TodayCents, e.WeekCents, e.MonthCents, e.UpdatedAt)
	return err
}
