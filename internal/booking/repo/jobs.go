package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mechanicBack/internal/booking/fsm"
	"mechanicBack/internal/booking/models"
)

const jobColumns = `id, customer_id, mechanic_id, requested_mechanic_id, vehicle, description, services_json, lat, lng, address, mech_lat, mech_lng, mech_location_at, status, payout_cents, urgent, completion_json, payment_status, payment_auth_ref, subtotal_cents, tax_cents, total_cents, platform_fee_cents, mechanic_payout_cents, scheduled_at, created_at, updated_at`

// JobsRepo provides persistence for job requests.
type JobsRepo struct {
	db *sql.DB
}

// NewJobsRepo constructs a JobsRepo.
func NewJobsRepo(db *sql.DB) *JobsRepo {
	return &JobsRepo{db: db}
}

// Create inserts a new job request in status NEW.
func (r *JobsRepo) Create(ctx context.Context, job models.Job) error {
	services, err := json.Marshal(job.Services)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO job_requests (id, customer_id, requested_mechanic_id, vehicle, description, services_json, lat, lng, address, status, payout_cents, urgent, payment_status, payment_auth_ref, subtotal_cents, tax_cents, total_cents, platform_fee_cents, mechanic_payout_cents, scheduled_at, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		job.ID, job.CustomerID, nullInt64(job.RequestedMechanicID), job.Vehicle, job.Description, services,
		job.Location.Lat, job.Location.Lng, job.Location.Address, string(fsm.StatusNew), job.PayoutCents, job.Urgent,
		string(job.PaymentStatus), nullString(job.PaymentAuthRef),
		job.PriceBreakdown.SubtotalCents, job.PriceBreakdown.TaxCents, job.PriceBreakdown.TotalCents,
		job.PriceBreakdown.PlatformFeeCents, job.PriceBreakdown.MechanicPayoutCents,
		nullTime(job.ScheduledAt), job.CreatedAt, job.CreatedAt)
	return err
}

// Get fetches a job by id.
func (r *JobsRepo) Get(ctx context.Context, id string) (models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM job_requests WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, ErrNotFound
	}
	return job, err
}

// Accept binds the mechanic to a NEW job. ErrConflict means another mechanic was faster
// or the job was taken off the market.
func (r *JobsRepo) Accept(ctx context.Context, id string, mechanicID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE job_requests SET status = ?, mechanic_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ? AND mechanic_id IS NULL`,
		string(fsm.StatusAccepted), mechanicID, id, string(fsm.StatusNew))
	if err != nil {
		return err
	}
	return r.expectOne(ctx, res, id)
}

// Transition moves a job one step forward guarded by its current status.
func (r *JobsRepo) Transition(ctx context.Context, id string, from, to fsm.Status) error {
	err := fsm.Apply(ctx, r.db, id, from, to)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}
	return err
}

// Update writes the mutable fields of job when its stored status still equals expected.
func (r *JobsRepo) Update(ctx context.Context, job models.Job, expected fsm.Status) (models.Job, error) {
	if job.Status != expected && !fsm.CanTransition(expected, job.Status) {
		return models.Job{}, fmt.Errorf("update job %s: %w", job.ID, fsm.ErrInvalidTransition)
	}
	var completion []byte
	if job.Completion != nil {
		var err error
		if completion, err = json.Marshal(job.Completion); err != nil {
			return models.Job{}, err
		}
	}
	var mechLat, mechLng sql.NullFloat64
	var mechAt sql.NullTime
	if job.MechanicLocation != nil {
		mechLat = sql.NullFloat64{Float64: job.MechanicLocation.Lat, Valid: true}
		mechLng = sql.NullFloat64{Float64: job.MechanicLocation.Lng, Valid: true}
		mechAt = sql.NullTime{Time: job.MechanicLocation.UpdatedAt, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `UPDATE job_requests SET status = ?, mechanic_id = ?, mech_lat = ?, mech_lng = ?, mech_location_at = ?, completion_json = ?, payment_status = ?, payment_auth_ref = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		string(job.Status), nullInt64(job.MechanicID), mechLat, mechLng, mechAt, completion,
		string(job.PaymentStatus), nullString(job.PaymentAuthRef), job.ID, string(expected))
	if err != nil {
		return models.Job{}, err
	}
	if err := r.expectOne(ctx, res, job.ID); err != nil {
		return models.Job{}, err
	}
	return r.Get(ctx, job.ID)
}

// DeleteNew removes a job that is still NEW.
func (r *JobsRepo) DeleteNew(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM job_requests WHERE id = ? AND status = ?`, id, string(fsm.StatusNew))
	if err != nil {
		return err
	}
	return r.expectOne(ctx, res, id)
}

// UpdateMechanicLocation stores the live position of the assigned mechanic.
func (r *JobsRepo) UpdateMechanicLocation(ctx context.Context, id string, mechanicID int64, loc models.LiveLocation) error {
	res, err := r.db.ExecContext(ctx, `UPDATE job_requests SET mech_lat = ?, mech_lng = ?, mech_location_at = ? WHERE id = ? AND mechanic_id = ? AND status IN (?,?,?)`,
		loc.Lat, loc.Lng, loc.UpdatedAt, id, mechanicID,
		string(fsm.StatusAccepted), string(fsm.StatusArrived), string(fsm.StatusInProgress))
	if err != nil {
		return err
	}
	return r.expectOne(ctx, res, id)
}

// UpdatePayment sets the payment status of a job that has not been captured yet.
// A failed payment drops the authorization reference so it is never captured.
func (r *JobsRepo) UpdatePayment(ctx context.Context, id string, status models.PaymentStatus, authRef string) error {
	var (
		res sql.Result
		err error
	)
	if status == models.PaymentFailed {
		res, err = r.db.ExecContext(ctx, `UPDATE job_requests SET payment_status = ?, payment_auth_ref = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND payment_status <> ? AND status <> ?`,
			string(status), id, string(models.PaymentCaptured), string(fsm.StatusCompleted))
	} else {
		res, err = r.db.ExecContext(ctx, `UPDATE job_requests SET payment_status = ?, payment_auth_ref = COALESCE(?, payment_auth_ref), updated_at = CURRENT_TIMESTAMP WHERE id = ? AND payment_status <> ? AND status <> ?`,
			string(status), nullString(authRef), id, string(models.PaymentCaptured), string(fsm.StatusCompleted))
	}
	if err != nil {
		return err
	}
	return r.expectOne(ctx, res, id)
}

// ListOpen returns NEW jobs offered to the mechanic or to anyone.
func (r *JobsRepo) ListOpen(ctx context.Context, mechanicID int64, limit int) ([]models.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM job_requests WHERE status = ? AND (requested_mechanic_id = ? OR requested_mechanic_id IS NULL) ORDER BY urgent DESC, created_at ASC LIMIT ?`,
		string(fsm.StatusNew), mechanicID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListByMechanic returns jobs assigned to the mechanic, newest first.
func (r *JobsRepo) ListByMechanic(ctx context.Context, mechanicID int64, limit, offset int) ([]models.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM job_requests WHERE mechanic_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, mechanicID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListByCustomer returns the customer's jobs, newest first.
func (r *JobsRepo) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]models.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM job_requests WHERE customer_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListUncredited returns completed jobs that have no earnings ledger row yet.
func (r *JobsRepo) ListUncredited(ctx context.Context, limit int) ([]models.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+prefixed("j.", jobColumns)+` FROM job_requests j LEFT JOIN job_earnings e ON e.job_id = j.id WHERE j.status = ? AND j.mechanic_id IS NOT NULL AND e.job_id IS NULL ORDER BY j.updated_at ASC LIMIT ?`,
		string(fsm.StatusCompleted), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// expectOne maps a zero-row conditional write to ErrNotFound or ErrConflict.
func (r *JobsRepo) expectOne(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM job_requests WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (models.Job, error) {
	var (
		j                       models.Job
		mechanicID, requestedID sql.NullInt64
		services, completion    []byte
		mechLat, mechLng        sql.NullFloat64
		mechAt, scheduledAt     sql.NullTime
		status, paymentStatus   string
		authRef                 sql.NullString
	)
	err := row.Scan(&j.ID, &j.CustomerID, &mechanicID, &requestedID, &j.Vehicle, &j.Description, &services,
		&j.Location.Lat, &j.Location.Lng, &j.Location.Address, &mechLat, &mechLng, &mechAt,
		&status, &j.PayoutCents, &j.Urgent, &completion, &paymentStatus, &authRef,
		&j.PriceBreakdown.SubtotalCents, &j.PriceBreakdown.TaxCents, &j.PriceBreakdown.TotalCents,
		&j.PriceBreakdown.PlatformFeeCents, &j.PriceBreakdown.MechanicPayoutCents,
		&scheduledAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return models.Job{}, err
	}
	j.Status = fsm.Status(status)
	j.PaymentStatus = models.PaymentStatus(paymentStatus)
	j.MechanicID = int64Ptr(mechanicID)
	j.RequestedMechanicID = int64Ptr(requestedID)
	if authRef.Valid {
		j.PaymentAuthRef = authRef.String
	}
	if len(services) > 0 {
		if err := json.Unmarshal(services, &j.Services); err != nil {
			return models.Job{}, fmt.Errorf("decode services of job %s: %w", j.ID, err)
		}
	}
	if len(completion) > 0 {
		var c models.Completion
		if err := json.Unmarshal(completion, &c); err != nil {
			return models.Job{}, fmt.Errorf("decode completion of job %s: %w", j.ID, err)
		}
		j.Completion = &c
	}
	if mechLat.Valid && mechLng.Valid {
		j.MechanicLocation = &models.LiveLocation{Lat: mechLat.Float64, Lng: mechLng.Float64, UpdatedAt: mechAt.Time}
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		j.ScheduledAt = &t
	}
	return j, nil
}

func scanJobs(rows *sql.Rows) ([]models.Job, error) {
	jobs := make([]models.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	val := v.Int64
	return &val
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}
