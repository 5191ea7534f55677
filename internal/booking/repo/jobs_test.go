package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"mechanicBack/internal/booking/fsm"
	"mechanicBack/internal/booking/models"

	"github.com/DATA-DOG/go-sqlmock"
)

var jobColumnNames = []string{"id", "customer_id", "mechanic_id", "requested_mechanic_id", "vehicle", "description", "services_json", "lat", "lng", "address", "mech_lat", "mech_lng", "mech_location_at", "status", "payout_cents", "urgent", "completion_json", "payment_status", "payment_auth_ref", "subtotal_cents", "tax_cents", "total_cents", "platform_fee_cents", "mechanic_payout_cents", "scheduled_at", "created_at", "updated_at"}

func TestJobsAccept(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()
	repo := NewJobsRepo(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE job_requests SET status = \\?, mechanic_id = \\?").
		WithArgs("ACCEPTED", int64(5), "job-1", "NEW").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Accept(ctx, "job-1", 5); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// second mechanic loses the race
	mock.ExpectExec("UPDATE job_requests SET status = \\?, mechanic_id = \\?").
		WithArgs("ACCEPTED", int64(6), "job-1", "NEW").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM job_requests").WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	if err := repo.Accept(ctx, "job-1", 6); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	mock.ExpectExec("UPDATE job_requests SET status = \\?, mechanic_id = \\?").
		WithArgs("ACCEPTED", int64(6), "missing", "NEW").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM job_requests").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	if err := repo.Accept(ctx, "missing", 6); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJobsGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()
	repo := NewJobsRepo(db)

	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	completion := []byte(`{"description":"pads replaced","parts_cost_cents":2500,"settlement":"card","completed_at":"2024-06-01T11:00:00Z"}`)
	mock.ExpectQuery("SELECT (.+) FROM job_requests WHERE id = \\?").WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobColumnNames).AddRow(
			"job-1", int64(10), int64(5), nil, "2015 Civic", "Brake Repair", []byte(`["Brake Repair"]`),
			40.7, -74.0, "1 Main St", 40.71, -74.01, created,
			"COMPLETED", int64(8000), true, completion, "captured", "auth-1",
			int64(10000), int64(800), int64(10800), int64(2000), int64(8000),
			nil, created, created,
		))
	mock.ExpectQuery("SELECT (.+) FROM job_requests WHERE id = \\?").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(jobColumnNames))

	job, err := repo.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != fsm.StatusCompleted || job.PaymentStatus != models.PaymentCaptured {
		t.Fatalf("unexpected status %s/%s", job.Status, job.PaymentStatus)
	}
	if job.MechanicID == nil || *job.MechanicID != 5 || job.RequestedMechanicID != nil {
		t.Fatalf("unexpected mechanic ids %v %v", job.MechanicID, job.RequestedMechanicID)
	}
	if job.Completion == nil || job.Completion.PartsCostCents != 2500 || job.Completion.Settlement != models.SettlementCard {
		t.Fatalf("completion not decoded: %+v", job.Completion)
	}
	if job.MechanicLocation == nil || job.MechanicLocation.Lat != 40.71 {
		t.Fatalf("live location not decoded")
	}
	if len(job.Services) != 1 || job.Services[0] != "Brake Repair" {
		t.Fatalf("services not decoded: %v", job.Services)
	}
	if job.PriceBreakdown.MechanicPayoutCents+job.PriceBreakdown.PlatformFeeCents != job.PriceBreakdown.SubtotalCents {
		t.Fatal("breakdown columns mismatched")
	}

	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJobsDeleteNew(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()
	repo := NewJobsRepo(db)

	mock.ExpectExec("DELETE FROM job_requests").WithArgs("job-1", "NEW").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM job_requests").WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	if err := repo.DeleteNew(context.Background(), "job-1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("accepted job must not be deleted, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJobsUpdatePayment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()
	repo := NewJobsRepo(db)
	ctx := context.Background()

	mock.ExpectExec("SET payment_status = \\?, payment_auth_ref = COALESCE").
		WithArgs("authorized", "auth-9", "job-1", "captured", "COMPLETED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpdatePayment(ctx, "job-1", models.PaymentAuthorized, "auth-9"); err != nil {
		t.Fatalf("UpdatePayment authorized: %v", err)
	}

	mock.ExpectExec("SET payment_status = \\?, payment_auth_ref = NULL").
		WithArgs("failed", "job-1", "captured", "COMPLETED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpdatePayment(ctx, "job-1", models.PaymentFailed, ""); err != nil {
		t.Fatalf("UpdatePayment failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
