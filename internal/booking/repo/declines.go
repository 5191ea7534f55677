package repo

import (
	"context"
	"database/sql"
	"time"
)

// DeclinesRepo keeps an audit row for every declined job.
type DeclinesRepo struct {
	db *sql.DB
}

// NewDeclinesRepo constructs a DeclinesRepo.
func NewDeclinesRepo(db *sql.DB) *DeclinesRepo {
	return &DeclinesRepo{db: db}
}

// Record stores the decline with the archive location of the job snapshot.
func (r *DeclinesRepo) Record(ctx context.Context, jobID string, mechanicID int64, archiveKey string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO job_declines (job_id, mechanic_id, archive_key, declined_at) VALUES (?,?,?,?)`, jobID, mechanicID, nullString(archiveKey), at)
	return err
}
