package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mechanicBack/internal/booking/models"
)

const mechanicColumns = `id, name, rating, review_count, completed_jobs, specialties_json, years_experience, availability, lat, lng, phone, email, fcm_token`

// MechanicsRepo reads and updates mechanic profiles.
type MechanicsRepo struct {
	db *sql.DB
}

// NewMechanicsRepo constructs a MechanicsRepo.
func NewMechanicsRepo(db *sql.DB) *MechanicsRepo {
	return &MechanicsRepo{db: db}
}

// Get returns a mechanic by id.
func (r *MechanicsRepo) Get(ctx context.Context, id int64) (models.Mechanic, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+mechanicColumns+` FROM mechanics WHERE id = ?`, id)
	m, err := scanMechanic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Mechanic{}, ErrNotFound
	}
	return m, err
}

// ListByIDs returns mechanics in the order of ids. Unknown ids are skipped.
func (r *MechanicsRepo) ListByIDs(ctx context.Context, ids []int64) ([]models.Mechanic, error) {
	if len(ids) == 0 {
		return []models.Mechanic{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+mechanicColumns+` FROM mechanics WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]models.Mechanic, len(ids))
	for rows.Next() {
		m, err := scanMechanic(rows)
		if err != nil {
			return nil, err
		}
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Mechanic, 0, len(byID))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// SetAvailability updates the mechanic's online status.
func (r *MechanicsRepo) SetAvailability(ctx context.Context, id int64, availability models.Availability) error {
	res, err := r.db.ExecContext(ctx, `UPDATE mechanics SET availability = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(availability), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePosition stores the last known coordinates.
func (r *MechanicsRepo) UpdatePosition(ctx context.Context, id int64, lat, lng float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE mechanics SET lat = ?, lng = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, lat, lng, id)
	return err
}

// IncrementCompleted bumps the completed job counter.
func (r *MechanicsRepo) IncrementCompleted(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE mechanics SET completed_jobs = completed_jobs + 1 WHERE id = ?`, id)
	return err
}

func scanMechanic(row rowScanner) (models.Mechanic, error) {
	var (
		m            models.Mechanic
		specialties  []byte
		availability string
		lat, lng     sql.NullFloat64
		phone, email sql.NullString
		token        sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Rating, &m.ReviewCount, &m.CompletedJobs, &specialties, &m.YearsExperience, &availability, &lat, &lng, &phone, &email, &token); err != nil {
		return models.Mechanic{}, err
	}
	m.Availability = models.Availability(availability)
	if len(specialties) > 0 {
		if err := json.Unmarshal(specialties, &m.Specialties); err != nil {
			return models.Mechanic{}, fmt.Errorf("decode specialties of mechanic %d: %w", m.ID, err)
		}
	}
	if lat.Valid && lng.Valid {
		la, ln := lat.Float64, lng.Float64
		m.Lat, m.Lng = &la, &ln
	}
	m.Phone = phone.String
	m.Email = email.String
	m.FCMToken = token.String
	return m, nil
}
