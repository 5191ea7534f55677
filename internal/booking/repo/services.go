package repo

import (
	"context"
	"database/sql"
	"strings"

	"mechanicBack/internal/booking/models"
)

// ServicesRepo reads the service catalog.
type ServicesRepo struct {
	db *sql.DB
}

// NewServicesRepo constructs a ServicesRepo.
func NewServicesRepo(db *sql.DB) *ServicesRepo {
	return &ServicesRepo{db: db}
}

// List returns the whole catalog ordered by category and name.
func (r *ServicesRepo) List(ctx context.Context) ([]models.ServiceItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, price_cents, duration_minutes, category, description FROM services ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanServices(rows)
}

// GetByIDs returns the catalog entries for ids. Missing ids are skipped.
func (r *ServicesRepo) GetByIDs(ctx context.Context, ids []int64) ([]models.ServiceItem, error) {
	if len(ids) == 0 {
		return []models.ServiceItem{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, price_cents, duration_minutes, category, description FROM services WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanServices(rows)
}

func scanServices(rows *sql.Rows) ([]models.ServiceItem, error) {
	items := make([]models.ServiceItem, 0)
	for rows.Next() {
		var (
			it       models.ServiceItem
			category string
			desc     sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.PriceCents, &it.DurationMinutes, &category, &desc); err != nil {
			return nil, err
		}
		it.Category = models.ServiceCategory(category)
		it.Description = desc.String
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
