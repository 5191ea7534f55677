package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mechanicBack/internal/booking/notify"
)

// ContactsRepo resolves notification addresses of customers and mechanics.
type ContactsRepo struct {
	db *sql.DB
}

// NewContactsRepo constructs a ContactsRepo.
func NewContactsRepo(db *sql.DB) *ContactsRepo {
	return &ContactsRepo{db: db}
}

// Contact implements notify.ContactBook.
func (r *ContactsRepo) Contact(ctx context.Context, role notify.Role, userID int64) (notify.Contact, error) {
	var table string
	switch role {
	case notify.RoleCustomer:
		table = "customers"
	case notify.RoleMechanic:
		table = "mechanics"
	default:
		return notify.Contact{}, fmt.Errorf("unknown role %q", role)
	}
	var token, phone, email sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT fcm_token, phone, email FROM `+table+` WHERE id = ?`, userID).Scan(&token, &phone, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Contact{}, ErrNotFound
	}
	if err != nil {
		return notify.Contact{}, err
	}
	return notify.Contact{FCMToken: token.String, Phone: phone.String, Email: email.String}, nil
}
