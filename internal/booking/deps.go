package booking

import (
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"

	"mechanicBack/internal/booking/archive"
	"mechanicBack/internal/booking/backend"
	"mechanicBack/internal/booking/lifecycle"
)

// Logger provides minimal logging required by the booking module.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// BookingDeps groups external dependencies needed by the booking module.
type BookingDeps struct {
	DB      *sql.DB
	RDB     *redis.Client
	Logger  Logger
	Config  BookingConfig
	Backend backend.Backend
	// S3 stores declined job snapshots. Nil keeps them in memory.
	S3 archive.Putter
	// Events forwards job events to the broker. Nil drops them.
	Events lifecycle.EventPublisher
	module *moduleState
}

// Validate ensures required dependencies are provided.
func (d *BookingDeps) Validate() error {
	if d.DB == nil {
		return errors.New("booking deps: DB is required")
	}
	if d.Logger == nil {
		return errors.New("booking deps: Logger is required")
	}
	if d.RDB == nil && d.Config.BackendMode == backend.ModeReal {
		return errors.New("booking deps: RDB is required in real mode")
	}
	return d.Backend.Validate()
}
