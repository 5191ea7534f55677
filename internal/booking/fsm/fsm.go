package fsm

import (
	"context"
	"database/sql"
	"errors"
)

// Status is a job request lifecycle state.
type Status string

// Job lifecycle statuses.
const (
	StatusNew        Status = "NEW"
	StatusAccepted   Status = "ACCEPTED"
	StatusArrived    Status = "ARRIVED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// ErrInvalidTransition is returned when the target status is not reachable from the current one.
var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[Status]map[Status]struct{}{
	StatusNew:        {StatusAccepted: {}},
	StatusAccepted:   {StatusArrived: {}},
	StatusArrived:    {StatusInProgress: {}},
	StatusInProgress: {StatusCompleted: {}},
	StatusCompleted:  {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Active reports whether a mechanic is bound to the job and working on it.
func (s Status) Active() bool {
	return s == StatusAccepted || s == StatusArrived || s == StatusInProgress
}

// CanTransition returns whether the job can move from the current status to the target status.
// Staying in the same status is not a transition.
func CanTransition(from, to Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Next returns the single forward status for from.
func Next(from Status) (Status, bool) {
	for to := range transitions[from] {
		return to, true
	}
	return "", false
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Apply updates a job status guarded by the expected current status.
// sql.ErrNoRows means the row was not in fromStatus anymore.
func Apply(ctx context.Context, db Execer, jobID string, fromStatus, toStatus Status) error {
	if !CanTransition(fromStatus, toStatus) {
		return ErrInvalidTransition
	}
	res, err := db.ExecContext(ctx, `UPDATE job_requests SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`, string(toStatus), jobID, string(fromStatus))
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
