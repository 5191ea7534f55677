package bookinghttp

import (
	"context"
	"net/http"

	"mechanicBack/internal/booking/auth"
	"mechanicBack/internal/booking/lifecycle"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/ws"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleCustomer)
	if !ok {
		return
	}
	var req lifecycle.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if p.Role != auth.RoleAdmin || req.CustomerID == 0 {
		req.CustomerID = p.UserID
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	job, err := s.svc.Create(ctx, req)
	if err != nil {
		s.writeServiceError(w, "create job", err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	job, err := s.svc.Get(ctx, jobID(r))
	if err != nil {
		s.writeServiceError(w, "get job", err)
		return
	}
	if !ws.CanView(p, job) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListOpen(w http.ResponseWriter, r *http.Request) {
	p, ok := requireMechanic(w, r)
	if !ok {
		return
	}
	limit, _, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	jobs, err := s.jobs.ListOpen(ctx, p.UserID, limit)
	if err != nil {
		s.writeServiceError(w, "list open jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

func (s *Server) handleListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	var jobs []models.Job
	switch p.Role {
	case auth.RoleMechanic:
		jobs, err = s.jobs.ListByMechanic(ctx, p.UserID, limit, offset)
	case auth.RoleCustomer:
		jobs, err = s.jobs.ListByCustomer(ctx, p.UserID, limit, offset)
	default:
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	if err != nil {
		s.writeServiceError(w, "list jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "limit": limit, "offset": offset})
}

type stepFunc func(ctx context.Context, jobID string, mechanicID int64) (models.Job, error)

// mechanicStep runs one of the mechanic driven transitions.
func (s *Server) mechanicStep(w http.ResponseWriter, r *http.Request, op string, step stepFunc) {
	p, ok := requireMechanic(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	job, err := step(ctx, jobID(r), p.UserID)
	if err != nil {
		s.writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	s.mechanicStep(w, r, "accept job", s.svc.Accept)
}

func (s *Server) handleArrive(w http.ResponseWriter, r *http.Request) {
	s.mechanicStep(w, r, "arrive", s.svc.Arrive)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.mechanicStep(w, r, "start job", s.svc.Start)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	p, ok := requireMechanic(w, r)
	if !ok {
		return
	}
	var in lifecycle.CompletionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	summary, err := s.svc.Complete(ctx, jobID(r), p.UserID, in)
	if err != nil {
		s.writeServiceError(w, "complete job", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	p, ok := requireMechanic(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	id := jobID(r)
	if err := s.svc.Decline(ctx, id, p.UserID); err != nil {
		s.writeServiceError(w, "decline job", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": id, "status": "declined"})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	p, ok := requireMechanic(w, r)
	if !ok {
		return
	}
	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	loc, err := s.svc.UpdateLocation(ctx, jobID(r), p.UserID, req.Lat, req.Lng)
	if err != nil {
		s.writeServiceError(w, "update location", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
