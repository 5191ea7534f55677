package bookinghttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mechanicBack/internal/booking/auth"
	"mechanicBack/internal/booking/lifecycle"
)

const maxBodyBytes = 1 << 20

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 10*time.Second)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get(":id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func jobID(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get(":id"))
}

func parsePaging(r *http.Request) (int, int, error) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 || l > 200 {
			return 0, 0, fmt.Errorf("invalid limit")
		}
		limit = l
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil || o < 0 {
			return 0, 0, fmt.Errorf("invalid offset")
		}
		offset = o
	}
	return limit, offset, nil
}

// principal returns the caller or writes 401.
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return auth.Principal{}, false
	}
	return p, true
}

// mechanicSelf allows the mechanic named in the path, or an admin.
func mechanicSelf(w http.ResponseWriter, r *http.Request) (int64, bool) {
	p, ok := principal(w, r)
	if !ok {
		return 0, false
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	if p.Role != auth.RoleAdmin && (p.Role != auth.RoleMechanic || p.UserID != id) {
		writeError(w, http.StatusForbidden, "access denied")
		return 0, false
	}
	return id, true
}

func requireRole(w http.ResponseWriter, r *http.Request, role string) (auth.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return auth.Principal{}, false
	}
	if !p.Is(role) {
		writeError(w, http.StatusForbidden, "only "+role+"s allowed")
		return auth.Principal{}, false
	}
	return p, true
}

// requireMechanic admits only mechanics. The caller's id becomes the acting mechanic,
// so admins are rejected here.
func requireMechanic(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return auth.Principal{}, false
	}
	if p.Role != auth.RoleMechanic {
		writeError(w, http.StatusForbidden, "only mechanics allowed")
		return auth.Principal{}, false
	}
	return p, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrJobUnavailable), errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrNotAssigned):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, lifecycle.ErrCaptureFailed), errors.Is(err, lifecycle.ErrDirectoryUnavailable):
		s.logger.Errorf("%s: %v", op, err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Errorf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}
