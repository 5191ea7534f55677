package bookinghttp

import (
	"net/http"

	"mechanicBack/internal/booking/models"
)

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	items, err := s.catalog.List(ctx)
	if err != nil {
		s.writeServiceError(w, "list services", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"services": items})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if _, ok := principal(w, r); !ok {
		return
	}
	var req struct {
		Lat      float64  `json:"lat"`
		Lng      float64  `json:"lng"`
		Services []string `json:"services"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	ranked, err := s.svc.Match(ctx, req.Lat, req.Lng, req.Services)
	if err != nil {
		s.writeServiceError(w, "match mechanics", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"mechanics": ranked})
}

func (s *Server) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := mechanicSelf(w, r)
	if !ok {
		return
	}
	var req struct {
		Availability models.Availability `json:"availability"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	if err := s.svc.SetAvailability(ctx, id, req.Availability); err != nil {
		s.writeServiceError(w, "set availability", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"mechanic_id": id, "availability": req.Availability})
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	id, ok := mechanicSelf(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	e, err := s.svc.Earnings(ctx, id)
	if err != nil {
		s.writeServiceError(w, "earnings", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCashOut(w http.ResponseWriter, r *http.Request) {
	id, ok := mechanicSelf(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	paid, err := s.svc.CashOut(ctx, id)
	if err != nil {
		s.writeServiceError(w, "cash out", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"mechanic_id": id, "paid_cents": paid})
}
