package bookinghttp

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/pay"
)

type webhookPayload struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	AuthRef string `json:"auth_ref"`
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("X-Signature")
	if signature == "" {
		writeError(w, http.StatusBadRequest, "missing signature")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !pay.VerifyHMAC(body, signature, s.webhookSecret) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	payload.JobID = strings.TrimSpace(payload.JobID)
	if payload.JobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	if err := s.webhooks.SaveWebhook(ctx, signature, body); err != nil {
		s.logger.Errorf("save payment webhook failed: %v", err)
	}

	switch status := models.PaymentStatus(strings.ToLower(payload.Status)); status {
	case models.PaymentAuthorized, models.PaymentFailed:
		if err := s.svc.ApplyPaymentEvent(ctx, payload.JobID, status, payload.AuthRef); err != nil {
			s.writeServiceError(w, "payment webhook", err)
			return
		}
	default:
		s.logger.Infof("payment webhook: ignore status %q for job %s", payload.Status, payload.JobID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
