package bookinghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"mechanicBack/internal/booking/auth"
	"mechanicBack/internal/booking/fsm"
	"mechanicBack/internal/booking/lifecycle"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/pay"
	"mechanicBack/internal/booking/ranking"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

type stubLifecycle struct {
	job        models.Job
	err        error
	created    lifecycle.CreateRequest
	completed  lifecycle.CompletionInput
	mechanicID int64
	payment    models.PaymentStatus
	authRef    string
}

func (s *stubLifecycle) Create(_ context.Context, req lifecycle.CreateRequest) (models.Job, error) {
	s.created = req
	return s.job, s.err
}
func (s *stubLifecycle) Get(context.Context, string) (models.Job, error) { return s.job, s.err }
func (s *stubLifecycle) Accept(_ context.Context, _ string, mechanicID int64) (models.Job, error) {
	s.mechanicID = mechanicID
	return s.job, s.err
}
func (s *stubLifecycle) Arrive(context.Context, string, int64) (models.Job, error) { return s.job, s.err }
func (s *stubLifecycle) Start(context.Context, string, int64) (models.Job, error)  { return s.job, s.err }
func (s *stubLifecycle) Complete(_ context.Context, _ string, _ int64, in lifecycle.CompletionInput) (lifecycle.CompletionSummary, error) {
	s.completed = in
	return lifecycle.CompletionSummary{Job: s.job, CapturedCents: 12500}, s.err
}
func (s *stubLifecycle) Decline(context.Context, string, int64) error { return s.err }
func (s *stubLifecycle) UpdateLocation(_ context.Context, _ string, _ int64, lat, lng float64) (models.LiveLocation, error) {
	return models.LiveLocation{Lat: lat, Lng: lng}, s.err
}
func (s *stubLifecycle) ApplyPaymentEvent(_ context.Context, _ string, status models.PaymentStatus, authRef string) error {
	s.payment, s.authRef = status, authRef
	return s.err
}
func (s *stubLifecycle) Match(context.Context, float64, float64, []string) ([]ranking.Ranked, error) {
	return []ranking.Ranked{{Mechanic: models.Mechanic{ID: 3}, Score: 1}}, s.err
}
func (s *stubLifecycle) SetAvailability(context.Context, int64, models.Availability) error { return s.err }
func (s *stubLifecycle) CashOut(context.Context, int64) (int64, error)                    { return 4200, s.err }
func (s *stubLifecycle) Earnings(_ context.Context, id int64) (models.Earnings, error) {
	return models.Earnings{MechanicID: id, WeekCents: 4200}, s.err
}

type stubStore struct {
	webhooks int
	open     []models.Job
}

func (s *stubStore) List(context.Context) ([]models.ServiceItem, error) {
	return []models.ServiceItem{{ID: 1, Name: "Oil Change", PriceCents: 4999}}, nil
}
func (s *stubStore) ListOpen(context.Context, int64, int) ([]models.Job, error) { return s.open, nil }
func (s *stubStore) ListByMechanic(context.Context, int64, int, int) ([]models.Job, error) {
	return nil, nil
}
func (s *stubStore) ListByCustomer(context.Context, int64, int, int) ([]models.Job, error) {
	return nil, nil
}
func (s *stubStore) SaveWebhook(context.Context, string, []byte) error {
	s.webhooks++
	return nil
}

func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := auth.HeaderAuthenticator{}.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func newTestServer(svc *stubLifecycle, store *stubStore) http.Handler {
	srv := NewServer(testLogger{}, svc, store, store, store, "secret", nil)
	mux := pat.New()
	srv.RegisterRoutes(mux, alice.New(), alice.New(headerAuth))
	return mux
}

func do(h http.Handler, method, path string, userID int64, role string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID > 0 {
		req.Header.Set("X-User-ID", fmt.Sprint(userID))
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", lifecycle.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", lifecycle.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", lifecycle.ErrJobUnavailable), http.StatusConflict},
		{fmt.Errorf("x: %w", lifecycle.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("x: %w", lifecycle.ErrNotAssigned), http.StatusForbidden},
		{fmt.Errorf("x: %w", lifecycle.ErrCaptureFailed), http.StatusBadGateway},
		{fmt.Errorf("x: %w", lifecycle.ErrDirectoryUnavailable), http.StatusBadGateway},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newTestServer(&stubLifecycle{err: tc.err}, &stubStore{})
		rec := do(h, http.MethodPost, "/api/v1/jobs/j-1/accept", 7, auth.RoleMechanic, nil)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestAcceptUsesCaller(t *testing.T) {
	mech := int64(7)
	svc := &stubLifecycle{job: models.Job{ID: "j-1", Status: fsm.StatusAccepted, MechanicID: &mech}}
	h := newTestServer(svc, &stubStore{})

	if rec := do(h, http.MethodPost, "/api/v1/jobs/j-1/accept", 0, "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/v1/jobs/j-1/accept", 100, auth.RoleCustomer, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("customer must not accept, got %d", rec.Code)
	}
	rec := do(h, http.MethodPost, "/api/v1/jobs/j-1/accept", 7, auth.RoleMechanic, nil)
	if rec.Code != http.StatusOK || svc.mechanicID != 7 {
		t.Fatalf("expected 200 for mechanic 7, got %d (%d)", rec.Code, svc.mechanicID)
	}
	var job models.Job
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil || job.Status != fsm.StatusAccepted {
		t.Fatalf("unexpected body %v %+v", err, job)
	}
}

func TestJobTransitionsRejectAdmin(t *testing.T) {
	svc := &stubLifecycle{job: models.Job{ID: "j-1", Status: fsm.StatusNew}}
	h := newTestServer(svc, &stubStore{})
	cases := []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodPost, "/api/v1/jobs/j-1/accept", nil},
		{http.MethodPost, "/api/v1/jobs/j-1/arrive", nil},
		{http.MethodPost, "/api/v1/jobs/j-1/start", nil},
		{http.MethodPost, "/api/v1/jobs/j-1/complete", map[string]string{"description": "done", "settlement": "cash"}},
		{http.MethodPost, "/api/v1/jobs/j-1/decline", nil},
		{http.MethodPost, "/api/v1/jobs/j-1/location", map[string]float64{"lat": 1, "lng": 1}},
		{http.MethodGet, "/api/v1/jobs/open", nil},
	}
	for _, tc := range cases {
		if rec := do(h, tc.method, tc.path, 999, auth.RoleAdmin, tc.body); rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s as admin: expected 403, got %d", tc.method, tc.path, rec.Code)
		}
	}
	if svc.mechanicID != 0 || svc.completed.Description != "" {
		t.Fatalf("admin reached the lifecycle: mechanic %d, completion %+v", svc.mechanicID, svc.completed)
	}
}

func TestCreateJobBindsCustomer(t *testing.T) {
	svc := &stubLifecycle{job: models.Job{ID: "j-1", Status: fsm.StatusNew}}
	h := newTestServer(svc, &stubStore{})
	body := map[string]interface{}{
		"customer_id": 999,
		"vehicle":     "2015 Honda Civic",
		"service_ids": []int64{1},
		"location":    map[string]float64{"lat": 40.7, "lng": -74},
	}
	rec := do(h, http.MethodPost, "/api/v1/jobs", 100, auth.RoleCustomer, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.created.CustomerID != 100 || svc.created.Vehicle != "2015 Honda Civic" {
		t.Fatalf("unexpected request %+v", svc.created)
	}
}

func TestGetJobVisibility(t *testing.T) {
	mech := int64(7)
	svc := &stubLifecycle{job: models.Job{ID: "j-1", CustomerID: 100, MechanicID: &mech, Status: fsm.StatusArrived}}
	h := newTestServer(svc, &stubStore{})
	if rec := do(h, http.MethodGet, "/api/v1/jobs/j-1", 100, auth.RoleCustomer, nil); rec.Code != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/v1/jobs/j-1", 101, auth.RoleCustomer, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger: expected 403, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/v1/jobs/j-1", 8, auth.RoleMechanic, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("other mechanic: expected 403, got %d", rec.Code)
	}
}

func TestOpenRouteIsNotAJobID(t *testing.T) {
	store := &stubStore{open: []models.Job{{ID: "j-9"}}}
	h := newTestServer(&stubLifecycle{err: errors.New("must not be called")}, store)
	rec := do(h, http.MethodGet, "/api/v1/jobs/open", 7, auth.RoleMechanic, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Jobs []models.Job `json:"jobs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil || len(out.Jobs) != 1 {
		t.Fatalf("unexpected body %v %+v", err, out)
	}
}

func TestCompleteDecodesInput(t *testing.T) {
	svc := &stubLifecycle{job: models.Job{ID: "j-1", Status: fsm.StatusCompleted}}
	h := newTestServer(svc, &stubStore{})
	rec := do(h, http.MethodPost, "/api/v1/jobs/j-1/complete", 7, auth.RoleMechanic, map[string]interface{}{
		"description": "replaced pads", "parts_cost_cents": 2000, "settlement": "card",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.completed.PartsCostCents != 2000 || svc.completed.Settlement != models.SettlementCard {
		t.Fatalf("unexpected input %+v", svc.completed)
	}
	if rec := do(h, http.MethodPost, "/api/v1/jobs/j-1/complete", 7, auth.RoleMechanic, "nope"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestMechanicRoutesAreSelfOnly(t *testing.T) {
	h := newTestServer(&stubLifecycle{}, &stubStore{})
	if rec := do(h, http.MethodGet, "/api/v1/mechanics/7/earnings", 8, auth.RoleMechanic, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/v1/mechanics/7/earnings", 7, auth.RoleMechanic, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/v1/mechanics/7/cashout", 1, auth.RoleAdmin, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin cash out: expected 200, got %d", rec.Code)
	}
	rec := do(h, http.MethodPut, "/api/v1/mechanics/7/availability", 7, auth.RoleMechanic, map[string]string{"availability": "offline"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListServicesIsPublic(t *testing.T) {
	h := newTestServer(&stubLifecycle{}, &stubStore{})
	if rec := do(h, http.MethodGet, "/api/v1/services", 0, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPaymentWebhook(t *testing.T) {
	svc := &stubLifecycle{}
	store := &stubStore{}
	h := newTestServer(svc, store)

	send := func(body []byte, sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
		if sig != "" {
			req.Header.Set("X-Signature", sig)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	body := []byte(`{"job_id":"j-1","status":"authorized","auth_ref":"auth-1"}`)
	if code := send(body, ""); code != http.StatusBadRequest {
		t.Fatalf("missing signature: expected 400, got %d", code)
	}
	if code := send(body, pay.Sign(body, "wrong")); code != http.StatusUnauthorized {
		t.Fatalf("bad signature: expected 401, got %d", code)
	}
	if code := send(body, pay.Sign(body, "secret")); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if svc.payment != models.PaymentAuthorized || svc.authRef != "auth-1" || store.webhooks != 1 {
		t.Fatalf("event not applied: %s %s %d", svc.payment, svc.authRef, store.webhooks)
	}

	other := []byte(`{"job_id":"j-1","status":"refunded"}`)
	if code := send(other, pay.Sign(other, "secret")); code != http.StatusOK {
		t.Fatalf("unknown status must be acknowledged, got %d", code)
	}
	if store.webhooks != 2 || svc.payment != models.PaymentAuthorized {
		t.Fatal("unknown status must be stored but not applied")
	}
}
