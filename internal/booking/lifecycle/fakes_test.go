package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mechanicBack/internal/booking/earnings"
	"mechanicBack/internal/booking/fsm"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/notify"
	"mechanicBack/internal/booking/pay"
	"mechanicBack/internal/booking/repo"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]models.Job
	// beforeAccept runs inside Accept before the conditional check, to simulate a racing writer.
	beforeAccept func()
}

func newMemJobs() *memJobs { return &memJobs{jobs: make(map[string]models.Job)} }

func (m *memJobs) put(j models.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
}

func (m *memJobs) Create(_ context.Context, j models.Job) error {
	m.put(j)
	return nil
}

func (m *memJobs) Get(_ context.Context, id string) (models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return models.Job{}, repo.ErrNotFound
	}
	return j, nil
}

func (m *memJobs) Accept(_ context.Context, id string, mechanicID int64) error {
	if m.beforeAccept != nil {
		m.beforeAccept()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if j.Status != fsm.StatusNew || j.MechanicID != nil {
		return repo.ErrConflict
	}
	j.Status = fsm.StatusAccepted
	j.MechanicID = &mechanicID
	m.jobs[id] = j
	return nil
}

func (m *memJobs) Transition(_ context.Context, id string, from, to fsm.Status) error {
	if !fsm.CanTransition(from, to) {
		return fsm.ErrInvalidTransition
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if j.Status != from {
		return repo.ErrConflict
	}
	j.Status = to
	m.jobs[id] = j
	return nil
}

func (m *memJobs) Update(_ context.Context, j models.Job, expected fsm.Status) (models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.jobs[j.ID]
	if !ok {
		return models.Job{}, repo.ErrNotFound
	}
	if cur.Status != expected {
		return models.Job{}, repo.ErrConflict
	}
	m.jobs[j.ID] = j
	return j, nil
}

func (m *memJobs) DeleteNew(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if j.Status != fsm.StatusNew {
		return repo.ErrConflict
	}
	delete(m.jobs, id)
	return nil
}

func (m *memJobs) UpdateMechanicLocation(_ context.Context, id string, mechanicID int64, loc models.LiveLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if !j.AssignedTo(mechanicID) || !j.Status.Active() {
		return repo.ErrConflict
	}
	j.MechanicLocation = &loc
	m.jobs[id] = j
	return nil
}

func (m *memJobs) UpdatePayment(_ context.Context, id string, status models.PaymentStatus, authRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if j.PaymentStatus == models.PaymentCaptured || j.Status == fsm.StatusCompleted {
		return repo.ErrConflict
	}
	j.PaymentStatus = status
	switch {
	case status == models.PaymentFailed:
		j.PaymentAuthRef = ""
	case authRef != "":
		j.PaymentAuthRef = authRef
	}
	m.jobs[id] = j
	return nil
}

func (m *memJobs) ListUncredited(context.Context, int) ([]models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Job
	for _, j := range m.jobs {
		if j.Status == fsm.StatusCompleted {
			out = append(out, j)
		}
	}
	return out, nil
}

type memCatalog map[int64]models.ServiceItem

func (c memCatalog) GetByIDs(_ context.Context, ids []int64) ([]models.ServiceItem, error) {
	out := make([]models.ServiceItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := c[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type memMechanics struct {
	mu           sync.Mutex
	mechanics    map[int64]models.Mechanic
	completed    map[int64]int
	availability map[int64]models.Availability
}

func newMemMechanics(ms ...models.Mechanic) *memMechanics {
	m := &memMechanics{mechanics: map[int64]models.Mechanic{}, completed: map[int64]int{}, availability: map[int64]models.Availability{}}
	for _, mech := range ms {
		m.mechanics[mech.ID] = mech
	}
	return m
}

func (m *memMechanics) Get(_ context.Context, id int64) (models.Mechanic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mech, ok := m.mechanics[id]
	if !ok {
		return models.Mechanic{}, repo.ErrNotFound
	}
	return mech, nil
}

func (m *memMechanics) SetAvailability(_ context.Context, id int64, a models.Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mechanics[id]; !ok {
		return repo.ErrNotFound
	}
	m.availability[id] = a
	return nil
}

func (m *memMechanics) UpdatePosition(_ context.Context, id int64, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mech := m.mechanics[id]
	mech.Lat, mech.Lng = &lat, &lng
	m.mechanics[id] = mech
	return nil
}

func (m *memMechanics) IncrementCompleted(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[id]++
	return nil
}

type memLedger struct {
	mu       sync.Mutex
	credited map[string]bool
	buckets  map[int64]models.Earnings
	failJob  string
}

func newMemLedger() *memLedger {
	return &memLedger{credited: map[string]bool{}, buckets: map[int64]models.Earnings{}}
}

func (l *memLedger) Get(_ context.Context, mechanicID int64) (models.Earnings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.buckets[mechanicID]
	e.MechanicID = mechanicID
	return e, nil
}

func (l *memLedger) Credit(_ context.Context, mechanicID int64, jobID string, amount int64, now time.Time, loc *time.Location) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if jobID == l.failJob {
		return false, errBoom
	}
	if l.credited[jobID] {
		return false, nil
	}
	l.credited[jobID] = true
	e := l.buckets[mechanicID]
	e.MechanicID = mechanicID
	l.buckets[mechanicID] = earnings.Add(e, amount, now, loc)
	return true, nil
}

func (l *memLedger) CashOut(_ context.Context, mechanicID int64, now time.Time, loc *time.Location) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, paid := earnings.CashOut(l.buckets[mechanicID], now, loc)
	next.MechanicID = mechanicID
	l.buckets[mechanicID] = next
	return paid, nil
}

type captureRecord struct {
	jobID  string
	amount int64
	state  string
}

type memPayments struct {
	mu      sync.Mutex
	records []captureRecord
}

func (p *memPayments) RecordCapture(_ context.Context, jobID string, amount int64, state, _, _ string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, captureRecord{jobID: jobID, amount: amount, state: state})
	return int64(len(p.records)), nil
}

type memDeclines struct {
	keys map[string]string
}

func (d *memDeclines) Record(_ context.Context, jobID string, _ int64, key string, _ time.Time) error {
	d.keys[jobID] = key
	return nil
}

type memArchive struct {
	objects map[string]any
	err     error
}

func (a *memArchive) Put(_ context.Context, id string, _ time.Time, v any) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := "declined/" + id + ".json"
	a.objects[key] = v
	return key, nil
}

type stubDirectory struct {
	mechanics []models.Mechanic
	err       error
}

func (d stubDirectory) Nearby(context.Context, float64, float64) ([]models.Mechanic, error) {
	return d.mechanics, d.err
}

type stubGateway struct {
	mu     sync.Mutex
	calls  []int64
	result pay.CaptureResult
	err    error
}

func (g *stubGateway) Capture(_ context.Context, _ string, amount int64) (pay.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, amount)
	return g.result, g.err
}

type recordNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordNotifier) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordNotifier) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.Event
	}
	return out
}

type fixture struct {
	svc       *Service
	jobs      *memJobs
	mechanics *memMechanics
	ledger    *memLedger
	payments  *memPayments
	declines  *memDeclines
	archive   *memArchive
	gateway   *stubGateway
	notifier  *recordNotifier
	now       time.Time
}

var testCatalog = memCatalog{
	1: {ID: 1, Name: "Oil Change", PriceCents: 4999, Category: models.CategoryMaintenance},
	2: {ID: 2, Name: "Brake Pad Replacement", PriceCents: 15000, Category: models.CategoryRepair},
	3: {ID: 3, Name: "Battery Jump Start", PriceCents: 7500, Category: models.CategoryRoadside},
}

func newFixture() *fixture {
	f := &fixture{
		jobs:      newMemJobs(),
		mechanics: newMemMechanics(models.Mechanic{ID: 7, Name: "Ana"}, models.Mechanic{ID: 8, Name: "Bo"}),
		ledger:    newMemLedger(),
		payments:  &memPayments{},
		declines:  &memDeclines{keys: map[string]string{}},
		archive:   &memArchive{objects: map[string]any{}},
		gateway:   &stubGateway{result: pay.CaptureResult{Success: true, TransactionID: "tx-1"}},
		notifier:  &recordNotifier{},
		now:       time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(Config{Location: time.UTC, Now: func() time.Time { return f.now }}, Deps{
		Jobs:      f.jobs,
		Catalog:   testCatalog,
		Mechanics: f.mechanics,
		Earnings:  f.ledger,
		Payments:  f.payments,
		Declines:  f.declines,
		Archive:   f.archive,
		Directory: stubDirectory{},
		Gateway:   f.gateway,
		Notifier:  f.notifier,
		Logger:    testLogger{},
	})
	if err != nil {
		panic(fmt.Sprintf("fixture: %v", err))
	}
	f.svc = svc
	return f
}

// inProgress stores a job assigned to mechanic 7 that is ready to complete.
func (f *fixture) inProgress(id string, payout int64, authRef string) models.Job {
	mech := int64(7)
	status := models.PaymentPending
	if authRef != "" {
		status = models.PaymentAuthorized
	}
	j := models.Job{ID: id, CustomerID: 100, MechanicID: &mech, Status: fsm.StatusInProgress, PayoutCents: payout, PaymentStatus: status, PaymentAuthRef: authRef}
	f.jobs.put(j)
	return j
}

var errBoom = errors.New("boom")
