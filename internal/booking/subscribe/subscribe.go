package subscribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/repo"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = time.Second

// Subscriber delivers job changes until the returned function is called.
type Subscriber interface {
	Subscribe(ctx context.Context, jobID string, onChange func(models.Job)) (unsubscribe func())
}

// Watcher is a Subscriber that also reports when the watched job is removed.
type Watcher interface {
	Subscriber
	Watch(ctx context.Context, jobID string, onChange func(models.Job), onRemoved func()) (unsubscribe func())
}

// JobReader loads a job by id. repo.ErrNotFound means the job is gone.
type JobReader interface {
	Get(ctx context.Context, id string) (models.Job, error)
}

// Logger is a minimal logger interface required by the poller.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Poller implements Subscriber by re-reading the job at a fixed interval.
type Poller struct {
	jobs     JobReader
	interval time.Duration
	logger   Logger
}

// NewPoller creates a poller. A non-positive interval falls back to DefaultInterval.
func NewPoller(jobs JobReader, interval time.Duration, logger Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{jobs: jobs, interval: interval, logger: logger}
}

// Subscribe polls jobID and calls onChange on the first read and whenever the job differs
// from the previous observation. Polling stops when ctx ends, the job disappears
// or unsubscribe is called. Calling unsubscribe more than once is safe.
func (p *Poller) Subscribe(ctx context.Context, jobID string, onChange func(models.Job)) func() {
	return p.Watch(ctx, jobID, onChange, nil)
}

// Watch is Subscribe with onRemoved called once when the job disappears.
// onRemoved is not called after unsubscribe. A nil onRemoved is ignored.
func (p *Poller) Watch(ctx context.Context, jobID string, onChange func(models.Job), onRemoved func()) func() {
	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() { once.Do(cancel) }

	go p.run(ctx, cancel, jobID, onChange, onRemoved)
	return unsubscribe
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, jobID string, onChange func(models.Job), onRemoved func()) {
	defer cancel()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last []byte
	for {
		job, err := p.jobs.Get(ctx, jobID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			p.logger.Infof("subscribe: job %s is gone, stop polling", jobID)
			if onRemoved != nil && ctx.Err() == nil {
				onRemoved()
			}
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			p.logger.Errorf("subscribe: read job %s: %v", jobID, err)
		default:
			snap, mErr := json.Marshal(job)
			if mErr != nil {
				p.logger.Errorf("subscribe: snapshot job %s: %v", jobID, mErr)
			} else if last == nil || !bytes.Equal(snap, last) {
				last = snap
				if ctx.Err() != nil {
					return
				}
				onChange(job)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
