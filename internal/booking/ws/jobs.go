package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mechanicBack/internal/booking/auth"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/repo"
	"mechanicBack/internal/booking/subscribe"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Logger is shared between hubs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Event types pushed on /ws/jobs.
const (
	EventJobUpdate  = "job_update"
	EventJobRemoved = "job_removed"
)

// JobEvent is pushed to clients watching a job. Job is empty for job_removed.
type JobEvent struct {
	Type  string     `json:"type"`
	JobID string     `json:"job_id"`
	Job   models.Job `json:"job"`
}

// JobReader loads a job for the access check.
type JobReader interface {
	Get(ctx context.Context, id string) (models.Job, error)
}

// JobHub streams job changes to customers and mechanics.
type JobHub struct {
	upgrader websocket.Upgrader
	subs     subscribe.Watcher
	jobs     JobReader
	auth     auth.Authenticator
	logger   Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *conn) closeWith(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	c.ws.Close()
}

func (c *conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// NewJobHub creates a hub.
func NewJobHub(subs subscribe.Watcher, jobs JobReader, authenticator auth.Authenticator, logger Logger) *JobHub {
	return &JobHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		subs:     subs,
		jobs:     jobs,
		auth:     authenticator,
		logger:   logger,
		conns:    make(map[*conn]struct{}),
	}
}

// CanView reports whether p may watch job.
func CanView(p auth.Principal, job models.Job) bool {
	switch {
	case p.Role == auth.RoleAdmin:
		return true
	case p.Role == auth.RoleCustomer:
		return job.CustomerID == p.UserID
	case p.Role == auth.RoleMechanic:
		if job.AssignedTo(p.UserID) {
			return true
		}
		return job.MechanicID == nil && (job.RequestedMechanicID == nil || *job.RequestedMechanicID == p.UserID)
	}
	return false
}

// ServeWS handles /ws/jobs?job_id=... connections.
func (h *JobHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.URL.Query().Get("job_id"))
	if jobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}
	principal, err := h.auth.Authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	job, err := h.jobs.Get(ctx, jobID)
	cancel()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		http.Error(w, "job not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Errorf("job ws: load %s: %v", jobID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !CanView(principal, job) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("job ws upgrade failed: %v", err)
		return
	}
	c := &conn{ws: wsConn}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Infof("%s %d watching job %s", principal.Role, principal.UserID, jobID)

	streamCtx, stop := context.WithCancel(context.Background())
	unsubscribe := h.subs.Watch(streamCtx, jobID, func(j models.Job) {
		if err := c.writeJSON(JobEvent{Type: EventJobUpdate, JobID: jobID, Job: j}); err != nil {
			h.logger.Errorf("job ws: push %s: %v", jobID, err)
			stop()
		}
	}, func() {
		if err := c.writeJSON(JobEvent{Type: EventJobRemoved, JobID: jobID}); err != nil {
			h.logger.Errorf("job ws: push removal of %s: %v", jobID, err)
		}
		stop()
		c.closeWith(websocket.CloseNormalClosure, "job removed")
	})

	go h.pingLoop(streamCtx, c, stop)
	go h.readLoop(c, func() {
		unsubscribe()
		stop()
	})
}

func (h *JobHub) pingLoop(ctx context.Context, c *conn, stop context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				stop()
				return
			}
		}
	}
}

func (h *JobHub) readLoop(c *conn, done func()) {
	defer func() {
		done()
		c.ws.Close()
		h.mu.Lock()
		delete(h.conns, c)
		h.mu.Unlock()
	}()

	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Connections returns the number of open sockets.
func (h *JobHub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
