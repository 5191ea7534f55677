package notify

import (
	"context"
	"sync"
	"time"
)

// Role of a notification recipient.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleMechanic Role = "mechanic"
)

// Event names sent to clients.
const (
	EventJobCreated   = "job_created"
	EventJobAccepted  = "job_accepted"
	EventJobArrived   = "job_arrived"
	EventJobStarted   = "job_started"
	EventJobCompleted = "job_completed"
	EventJobDeclined  = "job_declined"
)

// Notification is a single message to one recipient.
type Notification struct {
	Event  string
	JobID  string
	Role   Role
	UserID int64
	Title  string
	Body   string
	Data   map[string]string
}

// Contact holds the delivery addresses of a recipient. Empty fields skip that channel.
type Contact struct {
	FCMToken string
	Phone    string
	Email    string
}

// ContactBook resolves recipients to contacts.
type ContactBook interface {
	Contact(ctx context.Context, role Role, userID int64) (Contact, error)
}

// Channel delivers a notification over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, c Contact, n Notification) error
}

// Logger is the logging contract used by the dispatcher.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Dispatcher fans a notification out to every channel in the background.
// Failures are logged and never reported to the caller.
type Dispatcher struct {
	contacts ContactBook
	channels []Channel
	logger   Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher builds a dispatcher over the given channels.
func NewDispatcher(contacts ContactBook, logger Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{contacts: contacts, channels: channels, logger: logger, timeout: 10 * time.Second}
}

// Notify schedules delivery and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		d.deliver(sendCtx, n)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	contact, err := d.contacts.Contact(ctx, n.Role, n.UserID)
	if err != nil {
		d.logger.Errorf("notify: resolve %s %d for job %s: %v", n.Role, n.UserID, n.JobID, err)
		return
	}
	for _, ch := range d.channels {
		if err := ch.Send(ctx, contact, n); err != nil {
			d.logger.Errorf("notify: %s %s to %s %d: %v", ch.Name(), n.Event, n.Role, n.UserID, err)
			continue
		}
	}
}

// Wait blocks until every scheduled delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogNotifier only logs notifications.
type LogNotifier struct {
	Logger Logger
}

// Notify logs n.
func (l LogNotifier) Notify(_ context.Context, n Notification) {
	l.Logger.Infof("notify: %s job=%s to %s %d: %s", n.Event, n.JobID, n.Role, n.UserID, n.Title)
}
