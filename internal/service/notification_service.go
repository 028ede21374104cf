package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/domain/notification"
	"github.com/carebook/carebook/pkg/mailer"
	"github.com/carebook/carebook/pkg/metrics"
)

// Recipient is one interested party of an event. Email may be empty; that
// party is then skipped silently on the email channel.
type Recipient struct {
	UserID uuid.UUID
	Email  string
}

// Event is the single unit the lifecycle code hands to the dispatcher. The
// dispatcher owns delivery channels; callers never know about them.
type Event struct {
	Type       string
	Recipients []Recipient
	Subject    string
	Body       string
	// Snapshot of the triggering record, stored on the in-app notification.
	Data any
}

// Dispatcher fans events out to the notification store and the email relay.
// Dispatch is fire-and-forget: events are buffered, delivery failures are
// logged and swallowed, and nothing ever propagates back to the data
// operation that raised the event.
type Dispatcher struct {
	repo    notification.Repository
	mail    mailer.Mailer
	metrics *metrics.Collector
	log     *zap.Logger
	events  chan Event
	done    chan struct{}

	mu      sync.RWMutex
	stopped bool
}

const eventBufferSize = 10_000

func NewDispatcher(repo notification.Repository, mail mailer.Mailer, m *metrics.Collector, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		repo:    repo,
		mail:    mail,
		metrics: m,
		log:     log,
		events:  make(chan Event, eventBufferSize),
		done:    make(chan struct{}),
	}
	go d.worker()
	return d
}

// Notify enqueues an event for async delivery. If the buffer is full, or the
// dispatcher has already shut down, the event is dropped and a warning is
// emitted.
func (d *Dispatcher) Notify(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.metrics.NotificationsDropped.Inc()
		d.log.Warn("dispatcher stopped, dropping event",
			zap.String("type", event.Type),
		)
		return
	}

	select {
	case d.events <- event:
	default:
		d.metrics.NotificationsDropped.Inc()
		d.log.Warn("notification buffer full, dropping event",
			zap.String("type", event.Type),
		)
	}
}

// Shutdown drains buffered events and stops the worker. Safe to call more
// than once; Notify calls arriving afterwards drop their event.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.events)
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-time.After(10 * time.Second):
		d.log.Warn("dispatcher shutdown timed out; some events may be lost")
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for event := range d.events {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		d.deliver(ctx, event)
		cancel()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		d.log.Error("failed to encode event snapshot", zap.Error(err), zap.String("type", event.Type))
		data = []byte("{}")
	}

	for _, rcpt := range event.Recipients {
		n := &notification.Notification{
			UserID: rcpt.UserID,
			Type:   event.Type,
			Data:   string(data),
		}
		if err := d.repo.Create(ctx, n); err != nil {
			d.metrics.NotificationsTotal.WithLabelValues("store", "error").Inc()
			d.log.Error("failed to persist notification",
				zap.Error(err),
				zap.String("type", event.Type),
				zap.String("user_id", rcpt.UserID.String()),
			)
		} else {
			d.metrics.NotificationsTotal.WithLabelValues("store", "ok").Inc()
		}

		if rcpt.Email == "" {
			continue
		}
		if err := d.mail.Send(ctx, rcpt.Email, event.Subject, event.Body); err != nil {
			d.metrics.NotificationsTotal.WithLabelValues("email", "error").Inc()
			d.log.Error("failed to send email",
				zap.Error(err),
				zap.String("type", event.Type),
				zap.String("to", rcpt.Email),
			)
		} else {
			d.metrics.NotificationsTotal.WithLabelValues("email", "ok").Inc()
		}
	}
}

// NotificationService is the read side of the notifications store.
type NotificationService struct {
	repo notification.Repository
	log  *zap.Logger
}

func NewNotificationService(repo notification.Repository, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, log: log}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit int) ([]*notification.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}
