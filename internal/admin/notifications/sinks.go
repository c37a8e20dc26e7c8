package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Multi fans an event out to every notifier. All notifiers run; their errors are joined.
func Multi(notifiers ...Notifier) Notifier {
	list := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			list = append(list, n)
		}
	}
	return NotifierFunc(func(ctx context.Context, event Event) error {
		var errs []error
		for _, n := range list {
			if err := n.Notify(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// LogNotifier writes events to the structured log.
func LogNotifier(logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NotifierFunc(func(_ context.Context, event Event) error {
		logger.Info("new chat messages",
			zap.String("event_id", event.ID),
			zap.String("order", event.DisplayID),
			zap.String("alias", event.Alias),
			zap.Int("count", event.Count),
			zap.Int("delta", event.Delta),
		)
		return nil
	})
}

// Permission mirrors the browser Notification.permission values.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps a browser permission string, treating unknown values as default.
func ParsePermission(value string) Permission {
	switch Permission(value) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	default:
		return PermissionDefault
	}
}

// DesktopMessage is a native notification queued for the browser to display.
type DesktopMessage struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"createdAt"`
}

// DesktopNotifier queues desktop notifications for the console. Nothing is
// queued unless the browser reported a granted permission.
type DesktopNotifier struct {
	limit int

	mu         sync.Mutex
	permission Permission
	queue      []DesktopMessage
}

// NewDesktopNotifier constructs a notifier holding at most limit undelivered messages.
func NewDesktopNotifier(limit int) *DesktopNotifier {
	if limit <= 0 {
		limit = 50
	}
	return &DesktopNotifier{limit: limit, permission: PermissionDefault}
}

// SetPermission records the browser's permission state. Revoking permission drops queued messages.
func (d *DesktopNotifier) SetPermission(p Permission) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permission = p
	if p != PermissionGranted {
		d.queue = nil
	}
}

// Permission returns the last reported permission.
func (d *DesktopNotifier) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission
}

// Notify implements Notifier.
func (d *DesktopNotifier) Notify(_ context.Context, event Event) error {
	item := notificationFromEvent(event)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permission != PermissionGranted {
		return nil
	}
	d.queue = append(d.queue, DesktopMessage{
		ID:        event.ID,
		Title:     item.Title,
		Body:      item.Summary,
		Tag:       event.OrderKey,
		CreatedAt: event.OccurredAt,
	})
	if overflow := len(d.queue) - d.limit; overflow > 0 {
		d.queue = append([]DesktopMessage(nil), d.queue[overflow:]...)
	}
	return nil
}

// Drain returns and clears the queued messages.
func (d *DesktopNotifier) Drain() []DesktopMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.queue
	d.queue = nil
	if out == nil {
		return []DesktopMessage{}
	}
	return out
}
