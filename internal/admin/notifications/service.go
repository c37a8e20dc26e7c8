package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/shinefiling/filing-admin/internal/admin/orders"
)

// ErrNotConfigured indicates the notifications service dependency has not been provided.
var ErrNotConfigured = errors.New("notifications service not configured")

// ErrNotificationNotFound is returned when acknowledging an unknown feed entry.
var ErrNotificationNotFound = errors.New("notification not found")

// Service defines access to the notifications feed and badge counts.
type Service interface {
	// List returns notifications for the given query filters.
	List(ctx context.Context, query Query) (Feed, error)
	// Badge summarises counts for display in the top bar badge.
	Badge(ctx context.Context) (BadgeCount, error)
}

// UnreadSource fetches the aggregate unread counts keyed by thread alias.
type UnreadSource interface {
	UnreadCounts(ctx context.Context, role string) (map[string]int, error)
}

// OrderResolver maps a thread alias back to a held order.
type OrderResolver interface {
	Get(alias string) (orders.Order, bool)
}

// OrderReloader is implemented by resolvers able to refetch their order list.
type OrderReloader interface {
	Load(ctx context.Context) error
}

// ThreadState reports whether the chat thread of an order is currently on screen.
type ThreadState interface {
	IsOpen(order orders.Order) bool
}

// Notifier receives events raised by the unread tracker.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Event announces newly arrived messages on an order's thread.
type Event struct {
	ID          string    `json:"id"`
	OrderKey    string    `json:"orderKey"`
	DisplayID   string    `json:"displayId"`
	InternalID  string    `json:"internalId"`
	ServiceName string    `json:"serviceName"`
	Alias       string    `json:"alias"`
	Count       int       `json:"count"`
	Delta       int       `json:"delta"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Category identifies the origin of a notification.
type Category string

const (
	// CategoryChatMessage represents new client messages on an order thread.
	CategoryChatMessage Category = "chat_message"
)

// Severity classifies the urgency of a notification.
type Severity string

const (
	// SeverityHigh indicates several messages are waiting.
	SeverityHigh Severity = "high"
	// SeverityMedium indicates a single new message.
	SeverityMedium Severity = "medium"
	// SeverityLow indicates informational items.
	SeverityLow Severity = "low"
)

// Status describes the current lifecycle stage of a notification.
type Status string

const (
	// StatusOpen indicates a fresh notification.
	StatusOpen Status = "open"
	// StatusAcknowledged indicates staff has seen the notification.
	StatusAcknowledged Status = "acknowledged"
)

// Query captures filter arguments for listing notifications.
type Query struct {
	Statuses []Status
	Search   string
	Since    *time.Time
	Limit    int
}

// Feed represents a notification feed response.
type Feed struct {
	Items      []Notification
	Total      int
	NextCursor string
	Counts     CountSummary
}

// CountSummary aggregates totals used for badges and filters.
type CountSummary struct {
	Total        int
	Open         int
	Acknowledged int
	High         int
}

// BadgeCount represents counts surfaced in the top bar notification badge.
type BadgeCount struct {
	Total int
	High  int
}

// Notification stores a single feed entry.
type Notification struct {
	ID             string
	Category       Category
	Severity       Severity
	Status         Status
	Title          string
	Summary        string
	Resource       ResourceRef
	CreatedAt      time.Time
	AcknowledgedAt *time.Time
}

// ResourceRef identifies the order the notification points at.
type ResourceRef struct {
	Kind       string
	Identifier string
	Label      string
}
