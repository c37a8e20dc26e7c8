package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shinefiling/filing-admin/internal/admin/identity"
	"github.com/shinefiling/filing-admin/internal/admin/servicetype"
)

// Source loads and deletes orders on the filing backend.
type Source interface {
	// ListOrders returns every order visible to staff.
	ListOrders(ctx context.Context) ([]Order, error)

	// DeleteOrder removes the order identified by the backend id.
	DeleteOrder(ctx context.Context, id string) error
}

// StatusUpdater invokes the family specific status update operation.
type StatusUpdater interface {
	// UpdateStatus posts newStatus to the operation for the order identified by id.
	UpdateStatus(ctx context.Context, operation, id, newStatus string) error
}

var (
	// ErrOrderNotFound is returned when an order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned when a requested status change is not permitted.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTransitionInFlight is returned when another transition for the same order has not finished.
	ErrTransitionInFlight = errors.New("status transition already in progress")
)

// InternalID is the authoritative backend identifier. The backend emits it as
// either a JSON string or a JSON number.
type InternalID string

// UnmarshalJSON accepts string and numeric encodings.
func (id *InternalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = InternalID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("orders: internal id: %w", err)
	}
	*id = InternalID(n.String())
	return nil
}

// String returns the id as text.
func (id InternalID) String() string {
	return string(id)
}

// Order represents one client filing request.
type Order struct {
	DisplayID          string         `json:"displayId"`
	InternalID         InternalID     `json:"internalId"`
	SubmissionID       string         `json:"submissionId,omitempty"`
	ServiceName        string         `json:"serviceName"`
	Status             string         `json:"status"`
	ClientName         string         `json:"clientName,omitempty"`
	ClientEmail        string         `json:"clientEmail,omitempty"`
	AmountMinor        int64          `json:"amountMinor"`
	Currency           string         `json:"currency,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	FormData           map[string]any `json:"formData,omitempty"`
	UploadedDocuments  map[string]any `json:"uploadedDocuments,omitempty"`
	GeneratedDocuments map[string]any `json:"generatedDocuments,omitempty"`
}

// Subject returns the aliases of the order for identity comparisons.
func (o Order) Subject() identity.Subject {
	return identity.Subject{
		DisplayID:    o.DisplayID,
		InternalID:   string(o.InternalID),
		SubmissionID: o.SubmissionID,
	}
}

// Ref returns the fields the service type registry matches on.
func (o Order) Ref() servicetype.Ref {
	return servicetype.Ref{
		DisplayID:    o.DisplayID,
		InternalID:   string(o.InternalID),
		SubmissionID: o.SubmissionID,
		ServiceName:  o.ServiceName,
	}
}

// Key returns the stable per-order key.
func (o Order) Key() string {
	return identity.PrimaryKey(o.Subject())
}

// Label returns the most human friendly identifier of the order.
func (o Order) Label() string {
	if v := strings.TrimSpace(o.DisplayID); v != "" {
		return v
	}
	return identity.ThreadAlias(o.Subject())
}

// StatusModal represents data necessary to render the status update modal.
type StatusModal struct {
	Order   Order
	Family  servicetype.Family
	Label   string
	Choices []StatusTransitionOption
	Pending bool
}

// StatusTransitionOption describes an available status transition choice.
type StatusTransitionOption struct {
	Value          string
	Label          string
	Disabled       bool
	DisabledReason string
	Selected       bool
}

// TransitionResult is returned from a successful status transition.
type TransitionResult struct {
	Order      Order
	Family     servicetype.Family
	Operation  string
	Identifier string
	FromStatus string
	Message    string
}

// AuditLogger records audit trail entries for order operations.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditLogEntry) error
}

// AuditLogEntry describes a structured audit record for an order status change.
type AuditLogEntry struct {
	OrderID    string
	DisplayID  string
	Family     servicetype.Family
	Action     string
	ActorID    string
	ActorEmail string
	FromStatus string
	ToStatus   string
	OccurredAt time.Time
}

// Actor identifies the staff member performing an operation.
type Actor struct {
	ID    string
	Email string
}

type actorKey struct{}

// WithActor stores the acting staff member on the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting staff member if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// StatusTransitionError represents a local validation failure for a requested status change.
type StatusTransitionError struct {
	Family servicetype.Family
	From   string
	To     string
	Reason string
}

// Error implements the error interface.
func (e *StatusTransitionError) Error() string {
	if e == nil {
		return ErrInvalidTransition.Error()
	}
	reason := e.Reason
	if strings.TrimSpace(reason) == "" {
		reason = "transition not permitted"
	}
	return "order status transition from " + e.From + " to " + e.To + ": " + reason
}

// Unwrap allows errors.Is(err, ErrInvalidTransition).
func (e *StatusTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// TransitionError wraps a backend rejection. Reason carries the backend message verbatim.
type TransitionError struct {
	OrderID   string
	Operation string
	To        string
	Reason    string
	Err       error
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	if e == nil {
		return "status update failed"
	}
	reason := strings.TrimSpace(e.Reason)
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	return fmt.Sprintf("status update %s for %s to %q failed: %s", e.Operation, e.OrderID, e.To, reason)
}

// Unwrap exposes the underlying backend error.
func (e *TransitionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
