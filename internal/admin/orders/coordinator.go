package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/shinefiling/filing-admin/internal/admin/servicetype"
)

const instrumentationName = "github.com/shinefiling/filing-admin/internal/admin/orders"

var tracer = otel.Tracer(instrumentationName)

// CoordinatorDeps enumerates collaborators required to construct a Coordinator.
type CoordinatorDeps struct {
	Registry *servicetype.Registry
	Updater  StatusUpdater
	Store    *Store
	Audit    AuditLogger
	Logger   *zap.Logger
	Meter    metric.Meter
	Clock    func() time.Time
}

// Coordinator is the single writer of order status. It resolves the service
// family, invokes the family operation and merges the confirmed status into the
// store. At most one transition per order is in flight.
type Coordinator struct {
	registry *servicetype.Registry
	updater  StatusUpdater
	store    *Store
	audit    AuditLogger
	logger   *zap.Logger
	clock    func() time.Time

	transitions metric.Int64Counter

	mu   sync.Mutex
	busy map[string]struct{}
}

// NewCoordinator wires dependencies into a Coordinator.
func NewCoordinator(deps CoordinatorDeps) (*Coordinator, error) {
	if deps.Updater == nil {
		return nil, errors.New("orders coordinator: status updater is required")
	}
	if deps.Store == nil {
		return nil, errors.New("orders coordinator: store is required")
	}

	registry := deps.Registry
	if registry == nil {
		registry = deps.Store.Registry()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	counter, err := meter.Int64Counter("admin.orders.status_transitions",
		metric.WithDescription("Order status transitions by outcome"))
	if err != nil {
		return nil, fmt.Errorf("orders coordinator: create counter: %w", err)
	}

	return &Coordinator{
		registry: registry,
		updater:  deps.Updater,
		store:    deps.Store,
		audit:    deps.Audit,
		logger:   logger.Named("orders.coordinator"),
		clock: func() time.Time {
			return clock().UTC()
		},
		transitions: counter,
		busy:        make(map[string]struct{}),
	}, nil
}

// Transition moves order to newStatus through its family operation.
//
// A second call for the same order while the first is pending returns
// ErrTransitionInFlight without touching the backend. A status outside the
// family vocabulary returns *StatusTransitionError. A backend rejection returns
// *TransitionError and leaves local state unchanged. Requesting the current
// status still makes exactly one backend call.
func (c *Coordinator) Transition(ctx context.Context, order Order, newStatus string) (TransitionResult, error) {
	key := order.Key()
	if key == "" {
		return TransitionResult{}, ErrOrderNotFound
	}
	if !c.acquire(key) {
		c.record(ctx, "in_flight", "")
		return TransitionResult{}, ErrTransitionInFlight
	}
	defer c.release(key)

	entry := c.registry.Resolve(order.Ref())
	ctx, span := tracer.Start(ctx, "orders.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.display_id", order.DisplayID),
		attribute.String("order.family", string(entry.Family)),
		attribute.String("order.operation", entry.Operation),
	)

	if !entry.Allows(newStatus) {
		err := &StatusTransitionError{
			Family: entry.Family,
			From:   order.Status,
			To:     newStatus,
			Reason: fmt.Sprintf("%q is not a %s status", strings.TrimSpace(newStatus), entry.Label),
		}
		span.SetStatus(codes.Error, "invalid status")
		c.record(ctx, "rejected", entry.Family)
		return TransitionResult{}, err
	}
	target := entry.Canonical(newStatus)
	id := entry.SelectID(order.Ref())

	logger := c.logger.With(
		zap.String("order", order.Label()),
		zap.String("family", string(entry.Family)),
		zap.String("operation", entry.Operation),
		zap.String("to", target),
	)

	if err := c.updater.UpdateStatus(ctx, entry.Operation, id, target); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend rejected status update")
		c.record(ctx, "failed", entry.Family)
		logger.Warn("status update rejected", zap.Error(err))
		return TransitionResult{}, &TransitionError{
			OrderID:   id,
			Operation: entry.Operation,
			To:        target,
			Reason:    reasonOf(err),
			Err:       err,
		}
	}

	now := c.clock()
	updated, ok := c.store.applyStatus(order, target, now)
	if !ok {
		updated = order
		updated.Status = target
		updated.UpdatedAt = now
	}

	if c.audit != nil {
		actor, _ := ActorFromContext(ctx)
		entryErr := c.audit.Record(ctx, AuditLogEntry{
			OrderID:    string(order.InternalID),
			DisplayID:  order.DisplayID,
			Family:     entry.Family,
			Action:     "order.status.transition",
			ActorID:    actor.ID,
			ActorEmail: actor.Email,
			FromStatus: order.Status,
			ToStatus:   target,
			OccurredAt: now,
		})
		if entryErr != nil {
			logger.Warn("audit record failed", zap.Error(entryErr))
		}
	}

	c.record(ctx, "ok", entry.Family)
	logger.Info("status updated", zap.String("from", order.Status))

	return TransitionResult{
		Order:      updated,
		Family:     entry.Family,
		Operation:  entry.Operation,
		Identifier: id,
		FromStatus: order.Status,
		Message:    fmt.Sprintf("%s status updated to %s", order.Label(), target),
	}, nil
}

// Pending reports whether a transition for order is in flight.
func (c *Coordinator) Pending(order Order) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.busy[order.Key()]
	return ok
}

// Options lists the family statuses as transition choices for order.
func (c *Coordinator) Options(order Order) StatusModal {
	entry := c.registry.Resolve(order.Ref())
	current := strings.TrimSpace(order.Status)
	pending := c.Pending(order)

	choices := make([]StatusTransitionOption, 0, len(entry.Statuses))
	for _, status := range entry.Statuses {
		option := StatusTransitionOption{
			Value: status,
			Label: status,
		}
		switch {
		case strings.EqualFold(status, current):
			option.Selected = true
			option.Disabled = true
			option.DisabledReason = "Current status"
		case pending:
			option.Disabled = true
			option.DisabledReason = "A status update is already in progress"
		}
		choices = append(choices, option)
	}

	return StatusModal{
		Order:   order,
		Family:  entry.Family,
		Label:   entry.Label,
		Choices: choices,
		Pending: pending,
	}
}

func (c *Coordinator) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.busy[key]; ok {
		return false
	}
	c.busy[key] = struct{}{}
	return true
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	delete(c.busy, key)
	c.mu.Unlock()
}

func (c *Coordinator) record(ctx context.Context, outcome string, family servicetype.Family) {
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if family != "" {
		attrs = append(attrs, attribute.String("family", string(family)))
	}
	c.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// reasoner is implemented by backend errors carrying the server's message.
type reasoner interface {
	Reason() string
}

func reasonOf(err error) string {
	var r reasoner
	if errors.As(err, &r) {
		if reason := strings.TrimSpace(r.Reason()); reason != "" {
			return reason
		}
	}
	return err.Error()
}
