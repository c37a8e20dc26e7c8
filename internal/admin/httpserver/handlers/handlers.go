// Package handlers implements the console's JSON endpoints.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shinefiling/filing-admin/internal/admin/chat"
	"github.com/shinefiling/filing-admin/internal/admin/httpx"
	"github.com/shinefiling/filing-admin/internal/admin/notifications"
	"github.com/shinefiling/filing-admin/internal/admin/observability"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
)

// UnreadCounter exposes per-order unread counts for list and detail payloads.
type UnreadCounter interface {
	UnreadCount(order orders.Order) int
}

// Acknowledger marks feed entries as seen.
type Acknowledger interface {
	Acknowledge(ctx context.Context, id string) (notifications.Notification, error)
}

// Dependencies collects the services required by the handlers.
type Dependencies struct {
	Orders        *orders.Store
	Coordinator   *orders.Coordinator
	Notifications notifications.Service
	Acknowledger  Acknowledger
	Desktop       *notifications.DesktopNotifier
	Unread        UnreadCounter
	Chat          *chat.Manager
}

// Handlers exposes HTTP handlers for the console API.
type Handlers struct {
	orders        *orders.Store
	coordinator   *orders.Coordinator
	notifications notifications.Service
	acknowledger  Acknowledger
	desktop       *notifications.DesktopNotifier
	unread        UnreadCounter
	chat          *chat.Manager
}

// NewHandlers wires the handler set. Orders, Coordinator and Chat are required.
func NewHandlers(deps Dependencies) (*Handlers, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("handlers: order store is required")
	case deps.Coordinator == nil:
		return nil, errors.New("handlers: status coordinator is required")
	case deps.Chat == nil:
		return nil, errors.New("handlers: chat manager is required")
	}
	service := deps.Notifications
	if service == nil {
		service = notifications.NewInbox(0)
	}
	acknowledger := deps.Acknowledger
	if acknowledger == nil {
		if ack, ok := service.(Acknowledger); ok {
			acknowledger = ack
		}
	}
	desktop := deps.Desktop
	if desktop == nil {
		desktop = notifications.NewDesktopNotifier(0)
	}
	return &Handlers{
		orders:        deps.Orders,
		coordinator:   deps.Coordinator,
		notifications: service,
		acknowledger:  acknowledger,
		desktop:       desktop,
		unread:        deps.Unread,
		chat:          deps.Chat,
	}, nil
}

// NotFound answers unknown routes with the JSON envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("not_found", "route not found", http.StatusNotFound))
}

// MethodNotAllowed answers unsupported methods with the JSON envelope.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))
}

// InternalError answers recovered panics.
func InternalError(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("internal", "internal server error", http.StatusInternalServerError))
}

type reasoner interface {
	Reason() string
}

type notFounder interface {
	NotFound() bool
}

// writeError maps domain errors onto the JSON envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	herr := classify(err)
	logger := observability.FromContext(ctx)
	if herr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", herr.Code), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.String("code", herr.Code), zap.Error(err))
	}
	httpx.WriteError(ctx, w, herr)
}

func classify(err error) httpx.Error {
	var herr httpx.Error
	if errors.As(err, &herr) {
		return herr
	}

	var nf notFounder
	switch {
	case errors.Is(err, orders.ErrTransitionInFlight):
		return httpx.NewError("transition_in_flight", "a status update for this order is already in progress", http.StatusConflict)
	case errors.Is(err, orders.ErrInvalidTransition):
		return httpx.NewError("invalid_status", err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, chat.ErrNotConfirmed):
		return httpx.NewError("confirmation_required", "repeat the request with confirm=true", http.StatusPreconditionFailed)
	case errors.Is(err, orders.ErrOrderNotFound):
		return httpx.NewError("order_not_found", "order not found", http.StatusNotFound)
	case errors.Is(err, chat.ErrMessageNotFound):
		return httpx.NewError("message_not_found", "message not found", http.StatusNotFound)
	case errors.Is(err, notifications.ErrNotificationNotFound):
		return httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound)
	case errors.Is(err, chat.ErrClosed):
		return httpx.NewError("chat_closed", "no chat thread is open", http.StatusConflict)
	case errors.Is(err, chat.ErrNoThreadAlias):
		return httpx.NewError("no_thread", "order has no chat thread", http.StatusUnprocessableEntity)
	case errors.Is(err, chat.ErrEmptyMessage):
		return httpx.NewError("empty_message", "message is empty", http.StatusBadRequest)
	case errors.Is(err, chat.ErrNotEditable):
		return httpx.NewError("not_editable", "only your own messages can be edited", http.StatusForbidden)
	case errors.Is(err, notifications.ErrNotConfigured):
		return httpx.NewError("not_configured", err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, chat.ErrUnknownUser):
		return httpx.NewError("unauthenticated", "staff user is required", http.StatusUnauthorized)
	}

	var transition *orders.TransitionError
	if errors.As(err, &transition) {
		reason := strings.TrimSpace(transition.Reason)
		if reason == "" {
			reason = backendReason(err)
		}
		return httpx.NewError("backend_rejected", reason, http.StatusBadGateway).
			WithDetails(map[string]any{"operation": transition.Operation})
	}
	if errors.As(err, &nf) && nf.NotFound() {
		return httpx.NewError("not_found", backendReason(err), http.StatusNotFound)
	}
	var rs reasoner
	if errors.As(err, &rs) {
		return httpx.NewError("backend_rejected", rs.Reason(), http.StatusBadGateway)
	}
	return httpx.NewError("internal", "internal server error", http.StatusInternalServerError)
}

func backendReason(err error) string {
	var rs reasoner
	if errors.As(err, &rs) && strings.TrimSpace(rs.Reason()) != "" {
		return rs.Reason()
	}
	return "backend request failed"
}

func confirmed(r *http.Request) bool {
	return queryFlag(r, "confirm")
}

func queryFlag(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func parsePositiveIntDefault(value string, fallback int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
