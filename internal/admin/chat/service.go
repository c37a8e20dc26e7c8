// Package chat implements the floating support chat attached to an order.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shinefiling/filing-admin/internal/admin/orders"
)

var (
	// ErrClosed is returned when an operation needs an open thread.
	ErrClosed = errors.New("chat: no thread is open")
	// ErrNoThreadAlias is returned when an order carries no usable alias.
	ErrNoThreadAlias = errors.New("chat: order has no thread alias")
	// ErrEmptyMessage is returned when sending blank text.
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrNotConfirmed is returned when a destructive action was not confirmed.
	ErrNotConfirmed = errors.New("chat: action not confirmed")
	// ErrMessageNotFound is returned when a message id is not in the held history.
	ErrMessageNotFound = errors.New("chat: message not found")
	// ErrNotEditable is returned when editing another participant's message.
	ErrNotEditable = errors.New("chat: message cannot be edited by this role")
)

// Role identifies the sender of a chat message.
type Role string

const (
	// RoleClient is the customer who placed the order.
	RoleClient Role = "CLIENT"
	// RoleAdmin is a full administrator replying from the console.
	RoleAdmin Role = "ADMIN"
	// RoleSubAdmin is a sub-administrator replying from the console.
	RoleSubAdmin Role = "SUB_ADMIN"
)

// ParseRole maps a configured role name, defaulting to admin.
func ParseRole(value string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleSubAdmin:
		return RoleSubAdmin
	case RoleClient:
		return RoleClient
	default:
		return RoleAdmin
	}
}

// Message is a single entry in a thread's history.
type Message struct {
	ID         string    `json:"id"`
	Message    string    `json:"message"`
	SenderRole Role      `json:"senderRole"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
	Edited     bool      `json:"edited"`
	Read       bool      `json:"read"`
}

// Outgoing is a message to be created on a thread.
type Outgoing struct {
	Text       string `json:"message"`
	Role       Role   `json:"senderRole"`
	SenderName string `json:"senderName"`
}

// API is the chat surface of the filing backend.
type API interface {
	History(ctx context.Context, alias string) ([]Message, error)
	Send(ctx context.Context, alias string, msg Outgoing) error
	Edit(ctx context.Context, messageID, text string) error
	Delete(ctx context.Context, messageID string) error
	Clear(ctx context.Context, alias string) error
	MarkRead(ctx context.Context, alias string, role Role) error
	SetTyping(ctx context.Context, alias string, role Role, typing bool) error
	Typing(ctx context.Context, alias string) ([]Role, error)
}

// Unread is the unread tracker surface a session reconciles on open.
type Unread interface {
	MarkThreadRead(order orders.Order)
	Refresh(ctx context.Context) error
}

// Action names a destructive operation awaiting confirmation.
type Action string

const (
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionClear  Action = "clear"
)

// Confirmer asks the operator to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, action Action, messageID string) bool
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, action Action, messageID string) bool

// Confirm implements Confirmer.
func (f ConfirmerFunc) Confirm(ctx context.Context, action Action, messageID string) bool {
	return f(ctx, action, messageID)
}

type confirmedKey struct{}

// WithConfirmation marks ctx as carrying the operator's explicit confirmation.
func WithConfirmation(ctx context.Context) context.Context {
	return context.WithValue(ctx, confirmedKey{}, true)
}

// ContextConfirmer confirms only requests whose context carries WithConfirmation.
var ContextConfirmer Confirmer = ConfirmerFunc(func(ctx context.Context, _ Action, _ string) bool {
	confirmed, _ := ctx.Value(confirmedKey{}).(bool)
	return confirmed
})

// sortMessages orders history chronologically, keeping backend order for ties.
func sortMessages(list []Message) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.Before(list[j].Timestamp)
	})
}

func sameMessages(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Message != y.Message || x.SenderRole != y.SenderRole ||
			x.SenderName != y.SenderName || x.Edited != y.Edited || x.Read != y.Read ||
			!x.Timestamp.Equal(y.Timestamp) {
			return false
		}
	}
	return true
}
