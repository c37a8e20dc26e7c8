package backend

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shinefiling/filing-admin/internal/admin/chat"
	"github.com/shinefiling/filing-admin/internal/admin/identity"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
)

// Static is an in-memory filing backend used for local development and tests.
// Threads are keyed by order, so every alias of an order reaches the same thread.
type Static struct {
	mu      sync.Mutex
	orders  []orders.Order
	threads map[string][]chat.Message
	typing  map[string]map[chat.Role]bool
	updates []StatusUpdate
	now     func() time.Time
	newID   func() string
}

// StatusUpdate records one status call received by Static.
type StatusUpdate struct {
	Operation string
	ID        string
	Status    string
}

// NewStatic seeds a Static backend with the sample orders and an unread
// client question on ORD-88.
func NewStatic(now func() time.Time) *Static {
	if now == nil {
		now = time.Now
	}
	s := &Static{
		orders:  orders.SampleOrders(now()),
		threads: make(map[string][]chat.Message),
		typing:  make(map[string]map[chat.Role]bool),
		now:     now,
		newID: func() string {
			return ulid.Make().String()
		},
	}
	s.ClientMessage("SUB-88", "Arjun Nair", "Has the name been approved yet?")
	return s
}

// ListOrders implements orders.Source.
func (s *Static) ListOrders(context.Context) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orders.Order(nil), s.orders...), nil
}

// DeleteOrder implements orders.Source.
func (s *Static) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.findLocked(id)
	if !ok {
		return orders.ErrOrderNotFound
	}
	key := s.orders[pos].Key()
	s.orders = append(s.orders[:pos], s.orders[pos+1:]...)
	delete(s.threads, key)
	delete(s.typing, key)
	return nil
}

// UpdateStatus implements orders.StatusUpdater.
func (s *Static) UpdateStatus(_ context.Context, operation, id, newStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.findLocked(id)
	if !ok {
		return &APIError{Status: http.StatusNotFound, Message: "order " + id + " not found"}
	}
	s.orders[pos].Status = newStatus
	s.orders[pos].UpdatedAt = s.now()
	s.updates = append(s.updates, StatusUpdate{Operation: operation, ID: id, Status: newStatus})
	return nil
}

// Updates returns the status calls received so far.
func (s *Static) Updates() []StatusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StatusUpdate(nil), s.updates...)
}

// History implements chat.API.
func (s *Static) History(_ context.Context, alias string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.threads[s.threadKeyLocked(alias)]...), nil
}

// Send implements chat.API.
func (s *Static) Send(_ context.Context, alias string, msg chat.Outgoing) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return &APIError{Status: http.StatusBadRequest, Message: "message is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(alias, chat.Message{
		Message:    text,
		SenderRole: msg.Role,
		SenderName: msg.SenderName,
	})
	return nil
}

// ClientMessage appends a message from the client side of a thread.
func (s *Static) ClientMessage(alias, name, text string) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(alias, chat.Message{
		Message:    strings.TrimSpace(text),
		SenderRole: chat.RoleClient,
		SenderName: name,
	})
}

// Edit implements chat.API.
func (s *Static) Edit(_ context.Context, messageID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, list := range s.threads {
		for i := range list {
			if list[i].ID == messageID {
				list[i].Message = strings.TrimSpace(text)
				list[i].Edited = true
				s.threads[key] = list
				return nil
			}
		}
	}
	return &APIError{Status: http.StatusNotFound, Message: "message not found"}
}

// Delete implements chat.API.
func (s *Static) Delete(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, list := range s.threads {
		for i := range list {
			if list[i].ID == messageID {
				s.threads[key] = append(list[:i:i], list[i+1:]...)
				return nil
			}
		}
	}
	return &APIError{Status: http.StatusNotFound, Message: "message not found"}
}

// Clear implements chat.API.
func (s *Static) Clear(_ context.Context, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, s.threadKeyLocked(alias))
	return nil
}

// MarkRead implements chat.API. Messages sent by other roles become read.
func (s *Static) MarkRead(_ context.Context, alias string, role chat.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.threads[s.threadKeyLocked(alias)]
	for i := range list {
		if list[i].SenderRole != role {
			list[i].Read = true
		}
	}
	return nil
}

// SetTyping implements chat.API.
func (s *Static) SetTyping(_ context.Context, alias string, role chat.Role, typing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.threadKeyLocked(alias)
	roles := s.typing[key]
	if roles == nil {
		roles = make(map[chat.Role]bool)
		s.typing[key] = roles
	}
	if typing {
		roles[role] = true
	} else {
		delete(roles, role)
	}
	return nil
}

// Typing implements chat.API.
func (s *Static) Typing(_ context.Context, alias string) ([]chat.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Role, 0)
	for role := range s.typing[s.threadKeyLocked(alias)] {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// UnreadCounts implements notifications.UnreadSource. Counts are keyed by the
// thread alias of each order and cover unread messages from other roles.
func (s *Static) UnreadCounts(_ context.Context, role string) (map[string]int, error) {
	local := chat.ParseRole(role)
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, order := range s.orders {
		unread := 0
		for _, msg := range s.threads[order.Key()] {
			if msg.SenderRole != local && !msg.Read {
				unread++
			}
		}
		counts[identity.ThreadAlias(order.Subject())] = unread
	}
	return counts, nil
}

func (s *Static) appendLocked(alias string, msg chat.Message) chat.Message {
	msg.ID = s.newID()
	msg.Timestamp = s.now()
	key := s.threadKeyLocked(alias)
	s.threads[key] = append(s.threads[key], msg)
	return msg
}

func (s *Static) findLocked(alias string) (int, bool) {
	match, ok := identity.NewIndex(s.orders, orders.Order.Subject).Resolve(alias)
	if !ok {
		return 0, false
	}
	for i, order := range s.orders {
		if order.Key() == match.Key() {
			return i, true
		}
	}
	return 0, false
}

func (s *Static) threadKeyLocked(alias string) string {
	if pos, ok := s.findLocked(alias); ok {
		return s.orders[pos].Key()
	}
	return strings.ToUpper(strings.TrimSpace(alias))
}
