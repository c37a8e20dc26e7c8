package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shinefiling/filing-admin/internal/admin/orders"
)

// ErrUnknownUser is returned when no staff user is supplied.
var ErrUnknownUser = errors.New("chat: staff user is required")

// Manager holds one chat session per staff user. It satisfies the unread
// tracker's thread state so an open thread is never notified.
type Manager struct {
	api    API
	unread Unread
	opts   Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs a Manager sharing api and the unread tracker.
func NewManager(api API, unread Unread, opts Options) (*Manager, error) {
	if api == nil {
		return nil, errors.New("chat: api is required")
	}
	return &Manager{
		api:      api,
		unread:   unread,
		opts:     opts,
		sessions: make(map[string]*Session),
	}, nil
}

// SetUnread attaches the unread tracker used by sessions created afterwards.
func (m *Manager) SetUnread(unread Unread) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unread = unread
}

// Session returns the session of userID, creating it on first use with the
// configured role. The sender name defaults to displayName when the options
// carry none.
func (m *Manager) Session(userID, displayName string) (*Session, error) {
	return m.SessionAs(userID, displayName, "")
}

// SessionAs is Session with the sender role of the staff user. An empty role
// keeps the configured one. The role is fixed when the session is created.
func (m *Manager) SessionAs(userID, displayName string, role Role) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnknownUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}
	opts := m.opts
	if strings.TrimSpace(opts.SenderName) == "" {
		opts.SenderName = displayName
	}
	if role != "" {
		opts.Role = role
	}
	s, err := NewSession(m.api, m.unread, opts)
	if err != nil {
		return nil, err
	}
	m.sessions[userID] = s
	return s, nil
}

// Lookup returns the existing session of userID.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[strings.TrimSpace(userID)]
	return s, ok
}

// IsOpen reports whether any staff user has order's thread open.
func (m *Manager) IsOpen(order orders.Order) bool {
	for _, s := range m.snapshot() {
		if s.IsOpen(order) {
			return true
		}
	}
	return false
}

// CloseAll closes every session, returning the joined errors.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, s := range m.snapshot() {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
