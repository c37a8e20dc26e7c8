package chat

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/shinefiling/filing-admin/internal/admin/identity"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
	"github.com/shinefiling/filing-admin/internal/admin/poller"
)

const (
	// DefaultPollInterval is the history and typing poll cadence while a thread is open.
	DefaultPollInterval = 3 * time.Second
	// DefaultTypingTimeout is the idle time after which typing is withdrawn.
	DefaultTypingTimeout = 5 * time.Second
)

// State is the lifecycle state of the chat widget.
type State int

const (
	// StateClosed shows no thread and runs no poll.
	StateClosed State = iota
	// StateOpen shows the thread and polls history and typing.
	StateOpen
	// StateMinimized keeps the thread selected with polling paused.
	StateMinimized
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateMinimized:
		return "minimized"
	default:
		return "closed"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Timer is the handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

// Options customises a Session.
type Options struct {
	Role          Role
	SenderName    string
	PollInterval  time.Duration
	TypingTimeout time.Duration
	Confirmer     Confirmer
	Logger        *zap.Logger
	AfterFunc     func(d time.Duration, f func()) Timer
	Ticker        func(d time.Duration) poller.Ticker
}

// View is a point-in-time copy of the session state.
type View struct {
	State       State         `json:"state"`
	Order       *orders.Order `json:"order,omitempty"`
	Alias       string        `json:"alias,omitempty"`
	Messages    []Message     `json:"messages"`
	TypingRoles []Role        `json:"typingRoles"`
	Draft       string        `json:"draft"`
	EditingID   string        `json:"editingId,omitempty"`
	Typing      bool          `json:"typing"`
	Version     uint64        `json:"version"`
}

// Session drives one chat widget: Closed, Open and Minimized. While open and
// not minimized it polls history and typing. Typing announcements are
// debounced and always withdrawn on send and close.
type Session struct {
	api           API
	unread        Unread
	confirm       Confirmer
	role          Role
	senderName    string
	pollInterval  time.Duration
	typingTimeout time.Duration
	logger        *zap.Logger
	policy        *bluemonday.Policy
	afterFunc     func(time.Duration, func()) Timer
	newTicker     func(time.Duration) poller.Ticker

	lifecycle sync.Mutex
	announce  sync.Mutex

	mu        sync.Mutex
	state     State
	order     orders.Order
	alias     string
	messages  []Message
	typing    []Role
	draft     string
	editingID string
	version   uint64
	poll      *poller.Poller
	bg        context.Context

	typingOn    bool
	typingStale bool
	typingTimer Timer
	typingGen   uint64
}

// NewSession constructs a closed session.
func NewSession(api API, unread Unread, opts Options) (*Session, error) {
	if api == nil {
		return nil, errors.New("chat: api is required")
	}
	role := opts.Role
	if role == "" {
		role = RoleAdmin
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	typingTimeout := opts.TypingTimeout
	if typingTimeout <= 0 {
		typingTimeout = DefaultTypingTimeout
	}
	confirm := opts.Confirmer
	if confirm == nil {
		confirm = ContextConfirmer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	afterFunc := opts.AfterFunc
	if afterFunc == nil {
		afterFunc = func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		}
	}
	senderName := strings.TrimSpace(opts.SenderName)
	if senderName == "" {
		senderName = "Support"
	}

	return &Session{
		api:           api,
		unread:        unread,
		confirm:       confirm,
		role:          role,
		senderName:    senderName,
		pollInterval:  pollInterval,
		typingTimeout: typingTimeout,
		logger:        logger.Named("chat"),
		policy:        bluemonday.StrictPolicy(),
		afterFunc:     afterFunc,
		newTicker:     opts.Ticker,
		bg:            context.Background(),
	}, nil
}

// Role returns the local sender role.
func (s *Session) Role() Role {
	return s.role
}

// View returns a copy of the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// IsOpen reports whether order's thread is open and not minimized.
func (s *Session) IsOpen(order orders.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen && s.order.Key() == order.Key()
}

// Open shows the thread of order. Unread counts for the thread are zeroed
// locally, the read receipt is posted, the unread snapshot is reconciled and
// the history is fetched before polling starts. Opening another order closes
// the current thread first.
func (s *Session) Open(ctx context.Context, order orders.Order) (View, error) {
	alias := identity.ThreadAlias(order.Subject())
	if alias == "" {
		return View{}, ErrNoThreadAlias
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	current, same := s.state, s.state != StateClosed && s.order.Key() == order.Key()
	s.mu.Unlock()
	if same {
		if current == StateMinimized {
			return s.restoreLocked(ctx)
		}
		return s.View(), nil
	}
	if current != StateClosed {
		if err := s.closeLocked(ctx); err != nil {
			s.logger.Warn("closing previous thread failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.state = StateOpen
	s.order = order
	s.alias = alias
	s.messages = nil
	s.typing = nil
	s.draft = ""
	s.editingID = ""
	s.typingStale = false
	s.version++
	s.bg = context.WithoutCancel(ctx)
	s.mu.Unlock()

	if s.unread != nil {
		s.unread.MarkThreadRead(order)
	}
	if err := s.api.MarkRead(ctx, alias, s.role); err != nil {
		s.logger.Warn("mark read failed", zap.String("alias", alias), zap.Error(err))
	}
	if s.unread != nil {
		if err := s.unread.Refresh(ctx); err != nil {
			s.logger.Warn("unread refresh failed", zap.Error(err))
		}
	}
	if err := s.refresh(ctx, alias); err != nil {
		s.logger.Warn("history fetch failed", zap.String("alias", alias), zap.Error(err))
	}

	s.startPolling()
	return s.View(), nil
}

// Minimize hides the widget and stops polling.
func (s *Session) Minimize() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateMinimized:
		s.mu.Unlock()
		return nil
	}
	s.state = StateMinimized
	s.mu.Unlock()

	s.stopPolling()
	return nil
}

// Restore shows a minimized widget, refreshes history and resumes polling.
func (s *Session) Restore(ctx context.Context) (View, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.restoreLocked(ctx)
}

func (s *Session) restoreLocked(ctx context.Context) (View, error) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return View{}, ErrClosed
	case StateOpen:
		view := s.viewLocked()
		s.mu.Unlock()
		return view, nil
	}
	s.state = StateOpen
	alias := s.alias
	s.mu.Unlock()

	if err := s.refresh(ctx, alias); err != nil {
		s.logger.Warn("history fetch failed", zap.String("alias", alias), zap.Error(err))
	}
	s.startPolling()
	return s.View(), nil
}

// Close stops polling synchronously and withdraws any outstanding typing
// announcement before clearing the thread.
func (s *Session) Close(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.closeLocked(ctx)
}

func (s *Session) closeLocked(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	alias := s.alias
	s.mu.Unlock()

	s.stopPolling()
	err := s.clearTyping(ctx, alias)

	s.mu.Lock()
	s.order = orders.Order{}
	s.alias = ""
	s.messages = nil
	s.typing = nil
	s.draft = ""
	s.editingID = ""
	s.version++
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("chat: withdraw typing: %w", err)
	}
	return nil
}

// Type updates the draft and announces typing once per burst. Every call
// restarts the idle timer; when it fires typing is withdrawn.
func (s *Session) Type(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.draft = text
	alias := s.alias
	announce := !s.typingOn
	s.typingOn = true
	s.resetTypingTimerLocked()
	gen := s.typingGen
	s.mu.Unlock()

	if !announce {
		return nil
	}

	s.announce.Lock()
	defer s.announce.Unlock()
	if err := s.api.SetTyping(ctx, alias, s.role, true); err != nil {
		s.mu.Lock()
		if s.typingGen == gen && s.alias == alias {
			s.typingOn = false
			s.stopTypingTimerLocked()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Send posts text, or the draft when text is blank. With an edit in progress
// the text replaces the edited message instead, which requires confirmation.
// Typing is withdrawn first and history is re-fetched after success.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if strings.TrimSpace(text) == "" {
		text = s.draft
	}
	editing := s.editingID
	alias := s.alias
	s.mu.Unlock()

	clean := s.sanitize(text)
	if clean == "" {
		return ErrEmptyMessage
	}
	if editing != "" && !s.confirm.Confirm(ctx, ActionEdit, editing) {
		return ErrNotConfirmed
	}

	if err := s.clearTyping(ctx, alias); err != nil {
		s.logger.Warn("typing withdraw failed", zap.String("alias", alias), zap.Error(err))
	}

	var err error
	if editing != "" {
		err = s.api.Edit(ctx, editing, clean)
	} else {
		err = s.api.Send(ctx, alias, Outgoing{Text: clean, Role: s.role, SenderName: s.senderName})
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.alias == alias {
		s.draft = ""
		s.editingID = ""
	}
	s.mu.Unlock()

	s.refreshAfterWrite(ctx, alias)
	return nil
}

// BeginEdit loads a held message into the draft for editing.
func (s *Session) BeginEdit(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrClosed
	}
	msg, ok := s.findLocked(messageID)
	if !ok {
		return ErrMessageNotFound
	}
	if msg.SenderRole != s.role {
		return ErrNotEditable
	}
	s.editingID = msg.ID
	s.draft = msg.Message
	return nil
}

// CancelEdit abandons the edit in progress and clears the draft.
func (s *Session) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editingID == "" {
		return
	}
	s.editingID = ""
	s.draft = ""
}

// Edit replaces the text of one of the local role's messages after confirmation.
func (s *Session) Edit(ctx context.Context, messageID, text string) error {
	alias, msg, err := s.target(messageID)
	if err != nil {
		return err
	}
	if msg.SenderRole != s.role {
		return ErrNotEditable
	}
	clean := s.sanitize(text)
	if clean == "" {
		return ErrEmptyMessage
	}
	if !s.confirm.Confirm(ctx, ActionEdit, msg.ID) {
		return ErrNotConfirmed
	}
	if err := s.api.Edit(ctx, msg.ID, clean); err != nil {
		return err
	}
	s.dropEditState(alias, msg.ID)
	s.refreshAfterWrite(ctx, alias)
	return nil
}

// Delete removes a message after confirmation.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	alias, msg, err := s.target(messageID)
	if err != nil {
		return err
	}
	if !s.confirm.Confirm(ctx, ActionDelete, msg.ID) {
		return ErrNotConfirmed
	}
	if err := s.api.Delete(ctx, msg.ID); err != nil {
		return err
	}
	s.dropEditState(alias, msg.ID)
	s.refreshAfterWrite(ctx, alias)
	return nil
}

// Clear removes the whole thread history after confirmation.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	alias := s.alias
	s.mu.Unlock()

	if !s.confirm.Confirm(ctx, ActionClear, "") {
		return ErrNotConfirmed
	}
	if err := s.api.Clear(ctx, alias); err != nil {
		return err
	}
	s.mu.Lock()
	if s.alias == alias {
		s.editingID = ""
	}
	s.mu.Unlock()
	s.refreshAfterWrite(ctx, alias)
	return nil
}

// Refresh fetches history and typing now.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	alias := s.alias
	s.mu.Unlock()
	return s.refresh(ctx, alias)
}

func (s *Session) refresh(ctx context.Context, alias string) error {
	history, err := s.api.History(ctx, alias)
	if err != nil {
		return err
	}
	roles, typingErr := s.api.Typing(ctx, alias)
	sortMessages(history)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.alias != alias {
		return nil
	}
	if !sameMessages(s.messages, history) {
		s.messages = history
		s.version++
	}
	if typingErr != nil {
		return fmt.Errorf("chat: typing status: %w", typingErr)
	}
	s.typing = otherRoles(roles, s.role)
	return nil
}

func (s *Session) refreshAfterWrite(ctx context.Context, alias string) {
	if err := s.refresh(ctx, alias); err != nil {
		s.logger.Warn("history fetch after write failed", zap.String("alias", alias), zap.Error(err))
	}
}

func (s *Session) startPolling() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poll != nil || s.state != StateOpen {
		return
	}
	alias := s.alias
	opts := []poller.Option{poller.WithLogger(s.logger), poller.WithName("chat")}
	if s.newTicker != nil {
		opts = append(opts, poller.WithTicker(s.newTicker))
	}
	p, err := poller.New(s.pollInterval, func(ctx context.Context) error {
		return s.refresh(ctx, alias)
	}, opts...)
	if err != nil {
		s.logger.Error("chat poller", zap.Error(err))
		return
	}
	s.poll = p
	p.Start(s.bg)
}

func (s *Session) stopPolling() {
	s.mu.Lock()
	p := s.poll
	s.poll = nil
	s.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// Polling reports whether the history poll loop is running.
func (s *Session) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poll != nil && s.poll.Running()
}

func (s *Session) resetTypingTimerLocked() {
	s.stopTypingTimerLocked()
	gen := s.typingGen
	s.typingTimer = s.afterFunc(s.typingTimeout, func() {
		s.expireTyping(gen)
	})
}

func (s *Session) stopTypingTimerLocked() {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.typingGen++
}

func (s *Session) expireTyping(gen uint64) {
	s.announce.Lock()
	defer s.announce.Unlock()

	s.mu.Lock()
	if gen != s.typingGen || !s.typingOn {
		s.mu.Unlock()
		return
	}
	s.typingOn = false
	s.typingTimer = nil
	alias := s.alias
	bg := s.bg
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(bg, s.typingTimeout)
	defer cancel()
	err := s.api.SetTyping(ctx, alias, s.role, false)

	s.mu.Lock()
	s.typingStale = err != nil
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("typing withdraw failed", zap.String("alias", alias), zap.Error(err))
	}
}

// clearTyping cancels the idle timer and withdraws typing if an announcement
// is outstanding.
func (s *Session) clearTyping(ctx context.Context, alias string) error {
	s.announce.Lock()
	defer s.announce.Unlock()

	s.mu.Lock()
	outstanding := s.typingOn || s.typingStale
	s.typingOn = false
	s.stopTypingTimerLocked()
	s.mu.Unlock()

	if !outstanding || alias == "" {
		return nil
	}
	err := s.api.SetTyping(ctx, alias, s.role, false)

	s.mu.Lock()
	s.typingStale = err != nil
	s.mu.Unlock()
	return err
}

func (s *Session) target(messageID string) (string, Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return "", Message{}, ErrClosed
	}
	msg, ok := s.findLocked(messageID)
	if !ok {
		return "", Message{}, ErrMessageNotFound
	}
	return s.alias, msg, nil
}

func (s *Session) dropEditState(alias, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alias == alias && s.editingID == messageID {
		s.editingID = ""
		s.draft = ""
	}
}

func (s *Session) findLocked(messageID string) (Message, bool) {
	messageID = strings.TrimSpace(messageID)
	for _, msg := range s.messages {
		if msg.ID == messageID {
			return msg, true
		}
	}
	return Message{}, false
}

func (s *Session) viewLocked() View {
	view := View{
		State:       s.state,
		Alias:       s.alias,
		Messages:    append([]Message{}, s.messages...),
		TypingRoles: append([]Role{}, s.typing...),
		Draft:       s.draft,
		EditingID:   s.editingID,
		Typing:      s.typingOn,
		Version:     s.version,
	}
	if s.state != StateClosed {
		order := s.order
		view.Order = &order
	}
	return view
}

func (s *Session) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

func otherRoles(roles []Role, local Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, role := range roles {
		if role == local || role == "" {
			continue
		}
		out = append(out, role)
	}
	return out
}
