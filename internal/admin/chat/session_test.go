package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinefiling/filing-admin/internal/admin/orders"
	"github.com/shinefiling/filing-admin/internal/admin/poller"
)

type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	history  map[string][]Message
	typing   []Role
	sendErr  error
	typeErr  error
	fetches  int
	outgoing []Outgoing
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{history: map[string][]Message{}}
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeAPI) History(_ context.Context, alias string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return append([]Message(nil), f.history[alias]...), nil
}

func (f *fakeAPI) Send(_ context.Context, alias string, msg Outgoing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("send:" + alias + ":" + msg.Text)
	if f.sendErr != nil {
		return f.sendErr
	}
	f.outgoing = append(f.outgoing, msg)
	return nil
}

func (f *fakeAPI) Edit(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("edit:" + id + ":" + text)
	return nil
}

func (f *fakeAPI) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete:" + id)
	return nil
}

func (f *fakeAPI) Clear(_ context.Context, alias string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clear:" + alias)
	return nil
}

func (f *fakeAPI) MarkRead(_ context.Context, alias string, role Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("read:" + alias + ":" + string(role))
	return nil
}

func (f *fakeAPI) SetTyping(_ context.Context, alias string, _ Role, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("typing:%s:%t", alias, typing))
	return f.typeErr
}

func (f *fakeAPI) Typing(context.Context, string) ([]Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Role(nil), f.typing...), nil
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeUnread struct {
	mu        sync.Mutex
	marked    []string
	refreshes int
}

func (u *fakeUnread) MarkThreadRead(order orders.Order) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.marked = append(u.marked, order.DisplayID)
}

func (u *fakeUnread) Refresh(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.refreshes++
	return nil
}

type fakeTimer struct {
	mu      sync.Mutex
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.stopped = true
	t.mu.Unlock()
	if !stopped {
		t.fn()
	}
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeTimers) AfterFunc(_ time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *fakeTimers) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[len(c.timers)-1]
}

func (c *fakeTimers) all() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTimer(nil), c.timers...)
}

type idleTicker struct{ ch chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.ch }
func (t idleTicker) Stop()               {}

var threadOrder = orders.Order{
	DisplayID:    "ORD-88",
	InternalID:   "88",
	SubmissionID: "SUB-88",
	ServiceName:  "Private Limited Company Registration",
}

var otherOrder = orders.Order{DisplayID: "ORD-42", InternalID: "42", ServiceName: "LLP Registration"}

type harness struct {
	api     *fakeAPI
	unread  *fakeUnread
	timers  *fakeTimers
	session *Session
}

func newHarness(t *testing.T) harness {
	t.Helper()
	api := newFakeAPI()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	api.history["SUB-88"] = []Message{
		{ID: "m2", Message: "Thanks", SenderRole: RoleAdmin, SenderName: "Asha", Timestamp: base.Add(time.Minute)},
		{ID: "m1", Message: "Any update?", SenderRole: RoleClient, SenderName: "Client", Timestamp: base},
	}
	api.typing = []Role{RoleClient, RoleAdmin}
	unread := &fakeUnread{}
	timers := &fakeTimers{}
	session, err := NewSession(api, unread, Options{
		Role:       RoleAdmin,
		SenderName: "Asha",
		AfterFunc:  timers.AfterFunc,
		Ticker: func(time.Duration) poller.Ticker {
			return idleTicker{ch: make(chan time.Time)}
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close(context.Background()) })
	return harness{api: api, unread: unread, timers: timers, session: session}
}

func TestOpenMarksReadAndLoadsHistory(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	view, err := h.session.Open(context.Background(), threadOrder)
	require.NoError(t, err)

	require.Equal(t, StateOpen, view.State)
	require.Equal(t, "SUB-88", view.Alias)
	require.Len(t, view.Messages, 2)
	require.Equal(t, "m1", view.Messages[0].ID, "history is chronological")
	require.Equal(t, []Role{RoleClient}, view.TypingRoles, "local role is excluded")
	require.Equal(t, []string{"ORD-88"}, h.unread.marked)
	require.Equal(t, 1, h.unread.refreshes)
	require.Equal(t, []string{"read:SUB-88:ADMIN"}, h.api.Calls())
	require.True(t, h.session.Polling())
	require.True(t, h.session.IsOpen(threadOrder))
	require.False(t, h.session.IsOpen(otherOrder))

	require.NoError(t, h.session.Close(context.Background()))
	require.False(t, h.session.Polling())
	closed := h.session.View()
	require.Equal(t, StateClosed, closed.State)
	require.Nil(t, closed.Order)
	require.Empty(t, closed.Messages)
}

func TestOpenRejectsOrderWithoutAlias(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.session.Open(context.Background(), orders.Order{})
	require.ErrorIs(t, err, ErrNoThreadAlias)
}

func TestOpeningAnotherOrderClosesCurrentThread(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)
	require.NoError(t, h.session.Type(ctx, "draft"))

	view, err := h.session.Open(ctx, otherOrder)
	require.NoError(t, err)
	require.Equal(t, "ORD-42", view.Alias)
	require.Empty(t, view.Draft)
	require.Equal(t, 1, h.api.count("typing:SUB-88:false"))
	require.False(t, h.session.IsOpen(threadOrder))
	require.True(t, h.session.IsOpen(otherOrder))
}

func TestTypingAnnouncedOncePerBurst(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)

	for _, text := range []string{"H", "He", "Hel"} {
		require.NoError(t, h.session.Type(ctx, text))
	}
	require.Equal(t, 1, h.api.count("typing:SUB-88:true"))
	require.Equal(t, "Hel", h.session.View().Draft)
	require.True(t, h.session.View().Typing)

	timers := h.timers.all()
	require.Len(t, timers, 3)
	timers[0].fire()
	require.Zero(t, h.api.count("typing:SUB-88:false"), "superseded timer does nothing")

	timers[2].fire()
	require.Equal(t, 1, h.api.count("typing:SUB-88:false"))
	require.False(t, h.session.View().Typing)

	require.NoError(t, h.session.Close(ctx))
	require.Equal(t, 1, h.api.count("typing:SUB-88:false"), "close does not repeat a delivered withdrawal")

	require.ErrorIs(t, h.session.Type(ctx, "x"), ErrClosed)
}

func TestNewBurstAnnouncesAgainAfterExpiry(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)

	require.NoError(t, h.session.Type(ctx, "a"))
	h.timers.last().fire()
	require.NoError(t, h.session.Type(ctx, "ab"))
	require.Equal(t, []string{
		"read:SUB-88:ADMIN",
		"typing:SUB-88:true",
		"typing:SUB-88:false",
		"typing:SUB-88:true",
	}, h.api.Calls())
}

func TestCloseWithdrawsOutstandingTyping(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)

	require.NoError(t, h.session.Type(ctx, "hello"))
	require.NoError(t, h.session.Close(ctx))
	require.Equal(t, 1, h.api.count("typing:SUB-88:false"))

	h.timers.last().fire()
	require.Equal(t, 1, h.api.count("typing:SUB-88:false"), "timer stopped by close")
}

func TestFailedWithdrawalIsRetriedOnClose(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)
	require.NoError(t, h.session.Type(ctx, "hello"))

	h.api.mu.Lock()
	h.api.typeErr = errors.New("offline")
	h.api.mu.Unlock()
	h.timers.last().fire()

	h.api.mu.Lock()
	h.api.typeErr = nil
	h.api.mu.Unlock()
	require.NoError(t, h.session.Close(ctx))
	require.Equal(t, 2, h.api.count("typing:SUB-88:false"))
}

func TestSendWithdrawsTypingAndRefetches(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)
	fetches := h.api.Fetches()

	require.NoError(t, h.session.Type(ctx, "  <b>Tom &amp; Jerry</b> "))
	require.NoError(t, h.session.Send(ctx, ""))

	require.Equal(t, []string{
		"read:SUB-88:ADMIN",
		"typing:SUB-88:true",
		"typing:SUB-88:false",
		"send:SUB-88:Tom & Jerry",
	}, h.api.Calls())
	require.Equal(t, "Asha", h.api.outgoing[0].SenderName)
	require.Equal(t, RoleAdmin, h.api.outgoing[0].Role)
	require.Equal(t, fetches+1, h.api.Fetches())
	require.Empty(t, h.session.View().Draft)

	h.timers.last().fire()
	require.Equal(t, 1, h.api.count("typing:SUB-88:false"))
}

func TestSendRejectsBlankText(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.ErrorIs(t, h.session.Send(ctx, "hi"), ErrClosed)

	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)
	require.ErrorIs(t, h.session.Send(ctx, "   "), ErrEmptyMessage)
	require.ErrorIs(t, h.session.Send(ctx, "<script>alert(1)</script>"), ErrEmptyMessage)
}

func TestSendFailureKeepsDraft(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)

	h.api.mu.Lock()
	h.api.sendErr = errors.New("backend down")
	h.api.mu.Unlock()

	require.NoError(t, h.session.Type(ctx, "pending note"))
	require.Error(t, h.session.Send(ctx, ""))
	require.Equal(t, "pending note", h.session.View().Draft)
}

func TestEditRequiresConfirmationAndOwnMessage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)

	require.ErrorIs(t, h.session.Edit(ctx, "m2", "Thanks!"), ErrNotConfirmed)
	require.ErrorIs(t, h.session.Edit(WithConfirmation(ctx), "m1", "rewrite"), ErrNotEditable)
	require.ErrorIs(t, h.session.Edit(WithConfirmation(ctx), "missing", "x"), ErrMessageNotFound)
	require.Zero(t, h.api.count("edit:m2:Thanks!"))

	fetches := h.api.Fetches()
	require.NoError(t, h.session.Edit(WithConfirmation(ctx), "m2", "<i>Thanks!</i>"))
	require.Equal(t, 1, h.api.count("edit:m2:Thanks!"))
	require.Equal(t, fetches+1, h.api.Fetches())
}

func TestBeginEditRoutesSendToEdit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)

	require.ErrorIs(t, h.session.BeginEdit("m1"), ErrNotEditable)
	require.NoError(t, h.session.BeginEdit("m2"))
	view := h.session.View()
	require.Equal(t, "m2", view.EditingID)
	require.Equal(t, "Thanks", view.Draft)

	require.ErrorIs(t, h.session.Send(ctx, "Thanks again"), ErrNotConfirmed)
	require.NoError(t, h.session.Send(WithConfirmation(ctx), "Thanks again"))
	require.Equal(t, 1, h.api.count("edit:m2:Thanks again"))
	require.Empty(t, h.api.outgoing)
	require.Empty(t, h.session.View().EditingID)

	require.NoError(t, h.session.BeginEdit("m2"))
	h.session.CancelEdit()
	require.Empty(t, h.session.View().Draft)
}

func TestDeleteAndClearRequireConfirmation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)

	require.ErrorIs(t, h.session.Delete(ctx, "m1"), ErrNotConfirmed)
	require.ErrorIs(t, h.session.Clear(ctx), ErrNotConfirmed)
	require.Zero(t, h.api.count("delete:m1"))
	require.Zero(t, h.api.count("clear:SUB-88"))

	require.NoError(t, h.session.Delete(WithConfirmation(ctx), "m1"))
	require.NoError(t, h.session.Clear(WithConfirmation(ctx)))
	require.Equal(t, 1, h.api.count("delete:m1"))
	require.Equal(t, 1, h.api.count("clear:SUB-88"))

	custom, err := NewSession(h.api, nil, Options{
		Confirmer: ConfirmerFunc(func(context.Context, Action, string) bool { return true }),
		Ticker: func(time.Duration) poller.Ticker {
			return idleTicker{ch: make(chan time.Time)}
		},
	})
	require.NoError(t, err)
	_, err = custom.Open(ctx, threadOrder)
	require.NoError(t, err)
	require.NoError(t, custom.Clear(ctx))
	require.NoError(t, custom.Close(ctx))
}

func TestMinimizeStopsPollingAndRestoreResumes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)

	require.NoError(t, h.session.Minimize())
	require.False(t, h.session.Polling())
	require.Equal(t, StateMinimized, h.session.View().State)
	require.False(t, h.session.IsOpen(threadOrder), "minimized threads still notify")

	fetches := h.api.Fetches()
	view, err := h.session.Open(ctx, threadOrder)
	require.NoError(t, err)
	require.Equal(t, StateOpen, view.State)
	require.True(t, h.session.Polling())
	require.Equal(t, fetches+1, h.api.Fetches())
	require.Equal(t, 1, h.api.count("read:SUB-88:ADMIN"), "restoring does not re-open the thread")

	require.NoError(t, h.session.Close(ctx))
	require.ErrorIs(t, h.session.Minimize(), ErrClosed)
	_, err = h.session.Restore(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestPollRefreshesHistory(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.history["ORD-42"] = []Message{{ID: "a", Message: "hi", SenderRole: RoleClient, Timestamp: time.Now()}}
	ticker := idleTicker{ch: make(chan time.Time)}
	session, err := NewSession(api, nil, Options{
		Ticker: func(time.Duration) poller.Ticker { return ticker },
	})
	require.NoError(t, err)
	ctx := context.Background()
	view, err := session.Open(ctx, otherOrder)
	require.NoError(t, err)
	require.Len(t, view.Messages, 1)
	version := view.Version

	api.mu.Lock()
	api.history["ORD-42"] = append(api.history["ORD-42"], Message{ID: "b", Message: "there", SenderRole: RoleClient, Timestamp: time.Now().Add(time.Second)})
	api.mu.Unlock()

	ticker.ch <- time.Now()
	require.Eventually(t, func() bool {
		return len(session.View().Messages) == 2
	}, time.Second, 5*time.Millisecond)
	require.Greater(t, session.View().Version, version)
	require.NoError(t, session.Close(ctx))
}

func TestManagerTracksOpenThreadsPerUser(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	manager, err := NewManager(api, nil, Options{
		Ticker: func(time.Duration) poller.Ticker { return idleTicker{ch: make(chan time.Time)} },
	})
	require.NoError(t, err)
	manager.SetUnread(&fakeUnread{})

	_, err = manager.Session("", "")
	require.ErrorIs(t, err, ErrUnknownUser)

	first, err := manager.Session("staff-1", "Asha")
	require.NoError(t, err)
	again, err := manager.Session("staff-1", "Asha")
	require.NoError(t, err)
	require.Same(t, first, again)
	second, err := manager.Session("staff-2", "Ravi")
	require.NoError(t, err)
	require.NotSame(t, first, second)

	sub, err := manager.SessionAs("staff-3", "Kavya", RoleSubAdmin)
	require.NoError(t, err)
	require.Equal(t, RoleSubAdmin, sub.Role())
	require.Equal(t, RoleAdmin, first.Role())

	ctx := context.Background()
	_, err = first.Open(ctx, threadOrder)
	require.NoError(t, err)
	require.True(t, manager.IsOpen(threadOrder))
	require.False(t, manager.IsOpen(otherOrder))

	found, ok := manager.Lookup("staff-1")
	require.True(t, ok)
	require.Same(t, first, found)

	require.NoError(t, manager.CloseAll(ctx))
	require.False(t, manager.IsOpen(threadOrder))
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	require.Equal(t, RoleSubAdmin, ParseRole(" sub_admin "))
	require.Equal(t, RoleClient, ParseRole("client"))
	require.Equal(t, RoleAdmin, ParseRole(""))
}
