package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/shinefiling/filing-admin/internal/admin/identity"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
	"github.com/shinefiling/filing-admin/internal/admin/poller"
)

// DefaultPollInterval is the unread poll cadence.
const DefaultPollInterval = 15 * time.Second

// TrackerDeps enumerates collaborators required to construct a Tracker.
type TrackerDeps struct {
	Source      UnreadSource
	Orders      OrderResolver
	Threads     ThreadState
	Notifier    Notifier
	Role        string
	Interval    time.Duration
	Logger      *zap.Logger
	Clock       func() time.Time
	IDGenerator func() string
}

// Tracker polls unread counts per thread alias and raises an event when a
// thread's count grows. The snapshot is replaced wholesale on every successful
// poll. The first successful poll only primes the baseline.
type Tracker struct {
	source   UnreadSource
	orders   OrderResolver
	threads  ThreadState
	notifier Notifier
	role     string
	logger   *zap.Logger
	clock    func() time.Time
	newID    func() string
	poller   *poller.Poller

	mu       sync.RWMutex
	snapshot map[string]int
	primed   bool
	polledAt time.Time
}

// NewTracker wires dependencies into a Tracker.
func NewTracker(deps TrackerDeps) (*Tracker, error) {
	if deps.Source == nil {
		return nil, errors.New("unread tracker: source is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("unread tracker: order resolver is required")
	}

	interval := deps.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier(logger)
	}

	t := &Tracker{
		source:   deps.Source,
		orders:   deps.Orders,
		threads:  deps.Threads,
		notifier: notifier,
		role:     deps.Role,
		logger:   logger.Named("unread"),
		clock:    clock,
		newID:    idGen,
		snapshot: map[string]int{},
	}

	p, err := poller.New(interval, func(ctx context.Context) error {
		_, err := t.Poll(ctx)
		return err
	}, poller.WithImmediate(), poller.WithLogger(t.logger), poller.WithName("unread"))
	if err != nil {
		return nil, err
	}
	t.poller = p
	return t, nil
}

// Start launches the background poll loop.
func (t *Tracker) Start(ctx context.Context) {
	t.poller.Start(ctx)
}

// Stop halts the poll loop and waits for it to exit.
func (t *Tracker) Stop() {
	t.poller.Stop()
}

// Run polls until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	t.Start(ctx)
	<-ctx.Done()
	t.Stop()
	return nil
}

// Poll fetches the current counts, replaces the snapshot and notifies once per
// order whose thread received new messages, unless that thread is open.
func (t *Tracker) Poll(ctx context.Context) ([]Event, error) {
	counts, err := t.source.UnreadCounts(ctx, t.role)
	if err != nil {
		return nil, err
	}
	return t.apply(ctx, counts), nil
}

// Refresh reconciles the snapshot with the server after a thread was marked
// read. Increases on other threads are notified exactly as Poll does.
func (t *Tracker) Refresh(ctx context.Context) error {
	_, err := t.Poll(ctx)
	return err
}

func (t *Tracker) apply(ctx context.Context, counts map[string]int) []Event {
	t.mu.Lock()
	previous := t.snapshot
	primed := t.primed
	t.snapshot = copyCounts(counts)
	t.primed = true
	t.polledAt = t.clock()
	t.mu.Unlock()

	if !primed {
		return nil
	}

	aliases := make([]string, 0, len(counts))
	for alias, count := range counts {
		if count > previous[alias] {
			aliases = append(aliases, alias)
		}
	}
	sort.Strings(aliases)

	resolved := t.resolve(ctx, aliases)
	now := t.clock()
	seen := make(map[string]struct{})
	events := make([]Event, 0)
	for _, alias := range aliases {
		count := counts[alias]
		order, ok := resolved[alias]
		if !ok {
			t.logger.Debug("unread alias has no matching order", zap.String("alias", alias), zap.Int("count", count))
			continue
		}
		key := order.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if t.threads != nil && t.threads.IsOpen(order) {
			continue
		}
		events = append(events, Event{
			ID:          t.newID(),
			OrderKey:    key,
			DisplayID:   order.DisplayID,
			InternalID:  string(order.InternalID),
			ServiceName: order.ServiceName,
			Alias:       alias,
			Count:       count,
			Delta:       count - previous[alias],
			OccurredAt:  now,
		})
	}

	for _, event := range events {
		if err := t.notifier.Notify(ctx, event); err != nil {
			t.logger.Warn("notification delivery failed", zap.String("order", event.DisplayID), zap.Error(err))
		}
	}
	return events
}

// resolve maps aliases to held orders. When some alias is unknown and the
// resolver can reload, the order list is refetched once and the lookup retried.
func (t *Tracker) resolve(ctx context.Context, aliases []string) map[string]orders.Order {
	resolved := make(map[string]orders.Order, len(aliases))
	missing := false
	for _, alias := range aliases {
		if order, ok := t.orders.Get(alias); ok {
			resolved[alias] = order
		} else {
			missing = true
		}
	}
	reloader, ok := t.orders.(OrderReloader)
	if !missing || !ok {
		return resolved
	}
	if err := reloader.Load(ctx); err != nil {
		t.logger.Warn("order reload failed", zap.Error(err))
		return resolved
	}
	for _, alias := range aliases {
		if _, done := resolved[alias]; done {
			continue
		}
		if order, ok := t.orders.Get(alias); ok {
			resolved[alias] = order
		}
	}
	return resolved
}

// MarkThreadRead optimistically zeroes every snapshot entry keyed by an alias of order.
func (t *Tracker) MarkThreadRead(order orders.Order) {
	subject := order.Subject()
	t.mu.Lock()
	defer t.mu.Unlock()
	for alias := range t.snapshot {
		if identity.Matches(alias, subject) {
			t.snapshot[alias] = 0
		}
	}
}

// UnreadCount sums the counts of every alias that identifies order.
func (t *Tracker) UnreadCount(order orders.Order) int {
	subject := order.Subject()
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for alias, count := range t.snapshot {
		if count > 0 && identity.Matches(alias, subject) {
			total += count
		}
	}
	return total
}

// HasUnread reports whether any alias of order has unread messages.
func (t *Tracker) HasUnread(order orders.Order) bool {
	return t.UnreadCount(order) > 0
}

// Snapshot returns a copy of the latest counts.
func (t *Tracker) Snapshot() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyCounts(t.snapshot)
}

// PolledAt reports when the snapshot was last replaced.
func (t *Tracker) PolledAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.polledAt
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
