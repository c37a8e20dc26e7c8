package orders

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"

	"github.com/shinefiling/filing-admin/internal/admin/identity"
	"github.com/shinefiling/filing-admin/internal/admin/servicetype"
)

// SortDirection describes the requested sort ordering.
type SortDirection string

const (
	// SortDirectionAsc sorts ascending.
	SortDirectionAsc SortDirection = "asc"
	// SortDirectionDesc sorts descending.
	SortDirectionDesc SortDirection = "desc"
)

// Query captures filters and pagination arguments for listing orders.
type Query struct {
	Status        string
	Family        servicetype.Family
	Search        string
	Since         *time.Time
	Page          int
	PageSize      int
	SortKey       string
	SortDirection SortDirection
}

// ListResult represents a paginated orders response.
type ListResult struct {
	Orders     []Order
	Pagination Pagination
	Summary    Summary
}

// Pagination captures pagination metadata.
type Pagination struct {
	Page       int
	PageSize   int
	TotalItems int
	NextPage   *int
	PrevPage   *int
}

// Store holds the in-memory order list and the currently open detail panel.
// Status is only written through the coordinator.
type Store struct {
	source   Source
	registry *servicetype.Registry
	clock    func() time.Time
	loads    singleflight.Group

	mu       sync.RWMutex
	orders   []Order
	index    *identity.Index[int]
	detail   string
	loadedAt time.Time
}

// NewStore constructs a store backed by source. A nil registry uses the default table.
func NewStore(source Source, registry *servicetype.Registry) *Store {
	if source == nil {
		panic("orders: source is required")
	}
	if registry == nil {
		registry = servicetype.Default()
	}
	s := &Store{
		source:   source,
		registry: registry,
		clock:    time.Now,
	}
	s.reindexLocked()
	return s
}

// Registry returns the service type registry the store classifies orders with.
func (s *Store) Registry() *servicetype.Registry {
	return s.registry
}

// Load replaces the order list with the backend's current view. Concurrent
// calls share one backend fetch.
func (s *Store) Load(ctx context.Context) error {
	_, err, _ := s.loads.Do("orders", func() (any, error) {
		return nil, s.load(ctx)
	})
	return err
}

func (s *Store) load(ctx context.Context) error {
	list, err := s.source.ListOrders(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make([]Order, 0, len(list))
	for _, order := range list {
		if strings.TrimSpace(order.Currency) == "" {
			order.Currency = defaultCurrency
		}
		s.orders = append(s.orders, order)
	}
	s.loadedAt = s.clock()
	s.reindexLocked()
	if s.detail != "" {
		if _, ok := s.positionLocked(s.detail); !ok {
			s.detail = ""
		}
	}
	return nil
}

// LoadedAt reports when the list was last replaced.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Orders returns a copy of every held order in backend order.
func (s *Store) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Order(nil), s.orders...)
}

// Get resolves any alias of an order to the held order.
func (s *Store) Get(alias string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index.Resolve(alias)
	if !ok {
		return Order{}, false
	}
	return s.orders[pos], true
}

// Lookup resolves alias like Get. On a miss the list is reloaded once, so
// orders filed after the last load are found.
func (s *Store) Lookup(ctx context.Context, alias string) (Order, error) {
	if order, ok := s.Get(alias); ok {
		return order, nil
	}
	if strings.TrimSpace(alias) == "" {
		return Order{}, ErrOrderNotFound
	}
	if err := s.Load(ctx); err != nil {
		return Order{}, err
	}
	if order, ok := s.Get(alias); ok {
		return order, nil
	}
	return Order{}, ErrOrderNotFound
}

// Family resolves the service family of order.
func (s *Store) Family(order Order) servicetype.Family {
	return s.registry.Resolve(order.Ref()).Family
}

// List filters, sorts and paginates the held orders.
func (s *Store) List(query Query) ListResult {
	s.mu.RLock()
	filtered := s.filterLocked(query)
	s.mu.RUnlock()

	sortOrders(filtered, query)

	total := len(filtered)
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	pagination := Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
	}
	if end < total {
		next := page + 1
		pagination.NextPage = &next
	}
	if page > 1 {
		prev := page - 1
		pagination.PrevPage = &prev
	}

	return ListResult{
		Orders:     append([]Order(nil), filtered[start:end]...),
		Pagination: pagination,
		Summary:    Summarize(filtered, s.registry, s.clock()),
	}
}

// Summary aggregates analytics over every held order.
func (s *Store) Summary() Summary {
	return Summarize(s.Orders(), s.registry, s.clock())
}

// Delete removes order on the backend and then drops it from the list and the
// open detail panel.
func (s *Store) Delete(ctx context.Context, order Order) error {
	id := strings.TrimSpace(string(order.InternalID))
	if id == "" {
		id = order.Label()
	}
	if id == "" {
		return ErrOrderNotFound
	}
	if err := s.source.DeleteOrder(ctx, id); err != nil {
		return err
	}

	key := order.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.orders[:0]
	for _, existing := range s.orders {
		if existing.Key() == key {
			continue
		}
		kept = append(kept, existing)
	}
	s.orders = kept
	if s.detail == key {
		s.detail = ""
	}
	s.reindexLocked()
	return nil
}

// OpenDetail marks the order identified by alias as the open detail panel.
func (s *Store) OpenDetail(alias string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index.Resolve(alias)
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	order := s.orders[pos]
	s.detail = order.Key()
	return order, nil
}

// Detail returns the open detail panel's order.
func (s *Store) Detail() (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detail == "" {
		return Order{}, false
	}
	pos, ok := s.positionLocked(s.detail)
	if !ok {
		return Order{}, false
	}
	return s.orders[pos], true
}

// CloseDetail clears the open detail panel.
func (s *Store) CloseDetail() {
	s.mu.Lock()
	s.detail = ""
	s.mu.Unlock()
}

// applyStatus merges a confirmed status into the list entry. The detail panel
// reads through the list, so it observes the same value.
func (s *Store) applyStatus(order Order, status string, at time.Time) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positionLocked(order.Key())
	if !ok {
		return Order{}, false
	}
	s.orders[pos].Status = status
	s.orders[pos].UpdatedAt = at
	return s.orders[pos], true
}

func (s *Store) positionLocked(key string) (int, bool) {
	for i, order := range s.orders {
		if order.Key() == key {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) reindexLocked() {
	positions := make([]int, len(s.orders))
	for i := range positions {
		positions[i] = i
	}
	s.index = identity.NewIndex(positions, func(i int) identity.Subject {
		return s.orders[i].Subject()
	})
}

func (s *Store) filterLocked(query Query) []Order {
	results := make([]Order, 0, len(s.orders))

	status := strings.TrimSpace(query.Status)
	search := cases.Fold().String(strings.TrimSpace(query.Search))

	for _, order := range s.orders {
		if status != "" && !strings.EqualFold(strings.TrimSpace(order.Status), status) {
			continue
		}
		if query.Family != "" && s.registry.Resolve(order.Ref()).Family != query.Family {
			continue
		}
		if query.Since != nil && order.UpdatedAt.Before(*query.Since) {
			continue
		}
		if search != "" && !matchesSearch(order, search) {
			continue
		}
		results = append(results, order)
	}
	return results
}

func matchesSearch(order Order, folded string) bool {
	fold := cases.Fold()
	for _, field := range []string{
		order.DisplayID,
		string(order.InternalID),
		order.SubmissionID,
		order.ClientName,
		order.ClientEmail,
		order.ServiceName,
	} {
		if field == "" {
			continue
		}
		if strings.Contains(fold.String(field), folded) {
			return true
		}
	}
	return false
}

func sortOrders(orders []Order, query Query) {
	sortKey := strings.ToLower(strings.TrimSpace(query.SortKey))
	desc := !strings.EqualFold(string(query.SortDirection), string(SortDirectionAsc))

	if sortKey == "" {
		sortKey = "created_at"
	}

	less := func(a, b Order) bool {
		switch sortKey {
		case "amount":
			if a.AmountMinor == b.AmountMinor {
				return a.DisplayID < b.DisplayID
			}
			return a.AmountMinor < b.AmountMinor
		case "display_id":
			return a.DisplayID < b.DisplayID
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		default: // created_at
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.SliceStable(orders, func(i, j int) bool {
		if desc {
			return less(orders[j], orders[i])
		}
		return less(orders[i], orders[j])
	})
}
