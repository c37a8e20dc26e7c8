package notifications

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultInboxCapacity = 200

// Inbox keeps recent notifications in memory for the console feed and badge.
// It implements Service and Notifier.
type Inbox struct {
	capacity int
	clock    func() time.Time

	mu    sync.RWMutex
	items []Notification
}

// NewInbox constructs an inbox retaining at most capacity entries.
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = defaultInboxCapacity
	}
	return &Inbox{capacity: capacity, clock: time.Now}
}

// Notify records event as an open notification.
func (i *Inbox) Notify(_ context.Context, event Event) error {
	item := notificationFromEvent(event)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, item)
	if overflow := len(i.items) - i.capacity; overflow > 0 {
		i.items = append([]Notification(nil), i.items[overflow:]...)
	}
	return nil
}

// List returns notifications filtered by the query parameters, newest first.
func (i *Inbox) List(_ context.Context, query Query) (Feed, error) {
	items := filterNotifications(i.notifications(), query)
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].CreatedAt.After(items[b].CreatedAt)
	})

	counts := summariseCounts(items)

	total := len(items)
	limit := query.Limit
	if limit <= 0 || limit > total {
		limit = total
	}
	page := items[:limit]

	nextCursor := ""
	if limit < total {
		nextCursor = items[limit].ID
	}

	return Feed{
		Items:      page,
		Total:      total,
		NextCursor: nextCursor,
		Counts:     counts,
	}, nil
}

// Badge returns aggregate counts for the top-bar badge.
func (i *Inbox) Badge(_ context.Context) (BadgeCount, error) {
	result := BadgeCount{}
	for _, item := range i.notifications() {
		if item.Status != StatusOpen {
			continue
		}
		result.Total++
		if item.Severity == SeverityHigh {
			result.High++
		}
	}
	return result, nil
}

// Acknowledge marks the notification as seen.
func (i *Inbox) Acknowledge(_ context.Context, id string) (Notification, error) {
	id = strings.TrimSpace(id)

	i.mu.Lock()
	defer i.mu.Unlock()
	for idx := range i.items {
		if i.items[idx].ID != id {
			continue
		}
		if i.items[idx].Status != StatusAcknowledged {
			now := i.clock()
			i.items[idx].Status = StatusAcknowledged
			i.items[idx].AcknowledgedAt = &now
		}
		return i.items[idx], nil
	}
	return Notification{}, ErrNotificationNotFound
}

func (i *Inbox) notifications() []Notification {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]Notification(nil), i.items...)
}

func notificationFromEvent(event Event) Notification {
	severity := SeverityMedium
	if event.Delta > 1 {
		severity = SeverityHigh
	}
	label := event.DisplayID
	if label == "" {
		label = event.Alias
	}
	summary := fmt.Sprintf("%d new message", event.Delta)
	if event.Delta != 1 {
		summary += "s"
	}
	summary += fmt.Sprintf(" (%d unread)", event.Count)

	return Notification{
		ID:       event.ID,
		Category: CategoryChatMessage,
		Severity: severity,
		Status:   StatusOpen,
		Title:    "New message on " + label,
		Summary:  summary,
		Resource: ResourceRef{
			Kind:       "order",
			Identifier: label,
			Label:      event.ServiceName,
		},
		CreatedAt: event.OccurredAt,
	}
}

func filterNotifications(list []Notification, query Query) []Notification {
	statuses := toStatusSet(query.Statuses)
	search := strings.ToLower(strings.TrimSpace(query.Search))

	result := make([]Notification, 0, len(list))
	for _, item := range list {
		if len(statuses) > 0 && !statuses[item.Status] {
			continue
		}
		if query.Since != nil && item.CreatedAt.Before(*query.Since) {
			continue
		}
		if search != "" && !matchesSearch(search, item) {
			continue
		}
		result = append(result, item)
	}
	return result
}

func summariseCounts(list []Notification) CountSummary {
	var summary CountSummary
	summary.Total = len(list)
	for _, item := range list {
		switch item.Status {
		case StatusOpen:
			summary.Open++
			if item.Severity == SeverityHigh {
				summary.High++
			}
		case StatusAcknowledged:
			summary.Acknowledged++
		}
	}
	return summary
}

func toStatusSet(values []Status) map[Status]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[Status]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}

func matchesSearch(query string, item Notification) bool {
	for _, field := range []string{
		item.ID,
		item.Title,
		item.Summary,
		item.Resource.Label,
		item.Resource.Identifier,
	} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
