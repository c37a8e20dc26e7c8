package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shinefiling/filing-admin/internal/admin/httpx"
	"github.com/shinefiling/filing-admin/internal/admin/notifications"
)

const defaultNotificationsLimit = 50

// NotificationsList returns the recent unread-message notifications.
func (h *Handlers) NotificationsList(w http.ResponseWriter, r *http.Request) {
	feed, err := h.notifications.List(r.Context(), buildNotificationsQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]notificationPayload, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, newNotificationPayload(item))
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, feedPayload{
		Items:      items,
		Total:      feed.Total,
		NextCursor: feed.NextCursor,
		Counts: countsPayload{
			Total:        feed.Counts.Total,
			Open:         feed.Counts.Open,
			Acknowledged: feed.Counts.Acknowledged,
			High:         feed.Counts.High,
		},
	})
}

// NotificationsBadge returns the top-bar badge counts.
func (h *Handlers) NotificationsBadge(w http.ResponseWriter, r *http.Request) {
	badge, err := h.notifications.Badge(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, badgePayload{
		Total:      badge.Total,
		High:       badge.High,
		Permission: h.desktop.Permission(),
	})
}

// NotificationAcknowledge marks a feed entry as seen.
func (h *Handlers) NotificationAcknowledge(w http.ResponseWriter, r *http.Request) {
	if h.acknowledger == nil {
		writeError(w, r, notifications.ErrNotConfigured)
		return
	}
	item, err := h.acknowledger.Acknowledge(r.Context(), chi.URLParam(r, "notificationID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, newNotificationPayload(item))
}

type permissionRequest struct {
	Permission string `json:"permission"`
}

// DesktopPermission records the browser's notification permission.
func (h *Handlers) DesktopPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.desktop.SetPermission(notifications.ParsePermission(strings.ToLower(strings.TrimSpace(req.Permission))))
	httpx.WriteJSON(r.Context(), w, http.StatusOK, map[string]notifications.Permission{
		"permission": h.desktop.Permission(),
	})
}

// DesktopDrain hands queued desktop notifications to the browser.
func (h *Handlers) DesktopDrain(w http.ResponseWriter, r *http.Request) {
	messages := h.desktop.Drain()
	if messages == nil {
		messages = []notifications.DesktopMessage{}
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, map[string]any{"messages": messages})
}

func buildNotificationsQuery(r *http.Request) notifications.Query {
	values := r.URL.Query()
	query := notifications.Query{
		Search: strings.TrimSpace(values.Get("q")),
		Limit:  parsePositiveIntDefault(values.Get("limit"), defaultNotificationsLimit),
	}
	for _, raw := range values["status"] {
		for _, part := range strings.Split(raw, ",") {
			switch status := notifications.Status(strings.ToLower(strings.TrimSpace(part))); status {
			case notifications.StatusOpen, notifications.StatusAcknowledged:
				query.Statuses = append(query.Statuses, status)
			}
		}
	}
	if since := parseSince(values.Get("since")); !since.IsZero() {
		ts := since.In(time.UTC)
		query.Since = &ts
	}
	return query
}
