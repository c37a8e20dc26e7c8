package handlers

import (
	"time"

	"github.com/shinefiling/filing-admin/internal/admin/identity"
	"github.com/shinefiling/filing-admin/internal/admin/notifications"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
	"github.com/shinefiling/filing-admin/internal/admin/servicetype"
)

type orderPayload struct {
	orders.Order
	Family        servicetype.Family `json:"family"`
	ThreadAlias   string             `json:"threadAlias,omitempty"`
	Unread        int                `json:"unread"`
	StatusPending bool               `json:"statusPending"`
}

type paginationPayload struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalItems int  `json:"totalItems"`
	NextPage   *int `json:"nextPage,omitempty"`
	PrevPage   *int `json:"prevPage,omitempty"`
}

type statusCountPayload struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type familyCountPayload struct {
	Family       servicetype.Family `json:"family"`
	Label        string             `json:"label"`
	Count        int                `json:"count"`
	RevenueMinor int64              `json:"revenueMinor"`
}

type summaryPayload struct {
	TotalOrders        int                  `json:"totalOrders"`
	TotalRevenueMinor  int64                `json:"totalRevenueMinor"`
	FormattedRevenue   string               `json:"formattedRevenue"`
	Currency           string               `json:"currency"`
	CompletedCount     int                  `json:"completedCount"`
	PendingCount       int                  `json:"pendingCount"`
	RejectedCount      int                  `json:"rejectedCount"`
	CompletionRate     float64              `json:"completionRate"`
	StatusDistribution []statusCountPayload `json:"statusDistribution"`
	FamilyDistribution []familyCountPayload `json:"familyDistribution"`
	LastRefreshedAt    time.Time            `json:"lastRefreshedAt"`
}

type listPayload struct {
	Orders     []orderPayload    `json:"orders"`
	Pagination paginationPayload `json:"pagination"`
	Summary    summaryPayload    `json:"summary"`
}

type statusChoicePayload struct {
	Value          string `json:"value"`
	Label          string `json:"label"`
	Disabled       bool   `json:"disabled"`
	DisabledReason string `json:"disabledReason,omitempty"`
	Selected       bool   `json:"selected"`
}

type statusModalPayload struct {
	Order   orderPayload          `json:"order"`
	Family  servicetype.Family    `json:"family"`
	Label   string                `json:"label"`
	Pending bool                  `json:"pending"`
	Choices []statusChoicePayload `json:"choices"`
}

type transitionPayload struct {
	Order      orderPayload       `json:"order"`
	Family     servicetype.Family `json:"family"`
	Operation  string             `json:"operation"`
	Identifier string             `json:"identifier"`
	From       string             `json:"from"`
	To         string             `json:"to"`
	Message    string             `json:"message"`
}

type notificationPayload struct {
	ID             string                 `json:"id"`
	Category       notifications.Category `json:"category"`
	Severity       notifications.Severity `json:"severity"`
	Status         notifications.Status   `json:"status"`
	Title          string                 `json:"title"`
	Summary        string                 `json:"summary"`
	OrderID        string                 `json:"orderId"`
	OrderLabel     string                 `json:"orderLabel"`
	CreatedAt      time.Time              `json:"createdAt"`
	AcknowledgedAt *time.Time             `json:"acknowledgedAt,omitempty"`
}

type feedPayload struct {
	Items      []notificationPayload `json:"items"`
	Total      int                   `json:"total"`
	NextCursor string                `json:"nextCursor,omitempty"`
	Counts     countsPayload         `json:"counts"`
}

type countsPayload struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	Acknowledged int `json:"acknowledged"`
	High         int `json:"high"`
}

type badgePayload struct {
	Total      int                      `json:"total"`
	High       int                      `json:"high"`
	Permission notifications.Permission `json:"desktopPermission"`
}

func (h *Handlers) orderPayload(order orders.Order) orderPayload {
	payload := orderPayload{
		Order:         order,
		Family:        h.orders.Family(order),
		ThreadAlias:   identity.ThreadAlias(order.Subject()),
		StatusPending: h.coordinator.Pending(order),
	}
	if h.unread != nil {
		payload.Unread = h.unread.UnreadCount(order)
	}
	return payload
}

func (h *Handlers) orderPayloads(list []orders.Order) []orderPayload {
	out := make([]orderPayload, 0, len(list))
	for _, order := range list {
		out = append(out, h.orderPayload(order))
	}
	return out
}

func newSummaryPayload(summary orders.Summary) summaryPayload {
	statuses := make([]statusCountPayload, 0, len(summary.StatusDistribution))
	for _, item := range summary.StatusDistribution {
		statuses = append(statuses, statusCountPayload{Status: item.Status, Count: item.Count})
	}
	families := make([]familyCountPayload, 0, len(summary.FamilyDistribution))
	for _, item := range summary.FamilyDistribution {
		families = append(families, familyCountPayload{
			Family:       item.Family,
			Label:        item.Label,
			Count:        item.Count,
			RevenueMinor: item.RevenueMinor,
		})
	}
	return summaryPayload{
		TotalOrders:        summary.TotalOrders,
		TotalRevenueMinor:  summary.TotalRevenueMinor,
		FormattedRevenue:   summary.FormattedRevenue,
		Currency:           summary.PrimaryCurrency,
		CompletedCount:     summary.CompletedCount,
		PendingCount:       summary.PendingCount,
		RejectedCount:      summary.RejectedCount,
		CompletionRate:     summary.CompletionRate,
		StatusDistribution: statuses,
		FamilyDistribution: families,
		LastRefreshedAt:    summary.LastRefreshedAt,
	}
}

func newNotificationPayload(item notifications.Notification) notificationPayload {
	return notificationPayload{
		ID:             item.ID,
		Category:       item.Category,
		Severity:       item.Severity,
		Status:         item.Status,
		Title:          item.Title,
		Summary:        item.Summary,
		OrderID:        item.Resource.Identifier,
		OrderLabel:     item.Resource.Label,
		CreatedAt:      item.CreatedAt,
		AcknowledgedAt: item.AcknowledgedAt,
	}
}
