package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shinefiling/filing-admin/internal/admin/httpx"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
	"github.com/shinefiling/filing-admin/internal/admin/servicetype"
)

const defaultOrdersPageSize = 25

// OrdersList returns the filtered, newest-first order list with its summary.
// The list is refetched when refresh=true or when no load has succeeded yet.
func (h *Handlers) OrdersList(w http.ResponseWriter, r *http.Request) {
	if queryFlag(r, "refresh") || h.orders.LoadedAt().IsZero() {
		if err := h.orders.Load(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	result := h.orders.List(buildOrdersQuery(r))
	httpx.WriteJSON(r.Context(), w, http.StatusOK, listPayload{
		Orders: h.orderPayloads(result.Orders),
		Pagination: paginationPayload{
			Page:       result.Pagination.Page,
			PageSize:   result.Pagination.PageSize,
			TotalItems: result.Pagination.TotalItems,
			NextPage:   result.Pagination.NextPage,
			PrevPage:   result.Pagination.PrevPage,
		},
		Summary: newSummaryPayload(result.Summary),
	})
}

// OrdersAnalytics returns totals and distributions over every held order.
func (h *Handlers) OrdersAnalytics(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(r.Context(), w, http.StatusOK, newSummaryPayload(h.orders.Summary()))
}

// OrderDetail opens the order's detail panel and returns it.
func (h *Handlers) OrderDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.orders.Lookup(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := h.orders.OpenDetail(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, h.orderPayload(order))
}

// OrderStatusOptions returns the status choices of the order's family.
func (h *Handlers) OrderStatusOptions(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	modal := h.coordinator.Options(order)
	choices := make([]statusChoicePayload, 0, len(modal.Choices))
	for _, choice := range modal.Choices {
		choices = append(choices, statusChoicePayload{
			Value:          choice.Value,
			Label:          choice.Label,
			Disabled:       choice.Disabled,
			DisabledReason: choice.DisabledReason,
			Selected:       choice.Selected,
		})
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, statusModalPayload{
		Order:   h.orderPayload(modal.Order),
		Family:  modal.Family,
		Label:   modal.Label,
		Pending: modal.Pending,
		Choices: choices,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

// OrderStatusUpdate transitions the order to the requested status.
func (h *Handlers) OrderStatusUpdate(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = strings.TrimSpace(r.URL.Query().Get("status"))
	}
	if status == "" {
		writeError(w, r, httpx.NewError("status_required", "status is required", http.StatusBadRequest))
		return
	}

	result, err := h.coordinator.Transition(r.Context(), order, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, transitionPayload{
		Order:      h.orderPayload(result.Order),
		Family:     result.Family,
		Operation:  result.Operation,
		Identifier: result.Identifier,
		From:       result.FromStatus,
		To:         result.Order.Status,
		Message:    result.Message,
	})
}

// OrderDelete removes the order on the backend. It requires confirm=true.
func (h *Handlers) OrderDelete(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !confirmed(r) {
		writeError(w, r, httpx.NewError("confirmation_required", "repeat the request with confirm=true", http.StatusPreconditionFailed))
		return
	}
	if err := h.orders.Delete(r.Context(), order); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildOrdersQuery(r *http.Request) orders.Query {
	values := r.URL.Query()

	query := orders.Query{
		Status:   strings.TrimSpace(values.Get("status")),
		Family:   servicetype.Family(strings.ToLower(strings.TrimSpace(values.Get("family")))),
		Search:   strings.TrimSpace(firstValue(values.Get("q"), values.Get("search"))),
		Page:     parsePositiveIntDefault(values.Get("page"), 1),
		PageSize: parsePositiveIntDefault(values.Get("pageSize"), defaultOrdersPageSize),
	}
	if since := parseSince(values.Get("since")); !since.IsZero() {
		query.Since = &since
	}
	query.SortKey, query.SortDirection = parseSort(values.Get("sort"))
	return query
}

// parseSort reads "-created_at" style tokens; a leading minus sorts descending.
func parseSort(raw string) (string, orders.SortDirection) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "created_at", orders.SortDirectionDesc
	}
	direction := orders.SortDirectionAsc
	if strings.HasPrefix(raw, "-") {
		direction = orders.SortDirectionDesc
		raw = strings.TrimPrefix(raw, "-")
	}
	switch key := strings.ToLower(raw); key {
	case "created_at", "updated_at", "amount", "display_id":
		return key, direction
	default:
		return "created_at", orders.SortDirectionDesc
	}
}

func parseSince(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func firstValue(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
