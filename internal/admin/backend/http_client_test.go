package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shinefiling/filing-admin/internal/admin/backend"
	"github.com/shinefiling/filing-admin/internal/admin/chat"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

type fakeServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeServer) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*backend.HTTPClient, *fakeServer) {
	t.Helper()
	fake := &fakeServer{handler: handler}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
		}
		if r.Body != nil {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				rec.Body = body
			}
		}
		fake.mu.Lock()
		fake.requests = append(fake.requests, rec)
		fake.mu.Unlock()
		if fake.handler != nil {
			fake.handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ts.Close)

	client, err := backend.NewHTTPClient(ts.URL+"/api", backend.WithDoer(ts.Client()), backend.WithToken("svc-token"))
	require.NoError(t, err)
	return client, fake
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := backend.NewHTTPClient("  ")
	require.Error(t, err)
}

func TestUpdateStatusPostsToFamilyOperation(t *testing.T) {
	t.Parallel()

	client, fake := newClient(t, nil)
	err := client.UpdateStatus(context.Background(), "gst-annual", "9", "Filed")
	require.NoError(t, err)

	req := fake.last()
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "/api/gst-annual/9/status", req.Path)
	require.Equal(t, "Bearer svc-token", req.Auth)
	require.Equal(t, "Filed", req.Body["status"])
}

func TestUpdateStatusSurfacesServerReason(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"message":"Invalid status for GST annual return"}`)
	})
	err := client.UpdateStatus(context.Background(), "gst-annual", "9", "Filed")

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.Equal(t, "Invalid status for GST annual return", apiErr.Reason())
}

func TestAPIErrorFallsBackToStatusText(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err := client.Clear(context.Background(), "ORD-42")

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Bad Gateway", apiErr.Reason())
}

func TestListOrdersAcceptsNumericInternalIDs(t *testing.T) {
	t.Parallel()

	client, fake := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"orders":[
			{"displayId":"ORD-88","internalId":88,"submissionId":"SUB-88","serviceName":"Private Limited Company Registration","status":"Name Reserved"},
			{"displayId":"TL-17","internalId":"1017","serviceName":"Trade License","status":"Application Filed"}
		]}`)
	})

	list, err := client.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, orders.InternalID("88"), list[0].InternalID)
	require.Equal(t, orders.InternalID("1017"), list[1].InternalID)
	require.Equal(t, "/api/orders", fake.last().Path)
}

func TestDeleteOrderMapsNotFound(t *testing.T) {
	t.Parallel()

	client, fake := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":"no such order"}`)
	})
	err := client.DeleteOrder(context.Background(), "404")
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
	require.Equal(t, http.MethodDelete, fake.last().Method)
	require.Equal(t, "/api/orders/404", fake.last().Path)
}

func TestChatEndpoints(t *testing.T) {
	t.Parallel()

	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/chat/SUB-88/messages":
			writeJSON(w, http.StatusOK, `[{"id":"m1","message":"Hello","senderRole":"CLIENT","senderName":"Arjun","timestamp":"2025-03-14T09:00:00Z"}]`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/chat/SUB-88/typing":
			writeJSON(w, http.StatusOK, `{"users":[{"role":"CLIENT","isTyping":true},{"role":"ADMIN","isTyping":false}]}`)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	history, err := client.History(ctx, "SUB-88")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, chat.RoleClient, history[0].SenderRole)

	roles, err := client.Typing(ctx, "SUB-88")
	require.NoError(t, err)
	require.Equal(t, []chat.Role{chat.RoleClient}, roles)

	require.NoError(t, client.Send(ctx, "SUB-88", chat.Outgoing{Text: "On it", Role: chat.RoleAdmin, SenderName: "Asha"}))
	req := fake.last()
	require.Equal(t, "/api/chat/SUB-88/messages", req.Path)
	require.Equal(t, "On it", req.Body["message"])
	require.Equal(t, "ADMIN", req.Body["senderRole"])

	require.NoError(t, client.Edit(ctx, "m1", "Edited"))
	require.Equal(t, http.MethodPut, fake.last().Method)
	require.Equal(t, "/api/chat/messages/m1", fake.last().Path)

	require.NoError(t, client.Delete(ctx, "m1"))
	require.Equal(t, http.MethodDelete, fake.last().Method)

	require.NoError(t, client.MarkRead(ctx, "SUB-88", chat.RoleAdmin))
	require.Equal(t, "/api/chat/SUB-88/read", fake.last().Path)
	require.Equal(t, "ADMIN", fake.last().Body["role"])

	require.NoError(t, client.SetTyping(ctx, "SUB-88", chat.RoleAdmin, true))
	require.Equal(t, true, fake.last().Body["isTyping"])

	require.NoError(t, client.Send(ctx, "GST ANNUAL/9", chat.Outgoing{Text: "x"}))
	require.Equal(t, "/api/chat/GST%20ANNUAL%2F9/messages", fake.last().Path)
}

func TestUnreadCountsAcceptsEnvelopes(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{"SUB-88":2,"ORD-42":0}`,
		`{"unreadCounts":{"SUB-88":2,"ORD-42":0}}`,
		`{"counts":{"SUB-88":2,"ORD-42":0}}`,
	}
	for _, body := range bodies {
		client, fake := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, body)
		})
		counts, err := client.UnreadCounts(context.Background(), "ADMIN")
		require.NoError(t, err, body)
		require.Equal(t, map[string]int{"SUB-88": 2, "ORD-42": 0}, counts)
		require.Equal(t, "/api/chat/unread", fake.last().Path)
		require.Equal(t, "role=ADMIN", fake.last().Query)
	}
}

func TestTransportErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	client, err := backend.NewHTTPClient("http://backend.invalid", backend.WithDoer(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	})))
	require.NoError(t, err)

	_, err = client.ListOrders(context.Background())
	require.ErrorIs(t, err, boom)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) {
	return f(r)
}
