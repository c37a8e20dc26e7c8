package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorEnvelope(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	rec := httptest.NewRecorder()
	WriteError(ctx, rec, NewError("transition_in_flight", "a status change\nis pending", http.StatusConflict).
		WithDetails(map[string]any{"order": "ORD-42"}))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "transition_in_flight", body["error"])
	require.Equal(t, "a status change is pending", body["message"])
	require.EqualValues(t, http.StatusConflict, body["status"])
	require.Equal(t, "req-1", body["request_id"])
	require.Equal(t, "ORD-42", body["order"])
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var payload struct {
		Status string `json:"status"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"APPROVED"}`))
	require.NoError(t, DecodeJSON(req, &payload))
	require.Equal(t, "APPROVED", payload.Status)

	empty := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, DecodeJSON(empty, &payload))

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	err := DecodeJSON(bad, &payload)
	var herr Error
	require.ErrorAs(t, err, &herr)
	require.Equal(t, http.StatusBadRequest, herr.Status)
}
