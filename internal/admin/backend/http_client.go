// Package backend implements the filing backend collaborators used by the
// admin console: the REST client, an in-memory stand-in, a Firestore order
// source and a Pub/Sub notification publisher.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shinefiling/filing-admin/internal/admin/chat"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
)

const instrumentationName = "github.com/shinefiling/filing-admin/internal/admin/backend"

var tracer = otel.Tracer(instrumentationName)

// Doer matches the subset of http.Client used by HTTPClient.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// APIError is a non-success response from the filing backend.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Reason())
}

// Reason returns the server supplied message, or the status text when none was sent.
func (e *APIError) Reason() string {
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	return http.StatusText(e.Status)
}

// NotFound reports whether the backend answered 404.
func (e *APIError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// HTTPClient talks to the filing backend REST API. It implements the order
// source, the status updater, the chat API and the unread source.
type HTTPClient struct {
	base    *url.URL
	client  Doer
	token   string
	timeout time.Duration
}

// HTTPOption customises an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithDoer swaps the transport, typically for tests.
func WithDoer(doer Doer) HTTPOption {
	return func(c *HTTPClient) {
		if doer != nil {
			c.client = doer
		}
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) HTTPOption {
	return func(c *HTTPClient) {
		c.token = strings.TrimSpace(token)
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewHTTPClient constructs a client rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend: base URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL: %w", err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	c := &HTTPClient{
		base:    parsed,
		client:  http.DefaultClient,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ListOrders fetches every order.
func (c *HTTPClient) ListOrders(ctx context.Context) ([]orders.Order, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "list_orders", http.MethodGet, "orders", nil, nil, &raw); err != nil {
		return nil, err
	}
	var list []orders.Order
	if err := decodeList(raw, "orders", &list); err != nil {
		return nil, fmt.Errorf("backend: decode orders: %w", err)
	}
	return list, nil
}

// DeleteOrder removes an order by backend id.
func (c *HTTPClient) DeleteOrder(ctx context.Context, id string) error {
	err := c.call(ctx, "delete_order", http.MethodDelete, join("orders", id), nil, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		return fmt.Errorf("%w: %s", orders.ErrOrderNotFound, apiErr.Reason())
	}
	return err
}

// UpdateStatus posts the new status to the family specific operation.
func (c *HTTPClient) UpdateStatus(ctx context.Context, operation, id, newStatus string) error {
	operation = strings.Trim(strings.TrimSpace(operation), "/")
	if operation == "" {
		return errors.New("backend: operation is required")
	}
	body := map[string]string{"status": newStatus}
	return c.call(ctx, "update_status", http.MethodPost, join(operation, id, "status"), nil, body, nil)
}

// History returns the messages of a thread.
func (c *HTTPClient) History(ctx context.Context, alias string) ([]chat.Message, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "chat_history", http.MethodGet, join("chat", alias, "messages"), nil, nil, &raw); err != nil {
		return nil, err
	}
	var list []chat.Message
	if err := decodeList(raw, "messages", &list); err != nil {
		return nil, fmt.Errorf("backend: decode messages: %w", err)
	}
	return list, nil
}

// Send creates a message on a thread.
func (c *HTTPClient) Send(ctx context.Context, alias string, msg chat.Outgoing) error {
	return c.call(ctx, "chat_send", http.MethodPost, join("chat", alias, "messages"), nil, msg, nil)
}

// Edit replaces the text of a message.
func (c *HTTPClient) Edit(ctx context.Context, messageID, text string) error {
	body := map[string]string{"message": text}
	return c.call(ctx, "chat_edit", http.MethodPut, join("chat", "messages", messageID), nil, body, nil)
}

// Delete removes a message.
func (c *HTTPClient) Delete(ctx context.Context, messageID string) error {
	return c.call(ctx, "chat_delete", http.MethodDelete, join("chat", "messages", messageID), nil, nil, nil)
}

// Clear removes every message of a thread.
func (c *HTTPClient) Clear(ctx context.Context, alias string) error {
	return c.call(ctx, "chat_clear", http.MethodDelete, join("chat", alias, "messages"), nil, nil, nil)
}

// MarkRead marks the thread read for role.
func (c *HTTPClient) MarkRead(ctx context.Context, alias string, role chat.Role) error {
	body := map[string]string{"role": string(role)}
	return c.call(ctx, "chat_mark_read", http.MethodPost, join("chat", alias, "read"), nil, body, nil)
}

// SetTyping announces or withdraws role's typing state.
func (c *HTTPClient) SetTyping(ctx context.Context, alias string, role chat.Role, typing bool) error {
	body := typingPayload{Role: role, IsTyping: typing}
	return c.call(ctx, "chat_set_typing", http.MethodPost, join("chat", alias, "typing"), nil, body, nil)
}

// Typing returns the roles currently typing on a thread.
func (c *HTTPClient) Typing(ctx context.Context, alias string) ([]chat.Role, error) {
	var payload typingStatus
	if err := c.call(ctx, "chat_typing", http.MethodGet, join("chat", alias, "typing"), nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Roles(), nil
}

// UnreadCounts returns unread counts keyed by thread alias for role.
func (c *HTTPClient) UnreadCounts(ctx context.Context, role string) (map[string]int, error) {
	query := url.Values{}
	if role = strings.TrimSpace(role); role != "" {
		query.Set("role", role)
	}
	var raw json.RawMessage
	if err := c.call(ctx, "chat_unread", http.MethodGet, join("chat", "unread"), query, nil, &raw); err != nil {
		return nil, err
	}
	counts, err := decodeCounts(raw)
	if err != nil {
		return nil, fmt.Errorf("backend: decode unread counts: %w", err)
	}
	return counts, nil
}

type typingPayload struct {
	Role     chat.Role `json:"role"`
	IsTyping bool      `json:"isTyping"`
}

type typingStatus struct {
	Typing []chat.Role     `json:"typing"`
	Users  []typingPayload `json:"users"`
}

// Roles flattens both accepted payload shapes.
func (p typingStatus) Roles() []chat.Role {
	out := make([]chat.Role, 0, len(p.Typing)+len(p.Users))
	out = append(out, p.Typing...)
	for _, user := range p.Users {
		if user.IsTyping {
			out = append(out, user.Role)
		}
	}
	return out
}

func (c *HTTPClient) call(ctx context.Context, op, method, endpoint string, query url.Values, body, out any) error {
	ctx, span := tracer.Start(ctx, "backend."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("backend.endpoint", endpoint))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, endpoint, query, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		err = fmt.Errorf("backend: %s %s: %w", method, endpoint, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := errorFromResponse(resp)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Reason())
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("backend: decode %s response: %w", op, err)
	}
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("backend: encode request body: %w", err)
		}
		reader = buf
	}

	ref, err := url.Parse(strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: endpoint %q: %w", endpoint, err)
	}
	target := c.base.ResolveReference(ref)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func errorFromResponse(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	apiErr := &APIError{Status: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err == nil {
			switch {
			case strings.TrimSpace(payload.Message) != "":
				apiErr.Message = strings.TrimSpace(payload.Message)
			case strings.TrimSpace(payload.Error) != "":
				apiErr.Message = strings.TrimSpace(payload.Error)
			}
			return apiErr
		}
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// join escapes each segment and joins them into a relative path.
func join(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(strings.TrimSpace(segment)))
	}
	return strings.Join(escaped, "/")
}

// decodeList accepts a bare array or an object wrapping it under key or "data".
func decodeList(raw json.RawMessage, key string, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	for _, name := range []string{key, "data"} {
		if inner, ok := envelope[name]; ok {
			return decodeList(inner, key, out)
		}
	}
	return fmt.Errorf("missing %q", key)
}

// decodeCounts accepts a bare alias map or one wrapped under "unreadCounts" or "counts".
func decodeCounts(raw json.RawMessage) (map[string]int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]int{}, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	for _, name := range []string{"unreadCounts", "counts"} {
		if inner, ok := envelope[name]; ok {
			return decodeCounts(inner)
		}
	}
	counts := make(map[string]int, len(envelope))
	for alias, value := range envelope {
		var n int
		if err := json.Unmarshal(value, &n); err != nil {
			return nil, fmt.Errorf("count for %q: %w", alias, err)
		}
		counts[alias] = n
	}
	return counts, nil
}
