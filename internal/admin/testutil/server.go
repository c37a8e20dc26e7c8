// Package testutil runs the console HTTP stack against the in-memory backend.
package testutil

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinefiling/filing-admin/internal/admin/backend"
	"github.com/shinefiling/filing-admin/internal/admin/chat"
	"github.com/shinefiling/filing-admin/internal/admin/httpserver"
	"github.com/shinefiling/filing-admin/internal/admin/httpserver/handlers"
	"github.com/shinefiling/filing-admin/internal/admin/httpserver/middleware"
	"github.com/shinefiling/filing-admin/internal/admin/notifications"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
	"github.com/shinefiling/filing-admin/internal/admin/poller"
)

// Server is a running console backed by backend.Static.
type Server struct {
	*httptest.Server
	Backend *backend.Static
	Store   *orders.Store
	Tracker *notifications.Tracker
	Inbox   *notifications.Inbox
	Desktop *notifications.DesktopNotifier
	Chat    *chat.Manager
}

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*serverOptions)

type serverOptions struct {
	basePath      string
	authenticator middleware.Authenticator
	updater       orders.StatusUpdater
}

// WithAuthenticator overrides the authenticator used by the admin server.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(o *serverOptions) {
		o.authenticator = auth
	}
}

// WithBasePath sets a custom base path for the admin routes.
func WithBasePath(path string) ServerOption {
	return func(o *serverOptions) {
		o.basePath = path
	}
}

// WithStatusUpdater replaces the backend status endpoint.
func WithStatusUpdater(updater orders.StatusUpdater) ServerOption {
	return func(o *serverOptions) {
		o.updater = updater
	}
}

// NewServer constructs an httptest server running the admin HTTP stack.
// Chat polling only runs when a test triggers it.
func NewServer(t testing.TB, opts ...ServerOption) *Server {
	t.Helper()

	options := serverOptions{
		basePath:      "/admin",
		authenticator: middleware.DefaultAuthenticator(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	ctx := context.Background()
	fixed := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	static := backend.NewStatic(func() time.Time { return fixed })

	updater := options.updater
	if updater == nil {
		updater = static
	}

	store := orders.NewStore(static, nil)
	require.NoError(t, store.Load(ctx))
	coordinator, err := orders.NewCoordinator(orders.CoordinatorDeps{Updater: updater, Store: store})
	require.NoError(t, err)

	manager, err := chat.NewManager(static, nil, chat.Options{
		Ticker: func(time.Duration) poller.Ticker { return idleTicker{} },
	})
	require.NoError(t, err)

	inbox := notifications.NewInbox(0)
	desktop := notifications.NewDesktopNotifier(0)
	tracker, err := notifications.NewTracker(notifications.TrackerDeps{
		Source:   static,
		Orders:   store,
		Threads:  manager,
		Notifier: notifications.Multi(inbox, desktop),
		Role:     string(chat.RoleAdmin),
	})
	require.NoError(t, err)
	manager.SetUnread(tracker)

	srv, err := httpserver.New(httpserver.Config{
		Address:       ":0",
		BasePath:      options.basePath,
		Authenticator: options.authenticator,
		Handlers: handlers.Dependencies{
			Orders:        store,
			Coordinator:   coordinator,
			Notifications: inbox,
			Desktop:       desktop,
			Unread:        tracker,
			Chat:          manager,
		},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		_ = manager.CloseAll(context.Background())
		ts.Close()
	})
	return &Server{
		Server:  ts,
		Backend: static,
		Store:   store,
		Tracker: tracker,
		Inbox:   inbox,
		Desktop: desktop,
		Chat:    manager,
	}
}

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}
