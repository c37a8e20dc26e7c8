// Package httpserver assembles the console's HTTP server.
package httpserver

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shinefiling/filing-admin/internal/admin/httpserver/handlers"
	custommw "github.com/shinefiling/filing-admin/internal/admin/httpserver/middleware"
	"github.com/shinefiling/filing-admin/internal/admin/observability"
	"github.com/shinefiling/filing-admin/internal/admin/rbac"
)

const defaultBasePath = "/admin"

// Config holds runtime options for the admin HTTP server.
type Config struct {
	Address        string
	BasePath       string
	Authenticator  custommw.Authenticator
	Logger         *zap.Logger
	RequestTimeout time.Duration
	Handlers       handlers.Dependencies
}

// New constructs the HTTP server with its middleware stack and API routes.
func New(cfg Config) (*http.Server, error) {
	h, err := handlers.NewHandlers(cfg.Handlers)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLogger(logger))
	router.Use(observability.Trace())
	router.Use(observability.RequestLogger())
	router.Use(observability.Recover(handlers.InternalError))
	router.Use(chimw.Timeout(timeout))
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = custommw.DefaultAuthenticator()
	}
	mountAdminRoutes(router, normalizeBasePath(cfg.BasePath), authenticator, h)

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zapErrorLog(logger),
	}, nil
}

func mountAdminRoutes(router chi.Router, base string, authenticator custommw.Authenticator, h *handlers.Handlers) {
	router.Route(joinBasePath(base, "/api"), func(r chi.Router) {
		r.Use(noStore)
		r.Use(custommw.Auth(authenticator))

		r.Route("/orders", func(r chi.Router) {
			r.With(custommw.RequireCapability(rbac.CapOrdersList)).Get("/", h.OrdersList)
			r.With(custommw.RequireCapability(rbac.CapOrdersAnalytics)).Get("/analytics", h.OrdersAnalytics)
			r.With(custommw.RequireCapability(rbac.CapOrdersDetail)).Get("/{id}", h.OrderDetail)
			r.With(custommw.RequireCapability(rbac.CapOrdersDetail)).Get("/{id}/status", h.OrderStatusOptions)
			r.With(custommw.RequireCapability(rbac.CapOrdersStatus)).Post("/{id}/status", h.OrderStatusUpdate)
			r.With(custommw.RequireCapability(rbac.CapOrdersDelete)).Delete("/{id}", h.OrderDelete)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(custommw.RequireCapability(rbac.CapNotificationsFeed))
			r.Get("/", h.NotificationsList)
			r.Get("/badge", h.NotificationsBadge)
			r.Post("/{notificationID}/ack", h.NotificationAcknowledge)
			r.Put("/desktop/permission", h.DesktopPermission)
			r.Post("/desktop/drain", h.DesktopDrain)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Use(custommw.RequireCapability(rbac.CapChatReply))
			r.Get("/", h.ChatView)
			r.Post("/open/{id}", h.ChatOpen)
			r.Post("/minimize", h.ChatMinimize)
			r.Post("/restore", h.ChatRestore)
			r.Post("/close", h.ChatClose)
			r.Post("/refresh", h.ChatRefresh)
			r.Put("/draft", h.ChatDraft)
			r.Post("/messages", h.ChatSend)
			r.Post("/messages/{msgID}/edit", h.ChatBeginEdit)
			r.Delete("/messages/{msgID}/edit", h.ChatCancelEdit)
			r.Put("/messages/{msgID}", h.ChatEdit)
			r.With(custommw.RequireCapability(rbac.CapChatModerate)).Delete("/messages/{msgID}", h.ChatDelete)
			r.With(custommw.RequireCapability(rbac.CapChatModerate)).Delete("/messages", h.ChatClear)
		})
	})
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return defaultBasePath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func joinBasePath(base, suffix string) string {
	if base == "/" {
		return suffix
	}
	return base + suffix
}

// ErrServerClosed reports whether err only signals a graceful shutdown.
func ErrServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}

func zapErrorLog(logger *zap.Logger) *log.Logger {
	std, err := zap.NewStdLogAt(logger.Named("http"), zap.WarnLevel)
	if err != nil {
		return nil
	}
	return std
}
