package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shinefiling/filing-admin/internal/admin/backend"
	"github.com/shinefiling/filing-admin/internal/admin/chat"
	"github.com/shinefiling/filing-admin/internal/admin/config"
	"github.com/shinefiling/filing-admin/internal/admin/httpserver"
	"github.com/shinefiling/filing-admin/internal/admin/httpserver/handlers"
	"github.com/shinefiling/filing-admin/internal/admin/httpserver/middleware"
	"github.com/shinefiling/filing-admin/internal/admin/notifications"
	"github.com/shinefiling/filing-admin/internal/admin/observability"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
	"github.com/shinefiling/filing-admin/internal/admin/poller"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "admin: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	deps, err := buildBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	store := orders.NewStore(deps.source, nil)
	if err := store.Load(ctx); err != nil {
		logger.Warn("initial order load failed", zap.Error(err))
	}
	reloader, err := poller.New(cfg.Orders.ReloadInterval, store.Load,
		poller.WithLogger(logger), poller.WithName("orders_reload"))
	if err != nil {
		return err
	}
	coordinator, err := orders.NewCoordinator(orders.CoordinatorDeps{
		Updater: deps.updater,
		Store:   store,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	manager, err := chat.NewManager(deps.chat, nil, chat.Options{
		Role:          chat.ParseRole(cfg.Chat.Role),
		PollInterval:  cfg.Chat.PollInterval,
		TypingTimeout: cfg.Chat.TypingTimeout,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	inbox := notifications.NewInbox(cfg.Notifications.FeedCapacity)
	desktop := notifications.NewDesktopNotifier(0)
	sinks := []notifications.Notifier{inbox, notifications.LogNotifier(logger)}
	if cfg.Notifications.Desktop {
		sinks = append(sinks, desktop)
	}
	if deps.publisher != nil {
		sinks = append(sinks, deps.publisher)
	}

	tracker, err := notifications.NewTracker(notifications.TrackerDeps{
		Source:   deps.unread,
		Orders:   store,
		Threads:  manager,
		Notifier: notifications.Multi(sinks...),
		Role:     cfg.Chat.Role,
		Interval: cfg.Unread.PollInterval,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	manager.SetUnread(tracker)

	authenticator, err := buildAuthenticator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := httpserver.New(httpserver.Config{
		Address:       cfg.Server.Address,
		BasePath:      cfg.Server.BasePath,
		Authenticator: authenticator,
		Logger:        logger,
		Handlers: handlers.Dependencies{
			Orders:        store,
			Coordinator:   coordinator,
			Notifications: inbox,
			Desktop:       desktop,
			Unread:        tracker,
			Chat:          manager,
		},
	})
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("admin server listening",
			zap.String("addr", cfg.Server.Address),
			zap.String("base_path", cfg.Server.BasePath),
			zap.Bool("static_backend", cfg.Backend.Static()),
		)
		if err := srv.ListenAndServe(); err != nil && !httpserver.ErrServerClosed(err) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return tracker.Run(groupCtx)
	})
	group.Go(func() error {
		reloader.Start(groupCtx)
		<-groupCtx.Done()
		reloader.Stop()
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		if err := manager.CloseAll(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("close chat sessions: %w", err))
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	err = group.Wait()
	logger.Info("admin server stopped", zap.Error(err))
	return err
}

type backendDeps struct {
	source    orders.Source
	updater   orders.StatusUpdater
	chat      chat.API
	unread    notifications.UnreadSource
	publisher notifications.Notifier
	closers   []func() error
}

func (d *backendDeps) close(logger *zap.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Warn("close backend client", zap.Error(err))
		}
	}
}

func buildBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backendDeps, error) {
	deps := &backendDeps{}

	if cfg.Backend.Static() {
		logger.Warn("ADMIN_BACKEND_BASE_URL not set; using in-memory sample backend")
		static := backend.NewStatic(nil)
		deps.source, deps.updater, deps.chat, deps.unread = static, static, static, static
	} else {
		client, err := backend.NewHTTPClient(cfg.Backend.BaseURL,
			backend.WithToken(cfg.Backend.Token),
			backend.WithTimeout(cfg.Backend.Timeout),
		)
		if err != nil {
			return nil, err
		}
		deps.source, deps.updater, deps.chat, deps.unread = client, client, client, client
	}

	if projectID := cfg.Firestore.ProjectID; projectID != "" {
		client, err := firestore.NewClient(ctx, projectID)
		if err != nil {
			deps.close(logger)
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		deps.closers = append(deps.closers, client.Close)
		deps.source = backend.NewFirestoreOrders(client, backend.FirestoreConfig{
			Collection: cfg.Firestore.OrdersCollection,
			Logger:     logger,
		})
		logger.Info("orders read from firestore",
			zap.String("project", projectID),
			zap.String("collection", cfg.Firestore.OrdersCollection),
		)
	}

	if topicID := cfg.Notifications.PubSubTopic; topicID != "" {
		client, err := pubsub.NewClient(ctx, cfg.Notifications.PubSubProjectID)
		if err != nil {
			deps.close(logger)
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		topic := client.Topic(topicID)
		deps.closers = append(deps.closers, client.Close, func() error {
			topic.Stop()
			return nil
		})
		publisher, err := backend.NewPubSubPublisher(topic)
		if err != nil {
			deps.close(logger)
			return nil, err
		}
		deps.publisher = publisher
	}

	return deps, nil
}

func buildAuthenticator(ctx context.Context, cfg config.Config, logger *zap.Logger) (middleware.Authenticator, error) {
	projectID := cfg.Firebase.ProjectID
	if projectID == "" {
		logger.Warn("FIREBASE_PROJECT_ID not set; using passthrough authenticator")
		return middleware.DefaultAuthenticator(), nil
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	logger.Info("firebase authenticator enabled", zap.String("project", projectID))
	return middleware.NewFirebaseAuthenticator(client), nil
}
