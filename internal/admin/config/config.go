// Package config assembles the admin console configuration from defaults, an
// optional .env file, the process environment and explicit overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile            = ".env"
	defaultAddress            = ":8080"
	defaultBasePath           = "/admin"
	defaultBackendTimeout     = 10 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultUnreadPollInterval = 15 * time.Second
	defaultOrdersReload       = time.Minute
	defaultChatPollInterval   = 3 * time.Second
	defaultTypingTimeout      = 5 * time.Second
	defaultChatRole           = "ADMIN"
	defaultOrdersCollection   = "orders"
	defaultFeedCapacity       = 200
	defaultLogLevel           = "info"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Backend       BackendConfig
	Orders        OrdersConfig
	Unread        UnreadConfig
	Chat          ChatConfig
	Notifications NotificationConfig
	Firebase      FirebaseConfig
	Firestore     FirestoreConfig
	Log           LogConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string
	BasePath        string
	ShutdownTimeout time.Duration
}

// BackendConfig points at the filing backend. An empty BaseURL selects the
// in-memory backend.
type BackendConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Static reports whether the in-memory backend should be used.
func (c BackendConfig) Static() bool {
	return strings.TrimSpace(c.BaseURL) == ""
}

// OrdersConfig tunes the in-memory order list.
type OrdersConfig struct {
	ReloadInterval time.Duration
}

// UnreadConfig tunes the unread tracker.
type UnreadConfig struct {
	PollInterval time.Duration
}

// ChatConfig tunes chat sessions.
type ChatConfig struct {
	PollInterval  time.Duration
	TypingTimeout time.Duration
	Role          string
}

// NotificationConfig selects notification sinks.
type NotificationConfig struct {
	Desktop         bool
	FeedCapacity    int
	PubSubProjectID string
	PubSubTopic     string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID string
}

// FirestoreConfig selects the Firestore order source. An empty ProjectID
// keeps orders on the backend API.
type FirestoreConfig struct {
	ProjectID        string
	OrdersCollection string
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string
}

// ValidationError is returned when fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load resolves configuration with precedence explicit map > environment > .env > defaults.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	var invalid []string
	duration := func(key string, fallback time.Duration) time.Duration {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return fallback
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			return fallback
		}
		return d
	}

	cfg := Config{
		Server: ServerConfig{
			Address:         stringWithDefault(lookup, "ADMIN_HTTP_ADDR", defaultAddress),
			BasePath:        stringWithDefault(lookup, "ADMIN_BASE_PATH", defaultBasePath),
			ShutdownTimeout: duration("ADMIN_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Backend: BackendConfig{
			BaseURL: stringWithDefault(lookup, "ADMIN_BACKEND_BASE_URL", ""),
			Token:   stringWithDefault(lookup, "ADMIN_BACKEND_TOKEN", ""),
			Timeout: duration("ADMIN_BACKEND_TIMEOUT", defaultBackendTimeout),
		},
		Orders: OrdersConfig{
			ReloadInterval: duration("ADMIN_ORDERS_RELOAD_INTERVAL", defaultOrdersReload),
		},
		Unread: UnreadConfig{
			PollInterval: duration("ADMIN_UNREAD_POLL_INTERVAL", defaultUnreadPollInterval),
		},
		Chat: ChatConfig{
			PollInterval:  duration("ADMIN_CHAT_POLL_INTERVAL", defaultChatPollInterval),
			TypingTimeout: duration("ADMIN_TYPING_TIMEOUT", defaultTypingTimeout),
			Role:          strings.ToUpper(stringWithDefault(lookup, "ADMIN_CHAT_ROLE", defaultChatRole)),
		},
		Notifications: NotificationConfig{
			Desktop:         boolWithDefault(lookup, "ADMIN_DESKTOP_NOTIFICATIONS", true),
			FeedCapacity:    intWithDefault(lookup, "ADMIN_NOTIFICATION_FEED_CAPACITY", defaultFeedCapacity),
			PubSubProjectID: stringWithDefault(lookup, "ADMIN_PUBSUB_PROJECT_ID", ""),
			PubSubTopic:     stringWithDefault(lookup, "ADMIN_PUBSUB_NOTIFICATIONS_TOPIC", ""),
		},
		Firebase: FirebaseConfig{
			ProjectID: stringWithDefault(lookup, "FIREBASE_PROJECT_ID", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:        stringWithDefault(lookup, "ADMIN_FIRESTORE_PROJECT_ID", ""),
			OrdersCollection: stringWithDefault(lookup, "ADMIN_FIRESTORE_ORDERS_COLLECTION", defaultOrdersCollection),
		},
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
		},
	}

	if cfg.Notifications.PubSubTopic != "" && cfg.Notifications.PubSubProjectID == "" {
		cfg.Notifications.PubSubProjectID = firstNonEmpty(cfg.Firestore.ProjectID, cfg.Firebase.ProjectID)
	}

	if err := validate(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config, invalid []string) error {
	fields := append([]string(nil), invalid...)
	if strings.TrimSpace(cfg.Server.Address) == "" {
		fields = append(fields, "ADMIN_HTTP_ADDR")
	}
	if !strings.HasPrefix(cfg.Server.BasePath, "/") {
		fields = append(fields, "ADMIN_BASE_PATH")
	}
	if !cfg.Backend.Static() {
		parsed, err := url.Parse(cfg.Backend.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			fields = append(fields, "ADMIN_BACKEND_BASE_URL")
		}
	}
	switch cfg.Chat.Role {
	case "ADMIN", "SUB_ADMIN":
	default:
		fields = append(fields, "ADMIN_CHAT_ROLE")
	}
	if cfg.Notifications.FeedCapacity <= 0 {
		fields = append(fields, "ADMIN_NOTIFICATION_FEED_CAPACITY")
	}
	if cfg.Notifications.PubSubTopic != "" && cfg.Notifications.PubSubProjectID == "" {
		fields = append(fields, "ADMIN_PUBSUB_PROJECT_ID")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		fields = append(fields, "LOG_LEVEL")
	}
	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
