package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/shinefiling/filing-admin/internal/admin/notifications"
)

// PubSubPublisher forwards unread message events to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed notifier.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Notify implements notifications.Notifier.
func (p *PubSubPublisher) Notify(ctx context.Context, event notifications.Event) error {
	_, err := p.Publish(ctx, event)
	return err
}

// Publish sends event and returns the server assigned message id.
func (p *PubSubPublisher) Publish(ctx context.Context, event notifications.Event) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal unread event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "orderKey", event.OrderKey)
	setAttr(attrs, "displayId", event.DisplayID)
	setAttr(attrs, "alias", event.Alias)
	attrs["category"] = string(notifications.CategoryChatMessage)
	attrs["delta"] = strconv.Itoa(event.Delta)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish unread event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
