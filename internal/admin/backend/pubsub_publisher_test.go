package backend

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/shinefiling/filing-admin/internal/admin/notifications"
)

func TestPubSubPublisherPublishesEvent(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "admin-unread")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)

	publisher, err := NewPubSubPublisher(topic)
	require.NoError(t, err)

	event := notifications.Event{
		ID:          "01HX0000000000000000000000",
		OrderKey:    "88",
		DisplayID:   "ORD-88",
		InternalID:  "88",
		ServiceName: "Private Limited Company Registration",
		Alias:       "SUB-88",
		Count:       3,
		Delta:       2,
		OccurredAt:  time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.Notify(ctx, event))

	messages := srv.Messages()
	require.Len(t, messages, 1)

	var payload notifications.Event
	require.NoError(t, json.Unmarshal(messages[0].Data, &payload))
	require.Equal(t, event, payload)

	attrs := messages[0].Attributes
	require.Equal(t, "ORD-88", attrs["displayId"])
	require.Equal(t, "SUB-88", attrs["alias"])
	require.Equal(t, "2", attrs["delta"])
	require.Equal(t, string(notifications.CategoryChatMessage), attrs["category"])
}

func TestNewPubSubPublisherRequiresTopic(t *testing.T) {
	t.Parallel()

	_, err := NewPubSubPublisher(nil)
	require.Error(t, err)

	var nilPublisher *PubSubPublisher
	_, err = nilPublisher.Publish(context.Background(), notifications.Event{})
	require.Error(t, err)
}
