package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/masala-table/api/internal/services"
)

// PubSubNotifier publishes notification events to a Pub/Sub topic consumed
// by the downstream mailer.
type PubSubNotifier struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubNotifier constructs a Pub/Sub backed notifier.
func NewPubSubNotifier(topic *pubsub.Topic) (*PubSubNotifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub notifier: topic is required")
	}
	return &PubSubNotifier{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Publish enqueues the notification on the configured topic and returns the
// server-assigned message id.
func (p *PubSubNotifier) Publish(ctx context.Context, notification services.Notification) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub notifier: not initialised")
	}

	data, err := p.marshal(notification)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", notification.Event)
	setAttr(attrs, "orderId", notification.OrderID)
	setAttr(attrs, "userId", notification.UserID)
	setAttr(attrs, "recipient", notification.Recipient)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish notification: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
