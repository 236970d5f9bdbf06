package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Publisher is the slice of the message-broker client dispatching needs.
type Publisher interface {
	PublishTo(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// Envelope is the wire shape of a dispatched notification event. The
// notify service consumes envelopes and hands them to the channel senders.
type Envelope struct {
	Channel      Channel     `json:"channel"`
	Event        EventType   `json:"event"`
	Recipients   []Recipient `json:"recipients"`
	Payload      Payload     `json:"payload"`
	DispatchedAt time.Time   `json:"dispatched_at"`
}

// RoutingKey returns the topic key an envelope is published under,
// e.g. "notify.push.job.suitable".
func (env *Envelope) RoutingKey() string {
	return fmt.Sprintf("notify.%s.%s", env.Channel, env.Event)
}

// AMQPDispatcher hands notification events to RabbitMQ. Publishing is
// decoupled from the workflow transaction: a broker failure is reported in
// the delivery result for logging and goes no further.
type AMQPDispatcher struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewAMQPDispatcher(publisher Publisher, logger *slog.Logger) *AMQPDispatcher {
	return &AMQPDispatcher{
		publisher: publisher,
		logger:    logger,
	}
}

// Dispatch publishes one envelope per call. It never panics and never
// blocks beyond the publisher's own retry budget.
func (d *AMQPDispatcher) Dispatch(ctx context.Context, channel Channel, recipients []Recipient, event EventType, payload Payload) DeliveryResult {
	env := Envelope{
		Channel:      channel,
		Event:        event,
		Recipients:   recipients,
		Payload:      payload,
		DispatchedAt: time.Now(),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return DeliveryResult{Err: fmt.Errorf("failed to encode notification envelope: %w", err)}
	}

	if err := d.publisher.PublishTo(ctx, env.RoutingKey(), body, "application/json"); err != nil {
		return DeliveryResult{Err: fmt.Errorf("failed to publish notification: %w", err)}
	}

	d.logger.Debug("Notification envelope published",
		slog.String("routing_key", env.RoutingKey()),
		slog.Int("recipients", len(recipients)),
	)

	return DeliveryResult{Accepted: len(recipients)}
}
