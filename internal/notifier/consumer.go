package notifier

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nordtolk/booking-be/internal/booking/notify"
)

// envelopeDelivery carries a decoded envelope together with its broker
// delivery so the sender pool can ACK or NACK it.
type envelopeDelivery struct {
	env      *notify.Envelope
	delivery amqp.Delivery
}

// runDispatcher listens to broker deliveries, decodes envelopes and hands
// them to the sender pool. Malformed messages are NACKed without requeue
// so they end up in the dead-letter queue instead of looping forever.
func (n *Notifier) runDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	n.logger.Info("Envelope dispatcher started",
		slog.String("consumer_id", n.consumerID),
	)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Envelope dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				n.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var env notify.Envelope
			if err := json.Unmarshal(delivery.Body, &env); err != nil {
				n.logger.Error("Failed to parse notification envelope",
					slog.String("routing_key", delivery.RoutingKey),
					slog.String("error", err.Error()),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					n.logger.Error("Failed to NACK malformed envelope",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if _, ok := n.senders[env.Channel]; !ok {
				n.logger.Error("No sender registered for channel",
					slog.String("channel", string(env.Channel)),
					slog.String("event", string(env.Event)),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					n.logger.Error("Failed to NACK envelope with unknown channel",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case n.envChan <- &envelopeDelivery{env: &env, delivery: delivery}:
				n.logger.Debug("Envelope dispatched to sender pool",
					slog.String("channel", string(env.Channel)),
					slog.String("event", string(env.Event)),
					slog.String("job_id", env.Payload.JobID),
				)
			case <-ctx.Done():
				n.logger.Info("Envelope dispatcher stopped while dispatching")
				// Requeue so another consumer picks it up
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					n.logger.Error("Failed to NACK envelope on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
