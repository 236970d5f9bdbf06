package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// spawnSenderPool spawns N sender goroutines based on concurrency configuration
func (n *Notifier) spawnSenderPool(ctx context.Context) {
	n.logger.Info("Spawning sender pool",
		slog.Int("concurrency", n.concurrency),
		slog.String("consumer_id", n.consumerID),
	)

	for i := 0; i < n.concurrency; i++ {
		n.wg.Add(1)
		go n.senderLoop(ctx, i)
	}
}

// senderLoop is the main delivery loop for each sender goroutine
func (n *Notifier) senderLoop(ctx context.Context, senderNum int) {
	defer n.wg.Done()

	senderName := fmt.Sprintf("%s-%d", n.consumerID, senderNum)
	n.logger.Info("Sender goroutine started",
		slog.String("sender_name", senderName),
	)

	for {
		select {
		case <-n.stopChan:
			n.logger.Info("Sender goroutine stopping - stopChan closed",
				slog.String("sender_name", senderName),
			)
			return

		case <-ctx.Done():
			n.logger.Info("Sender goroutine stopping - context canceled",
				slog.String("sender_name", senderName),
			)
			return

		case msg, ok := <-n.envChan:
			if !ok {
				n.logger.Info("Sender goroutine stopping - envChan closed",
					slog.String("sender_name", senderName),
				)
				return
			}

			err := n.deliver(ctx, msg)

			if err != nil {
				n.logger.Error("Envelope delivery failed",
					slog.String("sender_name", senderName),
					slog.String("channel", string(msg.env.Channel)),
					slog.String("event", string(msg.env.Event)),
					slog.String("job_id", msg.env.Payload.JobID),
					slog.String("error", err.Error()),
				)

				requeue := n.shouldRequeue(err)
				if nackErr := msg.delivery.Nack(false, requeue); nackErr != nil {
					n.logger.Error("Failed to NACK envelope",
						slog.String("sender_name", senderName),
						slog.String("error", nackErr.Error()),
					)
				} else {
					n.logger.Info("Envelope NACKed",
						slog.String("sender_name", senderName),
						slog.Bool("requeue", requeue),
					)
				}
				continue
			}

			if ackErr := msg.delivery.Ack(false); ackErr != nil {
				n.logger.Error("Failed to ACK envelope",
					slog.String("sender_name", senderName),
					slog.String("error", ackErr.Error()),
				)
			} else {
				n.logger.Debug("Envelope delivered",
					slog.String("sender_name", senderName),
					slog.String("channel", string(msg.env.Channel)),
					slog.String("event", string(msg.env.Event)),
					slog.Int("recipients", len(msg.env.Recipients)),
				)
			}
		}
	}
}

// deliver hands one envelope to its channel sender under the send timeout.
func (n *Notifier) deliver(ctx context.Context, msg *envelopeDelivery) error {
	sender, ok := n.senders[msg.env.Channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, msg.env.Channel)
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()

	return sender.Send(sendCtx, msg.env)
}

// shouldRequeue determines if an envelope should be requeued based on the error type
func (n *Notifier) shouldRequeue(err error) bool {
	// Requeue only transient failures; a gateway that rejected the request
	// will reject it again
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}
	return false
}
