package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nordtolk/booking-be/internal/booking/notify"
	"github.com/nordtolk/booking-be/shared/rabbitmq"
)

const (
	defaultConcurrency = 4
	defaultSendTimeout = 10 * time.Second
)

// Config holds notifier configuration
type Config struct {
	Logger       *slog.Logger
	RabbitClient *rabbitmq.Client
	Senders      map[notify.Channel]Sender
	Concurrency  int
	SendTimeout  time.Duration
}

// Notifier consumes notification envelopes from the broker and fans them
// out to the channel senders through a bounded pool.
type Notifier struct {
	logger       *slog.Logger
	rabbitClient *rabbitmq.Client
	senders      map[notify.Channel]Sender
	concurrency  int
	sendTimeout  time.Duration
	consumerID   string
	envChan      chan *envelopeDelivery
	wg           sync.WaitGroup
	stopChan     chan struct{}
}

// NewNotifier creates a new notifier instance
func NewNotifier(cfg *Config) *Notifier {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}

	return &Notifier{
		logger:       cfg.Logger,
		rabbitClient: cfg.RabbitClient,
		senders:      cfg.Senders,
		concurrency:  concurrency,
		sendTimeout:  sendTimeout,
		consumerID:   fmt.Sprintf("notify-%s", uuid.NewString()[:8]),
		envChan:      make(chan *envelopeDelivery, concurrency*2),
		stopChan:     make(chan struct{}),
	}
}

// Start begins consuming envelopes. It blocks until the context is
// canceled or the delivery channel closes.
func (n *Notifier) Start(ctx context.Context) error {
	n.logger.Info("Starting notifier",
		slog.String("consumer_id", n.consumerID),
		slog.Int("concurrency", n.concurrency),
		slog.Duration("send_timeout", n.sendTimeout),
	)

	deliveries, err := n.rabbitClient.Consume(n.consumerID)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	n.spawnSenderPool(ctx)
	n.runDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the notifier
func (n *Notifier) Stop() {
	n.logger.Info("Stopping notifier...")
	close(n.stopChan)
	n.wg.Wait()
	n.logger.Info("Notifier stopped")
}
