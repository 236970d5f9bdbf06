package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nordtolk/booking-be/internal/booking/coordinator"
	"github.com/nordtolk/booking-be/internal/booking/matcher"
	"github.com/nordtolk/booking-be/internal/booking/notify"
	"github.com/nordtolk/booking-be/internal/booking/statemachine"
	"github.com/nordtolk/booking-be/internal/booking/storage"
	"github.com/nordtolk/booking-be/internal/config"
	"github.com/nordtolk/booking-be/internal/notifier"
	"github.com/nordtolk/booking-be/internal/sweep"
	"github.com/nordtolk/booking-be/shared/logger"
	"github.com/nordtolk/booking-be/shared/postgresql"
	"github.com/nordtolk/booking-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("NOTIFY_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/notify-service.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateNotifyConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting notify service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client: this service consumes the notify queue
	// and publishes the envelopes the expiry sweep produces.
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Channel senders behind the consumer
	httpClient := &http.Client{Timeout: cfg.Notify.SendTimeout}
	senders := map[notify.Channel]notifier.Sender{
		notify.ChannelPush:  notifier.NewPushSender(cfg.Notify.Push, httpClient, nil),
		notify.ChannelSMS:   notifier.NewSMSSender(cfg.Notify.SMS, httpClient),
		notify.ChannelEmail: notifier.NewEmailSender(cfg.Notify.Email, httpClient),
	}

	notifierInstance := notifier.NewNotifier(&notifier.Config{
		Logger:       appLogger.Logger,
		RabbitClient: rabbitClient,
		Senders:      senders,
		Concurrency:  cfg.RabbitMQ.Consumer.PrefetchCount,
		SendTimeout:  cfg.Notify.SendTimeout,
	})

	// The expiry sweep shares the workflow core with the API: timed-out
	// bookings go through the same coordinator operation.
	store := storage.NewStorage(dbClient)
	translatorMatcher := matcher.New(store, appLogger.Logger, nil)
	dispatcher := notify.NewAMQPDispatcher(rabbitClient, appLogger.Logger)
	events := notify.NewEvents(dispatcher, translatorMatcher, store, appLogger.Logger, nil)
	machine := statemachine.New(appLogger.Logger, nil)
	coord := coordinator.New(store, machine, events, appLogger.Logger, nil)
	sweeper := sweep.New(store, coord, appLogger.Logger, cfg.Notify.SweepInterval, nil)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consumer and sweep in goroutines
	errChan := make(chan error, 1)
	go func() {
		if err := notifierInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()
	go sweeper.Run(ctx)

	appLogger.Info("Notify service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Notifier error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop consumer and sweep
	cancel()

	// Give the notifier time to shutdown gracefully
	shutdownTimeout := cfg.Notify.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		notifierInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Notifier stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Notifier shutdown timeout exceeded, forcing exit")
	}

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Notify service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		BindingKeys:        cfg.BindingKeys,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
