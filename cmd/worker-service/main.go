package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/rotadireta/automation/internal/channel"
	"github.com/rotadireta/automation/internal/config"
	"github.com/rotadireta/automation/internal/notifier"
	"github.com/rotadireta/automation/internal/queue"
	"github.com/rotadireta/automation/internal/storage"
	"github.com/rotadireta/automation/internal/worker"
	"github.com/rotadireta/automation/shared/logger"
	"github.com/rotadireta/automation/shared/postgresql"
	"github.com/rotadireta/automation/shared/rabbitmq"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	store := storage.NewStorage(dbClient, appLogger.Logger)

	emailSender := channel.NewSMTPSender(channel.SMTPConfig{
		Host:     cfg.Channels.Email.Host,
		Port:     cfg.Channels.Email.Port,
		Username: cfg.Channels.Email.Username,
		Password: cfg.Channels.Email.Password,
		From:     cfg.Channels.Email.From,
	}, appLogger.Logger)

	whatsappSender := channel.NewWhatsAppClient(
		cfg.Channels.WhatsApp.BaseURL,
		cfg.Channels.WhatsApp.APIKey,
		cfg.Channels.WhatsApp.Timeout,
		appLogger.Logger,
	)

	sendQueue := queue.New(queue.Config{
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RetryDelay:   cfg.Queue.RetryDelay,
		RetainedJobs: cfg.Queue.RetainedJobs,
	}, queue.Senders{
		Email:    emailSender,
		WhatsApp: whatsappSender,
	}, appLogger.Logger)

	scheduler := notifier.NewScheduler(store, emailSender, whatsappSender, notifier.Config{
		OperatorEmail:       cfg.Notifier.OperatorEmail,
		DeliverLimit:        cfg.Notifier.DeliverLimit,
		MaxScheduleAttempts: cfg.Notifier.MaxScheduleAttempts,
	}, appLogger.Logger)

	consumer := worker.New(rabbitClient, sendQueue, worker.Config{
		ConsumerTag:   cfg.App.Name,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
	}, appLogger.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc(cfg.Notifier.CronSpec, func() {
		scheduler.RunFullCycle(ctx)
	}); err != nil {
		return fmt.Errorf("failed to register notification cycle cron: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		sendQueue.Start(groupCtx)
		return nil
	})

	group.Go(func() error {
		return consumer.Run(groupCtx)
	})

	group.Go(func() error {
		cronRunner.Start()
		appLogger.Info("Notification cycle cron started",
			slog.String("spec", cfg.Notifier.CronSpec),
		)
		<-groupCtx.Done()
		stopCtx := cronRunner.Stop()
		<-stopCtx.Done()
		return nil
	})

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal or a failing component
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- group.Wait()
	}()

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error",
				slog.Any("error", err),
			)
			cleanup(dbClient, rabbitClient)
			return err
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		<-errChan
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	cleanup(dbClient, rabbitClient)

	appLogger.Info("Worker service shutdown complete")
	return nil
}

func cleanup(dbClient *postgresql.Client, rabbitClient *rabbitmq.Client) {
	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}
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
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
