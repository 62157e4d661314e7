package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"slotswap/internal/directory"
	"slotswap/internal/matching"
	slotsservice "slotswap/internal/slots/service"
	slotsvalidator "slotswap/internal/slots/validator"
	"slotswap/internal/storage"
	swapsservice "slotswap/internal/swaps/service"
	"slotswap/pkg/auth"
	"slotswap/pkg/config"
	"slotswap/pkg/kafka"
	kafka_config "slotswap/pkg/kafka/config"
	kafkamw "slotswap/pkg/kafka/middleware"
)

const ServiceName = "offer-sweeper"

// The offer sweeper consumes swap.accepted events and rejects pending requests
// whose offered slot was consumed by the accepted swap.
func main() {
	cfg := config.Load(ServiceName)
	if cfg.StorageBackend == config.BackendMemory {
		cfg.Log.Fatal("The offer sweeper requires a shared storage backend", "storage_backend", cfg.StorageBackend)
	}
	cfg.SetStorage()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var producer *kafka.Producer
	if cfg.EventsEnabled {
		producer, err = kafka.NewProducer(kafkaCfg, cfg.EventsTopic, cfg.EventsDLQTopic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		}()
	}

	coordinator, err := initCoordinator(cfg, producer)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize swap coordinator", "error", err)
	}

	sweeper := matching.NewOfferSweeper(coordinator, cfg.Log)
	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.EventsTopic, cfg.SweeperGroupID, cfg.EventsDLQTopic, sweeper.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		metrics := &kafkamw.Metrics{}
		consumer.Use(kafkamw.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(metrics.ConsumerMiddleware())
		defer func() {
			cfg.Log.Info("Offer sweeper metrics", "metrics", metrics.Snapshot())
		}()
	}

	cfg.Log.Info("Starting offer sweeper", "topic", cfg.EventsTopic, "group_id", cfg.SweeperGroupID)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka consumer", "error", err)
	}
	cfg.Log.Info("Offer sweeper stopped")
}

func initCoordinator(cfg *config.Config, producer *kafka.Producer) (matching.Coordinator, error) {
	backend, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}

	events := matching.NoopPublisher()
	if producer != nil {
		events = matching.NewKafkaEventPublisher(producer, cfg.Log)
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenIssuer, cfg.TokenTTL)
	slotService := slotsservice.NewSlotService(backend.Slots, slotsvalidator.NewSlotValidator(cfg.Log), cfg)
	ledger := swapsservice.NewSwapLedger(backend.Requests, cfg)
	return matching.NewCoordinator(slotService, ledger, backend.TxManager, directory.New(backend.Slots, tokens), events, cfg), nil
}
