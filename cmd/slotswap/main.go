package main

import (
	"fmt"

	"slotswap/internal/directory"
	"slotswap/internal/health"
	"slotswap/internal/matching"
	slotshandler "slotswap/internal/slots/handler"
	slotsservice "slotswap/internal/slots/service"
	slotsvalidator "slotswap/internal/slots/validator"
	"slotswap/internal/storage"
	swapshandler "slotswap/internal/swaps/handler"
	swapsservice "slotswap/internal/swaps/service"
	swapsvalidator "slotswap/internal/swaps/validator"
	"slotswap/pkg/app"
	"slotswap/pkg/auth"
	"slotswap/pkg/config"
	"slotswap/pkg/kafka"
	kafka_config "slotswap/pkg/kafka/config"
	kafkamw "slotswap/pkg/kafka/middleware"
)

const ServiceName = "slotswap"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStorage()

	cfg.Log.Info("Starting slotswap service", "storage_backend", cfg.StorageBackend)
	serverApp, err := newApplication(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize application", "error", err)
	}
	serverApp.Run()
}

func newApplication(cfg *config.Config) (*app.Application, error) {
	backend, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	serverApp := app.NewApplication(cfg)
	events, metrics, err := initEvents(cfg, serverApp)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize events: %w", err)
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenIssuer, cfg.TokenTTL)
	dir := directory.New(backend.Slots, tokens)

	slotService := slotsservice.NewSlotService(
		backend.Slots,
		slotsvalidator.NewSlotValidator(cfg.Log),
		cfg,
	)
	ledger := swapsservice.NewSwapLedger(backend.Requests, cfg)
	coordinator := matching.NewCoordinator(slotService, ledger, backend.TxManager, dir, events, cfg)
	cfg.Log.Info("Swap coordinator initialized",
		"stale_offer_policy", cfg.StaleOfferPolicy,
		"max_attempts", cfg.SwapMaxAttempts,
	)

	serverApp.SetApp(
		health.NewHealthHandler(cfg.Client, cfg.StorageBackend, metrics, cfg.Log),
		dir,
		slotshandler.NewSlotHandler(slotService, cfg.Log),
		swapshandler.NewSwapRequestHandler(coordinator, swapsvalidator.NewSwapRequestValidator(cfg.Log), cfg.Log),
	)
	return serverApp, nil
}

func initEvents(cfg *config.Config, serverApp *app.Application) (matching.EventPublisher, *kafkamw.Metrics, error) {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Swap events disabled")
		return matching.NoopPublisher(), nil, nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, nil, err
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.EventsTopic, cfg.EventsDLQTopic, cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	metrics := &kafkamw.Metrics{}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafkamw.LoggingProducerMiddleware(cfg.Log))
		producer.Use(metrics.ProducerMiddleware())
	}
	serverApp.OnShutdown(producer)

	cfg.Log.Info("Swap events enabled", "topic", cfg.EventsTopic, "dlq_topic", cfg.EventsDLQTopic)
	return matching.NewKafkaEventPublisher(producer, cfg.Log), metrics, nil
}
