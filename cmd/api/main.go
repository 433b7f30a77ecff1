package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/abasto/abasto-api/internal/application/allocator"
	"github.com/abasto/abasto-api/internal/application/ledger"
	"github.com/abasto/abasto-api/internal/application/workflow"
	"github.com/abasto/abasto-api/internal/domain/repository"
	"github.com/abasto/abasto-api/internal/infrastructure/memstore"
	"github.com/abasto/abasto-api/internal/infrastructure/messaging"
	"github.com/abasto/abasto-api/internal/infrastructure/notify"
	"github.com/abasto/abasto-api/internal/infrastructure/postgres"
	"github.com/abasto/abasto-api/internal/infrastructure/treerepo"
	httpRouter "github.com/abasto/abasto-api/internal/interfaces/http"
	"github.com/abasto/abasto-api/pkg/config"
	"github.com/abasto/abasto-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("backend", cfg.Store.Backend).
		Msg("iniciando aplicación")

	ctx := context.Background()

	var store repository.TreeStore
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Store)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		pgStore := postgres.NewStore(pool, log)
		defer pgStore.Close()
		store = pgStore
	default:
		store = memstore.New()
	}

	materialRepo := treerepo.NewMaterialRepository(store)
	movementRepo := treerepo.NewMovementRepository(store)
	requestRepo := treerepo.NewRequestRepository(store)
	dispatchRepo := treerepo.NewDispatchRepository(store)
	locationRepo := treerepo.NewLocationRepository(store)

	var notifier repository.Notifier
	if cfg.Redis.Addr != "" {
		rn, err := notify.NewRedisNotifier(cfg.Redis.Addr, cfg.Redis.Channel, log)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rn.Close()
		notifier = rn
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	stockLedger := ledger.NewLedger(materialRepo, movementRepo, log)
	alloc := allocator.NewAllocator(stockLedger, dispatchRepo, locationRepo, log)
	orch := workflow.NewOrchestrator(requestRepo, dispatchRepo, stockLedger, alloc, notifier, log)

	// Puente de eventos confirmados hacia Kafka. Sin brokers configurados los
	// eventos solo quedan en el log.
	consumerDone := make(chan struct{})
	var publisher repository.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
	}
	go func() {
		defer close(consumerDone)
		for ev := range orch.Events() {
			log.Info().
				Str("type", ev.Type).
				Str("requestId", ev.RequestID).
				Str("status", ev.Status).
				Msg("evento de workflow")
			if publisher == nil {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("type", ev.Type).Msg("serializar evento")
				continue
			}
			if err := publisher.Publish(context.Background(), ev.RequestID, json.RawMessage(payload)); err != nil {
				log.Error().Err(err).Str("type", ev.Type).Msg("publicar evento")
			}
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Materials:    materialRepo,
		Requests:     requestRepo,
		Locations:    locationRepo,
		Ledger:       stockLedger,
		Allocator:    alloc,
		Orchestrator: orch,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	orch.CloseEvents()
	<-consumerDone

	log.Info().Msg("aplicación detenida")
}
