package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/kho-shard/internal/application/inventory"
	"github.com/jhoicas/kho-shard/internal/domain/repository"
	"github.com/jhoicas/kho-shard/internal/infrastructure/metrics"
	"github.com/jhoicas/kho-shard/internal/infrastructure/notify"
	"github.com/jhoicas/kho-shard/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/kho-shard/internal/interfaces/http"
	"github.com/jhoicas/kho-shard/internal/shard"
	"github.com/jhoicas/kho-shard/pkg/config"
	"github.com/jhoicas/kho-shard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Int("shards", len(cfg.Shards)).
		Msg("iniciando aplicación")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("registro de métricas")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbLog := log.Component("postgres")
	registry, err := shard.Open(ctx, cfg, func(ctx context.Context, key string, db config.DBConfig) (repository.Store, error) {
		pool, err := postgres.NewPool(ctx, key, db.ConnectionString(), cfg.Pool)
		if err != nil {
			return nil, err
		}
		if cfg.Pool.ApplySchema {
			if err := postgres.ApplySchema(ctx, pool); err != nil {
				// El esquema puede estar gestionado por fuera; la conexión sigue siendo válida.
				dbLog.Error().Err(err).Str("connection", key).Msg("aplicar esquema")
			}
		}
		return postgres.NewStore(key, pool), nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer registry.Close()

	for key, pingErr := range registry.PingAll(ctx) {
		if pingErr != nil {
			log.Warn().Err(pingErr).Str("connection", key).Msg("conexión no disponible al arrancar")
			continue
		}
		log.Info().Str("connection", key).Msg("conexión lista")
	}

	router := shard.NewRouter(registry, cfg.Regions, log.Component("router"), collector)

	publisher, err := notify.NewPublisher(cfg.Notify, log.Component("notify"))
	if err != nil {
		log.Fatal().Err(err).Msg("configurar notificaciones")
	}
	notifier := notify.NewAsyncNotifier(publisher, cfg.Notify.Buffer, log.Component("notify"), collector)

	engine := inventory.NewDocumentEngine(router, notifier, collector, log.Component("engine"), cfg.Engine)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: httpRouter.ErrorHandler,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Documents:   engine,
		Connections: registry,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := notifier.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("cierre de notificaciones")
	}

	log.Info().Msg("aplicación detenida")
}
