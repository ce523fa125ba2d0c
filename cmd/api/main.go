package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fieldserve/workflow-service/internal/api/http"
	"github.com/fieldserve/workflow-service/internal/api/http/handlers"
	"github.com/fieldserve/workflow-service/internal/auth"
	"github.com/fieldserve/workflow-service/internal/config"
	"github.com/fieldserve/workflow-service/internal/events"
	"github.com/fieldserve/workflow-service/internal/geocode"
	"github.com/fieldserve/workflow-service/internal/location"
	"github.com/fieldserve/workflow-service/internal/notifier"
	"github.com/fieldserve/workflow-service/internal/observability"
	"github.com/fieldserve/workflow-service/internal/persistence"
	"github.com/fieldserve/workflow-service/internal/repository"
	"github.com/fieldserve/workflow-service/internal/service"
	"github.com/fieldserve/workflow-service/internal/sla"
	"github.com/fieldserve/workflow-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	visitRepo := repository.NewOnsiteVisitRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	contactRepo := repository.NewCustomerContactRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	hub := notifier.NewHub(notificationRepo, redis, logger, metrics, cfg.Hub.HeartbeatInterval())
	go hub.Run(ctx)
	defer hub.Stop()

	slaCalc := sla.NewCalculator(cfg.Sla.Location(), cfg.Sla.AtRiskFraction)
	validator := location.NewValidator(location.Region{
		MinLatitude:  cfg.Geo.MinLatitude,
		MaxLatitude:  cfg.Geo.MaxLatitude,
		MinLongitude: cfg.Geo.MinLongitude,
		MaxLongitude: cfg.Geo.MaxLongitude,
	})

	var geocoder geocode.Resolver
	if cfg.Geocode.BaseURL != "" {
		geocoder = geocode.NewClient(cfg.Geocode, logger)
	}

	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		VisitRepo:   visitRepo,
		ContactRepo: contactRepo,
		Validator:   validator,
		SlaCalc:     slaCalc,
		Hub:         hub,
		Geocoder:    geocoder,
		Cache:       redis,
		Dispatcher:  dispatcher,
		Logger:      logger,
		MaxSpeedKmh: cfg.Geo.MaxSpeedKmh,
	})
	notificationService := service.NewNotificationService(notificationRepo, redis, dispatcher, logger, cfg.SideChan)
	worker.StartNotificationWorker(notificationService)

	slaMonitor := worker.NewSlaMonitor(ticketRepo, slaCalc, hub, dispatcher, logger, cfg.Sla.MonitorIntervalSpec)
	if err := slaMonitor.Start(ctx); err != nil {
		logger.Fatal("failed to start sla monitor", zap.Error(err))
	}
	defer slaMonitor.Stop()

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, hub),
		Workflow:       handlers.NewWorkflowHandler(workflowService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Ws:             handlers.NewWsHandler(hub, tokenManager, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
