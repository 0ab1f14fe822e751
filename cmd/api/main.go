package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/threadwell/conversation-service/internal/api/http"
	"github.com/threadwell/conversation-service/internal/api/http/handlers"
	"github.com/threadwell/conversation-service/internal/auth"
	"github.com/threadwell/conversation-service/internal/config"
	"github.com/threadwell/conversation-service/internal/events"
	"github.com/threadwell/conversation-service/internal/mail"
	"github.com/threadwell/conversation-service/internal/observability"
	"github.com/threadwell/conversation-service/internal/persistence"
	"github.com/threadwell/conversation-service/internal/repository"
	"github.com/threadwell/conversation-service/internal/service"
	"github.com/threadwell/conversation-service/internal/storage"
	"github.com/threadwell/conversation-service/internal/stream"
	"github.com/threadwell/conversation-service/internal/worker"
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

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	agentRepo := repository.NewAgentRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	tagRepo := repository.NewTagRepository(pool)
	emailOpenRepo := repository.NewEmailOpenRepository(pool)

	blobs, err := storage.NewDiskStore(cfg.Storage.Dir)
	if err != nil {
		logger.Fatal("failed to init attachment store", zap.Error(err))
	}

	var transport mail.Transport
	if cfg.Mail.Host != "" {
		transport = mail.NewSMTPTransport(cfg.Mail)
	} else {
		logger.Warn("SMTP_HOST not set; outbound email is logged, not delivered")
		transport = mail.NewLogTransport(logger)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)

	broadcaster := stream.NewBroadcaster(logger, metrics)
	broadcaster.Register(dispatcher)

	webhookService := service.NewWebhookService(dispatcher, logger, metrics, cfg.Webhook)
	webhookService.RegisterHandlers()

	dedup := persistence.NewDedupCache(redis, time.Duration(cfg.Intake.DedupTTLHours)*time.Hour)

	authService := service.NewAuthService(cfg.Auth, agentRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), agentRepo)

	intakeService := service.NewIntakeService(service.IntakeDependencies{
		TicketRepo:     ticketRepo,
		MessageRepo:    messageRepo,
		AttachmentRepo: attachmentRepo,
		Dedup:          dedup,
		Blobs:          blobs,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		MessageRepo:    messageRepo,
		HistoryRepo:    historyRepo,
		AttachmentRepo: attachmentRepo,
		TagRepo:        tagRepo,
		EmailOpenRepo:  emailOpenRepo,
		Transport:      transport,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
	})

	scheduler := worker.NewScheduler(ticketService, logger, cfg.Worker)
	go scheduler.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Intake:         handlers.NewIntakeHandler(intakeService, cfg.Intake),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Stream:         handlers.NewStreamHandler(broadcaster, dispatcher, logger, cfg.Stream),
		Tracking:       handlers.NewTrackingHandler(ticketService, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
