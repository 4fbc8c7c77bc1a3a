package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/surveyops/review-api/internal/config"
	"github.com/surveyops/review-api/internal/database"
	"github.com/surveyops/review-api/internal/handler"
	"github.com/surveyops/review-api/internal/middleware"
	"github.com/surveyops/review-api/internal/models"
	"github.com/surveyops/review-api/internal/repository"
	"github.com/surveyops/review-api/internal/router"
	"github.com/surveyops/review-api/internal/service"
	"github.com/surveyops/review-api/internal/workflow"
	"github.com/surveyops/review-api/pkg/surveyapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.ReviewRecord{}, &models.AuditEntry{}, &models.Reviewer{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	recordRepo := repository.NewRecordRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)
	reviewerRepo := repository.NewReviewerRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	engine, err := workflow.NewEngine(recordRepo, reviewerRepo, nil, workflow.Config{
		SamplingPercentage: cfg.SamplingPercentage,
	}, logger)
	if err != nil {
		log.Fatalf("failed to build workflow engine: %v", err)
	}

	publisher := service.NewEventPublisher(redisClient, natsConn, cfg.EventChannel, logger)
	publisher.Attach(engine)

	reviewService := service.NewReviewService(engine, recordRepo, validate, logger)
	statsService := service.NewStatsService(statsRepo, auditLogRepo, redisClient, cfg.StatsCacheTTL, logger)

	var importHandler *handler.ImportHandler
	if cfg.SourceBaseURL != "" {
		sourceClient, err := surveyapi.New(surveyapi.Config{
			BaseURL:  cfg.SourceBaseURL,
			APIKey:   cfg.SourceAPIKey,
			PageSize: cfg.SourcePageSize,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create survey api client: %v", err)
		}

		importService, err := service.NewImportService(sourceClient, recordRepo, auditLogRepo, reviewerRepo, logger)
		if err != nil {
			log.Fatalf("failed to build import service: %v", err)
		}
		importHandler = handler.NewImportHandler(importService, logger)
	}

	reviewHandler := handler.NewReviewHandler(reviewService, logger)
	workflowHandler := handler.NewWorkflowHandler(statsService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ReviewHandler:   reviewHandler,
		WorkflowHandler: workflowHandler,
		ImportHandler:   importHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
