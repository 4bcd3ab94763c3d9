package main

import (
	"log"

	api "mailpilot-backend/cmd/api"
	actionDelivery "mailpilot-backend/internal/action/delivery"
	actionUsecase "mailpilot-backend/internal/action/usecase"
	"mailpilot-backend/internal/activity"
	activitydomain "mailpilot-backend/internal/activity/domain"
	activityRepo "mailpilot-backend/internal/activity/repository"
	emailDelivery "mailpilot-backend/internal/email/delivery"
	emaildomain "mailpilot-backend/internal/email/domain"
	emailRepo "mailpilot-backend/internal/email/repository"
	emailUsecase "mailpilot-backend/internal/email/usecase"
	gmailDelivery "mailpilot-backend/internal/gmail/delivery"
	gmaildomain "mailpilot-backend/internal/gmail/domain"
	gmailRepo "mailpilot-backend/internal/gmail/repository"
	gmailUsecase "mailpilot-backend/internal/gmail/usecase"
	"mailpilot-backend/pkg/anthropic"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/database"
	"mailpilot-backend/pkg/gmail"
	"mailpilot-backend/pkg/logging"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&gmaildomain.GmailConnection{}, &emaildomain.EmailSummary{}, &activitydomain.ActivityLog{}); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize repositories (dependency injection)
	connectionRepository := gmailRepo.NewConnectionRepository(db)
	summaryRepository := emailRepo.NewEmailSummaryRepository(db)
	activityRepository := activityRepo.NewActivityLogRepository(db)

	// Initialize provider clients
	oauthService := gmail.NewOAuthService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	mailService := gmail.NewService()
	llmClient := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)

	// Initialize use cases (dependency injection)
	recorder := activity.NewRecorder(activityRepository, logger)
	connectionUsecaseInstance := gmailUsecase.NewConnectionUsecase(connectionRepository, oauthService, recorder, logger)
	emailUsecaseInstance := emailUsecase.NewEmailUsecase(summaryRepository, connectionUsecaseInstance, mailService, llmClient, recorder, logger, cfg.EmailDefaultDays)
	actionUsecaseInstance := actionUsecase.NewActionUsecase(connectionUsecaseInstance, mailService, llmClient, recorder)

	// Initialize HTTP handler
	handler := api.NewHandler(cfg,
		gmailDelivery.NewConnectionHandler(connectionUsecaseInstance, cfg.FrontendURL, logger),
		emailDelivery.NewEmailHandler(emailUsecaseInstance),
		actionDelivery.NewActionHandler(actionUsecaseInstance),
		recorder,
	)

	// Start server
	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := handler.Start(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
