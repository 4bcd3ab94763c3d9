package api

import (
	actionDelivery "mailpilot-backend/internal/action/delivery"
	"mailpilot-backend/internal/activity"
	emailDelivery "mailpilot-backend/internal/email/delivery"
	gmailDelivery "mailpilot-backend/internal/gmail/delivery"
	"mailpilot-backend/pkg/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handler assembles the HTTP server from the wired delivery handlers.
type Handler struct {
	config            *config.Config
	connectionHandler *gmailDelivery.ConnectionHandler
	emailHandler      *emailDelivery.EmailHandler
	actionHandler     *actionDelivery.ActionHandler
	recorder          *activity.Recorder
}

func NewHandler(cfg *config.Config, connectionHandler *gmailDelivery.ConnectionHandler, emailHandler *emailDelivery.EmailHandler, actionHandler *actionDelivery.ActionHandler, recorder *activity.Recorder) *Handler {
	return &Handler{
		config:            cfg,
		connectionHandler: connectionHandler,
		emailHandler:      emailHandler,
		actionHandler:     actionHandler,
		recorder:          recorder,
	}
}

// Engine builds the configured gin engine without starting it.
func (h *Handler) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{h.config.FrontendURL}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	SetupRoutes(r, h.config.JWTSecret, h.connectionHandler, h.emailHandler, h.actionHandler, h.recorder)

	return r
}

func (h *Handler) Start(addr string) error {
	return h.Engine().Run(addr)
}
