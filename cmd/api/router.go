package api

import (
	"net/http"
	"strconv"
	"time"

	actionDelivery "mailpilot-backend/internal/action/delivery"
	"mailpilot-backend/internal/activity"
	authDelivery "mailpilot-backend/internal/auth/delivery"
	emailDelivery "mailpilot-backend/internal/email/delivery"
	gmailDelivery "mailpilot-backend/internal/gmail/delivery"
	"mailpilot-backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, jwtSecret string, connectionHandler *gmailDelivery.ConnectionHandler, emailHandler *emailDelivery.EmailHandler, actionHandler *actionDelivery.ActionHandler, recorder *activity.Recorder) {
	requireAuth := authDelivery.AuthMiddleware(jwtSecret)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ok",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		})

		// Gmail connection routes
		gmail := api.Group("/gmail")
		{
			gmail.GET("/auth-url", requireAuth, connectionHandler.AuthURL)
			gmail.GET("/callback", connectionHandler.Callback) // browser redirect from Google
			gmail.GET("/status", requireAuth, connectionHandler.Status)
			gmail.POST("/disconnect", requireAuth, connectionHandler.Disconnect)
		}

		// Email routes (protected)
		emails := api.Group("/emails")
		emails.Use(requireAuth)
		{
			emails.GET("", emailHandler.ListEmails)
			emails.POST("/summarize-all", emailHandler.SummarizeAll)
			emails.POST("/:id/summarize", emailHandler.Summarize)
		}

		// Action routes (protected)
		actions := api.Group("/actions")
		actions.Use(requireAuth)
		{
			actions.POST("/execute", actionHandler.Execute)
			actions.POST("/reply", actionHandler.Reply)
		}

		// Activity history (protected, display only)
		api.GET("/activity", requireAuth, func(c *gin.Context) {
			user, ok := authDelivery.CurrentUser(c)
			if !ok {
				apperrors.Respond(c, apperrors.ErrUnauthorized)
				return
			}

			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
			entries, err := recorder.ListByUser(user.ID, limit)
			if err != nil {
				apperrors.Respond(c, err)
				return
			}

			c.JSON(http.StatusOK, gin.H{"activities": entries})
		})
	}
}
