package delivery

import (
	"fmt"
	"net/http"

	authdelivery "mailpilot-backend/internal/auth/delivery"
	"mailpilot-backend/internal/gmail/usecase"
	"mailpilot-backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConnectionHandler handles the Gmail connect flow endpoints
type ConnectionHandler struct {
	connectionUsecase usecase.ConnectionUsecase
	frontendURL       string
	logger            *zap.Logger
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connectionUsecase usecase.ConnectionUsecase, frontendURL string, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		connectionUsecase: connectionUsecase,
		frontendURL:       frontendURL,
		logger:            logger,
	}
}

// GET /api/gmail/auth-url
func (h *ConnectionHandler) AuthURL(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": h.connectionUsecase.AuthURL(user.ID)})
}

// GET /api/gmail/callback
// The browser lands here from Google's consent screen, so failures redirect
// back to the frontend instead of returning JSON.
func (h *ConnectionHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		c.Redirect(http.StatusFound, fmt.Sprintf("%s/connect?error=missing_params", h.frontendURL))
		return
	}

	if err := h.connectionUsecase.HandleCallback(c.Request.Context(), code, state); err != nil {
		h.logger.Error("gmail callback failed", zap.Error(err))
		c.Redirect(http.StatusFound, fmt.Sprintf("%s/connect?error=auth_failed", h.frontendURL))
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("%s/dashboard?gmail=connected", h.frontendURL))
}

// GET /api/gmail/status
func (h *ConnectionHandler) Status(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	status, err := h.connectionUsecase.Status(user.ID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// POST /api/gmail/disconnect
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.connectionUsecase.Disconnect(user.ID); err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
