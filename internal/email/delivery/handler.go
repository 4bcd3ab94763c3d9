package delivery

import (
	"fmt"
	"net/http"
	"strconv"

	authdelivery "mailpilot-backend/internal/auth/delivery"
	"mailpilot-backend/internal/email/usecase"
	"mailpilot-backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// EmailHandler handles email listing and summarization endpoints
type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

// NewEmailHandler creates a new EmailHandler
func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

// GET /api/emails?maxResults=20&days=3&query=is:inbox
func (h *EmailHandler) ListEmails(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	maxResults, _ := strconv.Atoi(c.DefaultQuery("maxResults", "20"))
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))
	query := c.Query("query")

	result, err := h.emailUsecase.ListEmails(c.Request.Context(), user.ID, maxResults, days, query)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// POST /api/emails/:id/summarize
func (h *EmailHandler) Summarize(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	emailID := c.Param("id")
	if emailID == "" {
		apperrors.Respond(c, fmt.Errorf("%w: email id required", apperrors.ErrValidation))
		return
	}

	result, err := h.emailUsecase.Summarize(c.Request.Context(), user.ID, emailID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SummarizeAllRequest represents the request body
type SummarizeAllRequest struct {
	EmailIDs []string `json:"emailIds" binding:"required"`
}

// POST /api/emails/summarize-all
func (h *EmailHandler) SummarizeAll(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	var req SummarizeAllRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.EmailIDs) == 0 {
		apperrors.Respond(c, fmt.Errorf("%w: emailIds required", apperrors.ErrValidation))
		return
	}

	results, err := h.emailUsecase.SummarizeAll(c.Request.Context(), user.ID, req.EmailIDs)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
