package delivery

import (
	"fmt"
	"net/http"

	"mailpilot-backend/internal/action/usecase"
	authdelivery "mailpilot-backend/internal/auth/delivery"
	"mailpilot-backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// ActionHandler handles instruction execution and reply endpoints
type ActionHandler struct {
	actionUsecase usecase.ActionUsecase
}

// NewActionHandler creates a new ActionHandler
func NewActionHandler(actionUsecase usecase.ActionUsecase) *ActionHandler {
	return &ActionHandler{
		actionUsecase: actionUsecase,
	}
}

// ExecuteRequest represents the request body
type ExecuteRequest struct {
	EmailID     string `json:"emailId"`
	Instruction string `json:"instruction"`
}

// POST /api/actions/execute
func (h *ActionHandler) Execute(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EmailID == "" || req.Instruction == "" {
		apperrors.Respond(c, fmt.Errorf("%w: emailId and instruction required", apperrors.ErrValidation))
		return
	}

	result, err := h.actionUsecase.Execute(c.Request.Context(), user.ID, req.EmailID, req.Instruction)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReplyRequest represents the request body
type ReplyRequest struct {
	EmailID   string `json:"emailId"`
	ReplyBody string `json:"replyBody"`
}

// POST /api/actions/reply
func (h *ActionHandler) Reply(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EmailID == "" || req.ReplyBody == "" {
		apperrors.Respond(c, fmt.Errorf("%w: emailId and replyBody required", apperrors.ErrValidation))
		return
	}

	if err := h.actionUsecase.SendReply(c.Request.Context(), user.ID, req.EmailID, req.ReplyBody); err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reply sent"})
}
