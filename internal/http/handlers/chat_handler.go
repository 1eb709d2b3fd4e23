// Chat assistant HTTP handlers.
//
//   - POST /chat/messages
//   - GET  /chat/sessions/{id}/messages
//
// Sessions are client-chosen ids; signed-in callers have their user id
// recorded on the messages they send.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/quilt-shop-backend/internal/domain"
	"github.com/tbourn/quilt-shop-backend/internal/utils"
)

// ChatRequest is the JSON payload for sending a chat message.
type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required" example:"f3a1c2d4-session"`
	Message   string `json:"message" binding:"required" example:"Which pattern suits a first quilt?"`
}

// ChatResponse carries the assistant's reply.
type ChatResponse struct {
	Message *domain.ChatMessage `json:"message"`
}

// ChatHistoryResponse lists a session's messages, oldest first.
type ChatHistoryResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// PostChatMessage godoc
// @ID          postChatMessage
// @Summary     Ask the quilting assistant
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ChatRequest  true  "Message"
// @Success     201   {object}  handlers.ChatResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502   {object}  handlers.ErrorResponse  "Assistant unavailable"
// @Router      /chat/messages [post]
func (h *Handlers) PostChatMessage(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id and message are required")
		return
	}
	msg, err := h.svc.Assistant.Reply(c.Request.Context(), caller(c), req.SessionID, req.Message)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, ChatResponse{Message: msg})
}

// ChatHistory godoc
// @ID          chatHistory
// @Summary     Chat session history
// @Tags        Chat
// @Produce     json
// @Param       id     path      string  true   "Session ID"
// @Param       limit  query     int     false  "Max messages"  minimum(1) maximum(50) default(50)
// @Success     200    {object}  handlers.ChatHistoryResponse
// @Failure     400    {object}  handlers.ErrorResponse  "Bad request"
// @Router      /chat/sessions/{id}/messages [get]
func (h *Handlers) ChatHistory(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 0)
	items, err := h.svc.Assistant.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChatHistoryResponse{Messages: items})
}
