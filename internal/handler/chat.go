package handler

import (
	"net/http"

	"ledger/internal/model"
	"ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// defaultSessionID is used when the client does not name a session
const defaultSessionID = "default"

// ChatHandler handles chat-turn HTTP requests
type ChatHandler struct {
	conversation *service.Conversation
}

// NewChatHandler creates a new chat handler
func NewChatHandler(conversation *service.Conversation) *ChatHandler {
	return &ChatHandler{conversation: conversation}
}

func sessionID(c *gin.Context) string {
	if id := c.GetHeader("X-Session-Id"); id != "" {
		return id
	}
	return defaultSessionID
}

// Submit handles POST /api/chat
func (h *ChatHandler) Submit(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Inline credential override travels in headers, never in the body
	opts := service.SubmitOptions{
		Credentials: service.Credentials{
			APIKey:    c.GetHeader("x-ai-api-key"),
			BaseURL:   c.GetHeader("x-ai-base-url"),
			ModelName: c.GetHeader("x-ai-model-name"),
		},
		ProviderID: req.ProviderID,
		ModelID:    req.ModelID,
	}

	result, err := h.conversation.Submit(c.Request.Context(), sessionID(c), req.Message, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		Reply:         result.Reply,
		Entities:      result.Entities(),
		MissingFields: result.MissingFields,
	})
}

// Messages handles GET /api/chat/messages
func (h *ChatHandler) Messages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.conversation.Messages(sessionID(c))})
}
