package handler

import (
	"net/http"

	"ledger/internal/model"
	"ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// TransactionHandler handles confirm/record HTTP requests
type TransactionHandler struct {
	conversation *service.Conversation
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(conversation *service.Conversation) *TransactionHandler {
	return &TransactionHandler{conversation: conversation}
}

// Create handles POST /api/transactions
func (h *TransactionHandler) Create(c *gin.Context) {
	var req model.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	txn, err := h.conversation.Confirm(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.RecordResponse{Success: true, Data: txn})
}
