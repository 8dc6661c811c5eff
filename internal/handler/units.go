package handler

import (
	"net/http"

	"ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// unitListLimit caps the unit overview used by the chat UI
const unitListLimit = 10

// UnitHandler handles unit-catalog read requests
type UnitHandler struct {
	recorder *service.Recorder
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(recorder *service.Recorder) *UnitHandler {
	return &UnitHandler{recorder: recorder}
}

// List handles GET /api/units
func (h *UnitHandler) List(c *gin.Context) {
	units, err := h.recorder.ListUnits(c.Request.Context(), unitListLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": units})
}
