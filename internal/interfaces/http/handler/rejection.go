package handler

import (
	"github.com/gin-gonic/gin"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
)

// RejectionHandler handles recount requests
type RejectionHandler struct {
	BaseHandler
	rejections *stocktakingapp.RejectionService
}

// NewRejectionHandler creates a new RejectionHandler
func NewRejectionHandler(rejections *stocktakingapp.RejectionService) *RejectionHandler {
	return &RejectionHandler{rejections: rejections}
}

// Seed returns the default reject reasons built from recorded findings
// GET /stocktaking/sheets/:id/reject/seed?location_ids=a,b
func (h *RejectionHandler) Seed(c *gin.Context) {
	sheetID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	locationIDs, ok := h.uuidListQuery(c, "location_ids")
	if !ok {
		return
	}
	seeds, err := h.rejections.SeedRejectReasons(c.Request.Context(), sheetID, locationIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seeds)
}

// Reject sends counted locations back for recount
// POST /stocktaking/sheets/:id/reject
func (h *RejectionHandler) Reject(c *gin.Context) {
	sheetID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req stocktakingapp.RejectLocationsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sheet, err := h.rejections.RejectLocations(c.Request.Context(), actor, sheetID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sheet)
}
