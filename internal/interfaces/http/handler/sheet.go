package handler

import (
	"github.com/gin-gonic/gin"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
	"github.com/wms/stocktaking/internal/interfaces/http/middleware"
)

// SheetHandler handles the sheet lifecycle endpoints
type SheetHandler struct {
	BaseHandler
	sheets *stocktakingapp.SheetService
}

// NewSheetHandler creates a new SheetHandler
func NewSheetHandler(sheets *stocktakingapp.SheetService) *SheetHandler {
	return &SheetHandler{sheets: sheets}
}

// Create creates a Draft sheet
// POST /stocktaking/sheets
func (h *SheetHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req stocktakingapp.CreateSheetRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sheet, err := h.sheets.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sheet)
}

// List returns a page of sheets
// GET /stocktaking/sheets?status=&staff_id=&page=&page_size=
func (h *SheetHandler) List(c *gin.Context) {
	var filter stocktakingapp.SheetListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	sheets, total, err := h.sheets.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, sheets, total, filter.Page, filter.PageSize)
}

// GetByID returns one sheet with its areas
// GET /stocktaking/sheets/:id
func (h *SheetHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	sheet, err := h.sheets.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sheet)
}

// Update edits a sheet's start time and note
// PUT /stocktaking/sheets/:id
func (h *SheetHandler) Update(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req stocktakingapp.UpdateSheetRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func() (*stocktakingapp.SheetResponse, error) {
		return h.sheets.Update(c.Request.Context(), id, req)
	})
}

// Start seeds the counting locations and moves the sheet to InProgress
// POST /stocktaking/sheets/:id/start
func (h *SheetHandler) Start(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	h.respond(c, func() (*stocktakingapp.SheetResponse, error) {
		return h.sheets.Start(c.Request.Context(), id)
	})
}

// Submit sends a fully counted sheet for approval
// POST /stocktaking/sheets/:id/submit
func (h *SheetHandler) Submit(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	h.respond(c, func() (*stocktakingapp.SheetResponse, error) {
		return h.sheets.SubmitForApproval(c.Request.Context(), id)
	})
}

// Approve approves a sheet pending approval
// POST /stocktaking/sheets/:id/approve
func (h *SheetHandler) Approve(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.respond(c, func() (*stocktakingapp.SheetResponse, error) {
		return h.sheets.Approve(c.Request.Context(), actor, id)
	})
}

// Complete closes an approved sheet
// POST /stocktaking/sheets/:id/complete
func (h *SheetHandler) Complete(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.respond(c, func() (*stocktakingapp.SheetResponse, error) {
		return h.sheets.Complete(c.Request.Context(), actor, id)
	})
}

// Cancel cancels a sheet that has not been approved
// POST /stocktaking/sheets/:id/cancel
func (h *SheetHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req stocktakingapp.CancelSheetRequest
	// the reason is optional, so an empty body is fine
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func() (*stocktakingapp.SheetResponse, error) {
		return h.sheets.Cancel(c.Request.Context(), id, req)
	})
}

// GetProgress returns counting progress per area
// GET /stocktaking/sheets/:id/progress
func (h *SheetHandler) GetProgress(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	progress, err := h.sheets.GetProgress(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, progress)
}

func (h *SheetHandler) respond(c *gin.Context, fn func() (*stocktakingapp.SheetResponse, error)) {
	sheet, err := fn()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sheet)
}
