package handler

import (
	"github.com/gin-gonic/gin"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
)

// AssignmentHandler handles area assignment endpoints
type AssignmentHandler struct {
	BaseHandler
	assignments *stocktakingapp.AssignmentService
}

// NewAssignmentHandler creates a new AssignmentHandler
func NewAssignmentHandler(assignments *stocktakingapp.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// CreateWithAssignments creates a sheet and assigns its areas in two steps.
// When only the first step succeeds the response is 207 carrying the new
// sheet id.
// POST /stocktaking/sheets/with-assignments
func (h *AssignmentHandler) CreateWithAssignments(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req stocktakingapp.CreateSheetAndAssignRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sheet, err := h.assignments.CreateSheetAndAssign(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, stocktakingapp.CreateAndAssignResponse{Sheet: *sheet})
}

// ListAreas returns the areas of a sheet with their assignees
// GET /stocktaking/sheets/:id/areas
func (h *AssignmentHandler) ListAreas(c *gin.Context) {
	sheetID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	areas, err := h.assignments.ListAreas(c.Request.Context(), sheetID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, areas)
}

// Assign adds area assignments to a sheet, all or nothing
// POST /stocktaking/sheets/:id/assignments
func (h *AssignmentHandler) Assign(c *gin.Context) {
	sheetID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req stocktakingapp.AssignAreasRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sheet, err := h.assignments.AssignAreas(c.Request.Context(), sheetID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sheet)
}

// Reassign changes the assignees of several areas; each item is applied on
// its own
// PUT /stocktaking/sheets/:id/assignments
func (h *AssignmentHandler) Reassign(c *gin.Context) {
	sheetID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req stocktakingapp.AssignAreasRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sheet, err := h.assignments.ReassignAreas(c.Request.Context(), sheetID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sheet)
}

// Defaults returns the current assignees to pre-seed a reassignment form
// GET /stocktaking/sheets/:id/assignments/defaults?area_ids=a,b
func (h *AssignmentHandler) Defaults(c *gin.Context) {
	sheetID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	areaIDs, ok := h.uuidListQuery(c, "area_ids")
	if !ok {
		return
	}
	items, err := h.assignments.GetAssignmentDefaults(c.Request.Context(), sheetID, areaIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// ReassignArea changes the assignee of one sheet area
// PUT /stocktaking/areas/:areaId/assignee
func (h *AssignmentHandler) ReassignArea(c *gin.Context) {
	areaID, ok := h.uuidParam(c, "areaId")
	if !ok {
		return
	}
	var req stocktakingapp.ReassignAreaRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sheet, err := h.assignments.ReassignArea(c.Request.Context(), areaID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sheet)
}

// ListStaff returns the staff members holding a role
// GET /stocktaking/staff?role=
func (h *AssignmentHandler) ListStaff(c *gin.Context) {
	staff, err := h.assignments.ListStaff(c.Request.Context(), c.Query("role"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, staff)
}

// ListWarehouseAreas returns the warehouse areas that can be assigned
// GET /stocktaking/warehouse-areas
func (h *AssignmentHandler) ListWarehouseAreas(c *gin.Context) {
	areas, err := h.assignments.ListWarehouseAreas(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, areas)
}
