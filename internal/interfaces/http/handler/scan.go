package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
)

// ScanHandler handles location counting endpoints
type ScanHandler struct {
	BaseHandler
	scans *stocktakingapp.ScanService
}

// NewScanHandler creates a new ScanHandler
func NewScanHandler(scans *stocktakingapp.ScanService) *ScanHandler {
	return &ScanHandler{scans: scans}
}

// ListLocations lists the counting locations of a sheet
// GET /stocktaking/sheets/:id/locations?sheet_area_id=
func (h *ScanHandler) ListLocations(c *gin.Context) {
	sheetID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var areaID *uuid.UUID
	if raw := c.Query("sheet_area_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid sheet_area_id format")
			return
		}
		areaID = &id
	}

	locations, err := h.scans.ListLocations(c.Request.Context(), sheetID, areaID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, locations)
}

// GetLocation returns a counting location with its pallets
// GET /stocktaking/locations/:locId
func (h *ScanHandler) GetLocation(c *gin.Context) {
	locationID, ok := h.uuidParam(c, "locId")
	if !ok {
		return
	}
	location, err := h.scans.GetLocation(c.Request.Context(), locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, location)
}

// ValidateCode checks the location code the counter scanned
// POST /stocktaking/locations/:locId/validate
func (h *ScanHandler) ValidateCode(c *gin.Context) {
	actor, locationID, ok := h.counting(c)
	if !ok {
		return
	}
	var req stocktakingapp.ValidateLocationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	meta, err := h.scans.ValidateLocationCode(c.Request.Context(), actor, locationID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, meta)
}

// ListPallets returns the pallets recorded at a location
// GET /stocktaking/locations/:locId/pallets
func (h *ScanHandler) ListPallets(c *gin.Context) {
	locationID, ok := h.uuidParam(c, "locId")
	if !ok {
		return
	}
	pallets, err := h.scans.ListPallets(c.Request.Context(), locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pallets)
}

// Scan registers a scanned pallet barcode
// POST /stocktaking/locations/:locId/scan
func (h *ScanHandler) Scan(c *gin.Context) {
	actor, locationID, ok := h.counting(c)
	if !ok {
		return
	}
	var req stocktakingapp.ScanPalletRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.scans.ScanPallet(c.Request.Context(), actor, locationID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Created {
		h.Created(c, result)
		return
	}
	h.Success(c, result)
}

// Match records the counted quantity of an expected pallet
// POST /stocktaking/locations/:locId/pallets/:pid/match
func (h *ScanHandler) Match(c *gin.Context) {
	actor, locationID, palletID, ok := h.countingPallet(c)
	if !ok {
		return
	}
	var req stocktakingapp.MatchPalletRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respondPallet(c, func() (*stocktakingapp.PalletResponse, error) {
		return h.scans.MatchPallet(c.Request.Context(), actor, locationID, palletID, req)
	})
}

// MarkMissing declares an expected pallet missing
// POST /stocktaking/locations/:locId/pallets/:pid/missing
func (h *ScanHandler) MarkMissing(c *gin.Context) {
	actor, locationID, palletID, ok := h.countingPallet(c)
	if !ok {
		return
	}
	var req stocktakingapp.MarkMissingRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	h.respondPallet(c, func() (*stocktakingapp.PalletResponse, error) {
		return h.scans.MarkMissing(c.Request.Context(), actor, locationID, palletID, req)
	})
}

// UndoMissing reverts a missing pallet to unscanned
// DELETE /stocktaking/locations/:locId/pallets/:pid/missing
func (h *ScanHandler) UndoMissing(c *gin.Context) {
	actor, locationID, palletID, ok := h.countingPallet(c)
	if !ok {
		return
	}
	h.respondPallet(c, func() (*stocktakingapp.PalletResponse, error) {
		return h.scans.UndoMissing(c.Request.Context(), actor, locationID, palletID)
	})
}

// MarkSurplus records a pallet found without expectation
// POST /stocktaking/locations/:locId/surplus
func (h *ScanHandler) MarkSurplus(c *gin.Context) {
	actor, locationID, ok := h.counting(c)
	if !ok {
		return
	}
	var req stocktakingapp.MarkSurplusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	pallet, err := h.scans.MarkSurplus(c.Request.Context(), actor, locationID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, pallet)
}

// DeletePallet removes a surplus record
// DELETE /stocktaking/locations/:locId/pallets/:pid
func (h *ScanHandler) DeletePallet(c *gin.Context) {
	actor, locationID, palletID, ok := h.countingPallet(c)
	if !ok {
		return
	}
	if err := h.scans.DeletePallet(c.Request.Context(), actor, locationID, palletID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Confirm flushes pending edits and closes the location. A partially
// written flush answers 207 and leaves the location Pending.
// POST /stocktaking/locations/:locId/confirm
func (h *ScanHandler) Confirm(c *gin.Context) {
	actor, locationID, ok := h.counting(c)
	if !ok {
		return
	}
	var req stocktakingapp.ConfirmLocationRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	location, err := h.scans.ConfirmLocation(c.Request.Context(), actor, locationID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, location)
}

func (h *ScanHandler) counting(c *gin.Context) (stocktakingapp.Actor, uuid.UUID, bool) {
	actor, ok := h.actor(c)
	if !ok {
		return actor, uuid.Nil, false
	}
	locationID, ok := h.uuidParam(c, "locId")
	return actor, locationID, ok
}

func (h *ScanHandler) countingPallet(c *gin.Context) (stocktakingapp.Actor, uuid.UUID, uuid.UUID, bool) {
	actor, locationID, ok := h.counting(c)
	if !ok {
		return actor, locationID, uuid.Nil, false
	}
	palletID, ok := h.uuidParam(c, "pid")
	return actor, locationID, palletID, ok
}

func (h *ScanHandler) respondPallet(c *gin.Context, fn func() (*stocktakingapp.PalletResponse, error)) {
	pallet, err := fn()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pallet)
}
