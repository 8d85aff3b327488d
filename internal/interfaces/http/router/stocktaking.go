package router

import (
	"github.com/wms/stocktaking/internal/interfaces/http/handler"
)

// StocktakingHandlers are the handlers behind /api/v1/stocktaking
type StocktakingHandlers struct {
	Sheets      *handler.SheetHandler
	Assignments *handler.AssignmentHandler
	Scans       *handler.ScanHandler
	Rejections  *handler.RejectionHandler
	Reports     *handler.ReportHandler
}

// StocktakingRoutes declares every stocktaking endpoint
func StocktakingRoutes(h StocktakingHandlers) *DomainGroup {
	g := NewDomainGroup("stocktaking", "/stocktaking")

	sheets := g.Group("sheets", "/sheets")
	sheets.
		POST("", h.Sheets.Create).
		POST("/with-assignments", h.Assignments.CreateWithAssignments).
		GET("", h.Sheets.List).
		GET("/:id", h.Sheets.GetByID).
		PUT("/:id", h.Sheets.Update).
		POST("/:id/start", h.Sheets.Start).
		POST("/:id/submit", h.Sheets.Submit).
		POST("/:id/approve", h.Sheets.Approve).
		POST("/:id/complete", h.Sheets.Complete).
		POST("/:id/cancel", h.Sheets.Cancel).
		GET("/:id/progress", h.Sheets.GetProgress).
		GET("/:id/report", h.Reports.Export).
		GET("/:id/areas", h.Assignments.ListAreas).
		POST("/:id/assignments", h.Assignments.Assign).
		PUT("/:id/assignments", h.Assignments.Reassign).
		GET("/:id/assignments/defaults", h.Assignments.Defaults).
		GET("/:id/locations", h.Scans.ListLocations).
		POST("/:id/reject", h.Rejections.Reject).
		GET("/:id/reject/seed", h.Rejections.Seed)

	g.PUT("/areas/:areaId/assignee", h.Assignments.ReassignArea)
	g.GET("/staff", h.Assignments.ListStaff)
	g.GET("/warehouse-areas", h.Assignments.ListWarehouseAreas)

	locations := g.Group("locations", "/locations")
	locations.
		GET("/:locId", h.Scans.GetLocation).
		POST("/:locId/validate", h.Scans.ValidateCode).
		GET("/:locId/pallets", h.Scans.ListPallets).
		POST("/:locId/scan", h.Scans.Scan).
		POST("/:locId/pallets/:pid/match", h.Scans.Match).
		POST("/:locId/pallets/:pid/missing", h.Scans.MarkMissing).
		DELETE("/:locId/pallets/:pid/missing", h.Scans.UndoMissing).
		POST("/:locId/surplus", h.Scans.MarkSurplus).
		DELETE("/:locId/pallets/:pid", h.Scans.DeletePallet).
		POST("/:locId/confirm", h.Scans.Confirm)

	return g
}
