package stocktaking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
)

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

// HasRole reports whether the actor holds role
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ===================== Request DTOs =====================

// CreateSheetRequest represents a request to create a sheet
type CreateSheetRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	Note      string    `json:"note" binding:"max=1000"`
}

// UpdateSheetRequest represents a request to update a sheet
type UpdateSheetRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	Note      string    `json:"note" binding:"max=1000"`
}

// AssignmentItem pairs a warehouse area with a staff member.
// StaffID is optional at the binding layer so a missing staff is reported
// as a domain validation error for the whole batch.
type AssignmentItem struct {
	AreaID  uuid.UUID `json:"area_id" binding:"required"`
	StaffID uuid.UUID `json:"staff_id"`
}

// AssignAreasRequest represents an assign or bulk reassign request
type AssignAreasRequest struct {
	Assignments []AssignmentItem `json:"assignments" binding:"required,min=1,dive"`
}

// CreateSheetAndAssignRequest creates a sheet and its first assignment batch
type CreateSheetAndAssignRequest struct {
	CreateSheetRequest
	Assignments []AssignmentItem `json:"assignments" binding:"required,min=1,dive"`
}

// ReassignAreaRequest represents a single-area reassignment
type ReassignAreaRequest struct {
	StaffID uuid.UUID `json:"staff_id"`
}

// CancelSheetRequest represents a request to cancel a sheet
type CancelSheetRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ValidateLocationRequest carries a scanned location code
type ValidateLocationRequest struct {
	Code string `json:"code" binding:"required,notblank,max=100"`
}

// ScanPalletRequest carries a scanned pallet barcode
type ScanPalletRequest struct {
	Barcode string `json:"barcode" binding:"required,notblank,max=100"`
}

// MatchPalletRequest records the counted quantity of an expected pallet
type MatchPalletRequest struct {
	ActualPackageQuantity *int   `json:"actual_package_quantity" binding:"required"`
	Note                  string `json:"note" binding:"max=500"`
}

// MarkMissingRequest declares an expected pallet missing
type MarkMissingRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// MarkSurplusRequest records a pallet found without expectation
type MarkSurplusRequest struct {
	Barcode               string `json:"barcode" binding:"required,notblank,max=100"`
	ActualPackageQuantity *int   `json:"actual_package_quantity" binding:"required"`
	Note                  string `json:"note" binding:"max=500"`
}

// PendingEntryKind distinguishes provisional edits submitted with a confirmation
type PendingEntryKind string

const (
	PendingMatch   PendingEntryKind = "match"
	PendingSurplus PendingEntryKind = "surplus"
)

// PendingEntry is one locally edited, not yet saved Match or Surplus edit
type PendingEntry struct {
	Kind                  PendingEntryKind `json:"kind" binding:"required,oneof=match surplus"`
	PalletID              uuid.UUID        `json:"pallet_id"`
	Barcode               string           `json:"barcode" binding:"max=100"`
	ActualPackageQuantity *int             `json:"actual_package_quantity" binding:"required"`
	Note                  string           `json:"note" binding:"max=500"`
}

// key identifies the entry inside batch outcomes
func (e PendingEntry) key() string {
	if e.Kind == PendingMatch {
		return e.PalletID.String()
	}
	return stocktaking.NormalizeCode(e.Barcode)
}

// ConfirmLocationRequest closes a location, flushing its pending edits first
type ConfirmLocationRequest struct {
	Pending []PendingEntry `json:"pending" binding:"omitempty,dive"`
}

// RejectLocationItem is one location sent back for recount
type RejectLocationItem struct {
	StocktakingLocationID uuid.UUID `json:"stocktaking_location_id" binding:"required"`
	LocationID            uuid.UUID `json:"location_id"`
	RejectReason          string    `json:"reject_reason" binding:"max=2000"`
}

// RejectLocationsRequest sends locations back for recount
type RejectLocationsRequest struct {
	Locations []RejectLocationItem `json:"locations" binding:"required,min=1,dive"`
}

// SheetListFilter represents filter options for sheet lists
type SheetListFilter struct {
	Status   string     `form:"status"`
	StaffID  *uuid.UUID `form:"staff_id"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ===================== Response DTOs =====================

// AreaResponse represents a sheet area in API responses
type AreaResponse struct {
	ID          uuid.UUID       `json:"id"`
	AreaID      uuid.UUID       `json:"area_id"`
	AreaCode    string          `json:"area_code"`
	AreaName    string          `json:"area_name"`
	AssignTo    *uuid.UUID      `json:"assign_to"`
	Status      int             `json:"status"`
	StatusName  string          `json:"status_name"`
	Temperature decimal.Decimal `json:"temperature"`
	Humidity    decimal.Decimal `json:"humidity"`
	Light       decimal.Decimal `json:"light"`
}

// SheetResponse represents a sheet in API responses
type SheetResponse struct {
	ID           uuid.UUID      `json:"id"`
	Code         string         `json:"code"`
	Status       int            `json:"status"`
	StatusName   string         `json:"status_name"`
	StartTime    time.Time      `json:"start_time"`
	Note         string         `json:"note"`
	CreatedByID  uuid.UUID      `json:"created_by_id"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	SubmittedAt  *time.Time     `json:"submitted_at,omitempty"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	ApprovedByID *uuid.UUID     `json:"approved_by_id,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CancelledAt  *time.Time     `json:"cancelled_at,omitempty"`
	CancelReason string         `json:"cancel_reason,omitempty"`
	Areas        []AreaResponse `json:"areas"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// PalletResponse represents a pallet record in API responses
type PalletResponse struct {
	ID                      uuid.UUID  `json:"id"`
	PalletID                *uuid.UUID `json:"pallet_id"`
	PalletCode              string     `json:"pallet_code"`
	ExpectedPackageQuantity *int       `json:"expected_package_quantity"`
	ActualPackageQuantity   *int       `json:"actual_package_quantity"`
	Status                  int        `json:"status"`
	StatusName              string     `json:"status_name"`
	Note                    string     `json:"note,omitempty"`
	Scanned                 bool       `json:"scanned"`
	ScannedAt               *time.Time `json:"scanned_at,omitempty"`
	GoodsCode               string     `json:"goods_code,omitempty"`
	GoodsName               string     `json:"goods_name,omitempty"`
	BatchNumber             string     `json:"batch_number,omitempty"`
	ExpiryDate              *time.Time `json:"expiry_date,omitempty"`
}

// ScanPalletResponse reports the outcome of a pallet scan
type ScanPalletResponse struct {
	Pallet  PalletResponse `json:"pallet"`
	Created bool           `json:"created"`
}

// LocationMetadataResponse is returned for an accepted location code
type LocationMetadataResponse struct {
	StocktakingLocationID uuid.UUID `json:"stocktaking_location_id"`
	LocationCode          string    `json:"location_code"`
	Area                  string    `json:"area"`
	Rack                  string    `json:"rack"`
	Row                   string    `json:"row"`
	Column                string    `json:"column"`
}

// LocationResponse represents a counting location in API responses
type LocationResponse struct {
	ID               uuid.UUID        `json:"id"`
	SheetID          uuid.UUID        `json:"sheet_id"`
	SheetAreaID      uuid.UUID        `json:"sheet_area_id"`
	LocationID       uuid.UUID        `json:"location_id"`
	LocationCode     string           `json:"location_code"`
	AreaCode         string           `json:"area_code"`
	Rack             string           `json:"rack"`
	Row              string           `json:"row"`
	Column           string           `json:"column"`
	Status           int              `json:"status"`
	StatusName       string           `json:"status_name"`
	Findings         []string         `json:"findings"`
	RejectCount      int              `json:"reject_count"`
	LastRejectReason string           `json:"last_reject_reason,omitempty"`
	CountedByID      *uuid.UUID       `json:"counted_by_id,omitempty"`
	CountedAt        *time.Time       `json:"counted_at,omitempty"`
	Pallets          []PalletResponse `json:"pallets"`
}

// StaffResponse represents a staff member
type StaffResponse struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

// WarehouseAreaResponse represents a warehouse area available for assignment
type WarehouseAreaResponse struct {
	ID          uuid.UUID       `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Temperature decimal.Decimal `json:"temperature"`
	Humidity    decimal.Decimal `json:"humidity"`
	Light       decimal.Decimal `json:"light"`
}

// AreaProgressResponse is the counting progress of one area
type AreaProgressResponse struct {
	SheetAreaID      uuid.UUID  `json:"sheet_area_id"`
	AreaCode         string     `json:"area_code"`
	AssignTo         *uuid.UUID `json:"assign_to"`
	TotalLocations   int        `json:"total_locations"`
	CountedLocations int        `json:"counted_locations"`
	Unscanned        int        `json:"unscanned"`
	Matched          int        `json:"matched"`
	Missing          int        `json:"missing"`
	Surplus          int        `json:"surplus"`
	Percent          float64    `json:"percent"`
}

// SheetProgressResponse is the counting progress of a sheet
type SheetProgressResponse struct {
	SheetID          uuid.UUID              `json:"sheet_id"`
	Status           int                    `json:"status"`
	TotalLocations   int                    `json:"total_locations"`
	CountedLocations int                    `json:"counted_locations"`
	Percent          float64                `json:"percent"`
	Areas            []AreaProgressResponse `json:"areas"`
}

// RejectSeedResponse carries the default reject reason of a location
type RejectSeedResponse struct {
	StocktakingLocationID uuid.UUID `json:"stocktaking_location_id"`
	LocationID            uuid.UUID `json:"location_id"`
	LocationCode          string    `json:"location_code"`
	RejectReason          string    `json:"reject_reason"`
}

// CreateAndAssignResponse is returned by the two-step create-and-assign flow
type CreateAndAssignResponse struct {
	Sheet SheetResponse `json:"sheet"`
}

// BatchResponse reports per-item outcomes of a batch operation
type BatchResponse struct {
	Items []shared.ItemOutcome `json:"items"`
}

// ===================== Mappers =====================

// ToSheetResponse converts a domain Sheet to SheetResponse
func ToSheetResponse(s *stocktaking.Sheet) SheetResponse {
	areas := make([]AreaResponse, len(s.Areas))
	for i, a := range s.Areas {
		areas[i] = AreaResponse{
			ID:          a.ID,
			AreaID:      a.AreaID,
			AreaCode:    a.AreaCode,
			AreaName:    a.AreaName,
			AssignTo:    a.AssignTo,
			Status:      int(a.Status),
			StatusName:  a.Status.String(),
			Temperature: a.Temperature,
			Humidity:    a.Humidity,
			Light:       a.Light,
		}
	}
	return SheetResponse{
		ID:           s.ID,
		Code:         s.Code,
		Status:       int(s.Status),
		StatusName:   s.Status.String(),
		StartTime:    s.StartTime,
		Note:         s.Note,
		CreatedByID:  s.CreatedByID,
		StartedAt:    s.StartedAt,
		SubmittedAt:  s.SubmittedAt,
		ApprovedAt:   s.ApprovedAt,
		ApprovedByID: s.ApprovedByID,
		CompletedAt:  s.CompletedAt,
		CancelledAt:  s.CancelledAt,
		CancelReason: s.CancelReason,
		Areas:        areas,
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// ToSheetResponses converts a slice of sheets
func ToSheetResponses(sheets []stocktaking.Sheet) []SheetResponse {
	out := make([]SheetResponse, len(sheets))
	for i := range sheets {
		out[i] = ToSheetResponse(&sheets[i])
	}
	return out
}

// ToPalletResponse converts a domain Pallet
func ToPalletResponse(p *stocktaking.Pallet) PalletResponse {
	return PalletResponse{
		ID:                      p.ID,
		PalletID:                p.PalletID,
		PalletCode:              p.PalletCode,
		ExpectedPackageQuantity: p.ExpectedPackageQuantity,
		ActualPackageQuantity:   p.ActualPackageQuantity,
		Status:                  int(p.Status),
		StatusName:              p.Status.String(),
		Note:                    p.Note,
		Scanned:                 p.Scanned,
		ScannedAt:               p.ScannedAt,
		GoodsCode:               p.GoodsCode,
		GoodsName:               p.GoodsName,
		BatchNumber:             p.BatchNumber,
		ExpiryDate:              p.ExpiryDate,
	}
}

// ToPalletResponses converts a slice of pallets
func ToPalletResponses(pallets []stocktaking.Pallet) []PalletResponse {
	out := make([]PalletResponse, len(pallets))
	for i := range pallets {
		out[i] = ToPalletResponse(&pallets[i])
	}
	return out
}

// ToLocationResponse converts a domain Location
func ToLocationResponse(l *stocktaking.Location) LocationResponse {
	findings := make([]string, len(l.Findings))
	for i, f := range l.Findings {
		findings[i] = f.String()
	}
	return LocationResponse{
		ID:               l.ID,
		SheetID:          l.SheetID,
		SheetAreaID:      l.SheetAreaID,
		LocationID:       l.LocationID,
		LocationCode:     l.LocationCode,
		AreaCode:         l.AreaCode,
		Rack:             l.Rack,
		Row:              l.Row,
		Column:           l.Column,
		Status:           int(l.Status),
		StatusName:       l.Status.String(),
		Findings:         findings,
		RejectCount:      l.RejectCount,
		LastRejectReason: l.LastRejectReason,
		CountedByID:      l.CountedByID,
		CountedAt:        l.CountedAt,
		Pallets:          ToPalletResponses(l.Pallets),
	}
}

// ToLocationResponses converts a slice of locations
func ToLocationResponses(locations []stocktaking.Location) []LocationResponse {
	out := make([]LocationResponse, len(locations))
	for i := range locations {
		out[i] = ToLocationResponse(&locations[i])
	}
	return out
}

func toStaffResponses(staff []stocktaking.StaffMember) []StaffResponse {
	out := make([]StaffResponse, len(staff))
	for i, m := range staff {
		out[i] = StaffResponse{ID: m.ID, Code: m.Code, Name: m.Name, Role: m.Role}
	}
	return out
}

func toWarehouseAreaResponses(areas []stocktaking.WarehouseArea) []WarehouseAreaResponse {
	out := make([]WarehouseAreaResponse, len(areas))
	for i, a := range areas {
		out[i] = WarehouseAreaResponse{
			ID:          a.ID,
			Code:        a.Code,
			Name:        a.Name,
			Temperature: a.Temperature,
			Humidity:    a.Humidity,
			Light:       a.Light,
		}
	}
	return out
}
