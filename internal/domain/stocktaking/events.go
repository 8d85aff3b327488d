package stocktaking

import (
	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeSheet    = "StocktakingSheet"
	AggregateTypeLocation = "StocktakingLocation"
)

// Event type constants
const (
	EventTypeSheetCreated      = "StocktakingSheetCreated"
	EventTypeAreasAssigned     = "StocktakingAreasAssigned"
	EventTypeAreaReassigned    = "StocktakingAreaReassigned"
	EventTypeSheetStarted      = "StocktakingSheetStarted"
	EventTypeSheetSubmitted    = "StocktakingSheetSubmitted"
	EventTypeSheetApproved     = "StocktakingSheetApproved"
	EventTypeSheetCompleted    = "StocktakingSheetCompleted"
	EventTypeSheetCancelled    = "StocktakingSheetCancelled"
	EventTypeLocationsRejected = "StocktakingLocationsRejected"
	EventTypeLocationCounted   = "StocktakingLocationCounted"
)

// SheetCreatedEvent is raised when a sheet is created
type SheetCreatedEvent struct {
	shared.BaseDomainEvent
	SheetID     uuid.UUID `json:"sheet_id"`
	Code        string    `json:"code"`
	CreatedByID uuid.UUID `json:"created_by_id"`
}

// NewSheetCreatedEvent creates a new SheetCreatedEvent
func NewSheetCreatedEvent(s *Sheet) *SheetCreatedEvent {
	return &SheetCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSheetCreated, AggregateTypeSheet, s.ID),
		SheetID:         s.ID,
		Code:            s.Code,
		CreatedByID:     s.CreatedByID,
	}
}

// AreaAssignment pairs a warehouse area with the staff counting it
type AreaAssignment struct {
	AreaID   uuid.UUID `json:"area_id"`
	AreaCode string    `json:"area_code"`
	StaffID  uuid.UUID `json:"staff_id"`
}

// AreasAssignedEvent is raised when areas are assigned for the first time
type AreasAssignedEvent struct {
	shared.BaseDomainEvent
	SheetID     uuid.UUID        `json:"sheet_id"`
	Code        string           `json:"code"`
	Assignments []AreaAssignment `json:"assignments"`
}

// NewAreasAssignedEvent creates a new AreasAssignedEvent
func NewAreasAssignedEvent(s *Sheet, assignments []AreaAssignment) *AreasAssignedEvent {
	return &AreasAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAreasAssigned, AggregateTypeSheet, s.ID),
		SheetID:         s.ID,
		Code:            s.Code,
		Assignments:     assignments,
	}
}

// AreaReassignedEvent is raised when an existing assignment is overwritten
type AreaReassignedEvent struct {
	shared.BaseDomainEvent
	SheetID         uuid.UUID  `json:"sheet_id"`
	Code            string     `json:"code"`
	SheetAreaID     uuid.UUID  `json:"sheet_area_id"`
	AreaCode        string     `json:"area_code"`
	PreviousStaffID *uuid.UUID `json:"previous_staff_id,omitempty"`
	StaffID         uuid.UUID  `json:"staff_id"`
}

// NewAreaReassignedEvent creates a new AreaReassignedEvent
func NewAreaReassignedEvent(s *Sheet, area *Area, previous *uuid.UUID) *AreaReassignedEvent {
	return &AreaReassignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAreaReassigned, AggregateTypeSheet, s.ID),
		SheetID:         s.ID,
		Code:            s.Code,
		SheetAreaID:     area.ID,
		AreaCode:        area.AreaCode,
		PreviousStaffID: previous,
		StaffID:         *area.AssignTo,
	}
}

// SheetStatusChangedEvent is raised on every lifecycle transition that is
// not an assignment: start, submit, approve, complete and cancel.
type SheetStatusChangedEvent struct {
	shared.BaseDomainEvent
	SheetID    uuid.UUID   `json:"sheet_id"`
	Code       string      `json:"code"`
	FromStatus SheetStatus `json:"from_status"`
	ToStatus   SheetStatus `json:"to_status"`
	Reason     string      `json:"reason,omitempty"`
	StaffIDs   []uuid.UUID `json:"staff_ids"`
}

// NewSheetStatusChangedEvent creates a status change event of the given type
func NewSheetStatusChangedEvent(eventType string, s *Sheet, from SheetStatus, reason string) *SheetStatusChangedEvent {
	return &SheetStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeSheet, s.ID),
		SheetID:         s.ID,
		Code:            s.Code,
		FromStatus:      from,
		ToStatus:        s.Status,
		Reason:          reason,
		StaffIDs:        s.AssignedStaff(),
	}
}

// RejectedLocation describes one location sent back for recount
type RejectedLocation struct {
	LocationID   uuid.UUID  `json:"location_id"`
	LocationCode string     `json:"location_code"`
	SheetAreaID  uuid.UUID  `json:"sheet_area_id"`
	StaffID      *uuid.UUID `json:"staff_id,omitempty"`
	Reason       string     `json:"reason"`
}

// LocationsRejectedEvent is raised when counted locations are sent back for recount
type LocationsRejectedEvent struct {
	shared.BaseDomainEvent
	SheetID   uuid.UUID          `json:"sheet_id"`
	Code      string             `json:"code"`
	Locations []RejectedLocation `json:"locations"`
}

// NewLocationsRejectedEvent creates a new LocationsRejectedEvent
func NewLocationsRejectedEvent(s *Sheet, locations []RejectedLocation) *LocationsRejectedEvent {
	return &LocationsRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLocationsRejected, AggregateTypeSheet, s.ID),
		SheetID:         s.ID,
		Code:            s.Code,
		Locations:       locations,
	}
}

// LocationCountedEvent is raised when a location is confirmed as counted
type LocationCountedEvent struct {
	shared.BaseDomainEvent
	SheetID      uuid.UUID `json:"sheet_id"`
	LocationID   uuid.UUID `json:"location_id"`
	LocationCode string    `json:"location_code"`
	CountedByID  uuid.UUID `json:"counted_by_id"`
	Warnings     int       `json:"warnings"`
	Errors       int       `json:"errors"`
}

// NewLocationCountedEvent creates a new LocationCountedEvent
func NewLocationCountedEvent(l *Location) *LocationCountedEvent {
	warnings, errs := l.FindingCounts()
	var countedBy uuid.UUID
	if l.CountedByID != nil {
		countedBy = *l.CountedByID
	}
	return &LocationCountedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLocationCounted, AggregateTypeLocation, l.ID),
		SheetID:         l.SheetID,
		LocationID:      l.ID,
		LocationCode:    l.LocationCode,
		CountedByID:     countedBy,
		Warnings:        warnings,
		Errors:          errs,
	}
}
