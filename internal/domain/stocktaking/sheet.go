package stocktaking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
)

// AreaStaff is one requested (area, staff) pair for assignment
type AreaStaff struct {
	Area    WarehouseArea
	StaffID uuid.UUID
}

// Sheet represents one stocktaking campaign.
// It is the aggregate root for areas and their assignment.
type Sheet struct {
	shared.BaseAggregateRoot
	Code         string
	Status       SheetStatus
	StartTime    time.Time
	Note         string
	CreatedByID  uuid.UUID
	StartedAt    *time.Time
	SubmittedAt  *time.Time
	ApprovedAt   *time.Time
	ApprovedByID *uuid.UUID
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason string
	Areas        []Area
}

// NewSheet creates a new sheet in Draft status
func NewSheet(code string, startTime time.Time, note string, createdByID uuid.UUID) (*Sheet, error) {
	if strings.TrimSpace(code) == "" {
		return nil, shared.Validation("Sheet code cannot be empty")
	}
	if startTime.IsZero() {
		return nil, shared.Validation("Start time is required")
	}
	if createdByID == uuid.Nil {
		return nil, shared.Validation("Creator ID cannot be empty")
	}

	s := &Sheet{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Status:            SheetStatusDraft,
		StartTime:         startTime,
		Note:              note,
		CreatedByID:       createdByID,
		Areas:             make([]Area, 0),
	}

	s.AddDomainEvent(NewSheetCreatedEvent(s))

	return s, nil
}

// ensureMutable rejects every mutation once the sheet reached a terminal status
func (s *Sheet) ensureMutable() error {
	if s.Status.IsTerminal() {
		return shared.InvalidTransition("Sheet %s is %s and can no longer be changed", s.Code, s.Status)
	}
	return nil
}

// EnsureCounting returns an error unless pallets and locations may be worked on
func (s *Sheet) EnsureCounting() error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if s.Status != SheetStatusInProgress {
		return shared.InvalidTransition("Counting is only allowed while the sheet is IN_PROGRESS, sheet %s is %s", s.Code, s.Status)
	}
	return nil
}

func (s *Sheet) touch() {
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// Update changes the start time and note while the sheet is being prepared
func (s *Sheet) Update(startTime time.Time, note string) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if s.Status != SheetStatusDraft && s.Status != SheetStatusAssigned {
		return shared.InvalidTransition("Can only update a sheet in DRAFT or ASSIGNED status")
	}
	if startTime.IsZero() {
		return shared.Validation("Start time is required")
	}

	s.StartTime = startTime
	s.Note = note
	s.touch()
	return nil
}

// AssignAreas assigns staff to areas that are not yet part of this sheet.
// The whole batch is rejected if any item is invalid.
func (s *Sheet) AssignAreas(items []AreaStaff) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if s.Status != SheetStatusDraft && s.Status != SheetStatusAssigned {
		return shared.InvalidTransition("Cannot assign areas to a sheet in %s status", s.Status)
	}
	if len(items) == 0 {
		return shared.Validation("At least one area must be assigned")
	}

	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if item.Area.ID == uuid.Nil {
			return shared.Validation("Area ID cannot be empty")
		}
		if item.StaffID == uuid.Nil {
			return shared.Validation("Staff must be selected for area %s", item.Area.Code)
		}
		if _, dup := seen[item.Area.ID]; dup {
			return shared.Validation("Area %s is listed more than once", item.Area.Code)
		}
		seen[item.Area.ID] = struct{}{}
		if existing := s.findByWarehouseArea(item.Area.ID); existing != nil && existing.AssignTo != nil {
			return shared.InvalidTransition("Area %s is already assigned, use reassign instead", existing.AreaCode)
		}
	}

	assigned := make([]AreaAssignment, 0, len(items))
	for _, item := range items {
		if existing := s.findByWarehouseArea(item.Area.ID); existing != nil {
			staff := item.StaffID
			existing.AssignTo = &staff
			existing.Status = AreaStatusAssigned
			existing.UpdatedAt = time.Now()
		} else {
			s.Areas = append(s.Areas, newArea(s.ID, item.Area, item.StaffID))
		}
		assigned = append(assigned, AreaAssignment{AreaID: item.Area.ID, AreaCode: item.Area.Code, StaffID: item.StaffID})
	}

	if s.Status == SheetStatusDraft {
		s.Status = SheetStatusAssigned
	}
	s.touch()

	s.AddDomainEvent(NewAreasAssignedEvent(s, assigned))

	return nil
}

// ReassignArea overwrites the assignee of one area of the sheet
func (s *Sheet) ReassignArea(sheetAreaID, staffID uuid.UUID) error {
	area, err := s.FindArea(sheetAreaID)
	if err != nil {
		return err
	}
	return s.reassign(area, staffID)
}

// ReassignWarehouseArea overwrites the assignee of the sheet area covering
// the given warehouse area. Used by bulk reassignment, which is keyed by
// warehouse area.
func (s *Sheet) ReassignWarehouseArea(areaID, staffID uuid.UUID) error {
	area := s.findByWarehouseArea(areaID)
	if area == nil {
		return shared.NotFound("Area", areaID)
	}
	return s.reassign(area, staffID)
}

func (s *Sheet) reassign(area *Area, staffID uuid.UUID) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if s.Status != SheetStatusAssigned && s.Status != SheetStatusInProgress {
		return shared.InvalidTransition("Cannot reassign areas of a sheet in %s status", s.Status)
	}
	if staffID == uuid.Nil {
		return shared.Validation("Staff must be selected for area %s", area.AreaCode)
	}
	if area.Status == AreaStatusCompleted {
		return shared.InvalidTransition("Area %s is already counted", area.AreaCode)
	}

	previous := area.AssignTo
	staff := staffID
	area.AssignTo = &staff
	if area.Status == AreaStatusUnassigned {
		area.Status = AreaStatusAssigned
	}
	area.UpdatedAt = time.Now()
	s.touch()

	s.AddDomainEvent(NewAreaReassignedEvent(s, area, previous))

	return nil
}

// AssignmentDefaults returns current assignees keyed by warehouse area, used to
// pre-seed a reassignment form. An empty areaIDs returns every assignment.
func (s *Sheet) AssignmentDefaults(areaIDs []uuid.UUID) map[uuid.UUID]uuid.UUID {
	wanted := make(map[uuid.UUID]struct{}, len(areaIDs))
	for _, id := range areaIDs {
		wanted[id] = struct{}{}
	}

	defaults := make(map[uuid.UUID]uuid.UUID)
	for _, area := range s.Areas {
		if area.AssignTo == nil {
			continue
		}
		if _, ok := wanted[area.AreaID]; len(wanted) > 0 && !ok {
			continue
		}
		defaults[area.AreaID] = *area.AssignTo
	}
	return defaults
}

// Start moves the sheet into counting. Location snapshots are created by the
// caller alongside this transition.
func (s *Sheet) Start() error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if s.Status != SheetStatusAssigned {
		return shared.InvalidTransition("Cannot start a sheet in %s status", s.Status)
	}
	if len(s.AssignedStaff()) == 0 {
		return shared.InvalidTransition("Sheet %s has no assigned area", s.Code)
	}

	from := s.Status
	now := time.Now()
	s.Status = SheetStatusInProgress
	s.StartedAt = &now
	for i := range s.Areas {
		if s.Areas[i].AssignTo != nil {
			s.Areas[i].Status = AreaStatusInProgress
			s.Areas[i].UpdatedAt = now
		}
	}
	s.touch()

	s.AddDomainEvent(NewSheetStatusChangedEvent(EventTypeSheetStarted, s, from, ""))

	return nil
}

// SyncAreaProgress records how many of an area's locations are counted.
// A fully counted area is Completed; once every area is Completed an
// InProgress sheet moves to PendingApproval on its own.
func (s *Sheet) SyncAreaProgress(sheetAreaID uuid.UUID, total, counted int) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	area, err := s.FindArea(sheetAreaID)
	if err != nil {
		return err
	}

	switch {
	case counted >= total && area.Status == AreaStatusInProgress:
		area.Status = AreaStatusCompleted
		area.UpdatedAt = time.Now()
		s.touch()
	case counted < total && area.Status == AreaStatusCompleted:
		area.Status = AreaStatusInProgress
		area.UpdatedAt = time.Now()
		s.touch()
	}

	if s.Status == SheetStatusInProgress && s.allAreasCompleted() {
		return s.SubmitForApproval()
	}
	return nil
}

func (s *Sheet) allAreasCompleted() bool {
	active := 0
	for _, area := range s.Areas {
		if area.AssignTo == nil {
			continue
		}
		active++
		if area.Status != AreaStatusCompleted {
			return false
		}
	}
	return active > 0
}

// SubmitForApproval transitions the sheet to PendingApproval
func (s *Sheet) SubmitForApproval() error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if !s.Status.CanTransitionTo(SheetStatusPendingApproval) {
		return shared.InvalidTransition("Cannot transition from %s to PENDING_APPROVAL", s.Status)
	}
	if !s.allAreasCompleted() {
		return shared.InvalidTransition("Not every area of sheet %s is counted", s.Code)
	}

	from := s.Status
	now := time.Now()
	s.Status = SheetStatusPendingApproval
	s.SubmittedAt = &now
	s.touch()

	s.AddDomainEvent(NewSheetStatusChangedEvent(EventTypeSheetSubmitted, s, from, ""))

	return nil
}

// ReopenForRecount puts the areas of rejected locations back into counting.
// A sheet waiting for approval returns to InProgress.
func (s *Sheet) ReopenForRecount(rejected []RejectedLocation) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if s.Status != SheetStatusInProgress && s.Status != SheetStatusPendingApproval {
		return shared.InvalidTransition("Cannot reject locations of a sheet in %s status", s.Status)
	}
	if len(rejected) == 0 {
		return shared.Validation("At least one location must be rejected")
	}

	now := time.Now()
	for i, loc := range rejected {
		area, err := s.FindArea(loc.SheetAreaID)
		if err != nil {
			return err
		}
		area.Status = AreaStatusInProgress
		area.UpdatedAt = now
		rejected[i].StaffID = area.AssignTo
	}

	if s.Status == SheetStatusPendingApproval {
		s.Status = SheetStatusInProgress
		s.SubmittedAt = nil
	}
	s.touch()

	s.AddDomainEvent(NewLocationsRejectedEvent(s, rejected))

	return nil
}

// Approve approves the counted sheet. Role checks happen before this call.
func (s *Sheet) Approve(approverID uuid.UUID) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if !s.Status.CanTransitionTo(SheetStatusApproved) {
		return shared.InvalidTransition("Cannot transition from %s to APPROVED", s.Status)
	}
	if approverID == uuid.Nil {
		return shared.Validation("Approver ID cannot be empty")
	}

	from := s.Status
	now := time.Now()
	s.Status = SheetStatusApproved
	s.ApprovedAt = &now
	s.ApprovedByID = &approverID
	s.touch()

	s.AddDomainEvent(NewSheetStatusChangedEvent(EventTypeSheetApproved, s, from, ""))

	return nil
}

// Complete finalizes an approved sheet
func (s *Sheet) Complete() error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if !s.Status.CanTransitionTo(SheetStatusCompleted) {
		return shared.InvalidTransition("Cannot transition from %s to COMPLETED", s.Status)
	}

	from := s.Status
	now := time.Now()
	s.Status = SheetStatusCompleted
	s.CompletedAt = &now
	s.touch()

	s.AddDomainEvent(NewSheetStatusChangedEvent(EventTypeSheetCompleted, s, from, ""))

	return nil
}

// Cancel cancels the sheet. Cancelled is terminal.
func (s *Sheet) Cancel(reason string) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if !s.Status.CanTransitionTo(SheetStatusCancelled) {
		return shared.InvalidTransition("Cannot transition from %s to CANCELLED", s.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.Validation("Cancel reason is required")
	}

	from := s.Status
	now := time.Now()
	s.Status = SheetStatusCancelled
	s.CancelReason = reason
	s.CancelledAt = &now
	for i := range s.Areas {
		s.Areas[i].Status = AreaStatusCancelled
		s.Areas[i].UpdatedAt = now
	}
	s.touch()

	s.AddDomainEvent(NewSheetStatusChangedEvent(EventTypeSheetCancelled, s, from, reason))

	return nil
}

// FindArea returns the sheet area with the given id
func (s *Sheet) FindArea(sheetAreaID uuid.UUID) (*Area, error) {
	for i := range s.Areas {
		if s.Areas[i].ID == sheetAreaID {
			return &s.Areas[i], nil
		}
	}
	return nil, shared.NotFound("Stocktaking area", sheetAreaID)
}

func (s *Sheet) findByWarehouseArea(areaID uuid.UUID) *Area {
	for i := range s.Areas {
		if s.Areas[i].AreaID == areaID {
			return &s.Areas[i]
		}
	}
	return nil
}

// AssignedStaff returns the distinct staff ids currently assigned on the sheet
func (s *Sheet) AssignedStaff() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	staff := make([]uuid.UUID, 0)
	for _, area := range s.Areas {
		if area.AssignTo == nil {
			continue
		}
		if _, ok := seen[*area.AssignTo]; ok {
			continue
		}
		seen[*area.AssignTo] = struct{}{}
		staff = append(staff, *area.AssignTo)
	}
	return staff
}
