package stocktaking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"go.uber.org/zap"
)

// SheetCreatedButUnassignedError is returned by CreateSheetAndAssign when the
// sheet was created but its first assignment batch failed. The sheet stays in
// Draft and can be assigned later.
type SheetCreatedButUnassignedError struct {
	SheetID   uuid.UUID
	SheetCode string
	Err       error
}

func (e *SheetCreatedButUnassignedError) Error() string {
	return fmt.Sprintf("sheet %s created but assignment failed: %v", e.SheetCode, e.Err)
}

func (e *SheetCreatedButUnassignedError) Unwrap() error {
	return e.Err
}

// AssignmentService assigns staff members to the areas of a sheet
type AssignmentService struct {
	sheets   stocktaking.SheetRepository
	areaDir  stocktaking.AreaDirectory
	staffDir stocktaking.StaffDirectory
	sheetSvc *SheetService
	events   eventPublisher
	logger   *zap.Logger
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(
	sheets stocktaking.SheetRepository,
	areaDir stocktaking.AreaDirectory,
	staffDir stocktaking.StaffDirectory,
	sheetSvc *SheetService,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *AssignmentService {
	logger = nopIfNil(logger)
	return &AssignmentService{
		sheets:   sheets,
		areaDir:  areaDir,
		staffDir: staffDir,
		sheetSvc: sheetSvc,
		events:   eventPublisher{bus: eventBus, logger: logger},
		logger:   logger.Named("assignment_service"),
	}
}

// ListStaff returns active staff with the given role; counters by default
func (s *AssignmentService) ListStaff(ctx context.Context, role string) ([]StaffResponse, error) {
	if role == "" {
		role = stocktaking.RoleCounter
	}
	staff, err := s.staffDir.ListStaffByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	active := make([]stocktaking.StaffMember, 0, len(staff))
	for _, m := range staff {
		if m.Active {
			active = append(active, m)
		}
	}
	return toStaffResponses(active), nil
}

// ListWarehouseAreas returns every warehouse area available for assignment
func (s *AssignmentService) ListWarehouseAreas(ctx context.Context) ([]WarehouseAreaResponse, error) {
	areas, err := s.areaDir.ListAreas(ctx)
	if err != nil {
		return nil, err
	}
	return toWarehouseAreaResponses(areas), nil
}

// ListAreas returns the areas of a sheet with their assignees
func (s *AssignmentService) ListAreas(ctx context.Context, sheetID uuid.UUID) ([]AreaResponse, error) {
	sheet, err := s.sheets.FindByID(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return ToSheetResponse(sheet).Areas, nil
}

// GetAssignmentDefaults returns the current assignees of the given warehouse
// areas, to pre-seed a reassignment form
func (s *AssignmentService) GetAssignmentDefaults(ctx context.Context, sheetID uuid.UUID, areaIDs []uuid.UUID) ([]AssignmentItem, error) {
	sheet, err := s.sheets.FindByID(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	defaults := sheet.AssignmentDefaults(areaIDs)
	items := make([]AssignmentItem, 0, len(defaults))
	for _, area := range sheet.Areas {
		if staff, ok := defaults[area.AreaID]; ok {
			items = append(items, AssignmentItem{AreaID: area.AreaID, StaffID: staff})
		}
	}
	return items, nil
}

// AssignAreas assigns staff to new areas of a sheet. The batch is all or
// nothing: a missing staff, an unknown area or staff member fails it whole.
func (s *AssignmentService) AssignAreas(ctx context.Context, sheetID uuid.UUID, req AssignAreasRequest) (*SheetResponse, error) {
	// reject before any round trip
	for _, item := range req.Assignments {
		if item.StaffID == uuid.Nil {
			return nil, shared.Validation("Staff must be selected for every area")
		}
	}

	sheet, err := s.sheets.FindByID(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if sheet.Status.IsTerminal() {
		return nil, shared.InvalidTransition("Cannot assign areas to a sheet in %s status", sheet.Status)
	}

	areas, err := s.lookupAreas(ctx, req.Assignments)
	if err != nil {
		return nil, err
	}
	if _, err := s.lookupStaff(ctx, staffIDs(req.Assignments)); err != nil {
		return nil, err
	}

	items := make([]stocktaking.AreaStaff, len(req.Assignments))
	for i, a := range req.Assignments {
		items[i] = stocktaking.AreaStaff{Area: areas[a.AreaID], StaffID: a.StaffID}
	}
	if err := sheet.AssignAreas(items); err != nil {
		return nil, err
	}

	if err := s.sheets.Save(ctx, sheet); err != nil {
		return nil, err
	}
	s.events.publish(ctx, sheet)

	s.logger.Info("areas assigned",
		zap.String("sheet_id", sheet.ID.String()),
		zap.Int("count", len(items)),
	)

	response := ToSheetResponse(sheet)
	return &response, nil
}

// CreateSheetAndAssign creates a sheet and assigns its first batch of areas.
// The two steps are not atomic: when assignment fails the sheet remains in
// Draft and the returned error carries its id.
func (s *AssignmentService) CreateSheetAndAssign(ctx context.Context, actor Actor, req CreateSheetAndAssignRequest) (*SheetResponse, error) {
	created, err := s.sheetSvc.Create(ctx, actor, req.CreateSheetRequest)
	if err != nil {
		return nil, err
	}

	assigned, err := s.AssignAreas(ctx, created.ID, AssignAreasRequest{Assignments: req.Assignments})
	if err != nil {
		s.logger.Warn("sheet created but assignment failed",
			zap.String("sheet_id", created.ID.String()),
			zap.Error(err),
		)
		return created, &SheetCreatedButUnassignedError{SheetID: created.ID, SheetCode: created.Code, Err: err}
	}
	return assigned, nil
}

// ReassignArea overwrites the assignee of one sheet area. When another write
// to the sheet lands first the call fails with CONCURRENT_MODIFICATION and
// the caller reloads.
func (s *AssignmentService) ReassignArea(ctx context.Context, sheetAreaID uuid.UUID, req ReassignAreaRequest) (*SheetResponse, error) {
	if req.StaffID == uuid.Nil {
		return nil, shared.Validation("Staff must be selected")
	}

	sheet, err := s.sheets.FindByAreaID(ctx, sheetAreaID)
	if err != nil {
		return nil, err
	}
	if _, err := s.lookupStaff(ctx, []uuid.UUID{req.StaffID}); err != nil {
		return nil, err
	}
	if err := sheet.ReassignArea(sheetAreaID, req.StaffID); err != nil {
		return nil, err
	}

	if err := s.sheets.Save(ctx, sheet); err != nil {
		return nil, err
	}
	s.events.publish(ctx, sheet)

	response := ToSheetResponse(sheet)
	return &response, nil
}

// ReassignAreas applies a bulk reassignment item by item. Successful items
// are persisted even when others fail; the error is then a
// *shared.PartialFailureError listing every outcome.
func (s *AssignmentService) ReassignAreas(ctx context.Context, sheetID uuid.UUID, req AssignAreasRequest) (*SheetResponse, error) {
	sheet, err := s.sheets.FindByID(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if sheet.Status != stocktaking.SheetStatusAssigned && sheet.Status != stocktaking.SheetStatusInProgress {
		return nil, shared.InvalidTransition("Cannot reassign areas of a sheet in %s status", sheet.Status)
	}

	known, err := s.staffDir.FindStaff(ctx, staffIDs(req.Assignments))
	if err != nil {
		return nil, err
	}
	eligible := make(map[uuid.UUID]bool, len(known))
	for _, m := range known {
		eligible[m.ID] = m.Active && m.Role == stocktaking.RoleCounter
	}

	result := shared.NewBatchResult()
	for _, item := range req.Assignments {
		key := item.AreaID.String()
		switch {
		case item.StaffID == uuid.Nil:
			result.Fail(key, shared.Validation("Staff must be selected"))
		case !eligible[item.StaffID]:
			result.Fail(key, shared.Validation("Staff %s cannot be assigned", item.StaffID))
		default:
			if err := sheet.ReassignWarehouseArea(item.AreaID, item.StaffID); err != nil {
				result.Fail(key, err)
				continue
			}
			result.Succeed(key)
		}
	}

	if result.Succeeded() > 0 {
		if err := s.sheets.Save(ctx, sheet); err != nil {
			return nil, err
		}
		s.events.publish(ctx, sheet)
	}

	response := ToSheetResponse(sheet)
	if result.HasFailures() {
		s.logger.Warn("bulk reassignment partially failed",
			zap.String("sheet_id", sheet.ID.String()),
			zap.Int("failed", len(result.Failed())),
		)
		return &response, result.Err("reassign areas")
	}
	return &response, nil
}

func (s *AssignmentService) lookupAreas(ctx context.Context, items []AssignmentItem) (map[uuid.UUID]stocktaking.WarehouseArea, error) {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.AreaID
	}
	found, err := s.areaDir.FindAreas(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]stocktaking.WarehouseArea, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, shared.NotFound("Warehouse area", id)
		}
	}
	return byID, nil
}

// lookupStaff checks that every id names an active counter
func (s *AssignmentService) lookupStaff(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]stocktaking.StaffMember, error) {
	found, err := s.staffDir.FindStaff(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]stocktaking.StaffMember, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, shared.NotFound("Staff", id)
		}
		if !m.Active || m.Role != stocktaking.RoleCounter {
			return nil, shared.Validation("Staff %s cannot be assigned to count", m.Code)
		}
	}
	return byID, nil
}

func staffIDs(items []AssignmentItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.StaffID == uuid.Nil {
			continue
		}
		if _, ok := seen[item.StaffID]; ok {
			continue
		}
		seen[item.StaffID] = struct{}{}
		ids = append(ids, item.StaffID)
	}
	return ids
}

// IsSheetCreatedButUnassigned extracts the created sheet id from an error
// returned by CreateSheetAndAssign
func IsSheetCreatedButUnassigned(err error) (*SheetCreatedButUnassignedError, bool) {
	var target *SheetCreatedButUnassignedError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
