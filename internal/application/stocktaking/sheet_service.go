package stocktaking

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"github.com/wms/stocktaking/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SheetService drives the sheet lifecycle: create, start, submit, approve,
// complete and cancel.
type SheetService struct {
	sheets      stocktaking.SheetRepository
	locations   stocktaking.LocationRepository
	locationDir stocktaking.LocationDirectory
	palletDir   stocktaking.PalletDirectory
	codes       CodeGenerator
	events      eventPublisher
	logger      *zap.Logger
}

// NewSheetService creates a new SheetService
func NewSheetService(
	sheets stocktaking.SheetRepository,
	locations stocktaking.LocationRepository,
	locationDir stocktaking.LocationDirectory,
	palletDir stocktaking.PalletDirectory,
	codes CodeGenerator,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *SheetService {
	logger = nopIfNil(logger)
	return &SheetService{
		sheets:      sheets,
		locations:   locations,
		locationDir: locationDir,
		palletDir:   palletDir,
		codes:       codes,
		events:      eventPublisher{bus: eventBus, logger: logger},
		logger:      logger.Named("sheet_service"),
	}
}

// ===================== Query Methods =====================

// GetByID retrieves a sheet by ID
func (s *SheetService) GetByID(ctx context.Context, id uuid.UUID) (*SheetResponse, error) {
	sheet, err := s.sheets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToSheetResponse(sheet)
	return &response, nil
}

// List retrieves a paginated list of sheets
func (s *SheetService) List(ctx context.Context, filter SheetListFilter) ([]SheetResponse, int64, error) {
	domainFilter := stocktaking.SheetFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		StaffID: filter.StaffID,
	}
	if domainFilter.Page <= 0 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize <= 0 {
		domainFilter.PageSize = 20
	}
	if filter.Status != "" {
		status, ok := stocktaking.ParseSheetStatus(strings.ToUpper(filter.Status))
		if !ok {
			return nil, 0, shared.Validation("Unknown sheet status %q", filter.Status)
		}
		domainFilter.Status = &status
	}

	sheets, total, err := s.sheets.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToSheetResponses(sheets), total, nil
}

// GetProgress returns per-area counting progress of a sheet
func (s *SheetService) GetProgress(ctx context.Context, id uuid.UUID) (*SheetProgressResponse, error) {
	sheet, err := s.sheets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.locations.Progress(ctx, id)
	if err != nil {
		return nil, err
	}

	byArea := make(map[uuid.UUID]stocktaking.AreaProgress, len(rows))
	for _, row := range rows {
		byArea[row.SheetAreaID] = row
	}

	response := &SheetProgressResponse{
		SheetID: sheet.ID,
		Status:  int(sheet.Status),
		Areas:   make([]AreaProgressResponse, 0, len(sheet.Areas)),
	}
	for _, area := range sheet.Areas {
		row := byArea[area.ID]
		response.Areas = append(response.Areas, AreaProgressResponse{
			SheetAreaID:      area.ID,
			AreaCode:         area.AreaCode,
			AssignTo:         area.AssignTo,
			TotalLocations:   row.TotalLocations,
			CountedLocations: row.CountedLocations,
			Unscanned:        row.Unscanned,
			Matched:          row.Matched,
			Missing:          row.Missing,
			Surplus:          row.Surplus,
			Percent:          percent(row.CountedLocations, row.TotalLocations),
		})
		response.TotalLocations += row.TotalLocations
		response.CountedLocations += row.CountedLocations
	}
	response.Percent = percent(response.CountedLocations, response.TotalLocations)
	return response, nil
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// ===================== Command Methods =====================

// Create creates a new sheet in Draft status
func (s *SheetService) Create(ctx context.Context, actor Actor, req CreateSheetRequest) (*SheetResponse, error) {
	sheet, err := stocktaking.NewSheet(s.codes.NextSheetCode(), req.StartTime, req.Note, actor.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.sheets.Save(ctx, sheet); err != nil {
		return nil, err
	}
	s.events.publish(ctx, sheet)

	s.logger.Info("stocktaking sheet created",
		zap.String("sheet_id", sheet.ID.String()),
		zap.String("code", sheet.Code),
	)

	response := ToSheetResponse(sheet)
	return &response, nil
}

// Update changes start time and note of a sheet being prepared
func (s *SheetService) Update(ctx context.Context, id uuid.UUID, req UpdateSheetRequest) (*SheetResponse, error) {
	return s.mutate(ctx, id, func(sheet *stocktaking.Sheet) error {
		return sheet.Update(req.StartTime, req.Note)
	})
}

// Start snapshots the expected inventory of every assigned area and moves
// the sheet into counting.
func (s *SheetService) Start(ctx context.Context, id uuid.UUID) (*SheetResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stocktaking_sheet", "start", "sheet_id", id.String())
	defer span.End()

	resp, err := s.start(ctx, id)
	telemetry.RecordError(span, err)
	return resp, err
}

func (s *SheetService) start(ctx context.Context, id uuid.UUID) (*SheetResponse, error) {
	sheet, err := s.sheets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sheet.Start(); err != nil {
		return nil, err
	}

	locations := make([]*stocktaking.Location, 0)
	totals := make(map[uuid.UUID]int, len(sheet.Areas))
	for _, area := range sheet.Areas {
		if area.AssignTo == nil {
			continue
		}
		refs, err := s.locationDir.ListLocationsByArea(ctx, area.AreaID)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			pallets, err := s.palletDir.ListPalletsByLocation(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			locations = append(locations, stocktaking.NewLocation(sheet.ID, area.ID, ref, pallets))
		}
		totals[area.ID] = len(refs)
	}

	// areas without locations have nothing to count
	for areaID, total := range totals {
		if total == 0 {
			if err := sheet.SyncAreaProgress(areaID, 0, 0); err != nil {
				return nil, err
			}
		}
	}

	if err := s.sheets.SaveWithLocations(ctx, sheet, locations); err != nil {
		return nil, err
	}
	s.events.publish(ctx, sheet)

	s.logger.Info("stocktaking started",
		zap.String("sheet_id", sheet.ID.String()),
		zap.Int("locations", len(locations)),
	)

	response := ToSheetResponse(sheet)
	return &response, nil
}

// SubmitForApproval explicitly submits a fully counted sheet
func (s *SheetService) SubmitForApproval(ctx context.Context, id uuid.UUID) (*SheetResponse, error) {
	return s.mutate(ctx, id, func(sheet *stocktaking.Sheet) error {
		return sheet.SubmitForApproval()
	})
}

// Approve approves a sheet waiting for approval. Approver role only.
func (s *SheetService) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*SheetResponse, error) {
	if !actor.HasRole(stocktaking.RoleApprover) {
		return nil, shared.Forbidden("Only approvers can approve a stocktaking sheet")
	}
	return s.mutate(ctx, id, func(sheet *stocktaking.Sheet) error {
		return sheet.Approve(actor.UserID)
	})
}

// Complete finalizes an approved sheet. Approver role only.
func (s *SheetService) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*SheetResponse, error) {
	if !actor.HasRole(stocktaking.RoleApprover) {
		return nil, shared.Forbidden("Only approvers can complete a stocktaking sheet")
	}
	return s.mutate(ctx, id, func(sheet *stocktaking.Sheet) error {
		return sheet.Complete()
	})
}

// Cancel cancels a sheet with a mandatory reason
func (s *SheetService) Cancel(ctx context.Context, id uuid.UUID, req CancelSheetRequest) (*SheetResponse, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, shared.Validation("Cancel reason is required")
	}
	return s.mutate(ctx, id, func(sheet *stocktaking.Sheet) error {
		return sheet.Cancel(req.Reason)
	})
}

// mutate loads a sheet, applies fn, saves and publishes its events
func (s *SheetService) mutate(ctx context.Context, id uuid.UUID, fn func(*stocktaking.Sheet) error) (*SheetResponse, error) {
	sheet, err := s.sheets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := sheet.Status
	if err := fn(sheet); err != nil {
		return nil, err
	}

	if err := s.sheets.Save(ctx, sheet); err != nil {
		return nil, err
	}
	s.events.publish(ctx, sheet)

	if from != sheet.Status {
		s.logger.Info("stocktaking sheet status changed",
			zap.String("sheet_id", sheet.ID.String()),
			zap.String("from", from.String()),
			zap.String("to", sheet.Status.String()),
		)
	}

	response := ToSheetResponse(sheet)
	return &response, nil
}
