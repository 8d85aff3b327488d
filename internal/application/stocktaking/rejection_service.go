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

// RejectionService sends counted locations back for recount
type RejectionService struct {
	sheets    stocktaking.SheetRepository
	locations stocktaking.LocationRepository
	events    eventPublisher
	logger    *zap.Logger
}

// NewRejectionService creates a new RejectionService
func NewRejectionService(
	sheets stocktaking.SheetRepository,
	locations stocktaking.LocationRepository,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *RejectionService {
	logger = nopIfNil(logger)
	return &RejectionService{
		sheets:    sheets,
		locations: locations,
		events:    eventPublisher{bus: eventBus, logger: logger},
		logger:    logger.Named("rejection_service"),
	}
}

// SeedRejectReasons returns the default reject reason of each location,
// built from the findings recorded at confirmation. With no ids every
// counted location of the sheet is returned.
func (s *RejectionService) SeedRejectReasons(ctx context.Context, sheetID uuid.UUID, locationIDs []uuid.UUID) ([]RejectSeedResponse, error) {
	var (
		locations []stocktaking.Location
		err       error
	)
	if len(locationIDs) == 0 {
		locations, err = s.locations.FindBySheet(ctx, sheetID, nil)
	} else {
		locations, err = s.locations.FindByIDs(ctx, locationIDs)
	}
	if err != nil {
		return nil, err
	}

	seeds := make([]RejectSeedResponse, 0, len(locations))
	for i := range locations {
		loc := &locations[i]
		if loc.SheetID != sheetID || loc.Status != stocktaking.LocationStatusCounted {
			continue
		}
		seeds = append(seeds, RejectSeedResponse{
			StocktakingLocationID: loc.ID,
			LocationID:            loc.LocationID,
			LocationCode:          loc.LocationCode,
			RejectReason:          loc.SeedRejectReason(),
		})
	}
	return seeds, nil
}

// RejectLocations sends counted locations back for recount. Every item needs
// a non-empty reason; the batch is validated whole and written in one
// transaction together with the sheet, so either all locations are rejected
// or none.
func (s *RejectionService) RejectLocations(ctx context.Context, actor Actor, sheetID uuid.UUID, req RejectLocationsRequest) (*SheetResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stocktaking_rejection", "reject_locations",
		"sheet_id", sheetID.String(),
		"locations", len(req.Locations),
	)
	defer span.End()

	resp, err := s.rejectLocations(ctx, actor, sheetID, req)
	telemetry.RecordError(span, err)
	return resp, err
}

func (s *RejectionService) rejectLocations(ctx context.Context, actor Actor, sheetID uuid.UUID, req RejectLocationsRequest) (*SheetResponse, error) {
	if !actor.HasRole(stocktaking.RoleApprover) {
		return nil, shared.Forbidden("Only approvers can reject counted locations")
	}
	if len(req.Locations) == 0 {
		return nil, shared.Validation("At least one location must be rejected")
	}

	ids := make([]uuid.UUID, 0, len(req.Locations))
	seen := make(map[uuid.UUID]struct{}, len(req.Locations))
	for _, item := range req.Locations {
		if strings.TrimSpace(item.RejectReason) == "" {
			return nil, shared.Validation("Reject reason is required for every location")
		}
		if _, dup := seen[item.StocktakingLocationID]; dup {
			return nil, shared.Validation("Location %s is listed more than once", item.StocktakingLocationID)
		}
		seen[item.StocktakingLocationID] = struct{}{}
		ids = append(ids, item.StocktakingLocationID)
	}

	sheet, err := s.sheets.FindByID(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	found, err := s.locations.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*stocktaking.Location, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	touched := make([]*stocktaking.Location, 0, len(req.Locations))
	rejected := make([]stocktaking.RejectedLocation, 0, len(req.Locations))
	for _, item := range req.Locations {
		loc, ok := byID[item.StocktakingLocationID]
		if !ok || loc.SheetID != sheet.ID {
			return nil, shared.NotFound("Stocktaking location", item.StocktakingLocationID)
		}
		if item.LocationID != uuid.Nil && item.LocationID != loc.LocationID {
			return nil, shared.Validation("Location %s does not belong to stocktaking location %s", item.LocationID, loc.ID)
		}
		if err := loc.Reject(item.RejectReason); err != nil {
			return nil, err
		}
		touched = append(touched, loc)
		rejected = append(rejected, stocktaking.RejectedLocation{
			LocationID:   loc.ID,
			LocationCode: loc.LocationCode,
			SheetAreaID:  loc.SheetAreaID,
			Reason:       loc.LastRejectReason,
		})
	}

	if err := sheet.ReopenForRecount(rejected); err != nil {
		return nil, err
	}
	if err := s.sheets.SaveWithLocations(ctx, sheet, touched); err != nil {
		return nil, err
	}
	s.events.publish(ctx, sheet)

	s.logger.Info("locations rejected for recount",
		zap.String("sheet_id", sheet.ID.String()),
		zap.Int("count", len(touched)),
		zap.String("sheet_status", sheet.Status.String()),
	)

	response := ToSheetResponse(sheet)
	return &response, nil
}
