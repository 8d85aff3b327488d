package stocktaking

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"github.com/wms/stocktaking/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConfirmConcurrency bounds the pending writes flushed in parallel
// when a location is confirmed
const DefaultConfirmConcurrency = 8

// ScanService handles counting of a single location: code validation,
// pallet scans, quantity edits and confirmation.
type ScanService struct {
	sheets      stocktaking.SheetRepository
	locations   stocktaking.LocationRepository
	palletDir   stocktaking.PalletDirectory
	concurrency int
	events      eventPublisher
	logger      *zap.Logger
}

// ScanServiceOption configures a ScanService
type ScanServiceOption func(*ScanService)

// WithConfirmConcurrency sets how many pending writes run at once
func WithConfirmConcurrency(n int) ScanServiceOption {
	return func(s *ScanService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewScanService creates a new ScanService
func NewScanService(
	sheets stocktaking.SheetRepository,
	locations stocktaking.LocationRepository,
	palletDir stocktaking.PalletDirectory,
	eventBus shared.EventBus,
	logger *zap.Logger,
	opts ...ScanServiceOption,
) *ScanService {
	logger = nopIfNil(logger)
	s := &ScanService{
		sheets:      sheets,
		locations:   locations,
		palletDir:   palletDir,
		concurrency: DefaultConfirmConcurrency,
		events:      eventPublisher{bus: eventBus, logger: logger},
		logger:      logger.Named("scan_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===================== Query Methods =====================

// GetLocation returns a counting location with its pallets
func (s *ScanService) GetLocation(ctx context.Context, locationID uuid.UUID) (*LocationResponse, error) {
	loc, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	response := ToLocationResponse(loc)
	return &response, nil
}

// ListLocations returns the locations of a sheet, optionally one area only
func (s *ScanService) ListLocations(ctx context.Context, sheetID uuid.UUID, sheetAreaID *uuid.UUID) ([]LocationResponse, error) {
	locations, err := s.locations.FindBySheet(ctx, sheetID, sheetAreaID)
	if err != nil {
		return nil, err
	}
	return ToLocationResponses(locations), nil
}

// ListPallets returns the pallet records of a location
func (s *ScanService) ListPallets(ctx context.Context, locationID uuid.UUID) ([]PalletResponse, error) {
	loc, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return ToPalletResponses(loc.Pallets), nil
}

// ===================== Command Methods =====================

// ValidateLocationCode checks the scanned code of a location. State is not
// changed; a wrong code yields LOCATION_MISMATCH.
func (s *ScanService) ValidateLocationCode(ctx context.Context, actor Actor, locationID uuid.UUID, req ValidateLocationRequest) (*LocationMetadataResponse, error) {
	_, loc, err := s.loadForCounting(ctx, actor, locationID)
	if err != nil {
		return nil, err
	}
	meta, err := loc.ValidateCode(req.Code)
	if err != nil {
		return nil, err
	}
	return &LocationMetadataResponse{
		StocktakingLocationID: meta.LocationID,
		LocationCode:          meta.LocationCode,
		Area:                  meta.AreaCode,
		Rack:                  meta.Rack,
		Row:                   meta.Row,
		Column:                meta.Column,
	}, nil
}

// ScanPallet registers a scanned pallet barcode. Repeating a scan is a no-op.
func (s *ScanService) ScanPallet(ctx context.Context, actor Actor, locationID uuid.UUID, req ScanPalletRequest) (*ScanPalletResponse, error) {
	_, loc, err := s.loadForCounting(ctx, actor, locationID)
	if err != nil {
		return nil, err
	}

	var master *stocktaking.WarehousePallet
	if loc.FindPalletByCode(req.Barcode) == nil {
		if master, err = s.lookupMaster(ctx, req.Barcode); err != nil {
			return nil, err
		}
	}

	pallet, created, err := loc.ScanPallet(req.Barcode, master)
	if err != nil {
		return nil, err
	}
	scannedID := pallet.ID
	if err := s.locations.SavePallet(ctx, pallet); err != nil {
		return nil, err
	}
	// a concurrent scan of the same barcode may have stored it first
	created = created && pallet.ID == scannedID

	if created {
		s.logger.Info("surplus pallet scanned",
			zap.String("location_id", loc.ID.String()),
			zap.String("pallet_code", pallet.PalletCode),
		)
	}
	return &ScanPalletResponse{Pallet: ToPalletResponse(pallet), Created: created}, nil
}

// MatchPallet records the counted quantity of an expected pallet
func (s *ScanService) MatchPallet(ctx context.Context, actor Actor, locationID, palletID uuid.UUID, req MatchPalletRequest) (*PalletResponse, error) {
	if req.ActualPackageQuantity == nil {
		return nil, shared.Validation("Actual quantity is required")
	}
	return s.editPallet(ctx, actor, locationID, func(loc *stocktaking.Location) (*stocktaking.Pallet, error) {
		return loc.Match(palletID, *req.ActualPackageQuantity, req.Note)
	})
}

// MarkMissing declares an expected pallet as not found
func (s *ScanService) MarkMissing(ctx context.Context, actor Actor, locationID, palletID uuid.UUID, req MarkMissingRequest) (*PalletResponse, error) {
	return s.editPallet(ctx, actor, locationID, func(loc *stocktaking.Location) (*stocktaking.Pallet, error) {
		return loc.MarkMissing(palletID, req.Note)
	})
}

// UndoMissing returns a missing pallet to Unscanned
func (s *ScanService) UndoMissing(ctx context.Context, actor Actor, locationID, palletID uuid.UUID) (*PalletResponse, error) {
	return s.editPallet(ctx, actor, locationID, func(loc *stocktaking.Location) (*stocktaking.Pallet, error) {
		return loc.UndoMissing(palletID)
	})
}

// MarkSurplus records the quantity of a pallet found without expectation
func (s *ScanService) MarkSurplus(ctx context.Context, actor Actor, locationID uuid.UUID, req MarkSurplusRequest) (*PalletResponse, error) {
	if req.ActualPackageQuantity == nil {
		return nil, shared.Validation("Actual quantity is required")
	}
	_, loc, err := s.loadForCounting(ctx, actor, locationID)
	if err != nil {
		return nil, err
	}
	pallet, err := s.applySurplus(ctx, loc, req.Barcode, *req.ActualPackageQuantity, req.Note)
	if err != nil {
		return nil, err
	}
	if err := s.locations.SavePallet(ctx, pallet); err != nil {
		return nil, err
	}
	response := ToPalletResponse(pallet)
	return &response, nil
}

// DeletePallet removes a surplus record
func (s *ScanService) DeletePallet(ctx context.Context, actor Actor, locationID, palletID uuid.UUID) error {
	_, loc, err := s.loadForCounting(ctx, actor, locationID)
	if err != nil {
		return err
	}
	if err := loc.DeletePallet(palletID); err != nil {
		return err
	}
	return s.locations.DeletePallet(ctx, loc.ID, palletID)
}

// ConfirmLocation closes a location. Pending edits are validated locally,
// then written concurrently; the confirmation transition only happens once
// every write succeeded. Writes already sent are never aborted, and a
// partial failure leaves the applied ones in place.
func (s *ScanService) ConfirmLocation(ctx context.Context, actor Actor, locationID uuid.UUID, req ConfirmLocationRequest) (*LocationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stocktaking_scan", "confirm_location",
		"location_id", locationID.String(),
		"pending", len(req.Pending),
	)
	defer span.End()

	resp, err := s.confirmLocation(ctx, actor, locationID, req)
	telemetry.RecordError(span, err)
	return resp, err
}

func (s *ScanService) confirmLocation(ctx context.Context, actor Actor, locationID uuid.UUID, req ConfirmLocationRequest) (*LocationResponse, error) {
	_, loc, err := s.loadForCounting(ctx, actor, locationID)
	if err != nil {
		return nil, err
	}
	if loc.Status != stocktaking.LocationStatusPending {
		return nil, shared.InvalidTransition("Location %s is already %s", loc.LocationCode, loc.Status)
	}
	if err := s.dryRun(ctx, loc, req.Pending); err != nil {
		return nil, err
	}

	if len(req.Pending) > 0 {
		result := s.flushPending(ctx, locationID, req.Pending)
		if result.HasFailures() {
			s.logger.Warn("pending writes failed, location left pending",
				zap.String("location_id", locationID.String()),
				zap.Int("failed", len(result.Failed())),
			)
			return nil, result.Err("confirm location")
		}
	}

	// reload so the transition sees exactly what was persisted
	_, loc, err = s.loadForCounting(ctx, actor, locationID)
	if err != nil {
		return nil, err
	}
	if err := loc.Confirm(actor.UserID); err != nil {
		return nil, err
	}

	sheet, err := s.sheets.SaveCountedLocation(ctx, loc, func(sheet *stocktaking.Sheet, total, counted int) error {
		return sheet.SyncAreaProgress(loc.SheetAreaID, total, counted)
	})
	if err != nil {
		return nil, err
	}
	s.events.publish(ctx, loc, sheet)

	s.logger.Info("location counted",
		zap.String("location_id", loc.ID.String()),
		zap.String("location_code", loc.LocationCode),
		zap.Int("findings", len(loc.Findings)),
		zap.String("sheet_status", sheet.Status.String()),
	)

	response := ToLocationResponse(loc)
	return &response, nil
}

// dryRun applies every pending entry to the in-memory location so that
// invalid input fails before any write is sent.
func (s *ScanService) dryRun(ctx context.Context, loc *stocktaking.Location, pending []PendingEntry) error {
	seen := make(map[string]struct{}, len(pending))
	for _, entry := range pending {
		if entry.ActualPackageQuantity == nil {
			return shared.Validation("Actual quantity is required for every pending entry")
		}
		switch entry.Kind {
		case PendingMatch:
			if entry.PalletID == uuid.Nil {
				return shared.Validation("Pending match needs a pallet id")
			}
		case PendingSurplus:
			if stocktaking.NormalizeCode(entry.Barcode) == "" {
				return shared.Validation("Pending surplus needs a barcode")
			}
		default:
			return shared.Validation("Unknown pending entry kind %q", entry.Kind)
		}
		if _, dup := seen[entry.key()]; dup {
			return shared.Validation("Pallet %s has more than one pending entry", entry.key())
		}
		seen[entry.key()] = struct{}{}

		if _, err := s.applyEntry(ctx, loc, entry); err != nil {
			return err
		}
	}
	return nil
}

// flushPending fires every pending write and waits for all of them.
// The writes run detached from ctx cancellation.
func (s *ScanService) flushPending(ctx context.Context, locationID uuid.UUID, pending []PendingEntry) *shared.BatchResult {
	writeCtx := context.WithoutCancel(ctx)
	result := shared.NewBatchResult()

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, entry := range pending {
		g.Go(func() error {
			if err := s.writeEntry(writeCtx, locationID, entry); err != nil {
				result.Fail(entry.key(), err)
				return nil
			}
			result.Succeed(entry.key())
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// writeEntry persists one pending entry as its own load-apply-save cycle
func (s *ScanService) writeEntry(ctx context.Context, locationID uuid.UUID, entry PendingEntry) error {
	loc, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		return err
	}
	pallet, err := s.applyEntry(ctx, loc, entry)
	if err != nil {
		return err
	}
	return s.locations.SavePallet(ctx, pallet)
}

func (s *ScanService) applyEntry(ctx context.Context, loc *stocktaking.Location, entry PendingEntry) (*stocktaking.Pallet, error) {
	if entry.Kind == PendingMatch {
		return loc.Match(entry.PalletID, *entry.ActualPackageQuantity, entry.Note)
	}
	return s.applySurplus(ctx, loc, entry.Barcode, *entry.ActualPackageQuantity, entry.Note)
}

func (s *ScanService) applySurplus(ctx context.Context, loc *stocktaking.Location, barcode string, qty int, note string) (*stocktaking.Pallet, error) {
	var master *stocktaking.WarehousePallet
	if loc.FindPalletByCode(barcode) == nil {
		var err error
		if master, err = s.lookupMaster(ctx, barcode); err != nil {
			return nil, err
		}
	}
	return loc.MarkSurplus(barcode, qty, note, master)
}

// lookupMaster returns the warehouse record of a barcode, or nil when unknown
func (s *ScanService) lookupMaster(ctx context.Context, barcode string) (*stocktaking.WarehousePallet, error) {
	master, err := s.palletDir.FindPalletByCode(ctx, stocktaking.NormalizeCode(barcode))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return master, err
}

func (s *ScanService) editPallet(ctx context.Context, actor Actor, locationID uuid.UUID, fn func(*stocktaking.Location) (*stocktaking.Pallet, error)) (*PalletResponse, error) {
	_, loc, err := s.loadForCounting(ctx, actor, locationID)
	if err != nil {
		return nil, err
	}
	pallet, err := fn(loc)
	if err != nil {
		return nil, err
	}
	if err := s.locations.SavePallet(ctx, pallet); err != nil {
		return nil, err
	}
	response := ToPalletResponse(pallet)
	return &response, nil
}

// loadForCounting loads a location and its sheet, checking that the sheet is
// being counted and that the actor is the assignee of the location's area.
// Approvers may count any area.
func (s *ScanService) loadForCounting(ctx context.Context, actor Actor, locationID uuid.UUID) (*stocktaking.Sheet, *stocktaking.Location, error) {
	loc, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		return nil, nil, err
	}
	sheet, err := s.sheets.FindByID(ctx, loc.SheetID)
	if err != nil {
		return nil, nil, err
	}
	if err := sheet.EnsureCounting(); err != nil {
		return nil, nil, err
	}
	area, err := sheet.FindArea(loc.SheetAreaID)
	if err != nil {
		return nil, nil, err
	}
	if !area.IsAssignedTo(actor.UserID) && !actor.HasRole(stocktaking.RoleApprover) {
		return nil, nil, shared.Forbidden("Area %s is not assigned to you", area.AreaCode)
	}
	return sheet, loc, nil
}
