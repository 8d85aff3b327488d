package stocktaking

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
)

// SheetFilter narrows sheet listings
type SheetFilter struct {
	shared.Filter
	Status   *SheetStatus
	StaffID  *uuid.UUID // only sheets with an area assigned to this staff
	Creators []uuid.UUID
}

// SheetRepository persists sheets together with their areas
type SheetRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Sheet, error)
	// FindByAreaID returns the sheet owning the given stocktaking area
	FindByAreaID(ctx context.Context, sheetAreaID uuid.UUID) (*Sheet, error)
	FindAll(ctx context.Context, filter SheetFilter) ([]Sheet, int64, error)
	Save(ctx context.Context, sheet *Sheet) error
	// SaveWithLocations writes the sheet and the given locations in one transaction
	SaveWithLocations(ctx context.Context, sheet *Sheet, locations []*Location) error
	// SaveCountedLocation writes a confirmed location, then calls apply with
	// the current sheet and the area's location counts including that write,
	// and saves the sheet in the same transaction. The returned sheet carries
	// the events raised by apply.
	SaveCountedLocation(ctx context.Context, loc *Location, apply func(sheet *Sheet, total, counted int) error) (*Sheet, error)
}

// LocationRepository persists counting locations and their pallets
type LocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Location, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Location, error)
	FindBySheet(ctx context.Context, sheetID uuid.UUID, sheetAreaID *uuid.UUID) ([]Location, error)
	// Save writes the location row and replaces its pallet set
	Save(ctx context.Context, location *Location) error
	// SavePallet upserts a single pallet row without touching its siblings,
	// so independent pallet writes of one location can run concurrently.
	// A barcode is kept once per location; when another write already stored
	// it, pallet is refreshed from the stored row.
	SavePallet(ctx context.Context, pallet *Pallet) error
	DeletePallet(ctx context.Context, locationID, palletID uuid.UUID) error
	Progress(ctx context.Context, sheetID uuid.UUID) ([]AreaProgress, error)
}

// AreaProgress summarises counting progress of one sheet area
type AreaProgress struct {
	SheetAreaID      uuid.UUID
	TotalLocations   int
	CountedLocations int
	Unscanned        int
	Matched          int
	Missing          int
	Surplus          int
}
