package stocktaking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Staff roles recognised by the stocktaking workflow
const (
	RoleCounter  = "stocktaking_counter"
	RoleApprover = "stocktaking_approver"
)

// WarehouseArea is read-only master data for a physical area
type WarehouseArea struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Temperature decimal.Decimal
	Humidity    decimal.Decimal
	Light       decimal.Decimal
}

// WarehouseLocation is read-only master data for a storage slot
type WarehouseLocation struct {
	ID       uuid.UUID
	AreaID   uuid.UUID
	Code     string
	AreaCode string
	Rack     string
	Row      string
	Column   string
}

// WarehousePallet is the system record of a pallet currently stored somewhere
type WarehousePallet struct {
	ID              uuid.UUID
	LocationID      *uuid.UUID
	Code            string
	PackageQuantity int
	GoodsCode       string
	GoodsName       string
	BatchNumber     string
	ExpiryDate      *time.Time
}

// StaffMember is a warehouse employee who can be assigned to areas
type StaffMember struct {
	ID     uuid.UUID
	Code   string
	Name   string
	Role   string
	Active bool
}

// AreaDirectory reads warehouse area master data
type AreaDirectory interface {
	FindAreas(ctx context.Context, ids []uuid.UUID) ([]WarehouseArea, error)
	ListAreas(ctx context.Context) ([]WarehouseArea, error)
}

// LocationDirectory reads warehouse location master data
type LocationDirectory interface {
	ListLocationsByArea(ctx context.Context, areaID uuid.UUID) ([]WarehouseLocation, error)
}

// PalletDirectory reads the system's view of where pallets are
type PalletDirectory interface {
	ListPalletsByLocation(ctx context.Context, locationID uuid.UUID) ([]WarehousePallet, error)
	// FindPalletByCode returns shared.ErrNotFound when the barcode is unknown
	FindPalletByCode(ctx context.Context, code string) (*WarehousePallet, error)
}

// StaffDirectory reads staff records
type StaffDirectory interface {
	ListStaffByRole(ctx context.Context, role string) ([]StaffMember, error)
	FindStaff(ctx context.Context, ids []uuid.UUID) ([]StaffMember, error)
}

// NormalizeCode trims and case-folds a scanned location code or barcode so
// that comparisons are case-insensitive for non-ASCII input too. A Caser is
// stateful, so one is built per call.
func NormalizeCode(code string) string {
	return strings.ToUpper(cases.Fold().String(strings.TrimSpace(code)))
}
