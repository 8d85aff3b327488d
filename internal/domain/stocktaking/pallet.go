package stocktaking

import (
	"time"

	"github.com/google/uuid"
)

// Pallet is one pallet-level reconciliation record inside a location.
// A record without an expected quantity is a Surplus: the pallet was found
// at a location where the system did not expect it.
type Pallet struct {
	ID                      uuid.UUID
	LocationID              uuid.UUID
	PalletID                *uuid.UUID // warehouse pallet, nil when unknown to master data
	PalletCode              string
	ExpectedPackageQuantity *int
	ActualPackageQuantity   *int
	Status                  PalletStatus
	Note                    string
	Scanned                 bool
	ScannedAt               *time.Time
	GoodsCode               string
	GoodsName               string
	BatchNumber             string
	ExpiryDate              *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func newExpectedPallet(locationID uuid.UUID, ref WarehousePallet) Pallet {
	now := time.Now()
	palletID := ref.ID
	expected := ref.PackageQuantity
	return Pallet{
		ID:                      uuid.New(),
		LocationID:              locationID,
		PalletID:                &palletID,
		PalletCode:              NormalizeCode(ref.Code),
		ExpectedPackageQuantity: &expected,
		Status:                  PalletStatusUnscanned,
		GoodsCode:               ref.GoodsCode,
		GoodsName:               ref.GoodsName,
		BatchNumber:             ref.BatchNumber,
		ExpiryDate:              ref.ExpiryDate,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// newSurplusPallet builds a record for a barcode with no expectation here.
// master may be nil when the barcode is unknown to the pallet registry.
func newSurplusPallet(locationID uuid.UUID, code string, master *WarehousePallet, now time.Time) Pallet {
	p := Pallet{
		ID:         uuid.New(),
		LocationID: locationID,
		PalletCode: code,
		Status:     PalletStatusSurplus,
		Scanned:    true,
		ScannedAt:  &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if master != nil {
		id := master.ID
		p.PalletID = &id
		p.GoodsCode = master.GoodsCode
		p.GoodsName = master.GoodsName
		p.BatchNumber = master.BatchNumber
		p.ExpiryDate = master.ExpiryDate
	}
	return p
}

// IsExpected reports whether the system expected this pallet at the location
func (p *Pallet) IsExpected() bool {
	return p.ExpectedPackageQuantity != nil
}

// Difference returns actual minus expected, or 0 when either side is unknown
func (p *Pallet) Difference() int {
	if p.ExpectedPackageQuantity == nil {
		if p.ActualPackageQuantity == nil {
			return 0
		}
		return *p.ActualPackageQuantity
	}
	if p.ActualPackageQuantity == nil {
		return -*p.ExpectedPackageQuantity
	}
	return *p.ActualPackageQuantity - *p.ExpectedPackageQuantity
}

func (p *Pallet) resetToUnscanned(now time.Time) {
	p.Status = PalletStatusUnscanned
	p.ActualPackageQuantity = nil
	p.Scanned = false
	p.ScannedAt = nil
	p.UpdatedAt = now
}
