package stocktaking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
)

// LocationMetadata is returned when a scanned location code is accepted
type LocationMetadata struct {
	LocationID   uuid.UUID
	LocationCode string
	AreaCode     string
	Rack         string
	Row          string
	Column       string
}

// Location is one storage slot being counted within a sheet area.
// It owns its pallet records and is persisted independently of the Sheet so
// that confirming one location never locks the rest of the campaign.
type Location struct {
	shared.BaseAggregateRoot
	SheetID          uuid.UUID
	SheetAreaID      uuid.UUID
	LocationID       uuid.UUID // warehouse location
	LocationCode     string
	AreaCode         string
	Rack             string
	Row              string
	Column           string
	Status           LocationStatus
	Pallets          []Pallet
	Findings         []Finding
	RejectCount      int
	LastRejectReason string
	CountedByID      *uuid.UUID
	CountedAt        *time.Time
}

// NewLocation snapshots a warehouse location and the pallets the system
// expects there at the moment counting starts.
func NewLocation(sheetID, sheetAreaID uuid.UUID, ref WarehouseLocation, expected []WarehousePallet) *Location {
	l := &Location{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SheetID:           sheetID,
		SheetAreaID:       sheetAreaID,
		LocationID:        ref.ID,
		LocationCode:      ref.Code,
		AreaCode:          ref.AreaCode,
		Rack:              ref.Rack,
		Row:               ref.Row,
		Column:            ref.Column,
		Status:            LocationStatusPending,
		Pallets:           make([]Pallet, 0, len(expected)),
		Findings:          make([]Finding, 0),
	}
	for _, p := range expected {
		l.Pallets = append(l.Pallets, newExpectedPallet(l.ID, p))
	}
	return l
}

// Metadata returns descriptive data about the location
func (l *Location) Metadata() LocationMetadata {
	return LocationMetadata{
		LocationID:   l.ID,
		LocationCode: l.LocationCode,
		AreaCode:     l.AreaCode,
		Rack:         l.Rack,
		Row:          l.Row,
		Column:       l.Column,
	}
}

// ValidateCode checks a scanned code against this location. Comparison is a
// case-insensitive exact match; a mismatch leaves state unchanged.
func (l *Location) ValidateCode(candidate string) (LocationMetadata, error) {
	if strings.TrimSpace(candidate) == "" {
		return LocationMetadata{}, shared.Validation("Location code is required")
	}
	if NormalizeCode(candidate) != NormalizeCode(l.LocationCode) {
		return LocationMetadata{}, shared.NewDomainError(shared.CodeLocationMismatch,
			"Scanned location "+strings.TrimSpace(candidate)+" does not match "+l.LocationCode)
	}
	return l.Metadata(), nil
}

func (l *Location) ensurePending() error {
	if l.Status != LocationStatusPending {
		return shared.InvalidTransition("Location %s is %s, reject it before recounting", l.LocationCode, l.Status)
	}
	return nil
}

// FindPallet returns the pallet record with the given id
func (l *Location) FindPallet(id uuid.UUID) (*Pallet, error) {
	for i := range l.Pallets {
		if l.Pallets[i].ID == id {
			return &l.Pallets[i], nil
		}
	}
	return nil, shared.NotFound("Pallet", id)
}

// FindPalletByCode returns the record for a barcode, or nil
func (l *Location) FindPalletByCode(code string) *Pallet {
	code = NormalizeCode(code)
	for i := range l.Pallets {
		if l.Pallets[i].PalletCode == code {
			return &l.Pallets[i]
		}
	}
	return nil
}

// HasSurplus reports whether any surplus record exists at this location
func (l *Location) HasSurplus() bool {
	for _, p := range l.Pallets {
		if p.Status == PalletStatusSurplus {
			return true
		}
	}
	return false
}

// ScanPallet registers a scanned barcode. It is an idempotent upsert: an
// expected pallet is flagged as scanned, an unknown barcode creates one
// Surplus record, and repeating the scan changes nothing. created reports
// whether a new record was added.
func (l *Location) ScanPallet(barcode string, master *WarehousePallet) (pallet *Pallet, created bool, err error) {
	if err := l.ensurePending(); err != nil {
		return nil, false, err
	}
	code := NormalizeCode(barcode)
	if code == "" {
		return nil, false, shared.Validation("Pallet barcode is required")
	}

	now := time.Now()
	if p := l.FindPalletByCode(code); p != nil {
		if p.Status == PalletStatusMissing {
			return nil, false, shared.InvalidTransition("Pallet %s is marked missing, undo it before scanning", p.PalletCode)
		}
		if !p.Scanned {
			p.Scanned = true
			p.ScannedAt = &now
			p.UpdatedAt = now
			l.touch(now)
		}
		return p, false, nil
	}

	l.Pallets = append(l.Pallets, newSurplusPallet(l.ID, code, master, now))
	l.touch(now)
	return &l.Pallets[len(l.Pallets)-1], true, nil
}

// Match records the counted quantity of an expected pallet. It may be
// repeated while the location is pending; the last value wins.
func (l *Location) Match(palletID uuid.UUID, actualQty int, note string) (*Pallet, error) {
	if err := l.ensurePending(); err != nil {
		return nil, err
	}
	if actualQty < 0 {
		return nil, shared.Validation("Actual quantity cannot be negative")
	}
	p, err := l.FindPallet(palletID)
	if err != nil {
		return nil, err
	}
	if !p.IsExpected() {
		return nil, shared.InvalidTransition("Pallet %s is surplus, record its quantity as surplus", p.PalletCode)
	}
	if p.Status != PalletStatusUnscanned && p.Status != PalletStatusMatched {
		return nil, shared.InvalidTransition("Cannot match pallet %s in %s status", p.PalletCode, p.Status)
	}
	if !p.Scanned {
		return nil, shared.InvalidTransition("Pallet %s must be scanned before it can be matched", p.PalletCode)
	}

	now := time.Now()
	qty := actualQty
	p.ActualPackageQuantity = &qty
	p.Note = note
	p.Status = PalletStatusMatched
	p.UpdatedAt = now
	l.touch(now)
	return p, nil
}

// MarkMissing declares an expected pallet as not found. A location holding
// a surplus record cannot declare another pallet missing until the surplus
// is resolved.
func (l *Location) MarkMissing(palletID uuid.UUID, note string) (*Pallet, error) {
	if err := l.ensurePending(); err != nil {
		return nil, err
	}
	p, err := l.FindPallet(palletID)
	if err != nil {
		return nil, err
	}
	if !p.IsExpected() || (p.Status != PalletStatusUnscanned && p.Status != PalletStatusMatched) {
		return nil, shared.InvalidTransition("Cannot mark pallet %s missing in %s status", p.PalletCode, p.Status)
	}
	if l.HasSurplus() {
		return nil, shared.InvalidTransition("Location %s has a surplus pallet, resolve it before marking pallets missing", l.LocationCode)
	}

	now := time.Now()
	p.Status = PalletStatusMissing
	p.ActualPackageQuantity = nil
	p.Note = note
	p.UpdatedAt = now
	l.touch(now)
	return p, nil
}

// UndoMissing is the inverse of MarkMissing
func (l *Location) UndoMissing(palletID uuid.UUID) (*Pallet, error) {
	if err := l.ensurePending(); err != nil {
		return nil, err
	}
	p, err := l.FindPallet(palletID)
	if err != nil {
		return nil, err
	}
	if p.Status != PalletStatusMissing {
		return nil, shared.InvalidTransition("Pallet %s is not marked missing", p.PalletCode)
	}

	now := time.Now()
	p.resetToUnscanned(now)
	l.touch(now)
	return p, nil
}

// MarkSurplus records the quantity of a pallet found here without an
// expectation. It upserts by barcode.
func (l *Location) MarkSurplus(barcode string, actualQty int, note string, master *WarehousePallet) (*Pallet, error) {
	if err := l.ensurePending(); err != nil {
		return nil, err
	}
	if actualQty < 0 {
		return nil, shared.Validation("Actual quantity cannot be negative")
	}
	code := NormalizeCode(barcode)
	if code == "" {
		return nil, shared.Validation("Pallet barcode is required")
	}

	now := time.Now()
	p := l.FindPalletByCode(code)
	if p == nil {
		l.Pallets = append(l.Pallets, newSurplusPallet(l.ID, code, master, now))
		p = &l.Pallets[len(l.Pallets)-1]
	} else if p.IsExpected() {
		return nil, shared.InvalidTransition("Pallet %s is expected at this location, match it instead", p.PalletCode)
	}

	qty := actualQty
	p.ActualPackageQuantity = &qty
	p.Note = note
	p.UpdatedAt = now
	l.touch(now)
	return p, nil
}

// DeletePallet removes a surplus record
func (l *Location) DeletePallet(palletID uuid.UUID) error {
	if err := l.ensurePending(); err != nil {
		return err
	}
	for i := range l.Pallets {
		if l.Pallets[i].ID != palletID {
			continue
		}
		if l.Pallets[i].Status != PalletStatusSurplus {
			return shared.InvalidTransition("Only surplus pallets can be deleted, %s is %s", l.Pallets[i].PalletCode, l.Pallets[i].Status)
		}
		l.Pallets = append(l.Pallets[:i], l.Pallets[i+1:]...)
		l.touch(time.Now())
		return nil
	}
	return shared.NotFound("Pallet", palletID)
}

// CanConfirm reports whether the location may be closed: either it is empty
// (no expected and no surplus pallets), or every expected pallet is Matched or
// Missing and every surplus has a quantity.
func (l *Location) CanConfirm() error {
	if err := l.ensurePending(); err != nil {
		return err
	}
	for _, p := range l.Pallets {
		if p.IsExpected() && !p.Status.IsResolved() {
			return shared.InvalidTransition("Pallet %s is still %s", p.PalletCode, p.Status)
		}
		if p.Status == PalletStatusSurplus && p.ActualPackageQuantity == nil {
			return shared.InvalidTransition("Surplus pallet %s has no quantity", p.PalletCode)
		}
	}
	return nil
}

// Confirm closes the location as Counted and records its findings
func (l *Location) Confirm(countedBy uuid.UUID) error {
	if err := l.CanConfirm(); err != nil {
		return err
	}

	now := time.Now()
	l.Status = LocationStatusCounted
	l.Findings = detectFindings(l.Pallets)
	l.CountedByID = &countedBy
	l.CountedAt = &now
	l.touch(now)

	l.AddDomainEvent(NewLocationCountedEvent(l))

	return nil
}

// Reject sends a counted location back for recount. Matched pallets return
// to Unscanned; Missing and Surplus records are kept.
func (l *Location) Reject(reason string) error {
	if l.Status != LocationStatusCounted {
		return shared.InvalidTransition("Only counted locations can be rejected, %s is %s", l.LocationCode, l.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.Validation("Reject reason is required for location %s", l.LocationCode)
	}

	now := time.Now()
	for i := range l.Pallets {
		if l.Pallets[i].Status == PalletStatusMatched {
			l.Pallets[i].resetToUnscanned(now)
		}
	}
	l.Status = LocationStatusPending
	l.Findings = make([]Finding, 0)
	l.RejectCount++
	l.LastRejectReason = reason
	l.CountedByID = nil
	l.CountedAt = nil
	l.touch(now)
	return nil
}

// SeedRejectReason builds the default reject reason from the findings
// recorded at confirmation.
func (l *Location) SeedRejectReason() string {
	return JoinFindings(l.Findings)
}

// FindingCounts returns the number of warnings and errors
func (l *Location) FindingCounts() (warnings, errs int) {
	for _, f := range l.Findings {
		if f.Severity == FindingError {
			errs++
		} else {
			warnings++
		}
	}
	return warnings, errs
}

// Tally counts pallet records by status
func (l *Location) Tally() map[PalletStatus]int {
	tally := make(map[PalletStatus]int, 4)
	for _, p := range l.Pallets {
		tally[p.Status]++
	}
	return tally
}

func (l *Location) touch(now time.Time) {
	l.UpdatedAt = now
	l.IncrementVersion()
}
