package stocktaking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"go.uber.org/zap"
)

// ===================== Event bus =====================

// MockEventBus records published events
type MockEventBus struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (m *MockEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {}
func (m *MockEventBus) Unsubscribe(handler shared.EventHandler)                     {}
func (m *MockEventBus) Start(ctx context.Context) error                             { return nil }
func (m *MockEventBus) Stop(ctx context.Context) error                              { return nil }

func (m *MockEventBus) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// ===================== In-memory repositories =====================

// memStore keeps copies of aggregates so that tests observe only what was
// actually saved
type memStore struct {
	mu        sync.Mutex
	sheets    map[uuid.UUID]stocktaking.Sheet
	locations map[uuid.UUID]stocktaking.Location

	palletErrs map[string]error // SavePallet failures keyed by pallet code
	saveCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		sheets:     make(map[uuid.UUID]stocktaking.Sheet),
		locations:  make(map[uuid.UUID]stocktaking.Location),
		palletErrs: make(map[string]error),
	}
}

func cloneSheet(s *stocktaking.Sheet) stocktaking.Sheet {
	c := *s
	c.Areas = append([]stocktaking.Area(nil), s.Areas...)
	c.ClearDomainEvents()
	return c
}

func cloneLocation(l *stocktaking.Location) stocktaking.Location {
	c := *l
	c.Pallets = append([]stocktaking.Pallet(nil), l.Pallets...)
	c.Findings = append([]stocktaking.Finding(nil), l.Findings...)
	c.ClearDomainEvents()
	return c
}

type memSheetRepo struct{ *memStore }

func (r memSheetRepo) FindByID(ctx context.Context, id uuid.UUID) (*stocktaking.Sheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sheets[id]
	if !ok {
		return nil, shared.NotFound("Stocktaking sheet", id)
	}
	c := cloneSheet(&s)
	return &c, nil
}

func (r memSheetRepo) FindByAreaID(ctx context.Context, sheetAreaID uuid.UUID) (*stocktaking.Sheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sheets {
		for _, a := range s.Areas {
			if a.ID == sheetAreaID {
				c := cloneSheet(&s)
				return &c, nil
			}
		}
	}
	return nil, shared.NotFound("Stocktaking area", sheetAreaID)
}

func (r memSheetRepo) FindAll(ctx context.Context, filter stocktaking.SheetFilter) ([]stocktaking.Sheet, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stocktaking.Sheet, 0)
	for _, s := range r.sheets {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		out = append(out, cloneSheet(&s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, int64(len(out)), nil
}

func (r memSheetRepo) Save(ctx context.Context, sheet *stocktaking.Sheet) error {
	return r.SaveWithLocations(ctx, sheet, nil)
}

func (r memSheetRepo) SaveWithLocations(ctx context.Context, sheet *stocktaking.Sheet, locations []*stocktaking.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkVersion(sheet); err != nil {
		return err
	}
	r.saveCalls++
	sheet.MarkStored()
	r.sheets[sheet.ID] = cloneSheet(sheet)
	for _, l := range locations {
		r.locations[l.ID] = cloneLocation(l)
	}
	return nil
}

// checkVersion mirrors the optimistic lock of the gorm repository
func (r memSheetRepo) checkVersion(sheet *stocktaking.Sheet) error {
	stored, ok := r.sheets[sheet.ID]
	if sheet.StoredVersion() == 0 {
		if ok {
			return fmt.Errorf("sheet %s already exists", sheet.ID)
		}
		return nil
	}
	if !ok || stored.Version != sheet.StoredVersion() {
		return shared.ErrConcurrentModification
	}
	return nil
}

func (r memSheetRepo) SaveCountedLocation(ctx context.Context, loc *stocktaking.Location, apply func(sheet *stocktaking.Sheet, total, counted int) error) (*stocktaking.Sheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sheets[loc.SheetID]
	if !ok {
		return nil, shared.NotFound("Stocktaking sheet", loc.SheetID)
	}
	locations := make(map[uuid.UUID]stocktaking.Location, len(r.locations))
	for id, l := range r.locations {
		locations[id] = l
	}
	locations[loc.ID] = cloneLocation(loc)

	total, counted := 0, 0
	for _, l := range locations {
		if l.SheetAreaID != loc.SheetAreaID {
			continue
		}
		total++
		if l.Status == stocktaking.LocationStatusCounted {
			counted++
		}
	}
	sheet := cloneSheet(&stored)
	if err := apply(&sheet, total, counted); err != nil {
		return nil, err
	}

	r.saveCalls++
	sheet.MarkStored()
	r.locations = locations
	r.sheets[sheet.ID] = cloneSheet(&sheet)
	return &sheet, nil
}

type memLocationRepo struct{ *memStore }

func (r memLocationRepo) FindByID(ctx context.Context, id uuid.UUID) (*stocktaking.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locations[id]
	if !ok {
		return nil, shared.NotFound("Stocktaking location", id)
	}
	c := cloneLocation(&l)
	return &c, nil
}

func (r memLocationRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]stocktaking.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stocktaking.Location, 0, len(ids))
	for _, id := range ids {
		if l, ok := r.locations[id]; ok {
			out = append(out, cloneLocation(&l))
		}
	}
	return out, nil
}

func (r memLocationRepo) FindBySheet(ctx context.Context, sheetID uuid.UUID, sheetAreaID *uuid.UUID) ([]stocktaking.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stocktaking.Location, 0)
	for _, l := range r.locations {
		if l.SheetID != sheetID || (sheetAreaID != nil && l.SheetAreaID != *sheetAreaID) {
			continue
		}
		out = append(out, cloneLocation(&l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationCode < out[j].LocationCode })
	return out, nil
}

func (r memLocationRepo) Save(ctx context.Context, location *stocktaking.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[location.ID] = cloneLocation(location)
	return nil
}

func (r memLocationRepo) SavePallet(ctx context.Context, pallet *stocktaking.Pallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.palletErrs[pallet.PalletCode]; ok {
		return err
	}
	l, ok := r.locations[pallet.LocationID]
	if !ok {
		return shared.NotFound("Stocktaking location", pallet.LocationID)
	}
	l = cloneLocation(&l)
	for i := range l.Pallets {
		if l.Pallets[i].ID == pallet.ID {
			l.Pallets[i] = *pallet
			r.locations[l.ID] = l
			return nil
		}
	}
	// one row per barcode, the first stored id is kept
	if existing := l.FindPalletByCode(pallet.PalletCode); existing != nil {
		if pallet.ActualPackageQuantity != nil {
			id, createdAt := existing.ID, existing.CreatedAt
			*existing = *pallet
			existing.ID, existing.CreatedAt = id, createdAt
			r.locations[l.ID] = l
		}
		*pallet = *existing
		return nil
	}
	l.Pallets = append(l.Pallets, *pallet)
	r.locations[l.ID] = l
	return nil
}

func (r memLocationRepo) DeletePallet(ctx context.Context, locationID, palletID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locations[locationID]
	if !ok {
		return shared.NotFound("Stocktaking location", locationID)
	}
	l = cloneLocation(&l)
	for i := range l.Pallets {
		if l.Pallets[i].ID == palletID {
			l.Pallets = append(l.Pallets[:i], l.Pallets[i+1:]...)
			break
		}
	}
	r.locations[locationID] = l
	return nil
}

func (r memLocationRepo) Progress(ctx context.Context, sheetID uuid.UUID) ([]stocktaking.AreaProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byArea := make(map[uuid.UUID]*stocktaking.AreaProgress)
	for _, l := range r.locations {
		if l.SheetID != sheetID {
			continue
		}
		p, ok := byArea[l.SheetAreaID]
		if !ok {
			p = &stocktaking.AreaProgress{SheetAreaID: l.SheetAreaID}
			byArea[l.SheetAreaID] = p
		}
		p.TotalLocations++
		if l.Status == stocktaking.LocationStatusCounted {
			p.CountedLocations++
		}
		tally := l.Tally()
		p.Unscanned += tally[stocktaking.PalletStatusUnscanned]
		p.Matched += tally[stocktaking.PalletStatusMatched]
		p.Missing += tally[stocktaking.PalletStatusMissing]
		p.Surplus += tally[stocktaking.PalletStatusSurplus]
	}
	out := make([]stocktaking.AreaProgress, 0, len(byArea))
	for _, p := range byArea {
		out = append(out, *p)
	}
	return out, nil
}

// ===================== Directories =====================

type fakeDirectory struct {
	areas     []stocktaking.WarehouseArea
	locations []stocktaking.WarehouseLocation
	pallets   []stocktaking.WarehousePallet
	staff     []stocktaking.StaffMember
}

func (d *fakeDirectory) FindAreas(ctx context.Context, ids []uuid.UUID) ([]stocktaking.WarehouseArea, error) {
	out := make([]stocktaking.WarehouseArea, 0)
	for _, a := range d.areas {
		for _, id := range ids {
			if a.ID == id {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) ListAreas(ctx context.Context) ([]stocktaking.WarehouseArea, error) {
	return d.areas, nil
}

func (d *fakeDirectory) ListLocationsByArea(ctx context.Context, areaID uuid.UUID) ([]stocktaking.WarehouseLocation, error) {
	out := make([]stocktaking.WarehouseLocation, 0)
	for _, l := range d.locations {
		if l.AreaID == areaID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (d *fakeDirectory) ListPalletsByLocation(ctx context.Context, locationID uuid.UUID) ([]stocktaking.WarehousePallet, error) {
	out := make([]stocktaking.WarehousePallet, 0)
	for _, p := range d.pallets {
		if p.LocationID != nil && *p.LocationID == locationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *fakeDirectory) FindPalletByCode(ctx context.Context, code string) (*stocktaking.WarehousePallet, error) {
	for i := range d.pallets {
		if d.pallets[i].Code == code {
			p := d.pallets[i]
			return &p, nil
		}
	}
	return nil, shared.NotFound("Pallet", code)
}

func (d *fakeDirectory) ListStaffByRole(ctx context.Context, role string) ([]stocktaking.StaffMember, error) {
	out := make([]stocktaking.StaffMember, 0)
	for _, m := range d.staff {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out, nil
}

func (d *fakeDirectory) FindStaff(ctx context.Context, ids []uuid.UUID) ([]stocktaking.StaffMember, error) {
	out := make([]stocktaking.StaffMember, 0)
	for _, m := range d.staff {
		for _, id := range ids {
			if m.ID == id {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) addArea(code string) stocktaking.WarehouseArea {
	a := stocktaking.WarehouseArea{ID: uuid.New(), Code: code, Name: "Area " + code, Temperature: decimal.NewFromInt(18)}
	d.areas = append(d.areas, a)
	return a
}

func (d *fakeDirectory) addLocation(area stocktaking.WarehouseArea, code string) stocktaking.WarehouseLocation {
	l := stocktaking.WarehouseLocation{ID: uuid.New(), AreaID: area.ID, Code: code, AreaCode: area.Code, Rack: "R1", Row: "1", Column: "1"}
	d.locations = append(d.locations, l)
	return l
}

func (d *fakeDirectory) addPallet(loc *stocktaking.WarehouseLocation, code string, qty int) stocktaking.WarehousePallet {
	p := stocktaking.WarehousePallet{ID: uuid.New(), Code: code, PackageQuantity: qty, GoodsCode: "G-" + code, GoodsName: "Goods " + code}
	if loc != nil {
		id := loc.ID
		p.LocationID = &id
	}
	d.pallets = append(d.pallets, p)
	return p
}

func (d *fakeDirectory) addStaff(code, role string, active bool) stocktaking.StaffMember {
	m := stocktaking.StaffMember{ID: uuid.New(), Code: code, Name: "Staff " + code, Role: role, Active: active}
	d.staff = append(d.staff, m)
	return m
}

// ===================== Fixture =====================

type sequentialCodes struct {
	mu sync.Mutex
	n  int
}

func (c *sequentialCodes) NextSheetCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("ST-%04d", c.n)
}

type fixture struct {
	store      *memStore
	dir        *fakeDirectory
	bus        *MockEventBus
	sheets     *SheetService
	assignment *AssignmentService
	scan       *ScanService
	rejection  *RejectionService
	creator    Actor
	approver   Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	dir := &fakeDirectory{}
	bus := &MockEventBus{}
	logger := zap.NewNop()

	sheetRepo := memSheetRepo{store}
	locationRepo := memLocationRepo{store}

	sheets := NewSheetService(sheetRepo, locationRepo, dir, dir, &sequentialCodes{}, bus, logger)
	return &fixture{
		store:      store,
		dir:        dir,
		bus:        bus,
		sheets:     sheets,
		assignment: NewAssignmentService(sheetRepo, dir, dir, sheets, bus, logger),
		scan:       NewScanService(sheetRepo, locationRepo, dir, bus, logger, WithConfirmConcurrency(4)),
		rejection:  NewRejectionService(sheetRepo, locationRepo, bus, logger),
		creator:    Actor{UserID: uuid.New()},
		approver:   Actor{UserID: uuid.New(), Roles: []string{stocktaking.RoleApprover}},
	}
}

// countingScenario is a started sheet with one area holding two locations:
// L-01 expects pallets P-1 (10) and P-2 (5), L-02 is empty.
type countingScenario struct {
	sheetID uuid.UUID
	counter Actor
	loc1    *LocationResponse
	loc2    *LocationResponse
}

func (f *fixture) startCounting(t *testing.T) countingScenario {
	t.Helper()
	ctx := context.Background()

	area := f.dir.addArea("A")
	l1 := f.dir.addLocation(area, "L-01")
	f.dir.addLocation(area, "L-02")
	f.dir.addPallet(&l1, "P-1", 10)
	f.dir.addPallet(&l1, "P-2", 5)
	f.dir.addPallet(nil, "P-9", 7) // known but stored elsewhere
	staff := f.dir.addStaff("C1", stocktaking.RoleCounter, true)

	created, err := f.sheets.Create(ctx, f.creator, CreateSheetRequest{StartTime: time.Now()})
	require.NoError(t, err)
	_, err = f.assignment.AssignAreas(ctx, created.ID, AssignAreasRequest{
		Assignments: []AssignmentItem{{AreaID: area.ID, StaffID: staff.ID}},
	})
	require.NoError(t, err)
	_, err = f.sheets.Start(ctx, created.ID)
	require.NoError(t, err)

	locations, err := f.scan.ListLocations(ctx, created.ID, nil)
	require.NoError(t, err)
	require.Len(t, locations, 2)

	return countingScenario{
		sheetID: created.ID,
		counter: Actor{UserID: staff.ID, Roles: []string{stocktaking.RoleCounter}},
		loc1:    &locations[0],
		loc2:    &locations[1],
	}
}

func palletByCode(t *testing.T, loc *LocationResponse, code string) PalletResponse {
	t.Helper()
	for _, p := range loc.Pallets {
		if p.PalletCode == code {
			return p
		}
	}
	t.Fatalf("pallet %s not found at %s", code, loc.LocationCode)
	return PalletResponse{}
}

func intPtr(v int) *int { return &v }
