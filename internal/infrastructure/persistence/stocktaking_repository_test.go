package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"github.com/wms/stocktaking/internal/infrastructure/persistence/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStocktakingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// every connection to :memory: opens a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.SheetModel{},
		&models.SheetAreaModel{},
		&models.LocationModel{},
		&models.PalletModel{},
		&models.WarehouseAreaModel{},
		&models.WarehouseLocationModel{},
		&models.WarehousePalletModel{},
		&models.StaffModel{},
	))
	return db
}

type startedSheet struct {
	sheet    *stocktaking.Sheet
	staff    uuid.UUID
	location *stocktaking.Location
}

// newStartedSheet builds an in-progress sheet with one area and one location
// expecting pallets P-1 (10) and P-2 (4).
func newStartedSheet(t *testing.T) startedSheet {
	t.Helper()
	staff := uuid.New()
	sheet, err := stocktaking.NewSheet("ST-0001", time.Now(), "quarterly", uuid.New())
	require.NoError(t, err)
	require.NoError(t, sheet.AssignAreas([]stocktaking.AreaStaff{{
		Area:    stocktaking.WarehouseArea{ID: uuid.New(), Code: "A", Name: "Cold room", Temperature: decimal.NewFromFloat(4.5)},
		StaffID: staff,
	}}))
	require.NoError(t, sheet.Start())

	loc := stocktaking.NewLocation(sheet.ID, sheet.Areas[0].ID,
		stocktaking.WarehouseLocation{ID: uuid.New(), Code: "A-01-01", AreaCode: "A", Rack: "01", Row: "1", Column: "1"},
		[]stocktaking.WarehousePallet{
			{ID: uuid.New(), Code: "P-1", PackageQuantity: 10, GoodsCode: "G1"},
			{ID: uuid.New(), Code: "P-2", PackageQuantity: 4, GoodsCode: "G2"},
		})
	return startedSheet{sheet: sheet, staff: staff, location: loc}
}

// newTwoAreaSheet saves an in-progress sheet with areas A and B, each holding
// one location with a single expected pallet.
func newTwoAreaSheet(t *testing.T, db *gorm.DB) (*stocktaking.Sheet, uuid.UUID, [2]*stocktaking.Location) {
	t.Helper()
	staff := uuid.New()
	sheet, err := stocktaking.NewSheet("ST-0003", time.Now(), "", uuid.New())
	require.NoError(t, err)
	require.NoError(t, sheet.AssignAreas([]stocktaking.AreaStaff{
		{Area: stocktaking.WarehouseArea{ID: uuid.New(), Code: "A", Name: "Cold room"}, StaffID: staff},
		{Area: stocktaking.WarehouseArea{ID: uuid.New(), Code: "B", Name: "Dry goods"}, StaffID: staff},
	}))
	require.NoError(t, sheet.Start())

	var locs [2]*stocktaking.Location
	for i := range sheet.Areas {
		code := sheet.Areas[i].AreaCode + "-01-01"
		locs[i] = stocktaking.NewLocation(sheet.ID, sheet.Areas[i].ID,
			stocktaking.WarehouseLocation{ID: uuid.New(), Code: code, AreaCode: sheet.Areas[i].AreaCode},
			[]stocktaking.WarehousePallet{{ID: uuid.New(), Code: "P-" + code, PackageQuantity: 5}})
	}
	require.NoError(t, NewGormSheetRepository(db).SaveWithLocations(context.Background(), sheet, locs[:]))
	return sheet, staff, locs
}

func TestGormSheetRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a sheet with its areas and locations", func(t *testing.T) {
		db := setupStocktakingTestDB(t)
		sheets := NewGormSheetRepository(db)
		locations := NewGormLocationRepository(db)
		s := newStartedSheet(t)

		require.NoError(t, sheets.SaveWithLocations(ctx, s.sheet, []*stocktaking.Location{s.location}))

		found, err := sheets.FindByID(ctx, s.sheet.ID)
		require.NoError(t, err)
		assert.Equal(t, "ST-0001", found.Code)
		assert.Equal(t, stocktaking.SheetStatusInProgress, found.Status)
		require.Len(t, found.Areas, 1)
		assert.Equal(t, &s.staff, found.Areas[0].AssignTo)
		assert.True(t, decimal.NewFromFloat(4.5).Equal(found.Areas[0].Temperature))

		byArea, err := sheets.FindByAreaID(ctx, s.sheet.Areas[0].ID)
		require.NoError(t, err)
		assert.Equal(t, s.sheet.ID, byArea.ID)

		loc, err := locations.FindByID(ctx, s.location.ID)
		require.NoError(t, err)
		assert.Equal(t, "A-01-01", loc.LocationCode)
		assert.Equal(t, "1", loc.Row)
		require.Len(t, loc.Pallets, 2)
		assert.Equal(t, 10, *loc.Pallets[0].ExpectedPackageQuantity)
	})

	t.Run("not found", func(t *testing.T) {
		sheets := NewGormSheetRepository(setupStocktakingTestDB(t))

		_, err := sheets.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = sheets.FindByAreaID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("filters by status and assigned staff", func(t *testing.T) {
		db := setupStocktakingTestDB(t)
		sheets := NewGormSheetRepository(db)
		s := newStartedSheet(t)
		require.NoError(t, sheets.Save(ctx, s.sheet))

		draft, err := stocktaking.NewSheet("ST-0002", time.Now(), "", uuid.New())
		require.NoError(t, err)
		require.NoError(t, sheets.Save(ctx, draft))

		inProgress := stocktaking.SheetStatusInProgress
		found, total, err := sheets.FindAll(ctx, stocktaking.SheetFilter{Status: &inProgress})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "ST-0001", found[0].Code)

		found, total, err = sheets.FindAll(ctx, stocktaking.SheetFilter{StaffID: &s.staff})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, found[0].Areas, 1)

		found, total, err = sheets.FindAll(ctx, stocktaking.SheetFilter{
			Filter: shared.Filter{Page: 1, PageSize: 1, OrderBy: "code", OrderDir: "asc"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, found, 1)
		assert.Equal(t, "ST-0001", found[0].Code)
	})

	t.Run("confirmations in two areas both complete the sheet", func(t *testing.T) {
		db := setupStocktakingTestDB(t)
		sheets := NewGormSheetRepository(db)
		sheet, staff, locs := newTwoAreaSheet(t, db)

		var wg sync.WaitGroup
		errs := make([]error, len(locs))
		for i, loc := range locs {
			_, err := loc.MarkMissing(loc.Pallets[0].ID, "")
			require.NoError(t, err)
			require.NoError(t, loc.Confirm(staff))

			wg.Add(1)
			go func(i int, loc *stocktaking.Location) {
				defer wg.Done()
				_, errs[i] = sheets.SaveCountedLocation(ctx, loc, func(s *stocktaking.Sheet, total, counted int) error {
					return s.SyncAreaProgress(loc.SheetAreaID, total, counted)
				})
			}(i, loc)
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		found, err := sheets.FindByID(ctx, sheet.ID)
		require.NoError(t, err)
		assert.Equal(t, stocktaking.SheetStatusPendingApproval, found.Status)
		for _, area := range found.Areas {
			assert.Equal(t, stocktaking.AreaStatusCompleted, area.Status, area.AreaCode)
		}
	})

	t.Run("counts include the location being saved", func(t *testing.T) {
		db := setupStocktakingTestDB(t)
		sheets := NewGormSheetRepository(db)
		_, staff, locs := newTwoAreaSheet(t, db)
		loc := locs[0]
		_, err := loc.MarkMissing(loc.Pallets[0].ID, "")
		require.NoError(t, err)
		require.NoError(t, loc.Confirm(staff))

		updated, err := sheets.SaveCountedLocation(ctx, loc, func(s *stocktaking.Sheet, total, counted int) error {
			assert.Equal(t, 1, total)
			assert.Equal(t, 1, counted)
			return s.SyncAreaProgress(loc.SheetAreaID, total, counted)
		})
		require.NoError(t, err)
		assert.Equal(t, stocktaking.SheetStatusInProgress, updated.Status)
		assert.Equal(t, updated.Version, updated.StoredVersion())

		area, err := updated.FindArea(loc.SheetAreaID)
		require.NoError(t, err)
		assert.Equal(t, stocktaking.AreaStatusCompleted, area.Status)
	})

	t.Run("a stale copy cannot overwrite a newer save", func(t *testing.T) {
		db := setupStocktakingTestDB(t)
		sheets := NewGormSheetRepository(db)
		sheet, staff, locs := newTwoAreaSheet(t, db)

		stale, err := sheets.FindByID(ctx, sheet.ID)
		require.NoError(t, err)

		loc := locs[0]
		_, err = loc.MarkMissing(loc.Pallets[0].ID, "")
		require.NoError(t, err)
		require.NoError(t, loc.Confirm(staff))
		_, err = sheets.SaveCountedLocation(ctx, loc, func(s *stocktaking.Sheet, total, counted int) error {
			return s.SyncAreaProgress(loc.SheetAreaID, total, counted)
		})
		require.NoError(t, err)

		require.NoError(t, stale.ReassignArea(stale.Areas[1].ID, uuid.New()))
		err = sheets.Save(ctx, stale)
		assert.True(t, shared.IsCode(err, shared.CodeConcurrentModification), "got %v", err)

		found, err := sheets.FindByID(ctx, sheet.ID)
		require.NoError(t, err)
		area, err := found.FindArea(loc.SheetAreaID)
		require.NoError(t, err)
		assert.Equal(t, stocktaking.AreaStatusCompleted, area.Status)
		assert.Equal(t, &staff, found.Areas[1].AssignTo)
	})

	t.Run("unreachable database is a network error", func(t *testing.T) {
		db := setupStocktakingTestDB(t)
		sheets := NewGormSheetRepository(db)
		s := newStartedSheet(t)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		_, err = sheets.FindByID(ctx, s.sheet.ID)
		assert.True(t, shared.IsCode(err, shared.CodeNetwork), "got %v", err)

		_, _, err = sheets.FindAll(ctx, stocktaking.SheetFilter{})
		assert.True(t, shared.IsCode(err, shared.CodeNetwork), "got %v", err)

		err = sheets.SaveWithLocations(ctx, s.sheet, []*stocktaking.Location{s.location})
		assert.True(t, shared.IsCode(err, shared.CodeNetwork), "got %v", err)
		assert.Zero(t, s.sheet.StoredVersion())
	})
}

func TestGormLocationRepository(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*GormLocationRepository, startedSheet) {
		db := setupStocktakingTestDB(t)
		s := newStartedSheet(t)
		require.NoError(t, NewGormSheetRepository(db).SaveWithLocations(ctx, s.sheet, []*stocktaking.Location{s.location}))
		return NewGormLocationRepository(db), s
	}

	t.Run("SavePallet upserts a single pallet", func(t *testing.T) {
		repo, s := setup(t)
		loc := s.location

		_, _, err := loc.ScanPallet("P-1", nil)
		require.NoError(t, err)
		p, err := loc.Match(loc.Pallets[0].ID, 9, "torn wrap")
		require.NoError(t, err)
		require.NoError(t, repo.SavePallet(ctx, p))

		surplus, _, err := loc.ScanPallet("X-9", nil)
		require.NoError(t, err)
		require.NoError(t, repo.SavePallet(ctx, surplus))

		reloaded, err := repo.FindByID(ctx, loc.ID)
		require.NoError(t, err)
		require.Len(t, reloaded.Pallets, 3)
		matched := reloaded.FindPalletByCode("P-1")
		require.NotNil(t, matched)
		assert.Equal(t, stocktaking.PalletStatusMatched, matched.Status)
		assert.Equal(t, 9, *matched.ActualPackageQuantity)
		assert.Equal(t, "torn wrap", matched.Note)
		assert.Equal(t, stocktaking.PalletStatusUnscanned, reloaded.FindPalletByCode("P-2").Status)
	})

	t.Run("a barcode is stored once per location", func(t *testing.T) {
		repo, s := setup(t)

		// three sessions holding the same location before any of them saved
		copies := make([]*stocktaking.Location, 3)
		for i := range copies {
			loc, err := repo.FindByID(ctx, s.location.ID)
			require.NoError(t, err)
			copies[i] = loc
		}

		scanned, created, err := copies[0].ScanPallet("X-77", nil)
		require.NoError(t, err)
		require.True(t, created)
		require.NoError(t, repo.SavePallet(ctx, scanned))

		rescanned, created, err := copies[1].ScanPallet(" x-77", nil)
		require.NoError(t, err)
		require.True(t, created)
		require.NoError(t, repo.SavePallet(ctx, rescanned))
		assert.Equal(t, scanned.ID, rescanned.ID)
		assert.Nil(t, rescanned.ActualPackageQuantity)

		counted, err := copies[2].MarkSurplus("x-77", 3, "behind P-2", nil)
		require.NoError(t, err)
		require.NoError(t, repo.SavePallet(ctx, counted))
		assert.Equal(t, scanned.ID, counted.ID)

		reloaded, err := repo.FindByID(ctx, s.location.ID)
		require.NoError(t, err)
		require.Len(t, reloaded.Pallets, 3)
		surplus := reloaded.FindPalletByCode("X-77")
		require.NotNil(t, surplus)
		assert.Equal(t, scanned.ID, surplus.ID)
		assert.Equal(t, 3, *surplus.ActualPackageQuantity)
		assert.Equal(t, "behind P-2", surplus.Note)
	})

	t.Run("unreachable database is a network error", func(t *testing.T) {
		repo, s := setup(t)
		sqlDB, err := repo.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		_, err = repo.FindByID(ctx, s.location.ID)
		assert.True(t, shared.IsCode(err, shared.CodeNetwork), "got %v", err)
		err = repo.SavePallet(ctx, &s.location.Pallets[0])
		assert.True(t, shared.IsCode(err, shared.CodeNetwork), "got %v", err)
		_, err = repo.Progress(ctx, s.sheet.ID)
		assert.True(t, shared.IsCode(err, shared.CodeNetwork), "got %v", err)
	})

	t.Run("DeletePallet", func(t *testing.T) {
		repo, s := setup(t)

		require.NoError(t, repo.DeletePallet(ctx, s.location.ID, s.location.Pallets[1].ID))
		assert.ErrorIs(t, repo.DeletePallet(ctx, s.location.ID, s.location.Pallets[1].ID), shared.ErrNotFound)

		reloaded, err := repo.FindByID(ctx, s.location.ID)
		require.NoError(t, err)
		assert.Len(t, reloaded.Pallets, 1)
	})

	t.Run("confirmed location keeps findings and feeds progress", func(t *testing.T) {
		repo, s := setup(t)
		loc := s.location

		_, _, err := loc.ScanPallet("P-1", nil)
		require.NoError(t, err)
		_, err = loc.Match(loc.Pallets[0].ID, 8, "")
		require.NoError(t, err)
		_, err = loc.MarkMissing(loc.Pallets[1].ID, "")
		require.NoError(t, err)
		require.NoError(t, loc.Confirm(s.staff))
		require.NoError(t, repo.Save(ctx, loc))

		reloaded, err := repo.FindByID(ctx, loc.ID)
		require.NoError(t, err)
		assert.Equal(t, stocktaking.LocationStatusCounted, reloaded.Status)
		require.Len(t, reloaded.Findings, 2)
		assert.Equal(t, loc.SeedRejectReason(), reloaded.SeedRejectReason())

		total, counted, err := countByArea(repo.db, s.sheet.Areas[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, 1, counted)

		progress, err := repo.Progress(ctx, s.sheet.ID)
		require.NoError(t, err)
		require.Len(t, progress, 1)
		assert.Equal(t, stocktaking.AreaProgress{
			SheetAreaID:      s.sheet.Areas[0].ID,
			TotalLocations:   1,
			CountedLocations: 1,
			Matched:          1,
			Missing:          1,
		}, progress[0])
	})

	t.Run("FindBySheet narrows by area", func(t *testing.T) {
		repo, s := setup(t)

		all, err := repo.FindBySheet(ctx, s.sheet.ID, nil)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		other := uuid.New()
		none, err := repo.FindBySheet(ctx, s.sheet.ID, &other)
		require.NoError(t, err)
		assert.Empty(t, none)

		byIDs, err := repo.FindByIDs(ctx, []uuid.UUID{s.location.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, byIDs, 1)
	})
}

func TestGormWarehouseDirectory(t *testing.T) {
	ctx := context.Background()
	db := setupStocktakingTestDB(t)
	dir := NewGormWarehouseDirectory(db)

	area := models.WarehouseAreaModel{ID: uuid.New(), Code: "B", Name: "Dry goods"}
	loc := models.WarehouseLocationModel{ID: uuid.New(), AreaID: area.ID, Code: "B-01-02", Rack: "01", Row: "2"}
	pallet := models.WarehousePalletModel{ID: uuid.New(), LocationID: &loc.ID, Code: "Pal-77", PackageQuantity: 12}
	counter := models.StaffModel{ID: uuid.New(), Code: "C1", Name: "Counter", Role: stocktaking.RoleCounter, Active: true}
	require.NoError(t, db.Create(&area).Error)
	require.NoError(t, db.Create(&loc).Error)
	require.NoError(t, db.Create(&pallet).Error)
	require.NoError(t, db.Create(&counter).Error)

	t.Run("locations carry their area code", func(t *testing.T) {
		locations, err := dir.ListLocationsByArea(ctx, area.ID)
		require.NoError(t, err)
		require.Len(t, locations, 1)
		assert.Equal(t, "B", locations[0].AreaCode)
		assert.Equal(t, "2", locations[0].Row)
	})

	t.Run("pallet lookup ignores case", func(t *testing.T) {
		found, err := dir.FindPalletByCode(ctx, " pal-77 ")
		require.NoError(t, err)
		assert.Equal(t, pallet.ID, found.ID)

		_, err = dir.FindPalletByCode(ctx, "nope")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("staff and areas", func(t *testing.T) {
		staff, err := dir.ListStaffByRole(ctx, stocktaking.RoleCounter)
		require.NoError(t, err)
		require.Len(t, staff, 1)
		assert.True(t, staff[0].Active)

		areas, err := dir.FindAreas(ctx, []uuid.UUID{area.ID})
		require.NoError(t, err)
		assert.Equal(t, "Dry goods", areas[0].Name)

		pallets, err := dir.ListPalletsByLocation(ctx, loc.ID)
		require.NoError(t, err)
		assert.Len(t, pallets, 1)
	})
}
