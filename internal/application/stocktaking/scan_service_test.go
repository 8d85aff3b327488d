package stocktaking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"golang.org/x/sync/errgroup"
)

func TestScanService_ValidateLocationCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sc := f.startCounting(t)

	t.Run("accepts code case-insensitively", func(t *testing.T) {
		meta, err := f.scan.ValidateLocationCode(ctx, sc.counter, sc.loc1.ID, ValidateLocationRequest{Code: " l-01 "})

		require.NoError(t, err)
		assert.Equal(t, "L-01", meta.LocationCode)
		assert.Equal(t, "A", meta.Area)
	})

	t.Run("wrong code is a mismatch", func(t *testing.T) {
		_, err := f.scan.ValidateLocationCode(ctx, sc.counter, sc.loc1.ID, ValidateLocationRequest{Code: "L-02"})

		assert.ErrorIs(t, err, shared.ErrLocationMismatch)
	})

	t.Run("other staff is forbidden", func(t *testing.T) {
		_, err := f.scan.ValidateLocationCode(ctx, Actor{UserID: uuid.New()}, sc.loc1.ID, ValidateLocationRequest{Code: "L-01"})

		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("approver may count any area", func(t *testing.T) {
		_, err := f.scan.ValidateLocationCode(ctx, f.approver, sc.loc1.ID, ValidateLocationRequest{Code: "L-01"})

		assert.NoError(t, err)
	})
}

func TestScanService_ScanPallet(t *testing.T) {
	ctx := context.Background()

	t.Run("expected pallet scan is idempotent", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)

		first, err := f.scan.ScanPallet(ctx, sc.counter, sc.loc1.ID, ScanPalletRequest{Barcode: "p-1"})
		require.NoError(t, err)
		second, err := f.scan.ScanPallet(ctx, sc.counter, sc.loc1.ID, ScanPalletRequest{Barcode: "P-1"})
		require.NoError(t, err)

		assert.False(t, first.Created)
		assert.True(t, first.Pallet.Scanned)
		assert.Equal(t, first.Pallet.ID, second.Pallet.ID)

		pallets, err := f.scan.ListPallets(ctx, sc.loc1.ID)
		require.NoError(t, err)
		assert.Len(t, pallets, 2)
	})

	t.Run("unknown barcode creates one surplus record", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)

		first, err := f.scan.ScanPallet(ctx, sc.counter, sc.loc1.ID, ScanPalletRequest{Barcode: "P-9"})
		require.NoError(t, err)
		_, err = f.scan.ScanPallet(ctx, sc.counter, sc.loc1.ID, ScanPalletRequest{Barcode: "P-9"})
		require.NoError(t, err)

		assert.True(t, first.Created)
		assert.Equal(t, int(stocktaking.PalletStatusSurplus), first.Pallet.Status)
		assert.Equal(t, "G-P-9", first.Pallet.GoodsCode)

		pallets, err := f.scan.ListPallets(ctx, sc.loc1.ID)
		require.NoError(t, err)
		assert.Len(t, pallets, 3)
	})
}

func TestScanService_EditPallets(t *testing.T) {
	ctx := context.Background()

	t.Run("match requires a scan", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		p1 := palletByCode(t, sc.loc1, "P-1")

		_, err := f.scan.MatchPallet(ctx, sc.counter, sc.loc1.ID, p1.ID, MatchPalletRequest{ActualPackageQuantity: intPtr(10)})

		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("missing is blocked by a surplus until it is deleted", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		p2 := palletByCode(t, sc.loc1, "P-2")

		surplus, err := f.scan.MarkSurplus(ctx, sc.counter, sc.loc1.ID, MarkSurplusRequest{Barcode: "X-1", ActualPackageQuantity: intPtr(3)})
		require.NoError(t, err)

		_, err = f.scan.MarkMissing(ctx, sc.counter, sc.loc1.ID, p2.ID, MarkMissingRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)

		require.NoError(t, f.scan.DeletePallet(ctx, sc.counter, sc.loc1.ID, surplus.ID))

		missing, err := f.scan.MarkMissing(ctx, sc.counter, sc.loc1.ID, p2.ID, MarkMissingRequest{Note: "not on rack"})
		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.PalletStatusMissing), missing.Status)

		undone, err := f.scan.UndoMissing(ctx, sc.counter, sc.loc1.ID, p2.ID)
		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.PalletStatusUnscanned), undone.Status)
	})

	t.Run("expected pallets cannot be deleted", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		p1 := palletByCode(t, sc.loc1, "P-1")

		err := f.scan.DeletePallet(ctx, sc.counter, sc.loc1.ID, p1.ID)

		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})
}

func TestScanService_ConfirmLocation(t *testing.T) {
	ctx := context.Background()

	scanAll := func(t *testing.T, f *fixture, sc countingScenario) {
		for _, code := range []string{"P-1", "P-2"} {
			_, err := f.scan.ScanPallet(ctx, sc.counter, sc.loc1.ID, ScanPalletRequest{Barcode: code})
			require.NoError(t, err)
		}
	}

	t.Run("flushes pending entries and records findings", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		scanAll(t, f, sc)
		p1 := palletByCode(t, sc.loc1, "P-1")
		p2 := palletByCode(t, sc.loc1, "P-2")

		resp, err := f.scan.ConfirmLocation(ctx, sc.counter, sc.loc1.ID, ConfirmLocationRequest{Pending: []PendingEntry{
			{Kind: PendingMatch, PalletID: p1.ID, ActualPackageQuantity: intPtr(10)},
			{Kind: PendingMatch, PalletID: p2.ID, ActualPackageQuantity: intPtr(4)},
			{Kind: PendingSurplus, Barcode: "x-7", ActualPackageQuantity: intPtr(2)},
		}})

		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.LocationStatusCounted), resp.Status)
		assert.Equal(t, []string{
			"[Cảnh báo] Pallet P-2: thực tế 4 khác hệ thống 5",
			"[Cảnh báo] Pallet X-7: dư thừa 2 kiện",
		}, resp.Findings)
		assert.Len(t, f.bus.GetEventsByType(stocktaking.EventTypeLocationCounted), 1)
	})

	t.Run("last location submits the sheet for approval", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		scanAll(t, f, sc)
		p1 := palletByCode(t, sc.loc1, "P-1")
		p2 := palletByCode(t, sc.loc1, "P-2")

		_, err := f.scan.ConfirmLocation(ctx, sc.counter, sc.loc2.ID, ConfirmLocationRequest{})
		require.NoError(t, err)
		sheet, err := f.sheets.GetByID(ctx, sc.sheetID)
		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.SheetStatusInProgress), sheet.Status)

		_, err = f.scan.MarkMissing(ctx, sc.counter, sc.loc1.ID, p2.ID, MarkMissingRequest{})
		require.NoError(t, err)
		_, err = f.scan.ConfirmLocation(ctx, sc.counter, sc.loc1.ID, ConfirmLocationRequest{Pending: []PendingEntry{
			{Kind: PendingMatch, PalletID: p1.ID, ActualPackageQuantity: intPtr(10)},
		}})
		require.NoError(t, err)

		sheet, err = f.sheets.GetByID(ctx, sc.sheetID)
		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.SheetStatusPendingApproval), sheet.Status)
		assert.Equal(t, int(stocktaking.AreaStatusCompleted), sheet.Areas[0].Status)
		assert.Len(t, f.bus.GetEventsByType(stocktaking.EventTypeSheetSubmitted), 1)
	})

	t.Run("unresolved pallet blocks confirmation", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)

		_, err := f.scan.ConfirmLocation(ctx, sc.counter, sc.loc1.ID, ConfirmLocationRequest{})

		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("invalid pending entry sends no write", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		scanAll(t, f, sc)
		p1 := palletByCode(t, sc.loc1, "P-1")

		_, err := f.scan.ConfirmLocation(ctx, sc.counter, sc.loc1.ID, ConfirmLocationRequest{Pending: []PendingEntry{
			{Kind: PendingMatch, PalletID: p1.ID, ActualPackageQuantity: intPtr(10)},
			{Kind: PendingMatch, PalletID: uuid.New(), ActualPackageQuantity: intPtr(1)},
		}})

		assert.ErrorIs(t, err, shared.ErrNotFound)
		pallets, err := f.scan.ListPallets(ctx, sc.loc1.ID)
		require.NoError(t, err)
		for _, p := range pallets {
			assert.Nil(t, p.ActualPackageQuantity)
		}
	})

	t.Run("duplicate pending entries are rejected", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		scanAll(t, f, sc)
		p1 := palletByCode(t, sc.loc1, "P-1")

		_, err := f.scan.ConfirmLocation(ctx, sc.counter, sc.loc1.ID, ConfirmLocationRequest{Pending: []PendingEntry{
			{Kind: PendingMatch, PalletID: p1.ID, ActualPackageQuantity: intPtr(10)},
			{Kind: PendingMatch, PalletID: p1.ID, ActualPackageQuantity: intPtr(9)},
		}})

		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("failed write keeps the location pending and the others applied", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		scanAll(t, f, sc)
		p1 := palletByCode(t, sc.loc1, "P-1")
		p2 := palletByCode(t, sc.loc1, "P-2")
		f.store.palletErrs["P-2"] = shared.Network("save pallet", errors.New("connection reset"))

		_, err := f.scan.ConfirmLocation(ctx, sc.counter, sc.loc1.ID, ConfirmLocationRequest{Pending: []PendingEntry{
			{Kind: PendingMatch, PalletID: p1.ID, ActualPackageQuantity: intPtr(10)},
			{Kind: PendingMatch, PalletID: p2.ID, ActualPackageQuantity: intPtr(5)},
		}})

		require.Error(t, err)
		var partial *shared.PartialFailureError
		require.True(t, errors.As(err, &partial))
		failed := partial.Result.Failed()
		require.Len(t, failed, 1)
		assert.Equal(t, p2.ID.String(), failed[0].Key)
		assert.Equal(t, shared.CodeNetwork, failed[0].Code)

		loc, err := f.scan.GetLocation(ctx, sc.loc1.ID)
		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.LocationStatusPending), loc.Status)
		saved := palletByCode(t, loc, "P-1")
		require.NotNil(t, saved.ActualPackageQuantity)
		assert.Equal(t, 10, *saved.ActualPackageQuantity)

		// retry once the store recovers
		delete(f.store.palletErrs, "P-2")
		resp, err := f.scan.ConfirmLocation(ctx, sc.counter, sc.loc1.ID, ConfirmLocationRequest{Pending: []PendingEntry{
			{Kind: PendingMatch, PalletID: p2.ID, ActualPackageQuantity: intPtr(5)},
		}})
		require.NoError(t, err)
		assert.Empty(t, resp.Findings)
	})

	t.Run("counted location must be rejected before recount", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		_, err := f.scan.ConfirmLocation(ctx, sc.counter, sc.loc2.ID, ConfirmLocationRequest{})
		require.NoError(t, err)

		_, err = f.scan.ScanPallet(ctx, sc.counter, sc.loc2.ID, ScanPalletRequest{Barcode: "P-9"})

		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("concurrent confirmations in two areas submit the sheet", func(t *testing.T) {
		f := newFixture(t)
		areaA, areaB := f.dir.addArea("A"), f.dir.addArea("B")
		f.dir.addLocation(areaA, "A-01")
		f.dir.addLocation(areaB, "B-01")
		staff := f.dir.addStaff("C1", stocktaking.RoleCounter, true)

		created, err := f.sheets.Create(ctx, f.creator, CreateSheetRequest{StartTime: time.Now()})
		require.NoError(t, err)
		_, err = f.assignment.AssignAreas(ctx, created.ID, AssignAreasRequest{Assignments: []AssignmentItem{
			{AreaID: areaA.ID, StaffID: staff.ID},
			{AreaID: areaB.ID, StaffID: staff.ID},
		}})
		require.NoError(t, err)
		_, err = f.sheets.Start(ctx, created.ID)
		require.NoError(t, err)
		locations, err := f.scan.ListLocations(ctx, created.ID, nil)
		require.NoError(t, err)
		require.Len(t, locations, 2)

		counter := Actor{UserID: staff.ID, Roles: []string{stocktaking.RoleCounter}}
		g, gctx := errgroup.WithContext(ctx)
		for _, loc := range locations {
			id := loc.ID
			g.Go(func() error {
				_, err := f.scan.ConfirmLocation(gctx, counter, id, ConfirmLocationRequest{})
				return err
			})
		}
		require.NoError(t, g.Wait())

		sheet, err := f.sheets.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.SheetStatusPendingApproval), sheet.Status)
		for _, area := range sheet.Areas {
			assert.Equal(t, int(stocktaking.AreaStatusCompleted), area.Status, area.AreaCode)
		}
		assert.Len(t, f.bus.GetEventsByType(stocktaking.EventTypeSheetSubmitted), 1)
	})
}
