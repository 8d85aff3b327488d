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
)

func TestAssignmentService_AssignAreas(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, uuid.UUID, stocktaking.WarehouseArea, stocktaking.WarehouseArea, stocktaking.StaffMember) {
		f := newFixture(t)
		a1 := f.dir.addArea("A")
		a2 := f.dir.addArea("B")
		staff := f.dir.addStaff("C1", stocktaking.RoleCounter, true)
		created, err := f.sheets.Create(ctx, f.creator, CreateSheetRequest{StartTime: time.Now()})
		require.NoError(t, err)
		return f, created.ID, a1, a2, staff
	}

	t.Run("assigns and moves draft to assigned", func(t *testing.T) {
		f, id, a1, a2, staff := setup(t)

		resp, err := f.assignment.AssignAreas(ctx, id, AssignAreasRequest{Assignments: []AssignmentItem{
			{AreaID: a1.ID, StaffID: staff.ID},
			{AreaID: a2.ID, StaffID: staff.ID},
		}})

		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.SheetStatusAssigned), resp.Status)
		require.Len(t, resp.Areas, 2)
		assert.Equal(t, "A", resp.Areas[0].AreaCode)
		assert.Equal(t, &staff.ID, resp.Areas[0].AssignTo)
		assert.Len(t, f.bus.GetEventsByType(stocktaking.EventTypeAreasAssigned), 1)
	})

	t.Run("missing staff fails the whole batch before loading", func(t *testing.T) {
		f, id, a1, a2, staff := setup(t)
		calls := f.store.saveCalls

		_, err := f.assignment.AssignAreas(ctx, id, AssignAreasRequest{Assignments: []AssignmentItem{
			{AreaID: a1.ID, StaffID: staff.ID},
			{AreaID: a2.ID},
		}})

		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Equal(t, calls, f.store.saveCalls)
		sheet, err := f.sheets.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, sheet.Areas)
		assert.Equal(t, int(stocktaking.SheetStatusDraft), sheet.Status)
	})

	t.Run("unknown area", func(t *testing.T) {
		f, id, _, _, staff := setup(t)

		_, err := f.assignment.AssignAreas(ctx, id, AssignAreasRequest{Assignments: []AssignmentItem{
			{AreaID: uuid.New(), StaffID: staff.ID},
		}})

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("inactive staff cannot be assigned", func(t *testing.T) {
		f, id, a1, _, _ := setup(t)
		gone := f.dir.addStaff("C2", stocktaking.RoleCounter, false)

		_, err := f.assignment.AssignAreas(ctx, id, AssignAreasRequest{Assignments: []AssignmentItem{
			{AreaID: a1.ID, StaffID: gone.ID},
		}})

		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("already assigned area must be reassigned", func(t *testing.T) {
		f, id, a1, _, staff := setup(t)
		req := AssignAreasRequest{Assignments: []AssignmentItem{{AreaID: a1.ID, StaffID: staff.ID}}}
		_, err := f.assignment.AssignAreas(ctx, id, req)
		require.NoError(t, err)

		_, err = f.assignment.AssignAreas(ctx, id, req)

		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})
}

func TestAssignmentService_CreateSheetAndAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and assigns", func(t *testing.T) {
		f := newFixture(t)
		area := f.dir.addArea("A")
		staff := f.dir.addStaff("C1", stocktaking.RoleCounter, true)

		resp, err := f.assignment.CreateSheetAndAssign(ctx, f.creator, CreateSheetAndAssignRequest{
			CreateSheetRequest: CreateSheetRequest{StartTime: time.Now()},
			Assignments:        []AssignmentItem{{AreaID: area.ID, StaffID: staff.ID}},
		})

		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.SheetStatusAssigned), resp.Status)
	})

	t.Run("assignment failure leaves a draft sheet and reports its id", func(t *testing.T) {
		f := newFixture(t)
		staff := f.dir.addStaff("C1", stocktaking.RoleCounter, true)

		resp, err := f.assignment.CreateSheetAndAssign(ctx, f.creator, CreateSheetAndAssignRequest{
			CreateSheetRequest: CreateSheetRequest{StartTime: time.Now()},
			Assignments:        []AssignmentItem{{AreaID: uuid.New(), StaffID: staff.ID}},
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		unassigned, ok := IsSheetCreatedButUnassigned(err)
		require.True(t, ok)
		require.NotNil(t, resp)
		assert.Equal(t, resp.ID, unassigned.SheetID)

		sheet, err := f.sheets.GetByID(ctx, unassigned.SheetID)
		require.NoError(t, err)
		assert.Equal(t, int(stocktaking.SheetStatusDraft), sheet.Status)
	})
}

func TestAssignmentService_Reassign(t *testing.T) {
	ctx := context.Background()

	t.Run("single area is overwritten", func(t *testing.T) {
		f := newFixture(t)
		sc := f.startCounting(t)
		other := f.dir.addStaff("C2", stocktaking.RoleCounter, true)
		sheet, err := f.sheets.GetByID(ctx, sc.sheetID)
		require.NoError(t, err)

		resp, err := f.assignment.ReassignArea(ctx, sheet.Areas[0].ID, ReassignAreaRequest{StaffID: other.ID})

		require.NoError(t, err)
		assert.Equal(t, &other.ID, resp.Areas[0].AssignTo)
		assert.Len(t, f.bus.GetEventsByType(stocktaking.EventTypeAreaReassigned), 1)

		// the previous counter lost access to the area
		_, err = f.scan.ScanPallet(ctx, sc.counter, sc.loc1.ID, ScanPalletRequest{Barcode: "P-1"})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("bulk reassignment keeps successful items", func(t *testing.T) {
		f := newFixture(t)
		a1 := f.dir.addArea("A")
		a2 := f.dir.addArea("B")
		c1 := f.dir.addStaff("C1", stocktaking.RoleCounter, true)
		c2 := f.dir.addStaff("C2", stocktaking.RoleCounter, true)
		created, err := f.assignment.CreateSheetAndAssign(ctx, f.creator, CreateSheetAndAssignRequest{
			CreateSheetRequest: CreateSheetRequest{StartTime: time.Now()},
			Assignments:        []AssignmentItem{{AreaID: a1.ID, StaffID: c1.ID}, {AreaID: a2.ID, StaffID: c1.ID}},
		})
		require.NoError(t, err)

		resp, err := f.assignment.ReassignAreas(ctx, created.ID, AssignAreasRequest{Assignments: []AssignmentItem{
			{AreaID: a1.ID, StaffID: c2.ID},
			{AreaID: a2.ID},
			{AreaID: uuid.New(), StaffID: c2.ID},
		}})

		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrPartialFailure)
		var partial *shared.PartialFailureError
		require.True(t, errors.As(err, &partial))
		assert.Equal(t, 1, partial.Result.Succeeded())
		assert.Len(t, partial.Result.Failed(), 2)

		require.NotNil(t, resp)
		persisted, err := f.sheets.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, &c2.ID, persisted.Areas[0].AssignTo)
		assert.Equal(t, &c1.ID, persisted.Areas[1].AssignTo)
	})

	t.Run("draft sheet cannot be reassigned", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.sheets.Create(ctx, f.creator, CreateSheetRequest{StartTime: time.Now()})
		require.NoError(t, err)

		_, err = f.assignment.ReassignAreas(ctx, created.ID, AssignAreasRequest{Assignments: []AssignmentItem{{AreaID: uuid.New(), StaffID: uuid.New()}}})

		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})
}

func TestAssignmentService_Defaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a1 := f.dir.addArea("A")
	a2 := f.dir.addArea("B")
	c1 := f.dir.addStaff("C1", stocktaking.RoleCounter, true)
	f.dir.addStaff("AP", stocktaking.RoleApprover, true)
	created, err := f.assignment.CreateSheetAndAssign(ctx, f.creator, CreateSheetAndAssignRequest{
		CreateSheetRequest: CreateSheetRequest{StartTime: time.Now()},
		Assignments:        []AssignmentItem{{AreaID: a1.ID, StaffID: c1.ID}, {AreaID: a2.ID, StaffID: c1.ID}},
	})
	require.NoError(t, err)

	t.Run("returns current assignees of requested areas", func(t *testing.T) {
		items, err := f.assignment.GetAssignmentDefaults(ctx, created.ID, []uuid.UUID{a2.ID})

		require.NoError(t, err)
		assert.Equal(t, []AssignmentItem{{AreaID: a2.ID, StaffID: c1.ID}}, items)
	})

	t.Run("lists counters only by default", func(t *testing.T) {
		staff, err := f.assignment.ListStaff(ctx, "")

		require.NoError(t, err)
		require.Len(t, staff, 1)
		assert.Equal(t, "C1", staff[0].Code)
	})
}
