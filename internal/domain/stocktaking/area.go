package stocktaking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Area is one physical zone of the warehouse inside a sheet.
// It is owned by its Sheet and only mutated through Sheet methods.
type Area struct {
	ID          uuid.UUID
	SheetID     uuid.UUID
	AreaID      uuid.UUID // warehouse area
	AreaCode    string
	AreaName    string
	AssignTo    *uuid.UUID
	Status      AreaStatus
	Temperature decimal.Decimal
	Humidity    decimal.Decimal
	Light       decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func newArea(sheetID uuid.UUID, ref WarehouseArea, staffID uuid.UUID) Area {
	now := time.Now()
	staff := staffID
	return Area{
		ID:          uuid.New(),
		SheetID:     sheetID,
		AreaID:      ref.ID,
		AreaCode:    ref.Code,
		AreaName:    ref.Name,
		AssignTo:    &staff,
		Status:      AreaStatusAssigned,
		Temperature: ref.Temperature,
		Humidity:    ref.Humidity,
		Light:       ref.Light,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsAssignedTo reports whether staffID is the current assignee
func (a *Area) IsAssignedTo(staffID uuid.UUID) bool {
	return a.AssignTo != nil && *a.AssignTo == staffID
}
