package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"github.com/wms/stocktaking/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormWarehouseDirectory reads warehouse master data (areas, locations,
// pallets and staff) for the stocktaking workflow.
type GormWarehouseDirectory struct {
	db *gorm.DB
}

// NewGormWarehouseDirectory creates a new GormWarehouseDirectory
func NewGormWarehouseDirectory(db *gorm.DB) *GormWarehouseDirectory {
	return &GormWarehouseDirectory{db: db}
}

// FindAreas returns the areas that exist among ids
func (d *GormWarehouseDirectory) FindAreas(ctx context.Context, ids []uuid.UUID) ([]stocktaking.WarehouseArea, error) {
	if len(ids) == 0 {
		return []stocktaking.WarehouseArea{}, nil
	}
	var areaModels []models.WarehouseAreaModel
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Order("code ASC").Find(&areaModels).Error; err != nil {
		return nil, dbError("find areas", err)
	}
	return mapAreas(areaModels), nil
}

// ListAreas returns every warehouse area ordered by code
func (d *GormWarehouseDirectory) ListAreas(ctx context.Context) ([]stocktaking.WarehouseArea, error) {
	var areaModels []models.WarehouseAreaModel
	if err := d.db.WithContext(ctx).Order("code ASC").Find(&areaModels).Error; err != nil {
		return nil, dbError("list areas", err)
	}
	return mapAreas(areaModels), nil
}

func mapAreas(areaModels []models.WarehouseAreaModel) []stocktaking.WarehouseArea {
	areas := make([]stocktaking.WarehouseArea, len(areaModels))
	for i := range areaModels {
		areas[i] = areaModels[i].ToDomain()
	}
	return areas
}

// ListLocationsByArea returns the storage slots of one area
func (d *GormWarehouseDirectory) ListLocationsByArea(ctx context.Context, areaID uuid.UUID) ([]stocktaking.WarehouseLocation, error) {
	var locModels []models.WarehouseLocationModel
	if err := d.db.WithContext(ctx).
		Select("warehouse_locations.*, warehouse_areas.code AS area_code").
		Joins("JOIN warehouse_areas ON warehouse_areas.id = warehouse_locations.area_id").
		Where("warehouse_locations.area_id = ?", areaID).
		Order("warehouse_locations.code ASC").
		Find(&locModels).Error; err != nil {
		return nil, dbError("list warehouse locations", err)
	}
	locations := make([]stocktaking.WarehouseLocation, len(locModels))
	for i := range locModels {
		locations[i] = locModels[i].ToDomain()
	}
	return locations, nil
}

// ListPalletsByLocation returns the pallets the system believes are stored
// at a location
func (d *GormWarehouseDirectory) ListPalletsByLocation(ctx context.Context, locationID uuid.UUID) ([]stocktaking.WarehousePallet, error) {
	var palletModels []models.WarehousePalletModel
	if err := d.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("code ASC").
		Find(&palletModels).Error; err != nil {
		return nil, dbError("list warehouse pallets", err)
	}
	pallets := make([]stocktaking.WarehousePallet, len(palletModels))
	for i := range palletModels {
		pallets[i] = palletModels[i].ToDomain()
	}
	return pallets, nil
}

// FindPalletByCode looks up a pallet by barcode, ignoring case
func (d *GormWarehouseDirectory) FindPalletByCode(ctx context.Context, code string) (*stocktaking.WarehousePallet, error) {
	var model models.WarehousePalletModel
	if err := d.db.WithContext(ctx).
		Where("UPPER(code) = ?", stocktaking.NormalizeCode(code)).
		First(&model).Error; err != nil {
		return nil, dbError("find warehouse pallet", err)
	}
	pallet := model.ToDomain()
	return &pallet, nil
}

// ListStaffByRole returns staff holding role, active or not
func (d *GormWarehouseDirectory) ListStaffByRole(ctx context.Context, role string) ([]stocktaking.StaffMember, error) {
	var staffModels []models.StaffModel
	if err := d.db.WithContext(ctx).Where("role = ?", role).Order("code ASC").Find(&staffModels).Error; err != nil {
		return nil, dbError("list staff", err)
	}
	return mapStaff(staffModels), nil
}

// FindStaff returns the staff members that exist among ids
func (d *GormWarehouseDirectory) FindStaff(ctx context.Context, ids []uuid.UUID) ([]stocktaking.StaffMember, error) {
	if len(ids) == 0 {
		return []stocktaking.StaffMember{}, nil
	}
	var staffModels []models.StaffModel
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&staffModels).Error; err != nil {
		return nil, dbError("find staff", err)
	}
	return mapStaff(staffModels), nil
}

func mapStaff(staffModels []models.StaffModel) []stocktaking.StaffMember {
	staff := make([]stocktaking.StaffMember, len(staffModels))
	for i := range staffModels {
		staff[i] = staffModels[i].ToDomain()
	}
	return staff
}

var (
	_ stocktaking.AreaDirectory     = (*GormWarehouseDirectory)(nil)
	_ stocktaking.LocationDirectory = (*GormWarehouseDirectory)(nil)
	_ stocktaking.PalletDirectory   = (*GormWarehouseDirectory)(nil)
	_ stocktaking.StaffDirectory    = (*GormWarehouseDirectory)(nil)
)
