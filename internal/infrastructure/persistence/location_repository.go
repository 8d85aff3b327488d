package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"github.com/wms/stocktaking/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLocationRepository implements stocktaking.LocationRepository using GORM
type GormLocationRepository struct {
	db *gorm.DB
}

// NewGormLocationRepository creates a new GormLocationRepository
func NewGormLocationRepository(db *gorm.DB) *GormLocationRepository {
	return &GormLocationRepository{db: db}
}

func preloadPallets(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, pallet_code ASC")
}

// FindByID finds a counting location with its pallets
func (r *GormLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*stocktaking.Location, error) {
	var model models.LocationModel
	if err := r.db.WithContext(ctx).
		Preload("Pallets", preloadPallets).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, dbError("find location", err)
	}
	return model.ToDomain()
}

// FindByIDs returns the locations that exist among ids; missing ids are skipped
func (r *GormLocationRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]stocktaking.Location, error) {
	if len(ids) == 0 {
		return []stocktaking.Location{}, nil
	}
	return r.find(r.db.WithContext(ctx).Where("id IN ?", ids))
}

// FindBySheet lists the locations of a sheet, optionally narrowed to one area
func (r *GormLocationRepository) FindBySheet(ctx context.Context, sheetID uuid.UUID, sheetAreaID *uuid.UUID) ([]stocktaking.Location, error) {
	query := r.db.WithContext(ctx).Where("sheet_id = ?", sheetID)
	if sheetAreaID != nil {
		query = query.Where("sheet_area_id = ?", *sheetAreaID)
	}
	return r.find(query)
}

func (r *GormLocationRepository) find(query *gorm.DB) ([]stocktaking.Location, error) {
	var locModels []models.LocationModel
	if err := query.
		Preload("Pallets", preloadPallets).
		Order("area_code ASC, location_code ASC").
		Find(&locModels).Error; err != nil {
		return nil, dbError("list locations", err)
	}
	locations := make([]stocktaking.Location, 0, len(locModels))
	for i := range locModels {
		loc, err := locModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		locations = append(locations, *loc)
	}
	return locations, nil
}

// Save writes the location row and replaces its pallet set
func (r *GormLocationRepository) Save(ctx context.Context, location *stocktaking.Location) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveLocation(tx, location)
	})
	return dbError("save location", err)
}

func saveLocation(tx *gorm.DB, location *stocktaking.Location) error {
	model, err := models.LocationModelFromDomain(location)
	if err != nil {
		return err
	}
	if err := tx.Save(model).Error; err != nil {
		return err
	}

	keep := make([]uuid.UUID, 0, len(location.Pallets))
	for i := range location.Pallets {
		keep = append(keep, location.Pallets[i].ID)
	}
	stale := tx.Where("location_id = ?", location.ID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.PalletModel{}).Error; err != nil {
		return err
	}

	for i := range location.Pallets {
		location.Pallets[i].LocationID = location.ID
		if err := upsertPallet(tx, &location.Pallets[i]); err != nil {
			return err
		}
	}
	return nil
}

// SavePallet upserts one pallet row without touching its siblings
func (r *GormLocationRepository) SavePallet(ctx context.Context, pallet *stocktaking.Pallet) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertPallet(tx, pallet)
	})
	return dbError("save pallet", err)
}

// palletDataColumns are overwritten when a write lands on a row that already
// holds the same barcode under another id
var palletDataColumns = []string{
	"pallet_id", "expected_package_quantity", "actual_package_quantity", "status", "note",
	"scanned", "scanned_at", "goods_code", "goods_name", "batch_number", "expiry_date", "updated_at",
}

// upsertPallet writes a pallet by id. A barcode is stored once per location:
// when another write already inserted the same barcode under a different id,
// that row is kept and pallet is reloaded from it. A bare rescan leaves the
// kept row as is, a write carrying a counted quantity updates it.
func upsertPallet(tx *gorm.DB, pallet *stocktaking.Pallet) error {
	model := models.PalletModelFromDomain(pallet)
	result := tx.Model(&models.PalletModel{}).
		Where("id = ?", model.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "location_id"}, {Name: "pallet_code"}},
	}
	if model.ActualPackageQuantity == nil {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(palletDataColumns)
	}
	if err := tx.Clauses(onConflict).Create(model).Error; err != nil {
		return err
	}

	var stored models.PalletModel
	if err := tx.Where("location_id = ? AND pallet_code = ?", model.LocationID, model.PalletCode).
		First(&stored).Error; err != nil {
		return err
	}
	*pallet = stored.ToDomain()
	return nil
}

// DeletePallet removes one pallet record of a location
func (r *GormLocationRepository) DeletePallet(ctx context.Context, locationID, palletID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND location_id = ?", palletID, locationID).
		Delete(&models.PalletModel{})
	if result.Error != nil {
		return dbError("delete pallet", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// countByArea returns total and counted locations of one sheet area
func countByArea(db *gorm.DB, sheetAreaID uuid.UUID) (int, int, error) {
	var row struct {
		Total   int
		Counted int
	}
	err := db.Model(&models.LocationModel{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS counted", stocktaking.LocationStatusCounted).
		Where("sheet_area_id = ?", sheetAreaID).
		Scan(&row).Error
	return row.Total, row.Counted, err
}

// Progress aggregates location and pallet counts per area of a sheet
func (r *GormLocationRepository) Progress(ctx context.Context, sheetID uuid.UUID) ([]stocktaking.AreaProgress, error) {
	var locRows []struct {
		SheetAreaID uuid.UUID
		Total       int
		Counted     int
	}
	err := r.db.WithContext(ctx).Model(&models.LocationModel{}).
		Select("sheet_area_id, COUNT(*) AS total, COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS counted", stocktaking.LocationStatusCounted).
		Where("sheet_id = ?", sheetID).
		Group("sheet_area_id").
		Scan(&locRows).Error
	if err != nil {
		return nil, dbError("area progress", err)
	}

	var palletRows []struct {
		SheetAreaID uuid.UUID
		Status      stocktaking.PalletStatus
		Total       int
	}
	err = r.db.WithContext(ctx).Table("stocktaking_pallets p").
		Select("l.sheet_area_id, p.status, COUNT(*) AS total").
		Joins("JOIN stocktaking_locations l ON l.id = p.location_id").
		Where("l.sheet_id = ?", sheetID).
		Group("l.sheet_area_id, p.status").
		Scan(&palletRows).Error
	if err != nil {
		return nil, dbError("area progress", err)
	}

	progress := make([]stocktaking.AreaProgress, 0, len(locRows))
	index := make(map[uuid.UUID]int, len(locRows))
	for _, row := range locRows {
		index[row.SheetAreaID] = len(progress)
		progress = append(progress, stocktaking.AreaProgress{
			SheetAreaID:      row.SheetAreaID,
			TotalLocations:   row.Total,
			CountedLocations: row.Counted,
		})
	}
	for _, row := range palletRows {
		i, ok := index[row.SheetAreaID]
		if !ok {
			continue
		}
		switch row.Status {
		case stocktaking.PalletStatusUnscanned:
			progress[i].Unscanned += row.Total
		case stocktaking.PalletStatusMatched:
			progress[i].Matched += row.Total
		case stocktaking.PalletStatusMissing:
			progress[i].Missing += row.Total
		case stocktaking.PalletStatusSurplus:
			progress[i].Surplus += row.Total
		}
	}
	return progress, nil
}

// Ensure GormLocationRepository implements LocationRepository
var _ stocktaking.LocationRepository = (*GormLocationRepository)(nil)
