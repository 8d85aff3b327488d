package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"github.com/wms/stocktaking/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSheetRepository implements stocktaking.SheetRepository using GORM
type GormSheetRepository struct {
	db *gorm.DB
}

// NewGormSheetRepository creates a new GormSheetRepository
func NewGormSheetRepository(db *gorm.DB) *GormSheetRepository {
	return &GormSheetRepository{db: db}
}

func preloadAreas(db *gorm.DB) *gorm.DB {
	return db.Order("area_code ASC")
}

// FindByID finds a sheet with its areas
func (r *GormSheetRepository) FindByID(ctx context.Context, id uuid.UUID) (*stocktaking.Sheet, error) {
	var model models.SheetModel
	if err := r.db.WithContext(ctx).
		Preload("Areas", preloadAreas).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, dbError("find sheet", err)
	}
	return model.ToDomain(), nil
}

// FindByAreaID finds the sheet owning the given sheet area
func (r *GormSheetRepository) FindByAreaID(ctx context.Context, sheetAreaID uuid.UUID) (*stocktaking.Sheet, error) {
	var area models.SheetAreaModel
	if err := r.db.WithContext(ctx).
		Select("sheet_id").
		First(&area, "id = ?", sheetAreaID).Error; err != nil {
		return nil, dbError("find sheet area", err)
	}
	return r.FindByID(ctx, area.SheetID)
}

// FindAll returns one page of sheets and the total number matching the filter
func (r *GormSheetRepository) FindAll(ctx context.Context, filter stocktaking.SheetFilter) ([]stocktaking.Sheet, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SheetModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StaffID != nil {
		query = query.Where("EXISTS (SELECT 1 FROM stocktaking_areas a WHERE a.sheet_id = stocktaking_sheets.id AND a.assign_to = ?)", *filter.StaffID)
	}
	if len(filter.Creators) > 0 {
		query = query.Where("created_by_id IN ?", filter.Creators)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, dbError("count sheets", err)
	}

	orderBy := ValidateSortField(filter.OrderBy, SheetSortFields, "created_at")
	query = query.Order(fmt.Sprintf("%s %s", orderBy, ValidateSortOrder(filter.OrderDir)))
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var sheetModels []models.SheetModel
	if err := query.Preload("Areas", preloadAreas).Find(&sheetModels).Error; err != nil {
		return nil, 0, dbError("list sheets", err)
	}
	sheets := make([]stocktaking.Sheet, len(sheetModels))
	for i := range sheetModels {
		sheets[i] = *sheetModels[i].ToDomain()
	}
	return sheets, total, nil
}

// Save writes the sheet and replaces its area set in one transaction
func (r *GormSheetRepository) Save(ctx context.Context, sheet *stocktaking.Sheet) error {
	return r.SaveWithLocations(ctx, sheet, nil)
}

// SaveWithLocations writes the sheet, its areas and the given locations in
// one transaction. A sheet loaded before another writer saved it fails with
// CONCURRENT_MODIFICATION.
func (r *GormSheetRepository) SaveWithLocations(ctx context.Context, sheet *stocktaking.Sheet, locations []*stocktaking.Location) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveSheet(tx, sheet); err != nil {
			return err
		}
		for _, loc := range locations {
			if err := saveLocation(tx, loc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError("save sheet", err)
	}
	sheet.MarkStored()
	return nil
}

// SaveCountedLocation writes a confirmed location, counts its area again and
// hands the fresh sheet and counts to apply. The sheet row stays locked until
// commit, so confirmations in different areas of one sheet are applied one
// after another and never overwrite each other's area status.
func (r *GormSheetRepository) SaveCountedLocation(ctx context.Context, loc *stocktaking.Location, apply func(sheet *stocktaking.Sheet, total, counted int) error) (*stocktaking.Sheet, error) {
	var sheet *stocktaking.Sheet
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.SheetModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Areas", preloadAreas).
			First(&model, "id = ?", loc.SheetID).Error; err != nil {
			return err
		}
		if err := saveLocation(tx, loc); err != nil {
			return err
		}
		total, counted, err := countByArea(tx, loc.SheetAreaID)
		if err != nil {
			return err
		}
		sheet = model.ToDomain()
		if err := apply(sheet, total, counted); err != nil {
			return err
		}
		return saveSheet(tx, sheet)
	})
	if err != nil {
		return nil, dbError("save counted location", err)
	}
	sheet.MarkStored()
	return sheet, nil
}

// saveSheet inserts a new sheet or updates a loaded one guarded by the
// version it was read at, then replaces the area rows.
func saveSheet(tx *gorm.DB, sheet *stocktaking.Sheet) error {
	model := models.SheetModelFromDomain(sheet)
	if stored := sheet.StoredVersion(); stored == 0 {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
	} else {
		result := tx.Model(&models.SheetModel{}).
			Where("id = ? AND version = ?", sheet.ID, stored).
			Select("*").
			Omit("id", "created_at", clause.Associations).
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrentModification
		}
	}

	keep := make([]uuid.UUID, 0, len(sheet.Areas))
	for i := range sheet.Areas {
		keep = append(keep, sheet.Areas[i].ID)
	}
	stale := tx.Where("sheet_id = ?", sheet.ID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.SheetAreaModel{}).Error; err != nil {
		return err
	}

	for i := range sheet.Areas {
		if err := tx.Save(models.SheetAreaModelFromDomain(&sheet.Areas[i])).Error; err != nil {
			return err
		}
	}
	return nil
}

// Ensure GormSheetRepository implements SheetRepository
var _ stocktaking.SheetRepository = (*GormSheetRepository)(nil)
