package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
)

// The warehouse master tables are owned by the inventory service. This
// service only reads them.

// WarehouseAreaModel maps a physical warehouse area.
type WarehouseAreaModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	Code        string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name        string          `gorm:"type:varchar(200);not null"`
	Temperature decimal.Decimal `gorm:"type:decimal(6,2)"`
	Humidity    decimal.Decimal `gorm:"type:decimal(6,2)"`
	Light       decimal.Decimal `gorm:"type:decimal(8,2)"`
}

// TableName returns the table name for GORM
func (WarehouseAreaModel) TableName() string {
	return "warehouse_areas"
}

// ToDomain converts the persistence model to a domain WarehouseArea.
func (m *WarehouseAreaModel) ToDomain() stocktaking.WarehouseArea {
	return stocktaking.WarehouseArea{
		ID:          m.ID,
		Code:        m.Code,
		Name:        m.Name,
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
		Light:       m.Light,
	}
}

// WarehouseLocationModel maps a storage slot. AreaCode is filled by a join.
type WarehouseLocationModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key"`
	AreaID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Code     string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	Rack     string    `gorm:"type:varchar(20)"`
	Row      string    `gorm:"column:row_label;type:varchar(20)"`
	Column   string    `gorm:"column:column_label;type:varchar(20)"`
	AreaCode string    `gorm:"->;-:migration"`
}

// TableName returns the table name for GORM
func (WarehouseLocationModel) TableName() string {
	return "warehouse_locations"
}

// ToDomain converts the persistence model to a domain WarehouseLocation.
func (m *WarehouseLocationModel) ToDomain() stocktaking.WarehouseLocation {
	return stocktaking.WarehouseLocation{
		ID:       m.ID,
		AreaID:   m.AreaID,
		Code:     m.Code,
		AreaCode: m.AreaCode,
		Rack:     m.Rack,
		Row:      m.Row,
		Column:   m.Column,
	}
}

// WarehousePalletModel maps the system record of a stored pallet.
type WarehousePalletModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key"`
	LocationID      *uuid.UUID `gorm:"type:uuid;index"`
	Code            string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	PackageQuantity int        `gorm:"not null;default:0"`
	GoodsCode       string     `gorm:"type:varchar(50)"`
	GoodsName       string     `gorm:"type:varchar(200)"`
	BatchNumber     string     `gorm:"type:varchar(50)"`
	ExpiryDate      *time.Time
}

// TableName returns the table name for GORM
func (WarehousePalletModel) TableName() string {
	return "warehouse_pallets"
}

// ToDomain converts the persistence model to a domain WarehousePallet.
func (m *WarehousePalletModel) ToDomain() stocktaking.WarehousePallet {
	return stocktaking.WarehousePallet{
		ID:              m.ID,
		LocationID:      m.LocationID,
		Code:            m.Code,
		PackageQuantity: m.PackageQuantity,
		GoodsCode:       m.GoodsCode,
		GoodsName:       m.GoodsName,
		BatchNumber:     m.BatchNumber,
		ExpiryDate:      m.ExpiryDate,
	}
}

// StaffModel maps a warehouse employee.
type StaffModel struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key"`
	Code   string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name   string    `gorm:"type:varchar(200);not null"`
	Role   string    `gorm:"type:varchar(50);not null;index"`
	Active bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (StaffModel) TableName() string {
	return "staff_members"
}

// ToDomain converts the persistence model to a domain StaffMember.
func (m *StaffModel) ToDomain() stocktaking.StaffMember {
	return stocktaking.StaffMember{
		ID:     m.ID,
		Code:   m.Code,
		Name:   m.Name,
		Role:   m.Role,
		Active: m.Active,
	}
}
