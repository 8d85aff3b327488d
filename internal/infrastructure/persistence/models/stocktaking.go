package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
)

// SheetModel is the persistence model for the Sheet aggregate root.
type SheetModel struct {
	AggregateModel
	Code         string                  `gorm:"type:varchar(50);not null;uniqueIndex"`
	Status       stocktaking.SheetStatus `gorm:"not null;default:1;index"`
	StartTime    time.Time               `gorm:"not null"`
	Note         string                  `gorm:"type:varchar(500)"`
	CreatedByID  uuid.UUID               `gorm:"type:uuid;not null;index"`
	StartedAt    *time.Time
	SubmittedAt  *time.Time
	ApprovedAt   *time.Time
	ApprovedByID *uuid.UUID `gorm:"type:uuid"`
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason string           `gorm:"type:varchar(500)"`
	Areas        []SheetAreaModel `gorm:"foreignKey:SheetID;references:ID"`
}

// TableName returns the table name for GORM
func (SheetModel) TableName() string {
	return "stocktaking_sheets"
}

// ToDomain converts the persistence model to a domain Sheet.
func (m *SheetModel) ToDomain() *stocktaking.Sheet {
	s := &stocktaking.Sheet{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Status:            m.Status,
		StartTime:         m.StartTime,
		Note:              m.Note,
		CreatedByID:       m.CreatedByID,
		StartedAt:         m.StartedAt,
		SubmittedAt:       m.SubmittedAt,
		ApprovedAt:        m.ApprovedAt,
		ApprovedByID:      m.ApprovedByID,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
		Areas:             make([]stocktaking.Area, len(m.Areas)),
	}
	for i := range m.Areas {
		s.Areas[i] = m.Areas[i].ToDomain()
	}
	return s
}

// SheetModelFromDomain creates a persistence model without its areas.
func SheetModelFromDomain(s *stocktaking.Sheet) *SheetModel {
	m := &SheetModel{
		Code:         s.Code,
		Status:       s.Status,
		StartTime:    s.StartTime,
		Note:         s.Note,
		CreatedByID:  s.CreatedByID,
		StartedAt:    s.StartedAt,
		SubmittedAt:  s.SubmittedAt,
		ApprovedAt:   s.ApprovedAt,
		ApprovedByID: s.ApprovedByID,
		CompletedAt:  s.CompletedAt,
		CancelledAt:  s.CancelledAt,
		CancelReason: s.CancelReason,
	}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	return m
}

// SheetAreaModel is the persistence model for an area inside a sheet.
type SheetAreaModel struct {
	ID          uuid.UUID              `gorm:"type:uuid;primary_key"`
	SheetID     uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_sheet_area"`
	AreaID      uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_sheet_area"`
	AreaCode    string                 `gorm:"type:varchar(50);not null"`
	AreaName    string                 `gorm:"type:varchar(200)"`
	AssignTo    *uuid.UUID             `gorm:"type:uuid;index"`
	Status      stocktaking.AreaStatus `gorm:"not null;default:1"`
	Temperature decimal.Decimal        `gorm:"type:decimal(6,2)"`
	Humidity    decimal.Decimal        `gorm:"type:decimal(6,2)"`
	Light       decimal.Decimal        `gorm:"type:decimal(8,2)"`
	CreatedAt   time.Time              `gorm:"not null"`
	UpdatedAt   time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SheetAreaModel) TableName() string {
	return "stocktaking_areas"
}

// ToDomain converts the persistence model to a domain Area.
func (m *SheetAreaModel) ToDomain() stocktaking.Area {
	return stocktaking.Area{
		ID:          m.ID,
		SheetID:     m.SheetID,
		AreaID:      m.AreaID,
		AreaCode:    m.AreaCode,
		AreaName:    m.AreaName,
		AssignTo:    m.AssignTo,
		Status:      m.Status,
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
		Light:       m.Light,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// SheetAreaModelFromDomain creates a persistence model from a domain Area.
func SheetAreaModelFromDomain(a *stocktaking.Area) *SheetAreaModel {
	return &SheetAreaModel{
		ID:          a.ID,
		SheetID:     a.SheetID,
		AreaID:      a.AreaID,
		AreaCode:    a.AreaCode,
		AreaName:    a.AreaName,
		AssignTo:    a.AssignTo,
		Status:      a.Status,
		Temperature: a.Temperature,
		Humidity:    a.Humidity,
		Light:       a.Light,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// LocationModel is the persistence model for the counting Location aggregate.
// Findings are stored as a JSON array.
type LocationModel struct {
	AggregateModel
	SheetID          uuid.UUID                  `gorm:"type:uuid;not null;index"`
	SheetAreaID      uuid.UUID                  `gorm:"type:uuid;not null;index"`
	LocationID       uuid.UUID                  `gorm:"type:uuid;not null"`
	LocationCode     string                     `gorm:"type:varchar(50);not null"`
	AreaCode         string                     `gorm:"type:varchar(50)"`
	Rack             string                     `gorm:"type:varchar(20)"`
	Row              string                     `gorm:"column:row_label;type:varchar(20)"`
	Column           string                     `gorm:"column:column_label;type:varchar(20)"`
	Status           stocktaking.LocationStatus `gorm:"not null;default:1;index"`
	FindingsJSON     string                     `gorm:"column:findings;type:jsonb;not null;default:'[]'"`
	RejectCount      int                        `gorm:"not null;default:0"`
	LastRejectReason string                     `gorm:"type:text"`
	CountedByID      *uuid.UUID                 `gorm:"type:uuid"`
	CountedAt        *time.Time
	Pallets          []PalletModel `gorm:"foreignKey:LocationID;references:ID"`
}

// TableName returns the table name for GORM
func (LocationModel) TableName() string {
	return "stocktaking_locations"
}

// ToDomain converts the persistence model to a domain Location.
func (m *LocationModel) ToDomain() (*stocktaking.Location, error) {
	findings := make([]stocktaking.Finding, 0)
	if m.FindingsJSON != "" {
		if err := json.Unmarshal([]byte(m.FindingsJSON), &findings); err != nil {
			return nil, err
		}
	}
	l := &stocktaking.Location{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SheetID:           m.SheetID,
		SheetAreaID:       m.SheetAreaID,
		LocationID:        m.LocationID,
		LocationCode:      m.LocationCode,
		AreaCode:          m.AreaCode,
		Rack:              m.Rack,
		Row:               m.Row,
		Column:            m.Column,
		Status:            m.Status,
		Pallets:           make([]stocktaking.Pallet, len(m.Pallets)),
		Findings:          findings,
		RejectCount:       m.RejectCount,
		LastRejectReason:  m.LastRejectReason,
		CountedByID:       m.CountedByID,
		CountedAt:         m.CountedAt,
	}
	for i := range m.Pallets {
		l.Pallets[i] = m.Pallets[i].ToDomain()
	}
	return l, nil
}

// LocationModelFromDomain creates a persistence model without its pallets.
func LocationModelFromDomain(l *stocktaking.Location) (*LocationModel, error) {
	findings := l.Findings
	if findings == nil {
		findings = []stocktaking.Finding{}
	}
	raw, err := json.Marshal(findings)
	if err != nil {
		return nil, err
	}
	m := &LocationModel{
		SheetID:          l.SheetID,
		SheetAreaID:      l.SheetAreaID,
		LocationID:       l.LocationID,
		LocationCode:     l.LocationCode,
		AreaCode:         l.AreaCode,
		Rack:             l.Rack,
		Row:              l.Row,
		Column:           l.Column,
		Status:           l.Status,
		FindingsJSON:     string(raw),
		RejectCount:      l.RejectCount,
		LastRejectReason: l.LastRejectReason,
		CountedByID:      l.CountedByID,
		CountedAt:        l.CountedAt,
	}
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	return m, nil
}

// PalletModel is the persistence model for one pallet record of a location.
type PalletModel struct {
	ID                      uuid.UUID                `gorm:"type:uuid;primary_key"`
	LocationID              uuid.UUID                `gorm:"type:uuid;not null;index;uniqueIndex:uq_stocktaking_pallets_location_code,priority:1"`
	PalletID                *uuid.UUID               `gorm:"type:uuid"`
	PalletCode              string                   `gorm:"type:varchar(50);not null;uniqueIndex:uq_stocktaking_pallets_location_code,priority:2"`
	ExpectedPackageQuantity *int                     `gorm:"column:expected_package_quantity"`
	ActualPackageQuantity   *int                     `gorm:"column:actual_package_quantity"`
	Status                  stocktaking.PalletStatus `gorm:"not null;default:1"`
	Note                    string                   `gorm:"type:varchar(500)"`
	Scanned                 bool                     `gorm:"not null;default:false"`
	ScannedAt               *time.Time
	GoodsCode               string `gorm:"type:varchar(50)"`
	GoodsName               string `gorm:"type:varchar(200)"`
	BatchNumber             string `gorm:"type:varchar(50)"`
	ExpiryDate              *time.Time
	CreatedAt               time.Time `gorm:"not null"`
	UpdatedAt               time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PalletModel) TableName() string {
	return "stocktaking_pallets"
}

// ToDomain converts the persistence model to a domain Pallet.
func (m *PalletModel) ToDomain() stocktaking.Pallet {
	return stocktaking.Pallet{
		ID:                      m.ID,
		LocationID:              m.LocationID,
		PalletID:                m.PalletID,
		PalletCode:              m.PalletCode,
		ExpectedPackageQuantity: m.ExpectedPackageQuantity,
		ActualPackageQuantity:   m.ActualPackageQuantity,
		Status:                  m.Status,
		Note:                    m.Note,
		Scanned:                 m.Scanned,
		ScannedAt:               m.ScannedAt,
		GoodsCode:               m.GoodsCode,
		GoodsName:               m.GoodsName,
		BatchNumber:             m.BatchNumber,
		ExpiryDate:              m.ExpiryDate,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}

// PalletModelFromDomain creates a persistence model from a domain Pallet.
func PalletModelFromDomain(p *stocktaking.Pallet) *PalletModel {
	return &PalletModel{
		ID:                      p.ID,
		LocationID:              p.LocationID,
		PalletID:                p.PalletID,
		PalletCode:              p.PalletCode,
		ExpectedPackageQuantity: p.ExpectedPackageQuantity,
		ActualPackageQuantity:   p.ActualPackageQuantity,
		Status:                  p.Status,
		Note:                    p.Note,
		Scanned:                 p.Scanned,
		ScannedAt:               p.ScannedAt,
		GoodsCode:               p.GoodsCode,
		GoodsName:               p.GoodsName,
		BatchNumber:             p.BatchNumber,
		ExpiryDate:              p.ExpiryDate,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}
