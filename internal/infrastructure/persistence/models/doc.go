// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: shared columns and aggregate version
//   - stocktaking.go: sheets, sheet areas, counting locations and pallet records
//   - warehouse.go: read-only master data (areas, locations, pallets, staff)
package models
