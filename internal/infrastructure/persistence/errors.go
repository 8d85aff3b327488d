package persistence

import (
	"errors"

	"github.com/wms/stocktaking/internal/domain/shared"
	"gorm.io/gorm"
)

// dbError maps a gorm error onto the domain error codes. Missing rows become
// NOT_FOUND, domain errors raised inside a transaction pass through, and
// anything else is treated as the database being unreachable.
func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return shared.Network(op, err)
}
