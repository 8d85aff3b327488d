package shared

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is what services need to hand recorded events to the bus
// once the aggregate has been saved.
type AggregateRoot interface {
	GetID() uuid.UUID
	GetVersion() int
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseEntity carries identity and audit timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *BaseEntity) GetID() uuid.UUID { return e.ID }

// BaseAggregateRoot adds the optimistic lock version and the events raised
// since the aggregate was loaded.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	stored  int
	pending []DomainEvent
}

// NewBaseAggregateRoot starts a fresh aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	now := time.Now()
	return BaseAggregateRoot{
		BaseEntity: BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Version:    1,
	}
}

// RestoreAggregateRoot rebuilds the base of an aggregate read from storage
func RestoreAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity, Version: version, stored: version}
}

func (a *BaseAggregateRoot) GetVersion() int { return a.Version }

// StoredVersion is the version last read from or written to storage, zero
// for an aggregate that was never saved. Repositories compare it with the
// stored row to detect concurrent writers.
func (a *BaseAggregateRoot) StoredVersion() int { return a.stored }

// MarkStored records the current version as persisted
func (a *BaseAggregateRoot) MarkStored() { a.stored = a.Version }

// IncrementVersion is called by every state change that must be saved
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// AddDomainEvent queues an event for publication after the next save
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.pending }

func (a *BaseAggregateRoot) ClearDomainEvents() { a.pending = nil }
