package shared

import (
	"github.com/google/uuid"
)

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent records a domain event to be dispatched after commit
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// OrganizationAggregateRoot is an aggregate root owned by one organization.
// Every query and cache key for it is scoped by OrganizationID.
type OrganizationAggregateRoot struct {
	BaseAggregateRoot
	OrganizationID uuid.UUID
}

// NewOrganizationAggregateRoot creates a new organization-scoped aggregate root
func NewOrganizationAggregateRoot(organizationID uuid.UUID) OrganizationAggregateRoot {
	return OrganizationAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		OrganizationID:    organizationID,
	}
}
