package models

import (
	"github.com/erp/backoffice/internal/domain/organization"
)

// OrganizationModel is the persistence model for the Organization aggregate
type OrganizationModel struct {
	AggregateModel
	Slug   string              `gorm:"type:varchar(63);not null;uniqueIndex"`
	Name   string              `gorm:"type:varchar(200);not null"`
	Status organization.Status `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (OrganizationModel) TableName() string {
	return "organizations"
}

// ToDomain converts the persistence model to a domain Organization
func (m *OrganizationModel) ToDomain() *organization.Organization {
	return &organization.Organization{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Slug:              m.Slug,
		Name:              m.Name,
		Status:            m.Status,
	}
}

// OrganizationModelFromDomain creates a new persistence model from a domain Organization
func OrganizationModelFromDomain(o *organization.Organization) *OrganizationModel {
	m := &OrganizationModel{
		Slug:   o.Slug,
		Name:   o.Name,
		Status: o.Status,
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	return m
}
