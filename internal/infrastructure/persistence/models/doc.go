// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: Base persistence models (BaseModel, AggregateModel)
// - loyalty.go: Customer and points transaction models
// - organization.go: Organization model used for slug resolution
package models
