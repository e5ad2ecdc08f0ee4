// Package models contains GORM persistence models that map to database tables.
// They are kept separate from domain entities so the domain layer stays free
// of ORM tags; each model has ToDomain/FromDomain mappers used by the
// repositories.
package models
