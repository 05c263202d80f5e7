// Package models contains GORM-specific persistence models that map to database tables.
// They are kept apart from the domain types so the domain layer stays free of ORM tags.
// Every model converts to its domain value with ToDomain and back with FromDomain.
package models
