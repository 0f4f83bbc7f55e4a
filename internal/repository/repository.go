// Package repository is dbcalm's persistence port: one interface plus one
// gorm-backed implementation per entity in the data model. Relationships
// are by opaque key only — there are no hard foreign-key constraints
// crossing the Process table, matching the spec's "Process is an immutable
// audit stream, domain entities are projections over it" design.
package repository

import (
	"errors"
)

// ErrNotFound is returned when a lookup by key finds nothing.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict is returned when a unique-key insert collides with an
// existing row.
var ErrConflict = errors.New("repository: conflict")

// ListOptions bounds a paginated List call.
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return 100
	}
	return o.Limit
}

