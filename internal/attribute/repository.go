// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import "context"

// SortField names a definition column the list operation can order by.
type SortField string

// SortField constants define the permitted sort orders.
const (
	SortByName      SortField = "name"
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
)

// Valid reports whether the sort field is one of the permitted columns.
func (f SortField) Valid() bool {
	switch f {
	case SortByName, SortByCreatedAt, SortByUpdatedAt:
		return true
	}
	return false
}

// Pagination defaults and caps for list queries.
const (
	DefaultPerPage = 25
	MaxPerPage     = 200
)

// ListOptions filter, sort, and paginate a definition listing. Nil
// pointer fields leave that dimension unfiltered.
type ListOptions struct {
	DataType     *DataType
	Category     *Category
	Active       *bool
	IsSystem     *bool
	Tag          string
	NameContains string
	SortBy       SortField
	SortDesc     bool
	Page         int
	PerPage      int
}

// Normalized returns a copy with paging and sorting clamped to sane
// values: page at least 1, per-page within [1, MaxPerPage], and name
// order when no valid sort field was given.
func (o ListOptions) Normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = DefaultPerPage
	}
	if o.PerPage > MaxPerPage {
		o.PerPage = MaxPerPage
	}
	if !o.SortBy.Valid() {
		o.SortBy = SortByName
	}
	return o
}

// Page is one page of a definition listing plus the totals the
// pagination envelope needs.
type Page struct {
	Items      []*Definition
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
}

// Repository is the persistence port for attribute definitions. Every
// guarded rule the service checks is also enforced by the
// implementation at write time, so a stale read can never slip a
// forbidden mutation through.
type Repository interface {
	// Insert persists a new definition. Names are unique
	// case-insensitively; a clash wraps ErrDuplicateName.
	Insert(ctx context.Context, def *Definition) error

	// FindByID loads one definition. Wraps ErrNotFound when absent.
	FindByID(ctx context.Context, id string) (*Definition, error)

	// FindByName loads one definition by its case-insensitive unique
	// name. Wraps ErrNotFound when absent.
	FindByName(ctx context.Context, name string) (*Definition, error)

	// Update persists a changed definition if and only if the stored
	// version still equals expectedVersion. On success the definition's
	// version token and update timestamp are refreshed in place. A
	// concurrent change wraps ErrVersionConflict; a vanished row wraps
	// ErrNotFound.
	Update(ctx context.Context, def *Definition, expectedVersion int) error

	// Delete removes one definition unless it is system-protected or
	// still referenced by policies. Wraps ErrNotFound,
	// ErrSystemProtected, or ErrAttributeInUse accordingly.
	Delete(ctx context.Context, id string) error

	// DeleteMany removes every definition in ids that passes the same
	// guards Delete enforces, and returns the ids actually removed.
	// Ineligible ids are skipped, not errors.
	DeleteMany(ctx context.Context, ids []string) ([]string, error)

	// List returns a filtered, sorted page of definitions.
	List(ctx context.Context, opts ListOptions) (*Page, error)

	// Count returns how many definitions match the filter dimensions of
	// opts, ignoring its paging fields.
	Count(ctx context.Context, opts ListOptions) (int, error)
}
