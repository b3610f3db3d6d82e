// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

// Package attributetest provides test doubles for the attribute
// definition lifecycle: a configurable usage oracle and an in-memory
// repository that honors the same guards and version tokens as the
// Postgres implementation.
package attributetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/attrdesk/attrdesk/internal/attribute"
)

// StubOracle is a UsageOracle backed by a map. Safe for concurrent use.
type StubOracle struct {
	mu    sync.Mutex
	inUse map[string]bool
	err   error
	calls int
}

// NewStubOracle creates an oracle that reports every attribute unused.
func NewStubOracle() *StubOracle {
	return &StubOracle{inUse: make(map[string]bool)}
}

// MarkInUse flags attribute ids as referenced by policies.
func (o *StubOracle) MarkInUse(ids ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		o.inUse[id] = true
	}
}

// MarkUnused clears the referenced flag for attribute ids.
func (o *StubOracle) MarkUnused(ids ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		delete(o.inUse, id)
	}
}

// FailWith makes every IsInUse call return err until reset with nil.
func (o *StubOracle) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Calls returns how many times IsInUse was asked.
func (o *StubOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// IsInUse implements attribute.UsageOracle.
func (o *StubOracle) IsInUse(_ context.Context, attributeID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return false, o.err
	}
	return o.inUse[attributeID], nil
}

// FakeRepository is an in-memory attribute.Repository. It enforces
// case-insensitive name uniqueness, version compare-and-swap, and the
// guarded delete rules. When an Oracle is attached, guarded deletes
// consult it the way the Postgres reference table does.
type FakeRepository struct {
	mu       sync.Mutex
	defs     map[string]*attribute.Definition
	failWith error

	// Oracle, when non-nil, supplies the policy-reference state the
	// guarded delete statements check.
	Oracle *StubOracle
}

// NewFakeRepository creates an empty repository.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{defs: make(map[string]*attribute.Definition)}
}

// FailWith makes every subsequent call return err until reset with nil.
func (r *FakeRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

// Len returns the number of stored definitions.
func (r *FakeRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.defs)
}

// Insert implements attribute.Repository.
func (r *FakeRepository) Insert(_ context.Context, def *attribute.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	for _, existing := range r.defs {
		if strings.EqualFold(existing.Name, def.Name) {
			return fmt.Errorf("%w: %s", attribute.ErrDuplicateName, def.Name)
		}
	}
	r.defs[def.ID] = def.Clone()
	return nil
}

// FindByID implements attribute.Repository.
func (r *FakeRepository) FindByID(_ context.Context, id string) (*attribute.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	def, ok := r.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", attribute.ErrNotFound, id)
	}
	return def.Clone(), nil
}

// FindByName implements attribute.Repository.
func (r *FakeRepository) FindByName(_ context.Context, name string) (*attribute.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, def := range r.defs {
		if strings.EqualFold(def.Name, name) {
			return def.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", attribute.ErrNotFound, name)
}

// Update implements attribute.Repository.
func (r *FakeRepository) Update(_ context.Context, def *attribute.Definition, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	stored, ok := r.defs[def.ID]
	if !ok {
		return fmt.Errorf("%w: %s", attribute.ErrNotFound, def.ID)
	}
	if stored.Metadata.Version != expectedVersion {
		return fmt.Errorf("%w: have %d, expected %d",
			attribute.ErrVersionConflict, stored.Metadata.Version, expectedVersion)
	}
	next := def.Clone()
	next.Metadata.Version = expectedVersion + 1
	next.UpdatedAt = time.Now().UTC()
	r.defs[def.ID] = next
	def.Metadata.Version = next.Metadata.Version
	def.UpdatedAt = next.UpdatedAt
	return nil
}

// Delete implements attribute.Repository.
func (r *FakeRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	return r.deleteLocked(ctx, id)
}

func (r *FakeRepository) deleteLocked(ctx context.Context, id string) error {
	def, ok := r.defs[id]
	if !ok {
		return fmt.Errorf("%w: %s", attribute.ErrNotFound, id)
	}
	if def.Metadata.IsSystem {
		return fmt.Errorf("%w: %s", attribute.ErrSystemProtected, def.Name)
	}
	if r.Oracle != nil {
		inUse, err := r.Oracle.IsInUse(ctx, id)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("%w: %s", attribute.ErrAttributeInUse, def.Name)
		}
	}
	delete(r.defs, id)
	return nil
}

// DeleteMany implements attribute.Repository.
func (r *FakeRepository) DeleteMany(ctx context.Context, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var deleted []string
	for _, id := range ids {
		if err := r.deleteLocked(ctx, id); err == nil {
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

// List implements attribute.Repository.
func (r *FakeRepository) List(_ context.Context, opts attribute.ListOptions) (*attribute.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	opts = opts.Normalized()

	var matched []*attribute.Definition
	for _, def := range r.defs {
		if matches(def, opts) {
			matched = append(matched, def.Clone())
		}
	}
	sortDefinitions(matched, opts)

	total := len(matched)
	totalPages := (total + opts.PerPage - 1) / opts.PerPage
	start := (opts.Page - 1) * opts.PerPage
	if start > total {
		start = total
	}
	end := start + opts.PerPage
	if end > total {
		end = total
	}
	return &attribute.Page{
		Items:      matched[start:end],
		Page:       opts.Page,
		PerPage:    opts.PerPage,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

// Count implements attribute.Repository.
func (r *FakeRepository) Count(_ context.Context, opts attribute.ListOptions) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	n := 0
	for _, def := range r.defs {
		if matches(def, opts) {
			n++
		}
	}
	return n, nil
}

func matches(def *attribute.Definition, opts attribute.ListOptions) bool {
	if opts.DataType != nil && def.DataType != *opts.DataType {
		return false
	}
	if opts.Active != nil && def.Active != *opts.Active {
		return false
	}
	if opts.IsSystem != nil && def.Metadata.IsSystem != *opts.IsSystem {
		return false
	}
	if opts.Category != nil {
		found := false
		for _, c := range def.Categories {
			if c == *opts.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if opts.Tag != "" {
		found := false
		for _, t := range def.Metadata.Tags {
			if t == opts.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if opts.NameContains != "" &&
		!strings.Contains(strings.ToLower(def.Name), strings.ToLower(opts.NameContains)) {
		return false
	}
	return true
}

func sortDefinitions(defs []*attribute.Definition, opts attribute.ListOptions) {
	sort.SliceStable(defs, func(i, j int) bool {
		c := compareDefinitions(defs[i], defs[j], opts.SortBy)
		if opts.SortDesc {
			return c > 0
		}
		return c < 0
	})
}

func compareDefinitions(a, b *attribute.Definition, field attribute.SortField) int {
	switch field {
	case attribute.SortByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case attribute.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return strings.Compare(a.Name, b.Name)
	}
}

// NewDefinition builds a valid custom definition for tests: subject
// category, version 1, active, with the given permitted values.
func NewDefinition(name string, dt attribute.DataType, values ...attribute.TypedValue) *attribute.Definition {
	now := time.Now().UTC()
	return &attribute.Definition{
		ID:          ulid.Make().String(),
		Name:        name,
		DisplayName: strings.ToUpper(name[:1]) + name[1:],
		Categories:  []attribute.Category{attribute.CategorySubject},
		DataType:    dt,
		Constraints: attribute.Constraints{EnumValues: values},
		Metadata: attribute.Metadata{
			CreatedBy:      "tester",
			LastModifiedBy: "tester",
			IsCustom:       true,
			Version:        1,
		},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSystemDefinition builds a system-protected definition for tests.
func NewSystemDefinition(name string, dt attribute.DataType, values ...attribute.TypedValue) *attribute.Definition {
	def := NewDefinition(name, dt, values...)
	def.Metadata.IsSystem = true
	def.Metadata.IsCustom = false
	return def
}
