// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

// Package postgres implements the attribute persistence port against
// PostgreSQL. Every guard the service layer checks is re-enforced here
// at write time with locked classification and guarded predicates, so a
// stale read can never slip a forbidden mutation through.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/attrdesk/attrdesk/internal/attribute"
)

// Repository implements attribute.Repository using PostgreSQL.
type Repository struct {
	pool poolIface
}

// NewRepository creates a Repository backed by the given connection pool.
func NewRepository(pool poolIface) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a new definition. pg_notify('attribute_changed', id)
// is sent in the same transaction.
func (r *Repository) Insert(ctx context.Context, def *attribute.Definition) error {
	constraintsJSON, err := encodeConstraints(def.DataType, def.Constraints)
	if err != nil {
		return oops.Code("ATTRIBUTE_CREATE_FAILED").With("id", def.ID).Wrap(err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ATTRIBUTE_CREATE_FAILED").With("name", def.Name).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO attribute_definitions (id, name, display_name, description, categories, data_type, constraints, tags, is_system, is_custom, created_by, last_modified_by, version, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, def.ID, def.Name, def.DisplayName, def.Description,
		categoryStrings(def.Categories), def.DataType.String(), constraintsJSON,
		tagStrings(def.Metadata.Tags), def.Metadata.IsSystem, def.Metadata.IsCustom,
		def.Metadata.CreatedBy, def.Metadata.LastModifiedBy,
		def.Metadata.Version, def.Active, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ATTRIBUTE_DUPLICATE_NAME").
				With("name", def.Name).
				With("constraint", pgErr.ConstraintName).
				Wrapf(attribute.ErrDuplicateName, "attribute %q already exists", def.Name)
		}
		return oops.Code("ATTRIBUTE_CREATE_FAILED").With("id", def.ID).With("name", def.Name).Wrap(err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify('attribute_changed', $1)`, def.ID); err != nil {
		return oops.Code("ATTRIBUTE_CREATE_FAILED").With("id", def.ID).With("operation", "notify").Wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ATTRIBUTE_CREATE_FAILED").With("id", def.ID).With("operation", "commit").Wrap(err)
	}
	return nil
}

// FindByID retrieves a definition by its ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*attribute.Definition, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM attribute_definitions WHERE id = $1`, attributeColumns), id)
	def, err := scanDefinition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ATTRIBUTE_NOT_FOUND").With("id", id).Wrap(attribute.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ATTRIBUTE_GET_FAILED").With("id", id).Wrap(err)
	}
	return def, nil
}

// FindByName retrieves a definition by its case-insensitive unique name.
func (r *Repository) FindByName(ctx context.Context, name string) (*attribute.Definition, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM attribute_definitions WHERE lower(name) = lower($1)`, attributeColumns), name)
	def, err := scanDefinition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ATTRIBUTE_NOT_FOUND").With("name", name).Wrap(attribute.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ATTRIBUTE_GET_FAILED").With("name", name).Wrap(err)
	}
	return def, nil
}

// Update persists a changed definition under compare-and-swap on the
// version column. On success the definition's version and update
// timestamp are refreshed in place; a CAS miss is classified in the
// same transaction as either a vanished row or a version conflict.
func (r *Repository) Update(ctx context.Context, def *attribute.Definition, expectedVersion int) error {
	constraintsJSON, err := encodeConstraints(def.DataType, def.Constraints)
	if err != nil {
		return oops.Code("ATTRIBUTE_UPDATE_FAILED").With("id", def.ID).Wrap(err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ATTRIBUTE_UPDATE_FAILED").With("id", def.ID).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var newVersion int
	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE attribute_definitions
		SET display_name = $3, description = $4, categories = $5, data_type = $6,
		    constraints = $7, tags = $8, active = $9, last_modified_by = $10,
		    version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, def.ID, expectedVersion, def.DisplayName, def.Description,
		categoryStrings(def.Categories), def.DataType.String(), constraintsJSON,
		tagStrings(def.Metadata.Tags), def.Active, def.Metadata.LastModifiedBy,
	).Scan(&newVersion, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var have int
		probeErr := tx.QueryRow(ctx,
			`SELECT version FROM attribute_definitions WHERE id = $1`, def.ID).Scan(&have)
		if errors.Is(probeErr, pgx.ErrNoRows) {
			return oops.Code("ATTRIBUTE_NOT_FOUND").With("id", def.ID).Wrap(attribute.ErrNotFound)
		}
		if probeErr != nil {
			return oops.Code("ATTRIBUTE_UPDATE_FAILED").With("id", def.ID).Wrap(probeErr)
		}
		return oops.Code("ATTRIBUTE_VERSION_CONFLICT").
			With("id", def.ID).
			With("have", have).
			With("expected", expectedVersion).
			Wrapf(attribute.ErrVersionConflict, "version moved to %d, expected %d", have, expectedVersion)
	}
	if err != nil {
		return oops.Code("ATTRIBUTE_UPDATE_FAILED").With("id", def.ID).Wrap(err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify('attribute_changed', $1)`, def.ID); err != nil {
		return oops.Code("ATTRIBUTE_UPDATE_FAILED").With("id", def.ID).With("operation", "notify").Wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ATTRIBUTE_UPDATE_FAILED").With("id", def.ID).With("operation", "commit").Wrap(err)
	}

	def.Metadata.Version = newVersion
	def.UpdatedAt = updatedAt
	return nil
}

// Delete removes one definition. The row is locked and classified
// first, then deleted with the guards repeated in the predicate; the
// restrict foreign key from policy_attribute_refs backstops the race a
// predicate cannot see.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ATTRIBUTE_DELETE_FAILED").With("id", id).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var isSystem, inUse bool
	err = tx.QueryRow(ctx, `
		SELECT is_system,
		       EXISTS (SELECT 1 FROM policy_attribute_refs WHERE attribute_id = attribute_definitions.id)
		FROM attribute_definitions WHERE id = $1
		FOR UPDATE OF attribute_definitions
	`, id).Scan(&isSystem, &inUse)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("ATTRIBUTE_NOT_FOUND").With("id", id).Wrap(attribute.ErrNotFound)
	}
	if err != nil {
		return oops.Code("ATTRIBUTE_DELETE_FAILED").With("id", id).Wrap(err)
	}
	if isSystem {
		return oops.Code("ATTRIBUTE_SYSTEM_PROTECTED").With("id", id).Wrap(attribute.ErrSystemProtected)
	}
	if inUse {
		return oops.Code("ATTRIBUTE_IN_USE").With("id", id).Wrap(attribute.ErrAttributeInUse)
	}

	result, err := tx.Exec(ctx, `
		DELETE FROM attribute_definitions
		WHERE id = $1
		  AND NOT is_system
		  AND NOT EXISTS (SELECT 1 FROM policy_attribute_refs WHERE attribute_id = attribute_definitions.id)
	`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return oops.Code("ATTRIBUTE_IN_USE").With("id", id).Wrap(attribute.ErrAttributeInUse)
		}
		return oops.Code("ATTRIBUTE_DELETE_FAILED").With("id", id).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ATTRIBUTE_DELETE_FAILED").With("id", id).Errorf("delete guard rejected a row classified as eligible")
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify('attribute_changed', $1)`, id); err != nil {
		return oops.Code("ATTRIBUTE_DELETE_FAILED").With("id", id).With("operation", "notify").Wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ATTRIBUTE_DELETE_FAILED").With("id", id).With("operation", "commit").Wrap(err)
	}
	return nil
}

// DeleteMany removes every id that passes the delete guards in one
// statement and returns the ids actually removed. Ineligible ids are
// skipped by the predicate, not reported as errors.
func (r *Repository) DeleteMany(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, oops.Code("ATTRIBUTE_DELETE_FAILED").With("count", len(ids)).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.Query(ctx, `
		DELETE FROM attribute_definitions
		WHERE id = ANY($1)
		  AND NOT is_system
		  AND NOT EXISTS (SELECT 1 FROM policy_attribute_refs WHERE attribute_id = attribute_definitions.id)
		RETURNING id
	`, ids)
	if err != nil {
		return nil, oops.Code("ATTRIBUTE_DELETE_FAILED").With("count", len(ids)).Wrap(err)
	}
	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, oops.Code("ATTRIBUTE_SCAN_FAILED").Wrap(err)
		}
		deleted = append(deleted, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ATTRIBUTE_DELETE_FAILED").With("count", len(ids)).Wrap(err)
	}

	for _, id := range deleted {
		if _, err := tx.Exec(ctx, `SELECT pg_notify('attribute_changed', $1)`, id); err != nil {
			return nil, oops.Code("ATTRIBUTE_DELETE_FAILED").With("id", id).With("operation", "notify").Wrap(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("ATTRIBUTE_DELETE_FAILED").With("count", len(ids)).With("operation", "commit").Wrap(err)
	}
	return deleted, nil
}

// List returns a filtered, sorted page of definitions with the total
// count the pagination envelope needs.
func (r *Repository) List(ctx context.Context, opts attribute.ListOptions) (*attribute.Page, error) {
	opts = opts.Normalized()
	where, args := buildFilter(opts)

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attribute_definitions`+where, args...).Scan(&total)
	if err != nil {
		return nil, oops.Code("ATTRIBUTE_QUERY_FAILED").With("operation", "count").Wrap(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM attribute_definitions%s%s LIMIT $%d OFFSET $%d`,
		attributeColumns, where, orderBy(opts), len(args)+1, len(args)+2)
	args = append(args, opts.PerPage, (opts.Page-1)*opts.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("ATTRIBUTE_QUERY_FAILED").With("operation", "list").Wrap(err)
	}
	defs, err := scanDefinitions(rows)
	if err != nil {
		return nil, err
	}

	return &attribute.Page{
		Items:      defs,
		Page:       opts.Page,
		PerPage:    opts.PerPage,
		TotalItems: total,
		TotalPages: (total + opts.PerPage - 1) / opts.PerPage,
	}, nil
}

// Count returns how many definitions match the filter dimensions of opts.
func (r *Repository) Count(ctx context.Context, opts attribute.ListOptions) (int, error) {
	where, args := buildFilter(opts)
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attribute_definitions`+where, args...).Scan(&total)
	if err != nil {
		return 0, oops.Code("ATTRIBUTE_QUERY_FAILED").With("operation", "count").Wrap(err)
	}
	return total, nil
}

// buildFilter renders the WHERE clause for the filter dimensions of
// opts, with positional parameters starting at $1.
func buildFilter(opts attribute.ListOptions) (string, []any) {
	var where []string
	var args []any
	argIdx := 1

	if opts.DataType != nil {
		where = append(where, fmt.Sprintf("data_type = $%d", argIdx))
		args = append(args, opts.DataType.String())
		argIdx++
	}
	if opts.Category != nil {
		where = append(where, fmt.Sprintf("$%d = ANY(categories)", argIdx))
		args = append(args, string(*opts.Category))
		argIdx++
	}
	if opts.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", argIdx))
		args = append(args, *opts.Active)
		argIdx++
	}
	if opts.IsSystem != nil {
		where = append(where, fmt.Sprintf("is_system = $%d", argIdx))
		args = append(args, *opts.IsSystem)
		argIdx++
	}
	if opts.Tag != "" {
		where = append(where, fmt.Sprintf("$%d = ANY(tags)", argIdx))
		args = append(args, opts.Tag)
		argIdx++
	}
	if opts.NameContains != "" {
		where = append(where, fmt.Sprintf("name ILIKE '%%' || $%d || '%%'", argIdx))
		args = append(args, opts.NameContains)
		argIdx++ //nolint:ineffassign // keeps consistent pattern for future filter additions
	}

	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// orderBy renders the ORDER BY clause. Sort columns come from the
// SortField whitelist, never caller text; timestamp sorts get a name
// tiebreak so pagination stays stable.
func orderBy(opts attribute.ListOptions) string {
	column := "name"
	switch opts.SortBy {
	case attribute.SortByCreatedAt:
		column = "created_at"
	case attribute.SortByUpdatedAt:
		column = "updated_at"
	}
	dir := "ASC"
	if opts.SortDesc {
		dir = "DESC"
	}
	if column == "name" {
		return fmt.Sprintf(" ORDER BY name %s", dir)
	}
	return fmt.Sprintf(" ORDER BY %s %s, name ASC", column, dir)
}

// Compile-time interface check.
var _ attribute.Repository = (*Repository)(nil)
