// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/attrdesk/attrdesk/internal/attribute"
)

// poolIface abstracts the pgx pool surface the repositories use, so
// unit tests can substitute pgxmock.
type poolIface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// attributeColumns is the shared column list for SELECT queries.
const attributeColumns = `id, name, display_name, description, categories, data_type, constraints, tags, is_system, is_custom, created_by, last_modified_by, version, active, created_at, updated_at`

// definitionScanFields holds intermediate scan values that need
// conversion before they fit the domain type.
type definitionScanFields struct {
	categories  []string
	dataType    string
	constraints []byte
}

// scanDefinition scans a single definition row.
func scanDefinition(row pgx.Row) (*attribute.Definition, error) {
	var def attribute.Definition
	var f definitionScanFields

	err := row.Scan(
		&def.ID, &def.Name, &def.DisplayName, &def.Description,
		&f.categories, &f.dataType, &f.constraints, &def.Metadata.Tags,
		&def.Metadata.IsSystem, &def.Metadata.IsCustom,
		&def.Metadata.CreatedBy, &def.Metadata.LastModifiedBy,
		&def.Metadata.Version, &def.Active, &def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := convertDefinitionFields(&f, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// scanDefinitions scans multiple rows into a slice of definitions.
func scanDefinitions(rows pgx.Rows) ([]*attribute.Definition, error) {
	defer rows.Close()
	defs := make([]*attribute.Definition, 0)
	for rows.Next() {
		var def attribute.Definition
		var f definitionScanFields
		err := rows.Scan(
			&def.ID, &def.Name, &def.DisplayName, &def.Description,
			&f.categories, &f.dataType, &f.constraints, &def.Metadata.Tags,
			&def.Metadata.IsSystem, &def.Metadata.IsCustom,
			&def.Metadata.CreatedBy, &def.Metadata.LastModifiedBy,
			&def.Metadata.Version, &def.Active, &def.CreatedAt, &def.UpdatedAt,
		)
		if err != nil {
			return nil, oops.Code("ATTRIBUTE_SCAN_FAILED").Wrap(err)
		}
		if err := convertDefinitionFields(&f, &def); err != nil {
			return nil, err
		}
		defs = append(defs, &def)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ATTRIBUTE_ITERATE_FAILED").Wrap(err)
	}
	return defs, nil
}

// convertDefinitionFields turns scanned column values into domain
// fields: the data type string into its enum and the constraints JSONB
// into decoded typed values.
func convertDefinitionFields(f *definitionScanFields, def *attribute.Definition) error {
	dt, err := attribute.ParseDataType(f.dataType)
	if err != nil {
		return oops.Code("ATTRIBUTE_DECODE_FAILED").With("id", def.ID).With("data_type", f.dataType).Wrap(err)
	}
	def.DataType = dt

	def.Categories = make([]attribute.Category, 0, len(f.categories))
	for _, c := range f.categories {
		def.Categories = append(def.Categories, attribute.Category(c))
	}

	constraints, err := decodeConstraints(dt, f.constraints)
	if err != nil {
		return oops.Code("ATTRIBUTE_DECODE_FAILED").With("id", def.ID).Wrap(err)
	}
	def.Constraints = constraints
	return nil
}

// storedConstraints is the JSONB shape of a definition's constraints.
// Enum values are kept in their natural JSON encoding and decoded
// type-directed on read.
type storedConstraints struct {
	EnumValues json.RawMessage `json:"enumValues,omitempty"`
	MinLength  *int            `json:"minLength,omitempty"`
	MaxLength  *int            `json:"maxLength,omitempty"`
	MinValue   *float64        `json:"minValue,omitempty"`
	MaxValue   *float64        `json:"maxValue,omitempty"`
	Pattern    string          `json:"pattern,omitempty"`
	Format     string          `json:"format,omitempty"`
}

func encodeConstraints(dt attribute.DataType, c attribute.Constraints) ([]byte, error) {
	stored := storedConstraints{
		MinLength: c.MinLength,
		MaxLength: c.MaxLength,
		MinValue:  c.MinValue,
		MaxValue:  c.MaxValue,
		Pattern:   c.Pattern,
		Format:    c.Format,
	}
	if len(c.EnumValues) > 0 {
		raw, err := attribute.EncodeValues(dt, c.EnumValues)
		if err != nil {
			return nil, oops.With("operation", "encode enum values").Wrap(err)
		}
		stored.EnumValues = raw
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return nil, oops.With("operation", "marshal constraints").Wrap(err)
	}
	return b, nil
}

func decodeConstraints(dt attribute.DataType, data []byte) (attribute.Constraints, error) {
	if len(data) == 0 {
		return attribute.Constraints{}, nil
	}
	var stored storedConstraints
	if err := json.Unmarshal(data, &stored); err != nil {
		return attribute.Constraints{}, oops.With("operation", "unmarshal constraints").Wrap(err)
	}
	c := attribute.Constraints{
		MinLength: stored.MinLength,
		MaxLength: stored.MaxLength,
		MinValue:  stored.MinValue,
		MaxValue:  stored.MaxValue,
		Pattern:   stored.Pattern,
		Format:    stored.Format,
	}
	if len(stored.EnumValues) > 0 {
		values, err := attribute.DecodeValues(dt, stored.EnumValues)
		if err != nil {
			return attribute.Constraints{}, oops.With("operation", "decode enum values").Wrap(err)
		}
		c.EnumValues = values
	}
	return c, nil
}

// categoryStrings converts categories for a TEXT[] parameter. A nil
// slice becomes an empty array, never SQL NULL.
func categoryStrings(categories []attribute.Category) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, string(c))
	}
	return out
}

// tagStrings normalizes tags for a TEXT[] parameter, mapping nil to an
// empty array.
func tagStrings(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
