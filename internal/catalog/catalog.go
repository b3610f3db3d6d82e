// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

// Package catalog ships the built-in system attribute definitions and
// seeds them into a repository. Catalog files are YAML, validated twice:
// against a JSON Schema generated from the types in this package, and
// against the same domain rules that govern operator-created
// definitions.
package catalog

import (
	_ "embed"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/attrdesk/attrdesk/internal/attribute"
)

// supportedRange bounds the catalog file formats this build understands.
// Major version 2 is reserved for a breaking layout change.
const supportedRange = ">= 1.0.0, < 2.0.0"

var supportedVersions = mustConstraint(supportedRange)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

//go:embed catalog.yaml
var embedded []byte

// syntaxValidator checks entry names for shape only. Reserved-name
// patterns are an API-boundary concern; the catalog is allowed to seed
// reserved namespaces such as sys.*.
var syntaxValidator = &attribute.Validator{}

// Catalog is a versioned set of system attribute entries.
type Catalog struct {
	CatalogVersion string  `yaml:"catalogVersion" json:"catalogVersion"`
	Attributes     []Entry `yaml:"attributes" json:"attributes" jsonschema:"minItems=1"`
}

// Entry describes one system attribute in catalog syntax. Values is raw
// permitted-values text in the syntax of the declared data type; an
// empty string declares an open value set.
type Entry struct {
	Name        string            `yaml:"name" json:"name" jsonschema:"minLength=1"`
	DisplayName string            `yaml:"displayName" json:"displayName" jsonschema:"minLength=1"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Categories  []string          `yaml:"categories" json:"categories" jsonschema:"minItems=1"`
	DataType    string            `yaml:"dataType" json:"dataType" jsonschema:"enum=string,enum=number,enum=boolean,enum=date,enum=array,enum=object"`
	Values      string            `yaml:"values" json:"values"`
	Constraints *EntryConstraints `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Tags        []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// EntryConstraints mirror the structural constraint fields a definition
// may declare. Absent fields impose no restriction.
type EntryConstraints struct {
	MinLength *int     `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength *int     `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	MinValue  *float64 `yaml:"minValue,omitempty" json:"minValue,omitempty"`
	MaxValue  *float64 `yaml:"maxValue,omitempty" json:"maxValue,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Format    string   `yaml:"format,omitempty" json:"format,omitempty"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// ParseFile loads and validates a catalog file from disk.
func ParseFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("CATALOG_LOAD_FAILED").With("path", path).Wrapf(err, "read catalog file")
	}
	return Parse(data)
}

// Parse validates a catalog document against the JSON Schema, decodes
// it, enforces the version gate, and runs every entry through the
// domain pipeline. Only a catalog that passes all of it is returned.
func Parse(data []byte) (*Catalog, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code("CATALOG_INVALID").Wrap(err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, oops.Code("CATALOG_INVALID").Wrapf(err, "decode catalog")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	v, err := semver.NewVersion(c.CatalogVersion)
	if err != nil {
		return oops.Code("CATALOG_INVALID").
			With("catalog_version", c.CatalogVersion).
			Wrapf(err, "parse catalog version")
	}
	if !supportedVersions.Check(v) {
		return oops.Code("CATALOG_UNSUPPORTED").
			With("catalog_version", c.CatalogVersion).
			With("supported", supportedRange).
			Errorf("catalog version %s is outside the supported range %s", c.CatalogVersion, supportedRange)
	}

	seen := make(map[string]struct{}, len(c.Attributes))
	for _, e := range c.Attributes {
		key := strings.ToLower(e.Name)
		if _, dup := seen[key]; dup {
			return oops.Code("CATALOG_INVALID").
				With("name", e.Name).
				Errorf("duplicate catalog entry %q", e.Name)
		}
		seen[key] = struct{}{}

		if _, _, _, err := e.compile(); err != nil {
			return oops.Code("CATALOG_INVALID").
				With("name", e.Name).
				Wrapf(err, "catalog entry %q", e.Name)
		}
	}
	return nil
}

// compile runs one entry through the domain pipeline and returns the
// parsed pieces a definition is assembled from.
func (e Entry) compile() (attribute.DataType, []attribute.TypedValue, []attribute.Category, error) {
	if err := syntaxValidator.ValidateName(e.Name); err != nil {
		return 0, nil, nil, err
	}
	if err := attribute.ValidateDisplayName(e.DisplayName); err != nil {
		return 0, nil, nil, err
	}
	if err := attribute.ValidateDescription(e.Description); err != nil {
		return 0, nil, nil, err
	}
	if err := attribute.ValidateTags(e.Tags); err != nil {
		return 0, nil, nil, err
	}

	dt, err := attribute.ParseDataType(e.DataType)
	if err != nil {
		return 0, nil, nil, err
	}

	cats := make([]attribute.Category, len(e.Categories))
	for i, c := range e.Categories {
		cats[i] = attribute.Category(c)
	}
	if err := attribute.ValidateCategories(cats); err != nil {
		return 0, nil, nil, err
	}

	values, err := attribute.ParseValues(dt, e.Values)
	if err != nil {
		return 0, nil, nil, err
	}
	if len(values) > attribute.MaxValueCount {
		return 0, nil, nil, &attribute.ValidationError{
			Field:   "values",
			Message: "must have at most 1000 values",
		}
	}
	if err := e.bounds().Constraints(nil).Validate(values); err != nil {
		return 0, nil, nil, err
	}
	return dt, values, cats, nil
}

func (e Entry) bounds() attribute.Bounds {
	if e.Constraints == nil {
		return attribute.Bounds{}
	}
	return attribute.Bounds{
		MinLength: e.Constraints.MinLength,
		MaxLength: e.Constraints.MaxLength,
		MinValue:  e.Constraints.MinValue,
		MaxValue:  e.Constraints.MaxValue,
		Pattern:   e.Constraints.Pattern,
		Format:    e.Constraints.Format,
	}
}

// Definition builds the system definition this entry seeds. Every call
// mints a fresh id; callers decide whether the definition is persisted.
func (e Entry) Definition(createdBy string, now time.Time) (*attribute.Definition, error) {
	dt, values, cats, err := e.compile()
	if err != nil {
		return nil, err
	}
	return &attribute.Definition{
		ID:          ulid.Make().String(),
		Name:        e.Name,
		DisplayName: e.DisplayName,
		Description: e.Description,
		Categories:  cats,
		DataType:    dt,
		Constraints: e.bounds().Constraints(values),
		Metadata: attribute.Metadata{
			CreatedBy:      createdBy,
			LastModifiedBy: createdBy,
			Tags:           append([]string(nil), e.Tags...),
			IsSystem:       true,
			IsCustom:       false,
			Version:        1,
		},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
