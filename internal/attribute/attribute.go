// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

// Package attribute implements the attribute definition lifecycle: typed
// value parsing, constraint validation, edit-policy derivation for
// definitions referenced by live policies, and the service operations
// that create, update, and delete definitions.
package attribute

import (
	"fmt"
	"time"
)

// DataType identifies the value domain of an attribute definition. Every
// constrained value carried by a definition conforms to its data type.
type DataType int

// DataType constants enumerate the supported value domains.
const (
	DataTypeString  DataType = iota // string
	DataTypeNumber                  // number
	DataTypeBoolean                 // boolean
	DataTypeDate                    // date
	DataTypeArray                   // array
	DataTypeObject                  // object
)

var dataTypeStrings = [...]string{
	"string",
	"number",
	"boolean",
	"date",
	"array",
	"object",
}

func (dt DataType) String() string {
	if dt >= 0 && int(dt) < len(dataTypeStrings) {
		return dataTypeStrings[dt]
	}
	return fmt.Sprintf("unknown(%d)", int(dt))
}

// ParseDataType converts the wire/storage string form into a DataType.
func ParseDataType(s string) (DataType, error) {
	for i, name := range dataTypeStrings {
		if name == s {
			return DataType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// IsCollection reports whether values of this type hold nested members.
// Collection-typed definitions stay append-editable while referenced by
// policies; scalar-typed definitions lock instead.
func (dt DataType) IsCollection() bool {
	return dt == DataTypeArray || dt == DataTypeObject
}

// Category declares which side of an access request an attribute
// describes.
type Category string

// Category constants define the valid attribute categories.
const (
	CategorySubject  Category = "subject"
	CategoryResource Category = "resource"
)

// String returns the underlying string value for DB serialization.
func (c Category) String() string {
	return string(c)
}

// Constraints narrow the set of admissible values for a definition.
// Zero-valued fields impose no restriction. EnumValues, when non-empty,
// is the closed membership set every value must belong to.
type Constraints struct {
	EnumValues []TypedValue
	MinLength  *int
	MaxLength  *int
	MinValue   *float64
	MaxValue   *float64
	Pattern    string
	Format     string
}

// Bounds are the structural constraint fields a caller may declare:
// everything in Constraints except the enumeration itself, which is owned
// by the parsed value set.
type Bounds struct {
	MinLength *int
	MaxLength *int
	MinValue  *float64
	MaxValue  *float64
	Pattern   string
	Format    string
}

// Constraints assembles full constraints from bounds plus the permitted
// value set.
func (b Bounds) Constraints(enumValues []TypedValue) Constraints {
	return Constraints{
		EnumValues: enumValues,
		MinLength:  b.MinLength,
		MaxLength:  b.MaxLength,
		MinValue:   b.MinValue,
		MaxValue:   b.MaxValue,
		Pattern:    b.Pattern,
		Format:     b.Format,
	}
}

// Metadata carries provenance and audit fields for a definition.
type Metadata struct {
	CreatedBy      string
	LastModifiedBy string
	Tags           []string
	IsSystem       bool
	IsCustom       bool
	Version        int
}

// Definition is an attribute definition: the named, typed, constrained
// vocabulary entry that policies reference. The Version field is the
// optimistic concurrency token; every successful update increments it.
type Definition struct {
	ID          string
	Name        string
	DisplayName string
	Description string
	Categories  []Category
	DataType    DataType
	Constraints Constraints
	Metadata    Metadata
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LastModified stamps the audit fields for a mutation. An empty actor
// leaves the previous modifier in place.
func (d *Definition) LastModified(by string, at time.Time) {
	if by != "" {
		d.Metadata.LastModifiedBy = by
	}
	d.UpdatedAt = at
}

// Clone returns a deep copy. Service code snapshots definitions before
// applying staged edits so a failed update leaves the original untouched.
func (d *Definition) Clone() *Definition {
	cp := *d
	cp.Categories = append([]Category(nil), d.Categories...)
	cp.Metadata.Tags = append([]string(nil), d.Metadata.Tags...)
	cp.Constraints = d.Constraints.clone()
	return &cp
}

// structural returns the constraints with the enumeration cleared, for
// validating a candidate value set that will itself become the
// enumeration.
func (c Constraints) structural() Constraints {
	cp := c.clone()
	cp.EnumValues = nil
	return cp
}

func (c Constraints) clone() Constraints {
	cp := c
	if c.EnumValues != nil {
		cp.EnumValues = make([]TypedValue, len(c.EnumValues))
		for i, v := range c.EnumValues {
			cp.EnumValues[i] = v.Clone()
		}
	}
	if c.MinLength != nil {
		n := *c.MinLength
		cp.MinLength = &n
	}
	if c.MaxLength != nil {
		n := *c.MaxLength
		cp.MaxLength = &n
	}
	if c.MinValue != nil {
		f := *c.MinValue
		cp.MinValue = &f
	}
	if c.MaxValue != nil {
		f := *c.MaxValue
		cp.MaxValue = &f
	}
	return cp
}
