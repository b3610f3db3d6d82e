// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gobwas/glob"
)

// Field limits for attribute definitions.
const (
	MaxNameLength        = 64
	MaxDisplayNameLength = 128
	MaxDescriptionLength = 1024
	MaxTagCount          = 16
	MaxTagLength         = 40
	MaxValueCount        = 1000
)

// namePattern admits dotted lowercase identifiers: each segment starts
// with a letter and continues with letters, digits, or underscores.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

// Validator checks definition names against the syntactic rules and the
// deployment's reserved-name patterns. The zero value validates syntax
// only.
type Validator struct {
	reserved []glob.Glob
	patterns []string
}

// NewValidator compiles the reserved-name glob patterns. Globs match the
// full name with no separator characters, so "sys.*" covers every name
// under the sys prefix at any depth.
func NewValidator(reservedPatterns []string) (*Validator, error) {
	v := &Validator{}
	for _, p := range reservedPatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("reserved name pattern %q: %w", p, err)
		}
		v.reserved = append(v.reserved, g)
		v.patterns = append(v.patterns, p)
	}
	return v, nil
}

// ValidateName checks syntax, length, and reserved-pattern collisions.
func (v *Validator) ValidateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	if !namePattern.MatchString(name) {
		return &ValidationError{
			Field:   "name",
			Message: "must be dotted lowercase segments, each starting with a letter (e.g. subject.role)",
		}
	}
	for i, g := range v.reserved {
		if g.Match(name) {
			return &ValidationError{
				Field:   "name",
				Message: fmt.Sprintf("matches reserved pattern %q", v.patterns[i]),
			}
		}
	}
	return nil
}

// ValidateDisplayName checks the human-readable label: required,
// single-line, bounded length.
func ValidateDisplayName(displayName string) error {
	if strings.TrimSpace(displayName) == "" {
		return &ValidationError{Field: "displayName", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		return &ValidationError{Field: "displayName", Message: fmt.Sprintf("must be at most %d characters", MaxDisplayNameLength)}
	}
	for _, r := range displayName {
		if unicode.IsControl(r) {
			return &ValidationError{Field: "displayName", Message: "must not contain control characters"}
		}
	}
	return nil
}

// ValidateDescription checks the free-form description. Empty is fine;
// newlines and tabs are the only control characters allowed.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Message: fmt.Sprintf("must be at most %d characters", MaxDescriptionLength)}
	}
	for _, r := range description {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return &ValidationError{Field: "description", Message: "must not contain control characters"}
		}
	}
	return nil
}

// ValidateTags checks count, per-tag shape, and uniqueness.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTagCount {
		return &ValidationError{Field: "tags", Message: fmt.Sprintf("must have at most %d tags", MaxTagCount)}
	}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return &ValidationError{Field: "tags", Message: "tags must not be empty"}
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return &ValidationError{Field: "tags", Message: fmt.Sprintf("tag %q exceeds %d characters", tag, MaxTagLength)}
		}
		for _, r := range tag {
			if unicode.IsControl(r) {
				return &ValidationError{Field: "tags", Message: fmt.Sprintf("tag %q contains control characters", tag)}
			}
		}
		if _, dup := seen[tag]; dup {
			return &ValidationError{Field: "tags", Message: fmt.Sprintf("duplicate tag %q", tag)}
		}
		seen[tag] = struct{}{}
	}
	return nil
}

// ValidateCategories checks that at least one valid category is present
// and none repeats.
func ValidateCategories(categories []Category) error {
	if len(categories) == 0 {
		return &ValidationError{Field: "categories", Message: "must declare at least one category"}
	}
	seen := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		switch c {
		case CategorySubject, CategoryResource:
		default:
			return &ValidationError{Field: "categories", Message: fmt.Sprintf("unknown category %q", string(c))}
		}
		if _, dup := seen[c]; dup {
			return &ValidationError{Field: "categories", Message: fmt.Sprintf("duplicate category %q", string(c))}
		}
		seen[c] = struct{}{}
	}
	return nil
}
