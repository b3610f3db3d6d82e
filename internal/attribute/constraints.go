// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Validate checks a value set against the declared constraints. Rules run
// in a fixed order: length bounds, numeric bounds, pattern, membership.
// The first violation stops the run and is returned as a
// *ConstraintViolation; nil means the whole set is admissible.
//
// Each rule applies only to the kinds it is defined for: length bounds to
// strings, arrays, and objects; numeric bounds to numbers; the pattern to
// strings. Membership applies to every value when a closed enumeration is
// declared. Format is carried as annotation only and never enforced here.
func (c Constraints) Validate(values []TypedValue) error {
	if v := c.checkLength(values); v != nil {
		return v
	}
	if v := c.checkNumericBounds(values); v != nil {
		return v
	}
	if v := c.checkPattern(values); v != nil {
		return v
	}
	if v := c.checkMembership(values); v != nil {
		return v
	}
	return nil
}

func (c Constraints) checkLength(values []TypedValue) *ConstraintViolation {
	if c.MinLength == nil && c.MaxLength == nil {
		return nil
	}
	for _, v := range values {
		n, ok := arity(v)
		if !ok {
			continue
		}
		if c.MinLength != nil && n < *c.MinLength {
			return &ConstraintViolation{
				Kind:   ViolationLength,
				Detail: fmt.Sprintf("value %q has length %d, below minimum %d", v, n, *c.MinLength),
			}
		}
		if c.MaxLength != nil && n > *c.MaxLength {
			return &ConstraintViolation{
				Kind:   ViolationLength,
				Detail: fmt.Sprintf("value %q has length %d, above maximum %d", v, n, *c.MaxLength),
			}
		}
	}
	return nil
}

// arity returns the length measure for kinds that have one: character
// count for strings, member count for arrays, field count for objects.
func arity(v TypedValue) (int, bool) {
	switch v.Kind {
	case KindString:
		return utf8.RuneCountInString(v.Str), true
	case KindArray:
		return len(v.Arr), true
	case KindObject:
		return len(v.Obj), true
	}
	return 0, false
}

func (c Constraints) checkNumericBounds(values []TypedValue) *ConstraintViolation {
	if c.MinValue == nil && c.MaxValue == nil {
		return nil
	}
	for _, v := range values {
		if v.Kind != KindNumber {
			continue
		}
		if c.MinValue != nil && v.Num < *c.MinValue {
			return &ConstraintViolation{
				Kind:   ViolationRange,
				Detail: fmt.Sprintf("value %s is below minimum %v", v, *c.MinValue),
			}
		}
		if c.MaxValue != nil && v.Num > *c.MaxValue {
			return &ConstraintViolation{
				Kind:   ViolationRange,
				Detail: fmt.Sprintf("value %s is above maximum %v", v, *c.MaxValue),
			}
		}
	}
	return nil
}

func (c Constraints) checkPattern(values []TypedValue) *ConstraintViolation {
	if c.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return &ConstraintViolation{
			Kind:   ViolationPattern,
			Detail: fmt.Sprintf("pattern %q does not compile: %v", c.Pattern, err),
		}
	}
	for _, v := range values {
		if v.Kind != KindString {
			continue
		}
		if !re.MatchString(v.Str) {
			return &ConstraintViolation{
				Kind:   ViolationPattern,
				Detail: fmt.Sprintf("value %q does not match pattern %q", v.Str, c.Pattern),
			}
		}
	}
	return nil
}

func (c Constraints) checkMembership(values []TypedValue) *ConstraintViolation {
	if len(c.EnumValues) == 0 {
		return nil
	}
	for _, v := range values {
		if !containsValue(c.EnumValues, v) {
			return &ConstraintViolation{
				Kind:   ViolationMembership,
				Detail: fmt.Sprintf("value %q is not among the permitted values", v),
			}
		}
	}
	return nil
}
