// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"fmt"
	"time"
)

// Patch is the set of staged field changes for one update. Nil pointer
// and nil slice fields mean "unchanged". Values is raw permitted-values
// text, re-parsed under the effective data type when the patch is
// applied. Bounds replaces all structural constraints wholesale when
// set.
type Patch struct {
	DisplayName    *string
	Description    *string
	Categories     []Category
	DataType       *DataType
	Values         *string
	Bounds         *Bounds
	Tags           []string
	Active         *bool
	LastModifiedBy string
}

// EditSession accumulates staged edits against a definition snapshot
// under a fixed edit policy. Each setter enforces the policy for its
// field, so a caller learns immediately which edits the current usage
// state permits. Apply replays the staged patch onto a copy of the
// snapshot; the session never mutates the definition it was opened for.
type EditSession struct {
	base   *Definition
	policy EditPolicy
	patch  Patch
}

// NewEditSession opens a session for def under the given edit policy.
// The definition is snapshotted, so later external changes to def do not
// leak into the session.
func NewEditSession(def *Definition, policy EditPolicy) *EditSession {
	return &EditSession{base: def.Clone(), policy: policy}
}

// Definition returns the snapshot the session edits against.
func (s *EditSession) Definition() *Definition {
	return s.base
}

// Policy returns the edit policy the session enforces.
func (s *EditSession) Policy() EditPolicy {
	return s.policy
}

// Patch returns the staged field changes in Update patch form.
func (s *EditSession) Patch() Patch {
	return s.patch
}

// SetDescription stages a description change. Permitted under every
// policy.
func (s *EditSession) SetDescription(description string) error {
	s.patch.Description = &description
	return nil
}

// SetValues stages new permitted-values text. Permitted under Full and
// AppendOnly; the append-only superset rule is enforced when the session
// is applied, once the text is parsed.
func (s *EditSession) SetValues(raw string) error {
	if s.policy == EditPolicyLocked {
		return s.denied("values")
	}
	s.patch.Values = &raw
	return nil
}

// SetDisplayName stages a display name change. Full policy only.
func (s *EditSession) SetDisplayName(displayName string) error {
	if s.policy != EditPolicyFull {
		return s.denied("displayName")
	}
	s.patch.DisplayName = &displayName
	return nil
}

// SetCategories stages a category change. Full policy only.
func (s *EditSession) SetCategories(categories []Category) error {
	if s.policy != EditPolicyFull {
		return s.denied("categories")
	}
	s.patch.Categories = append([]Category(nil), categories...)
	return nil
}

// SetDataType stages a data type change. Full policy only; applying the
// session then requires staged values text, because the old value set
// cannot survive a type change.
func (s *EditSession) SetDataType(dt DataType) error {
	if s.policy != EditPolicyFull {
		return s.denied("dataType")
	}
	s.patch.DataType = &dt
	return nil
}

// SetBounds stages a structural constraint change. Full policy only.
func (s *EditSession) SetBounds(b Bounds) error {
	if s.policy != EditPolicyFull {
		return s.denied("constraints")
	}
	s.patch.Bounds = &b
	return nil
}

// SetTags stages a tag change. Full policy only.
func (s *EditSession) SetTags(tags []string) error {
	if s.policy != EditPolicyFull {
		return s.denied("tags")
	}
	s.patch.Tags = append([]string(nil), tags...)
	return nil
}

// SetActive stages an active flag change. Full policy only.
func (s *EditSession) SetActive(active bool) error {
	if s.policy != EditPolicyFull {
		return s.denied("active")
	}
	s.patch.Active = &active
	return nil
}

// Stage replays every set field of a patch through the session's
// policy-gated setters, stopping at the first rejected field. The
// modifier attribution is carried unconditionally; it is an audit
// field, not an edit.
func (s *EditSession) Stage(patch Patch) error {
	s.patch.LastModifiedBy = patch.LastModifiedBy
	if patch.Description != nil {
		if err := s.SetDescription(*patch.Description); err != nil {
			return err
		}
	}
	if patch.Values != nil {
		if err := s.SetValues(*patch.Values); err != nil {
			return err
		}
	}
	if patch.DisplayName != nil {
		if err := s.SetDisplayName(*patch.DisplayName); err != nil {
			return err
		}
	}
	if patch.Categories != nil {
		if err := s.SetCategories(patch.Categories); err != nil {
			return err
		}
	}
	if patch.DataType != nil {
		if err := s.SetDataType(*patch.DataType); err != nil {
			return err
		}
	}
	if patch.Bounds != nil {
		if err := s.SetBounds(*patch.Bounds); err != nil {
			return err
		}
	}
	if patch.Tags != nil {
		if err := s.SetTags(patch.Tags); err != nil {
			return err
		}
	}
	if patch.Active != nil {
		if err := s.SetActive(*patch.Active); err != nil {
			return err
		}
	}
	return nil
}

// Apply validates the staged patch and returns the updated definition.
// The returned definition carries the same version token as the
// snapshot; persisting it is the caller's job. Value text is parsed
// under the effective data type, checked against the append-only rule
// when the policy demands it, and validated against the effective
// structural constraints.
func (s *EditSession) Apply() (*Definition, error) {
	next := s.base.Clone()

	if s.patch.DisplayName != nil {
		if err := ValidateDisplayName(*s.patch.DisplayName); err != nil {
			return nil, err
		}
		next.DisplayName = *s.patch.DisplayName
	}
	if s.patch.Description != nil {
		if err := ValidateDescription(*s.patch.Description); err != nil {
			return nil, err
		}
		next.Description = *s.patch.Description
	}
	if s.patch.Categories != nil {
		if err := ValidateCategories(s.patch.Categories); err != nil {
			return nil, err
		}
		next.Categories = append([]Category(nil), s.patch.Categories...)
	}
	if s.patch.Tags != nil {
		if err := ValidateTags(s.patch.Tags); err != nil {
			return nil, err
		}
		next.Metadata.Tags = append([]string(nil), s.patch.Tags...)
	}
	if s.patch.Active != nil {
		next.Active = *s.patch.Active
	}

	if s.patch.DataType != nil && s.patch.Values == nil {
		return nil, &ValidationError{
			Field:   "values",
			Message: fmt.Sprintf("required when dataType changes to %s", *s.patch.DataType),
		}
	}
	if s.patch.DataType != nil {
		next.DataType = *s.patch.DataType
	}
	if s.patch.Bounds != nil {
		next.Constraints = s.patch.Bounds.Constraints(next.Constraints.EnumValues)
	}

	if s.patch.Values != nil {
		parsed, err := ParseValues(next.DataType, *s.patch.Values)
		if err != nil {
			return nil, err
		}
		if len(parsed) > MaxValueCount {
			return nil, &ValidationError{
				Field:   "values",
				Message: fmt.Sprintf("must have at most %d values", MaxValueCount),
			}
		}
		if s.policy == EditPolicyAppendOnly {
			if v := checkAppendOnly(s.base.Constraints.EnumValues, parsed); v != nil {
				return nil, v
			}
		}
		if err := next.Constraints.structural().Validate(parsed); err != nil {
			return nil, err
		}
		next.Constraints.EnumValues = parsed
	}

	next.LastModified(s.patch.LastModifiedBy, time.Now().UTC())
	return next, nil
}

// checkAppendOnly verifies that every existing member survives in the
// submitted set. Order may change and new members may appear, but any
// removal or alteration of an existing member fails the whole patch.
func checkAppendOnly(existing, submitted []TypedValue) *ConstraintViolation {
	for _, e := range existing {
		if !containsValue(submitted, e) {
			return &ConstraintViolation{
				Kind:   ViolationAppendOnly,
				Detail: fmt.Sprintf("existing value %q was removed or altered", e),
			}
		}
	}
	return nil
}

func (s *EditSession) denied(field string) error {
	return &ConstraintViolation{
		Kind:   ViolationEditPolicy,
		Detail: fmt.Sprintf("%s is not editable under the %s edit policy", field, s.policy),
	}
}
