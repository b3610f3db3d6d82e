// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"errors"
	"fmt"
)

// Sentinel errors for attribute lifecycle operations. Service and store
// code wrap these with oops error codes; callers test with errors.Is.
var (
	// ErrNotFound indicates no definition exists for the given ID or name.
	ErrNotFound = errors.New("attribute definition not found")

	// ErrDuplicateName indicates another definition already owns the name.
	// Name comparison is case-insensitive.
	ErrDuplicateName = errors.New("attribute name already in use")

	// ErrSystemProtected indicates a delete was attempted on a system
	// definition. System definitions are seeded, never deleted.
	ErrSystemProtected = errors.New("system attribute cannot be deleted")

	// ErrAttributeInUse indicates a delete was attempted on a definition
	// still referenced by at least one policy.
	ErrAttributeInUse = errors.New("attribute is referenced by policies")

	// ErrVersionConflict indicates the definition changed between read and
	// write. The caller holds a stale version token.
	ErrVersionConflict = errors.New("attribute version conflict")
)

// ValidationError reports a single invalid request field, before any
// value parsing happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ParseError reports the first offending token of a raw values text.
// For scalar comma lists Position is the 1-based ordinal of the bad token
// and Line is zero. For array and object inputs Line is the 1-based input
// line that failed and Position is zero. Parsing is fail-fast, so at most
// one ParseError surfaces per submission.
type ParseError struct {
	Line     int
	Position int
	Token    string
	Reason   string
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("line %d: cannot parse %q: %s", e.Line, e.Token, e.Reason)
	case e.Position > 0:
		return fmt.Sprintf("token %d: cannot parse %q: %s", e.Position, e.Token, e.Reason)
	}
	return fmt.Sprintf("cannot parse %q: %s", e.Token, e.Reason)
}

// ViolationKind names the constraint rule a value set failed.
type ViolationKind string

// ViolationKind constants cover both declared constraints and the edit
// rules enforced while a definition is referenced by policies.
const (
	ViolationLength     ViolationKind = "length"
	ViolationRange      ViolationKind = "range"
	ViolationPattern    ViolationKind = "pattern"
	ViolationMembership ViolationKind = "membership"
	ViolationAppendOnly ViolationKind = "append_only"
	ViolationEditPolicy ViolationKind = "edit_policy"
)

// ConstraintViolation reports the first constraint a value set failed.
// Checks run in declaration order and stop at the first failure.
type ConstraintViolation struct {
	Kind   ViolationKind
	Detail string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("%s constraint violated: %s", e.Kind, e.Detail)
}

// IsEditRuleViolation reports whether the violation stems from edit
// gating rather than a declared constraint. Edit-rule violations map to
// conflict responses, declared-constraint failures to bad requests.
func (e *ConstraintViolation) IsEditRuleViolation() bool {
	return e.Kind == ViolationAppendOnly || e.Kind == ViolationEditPolicy
}

// asConstraintViolation unwraps err to the *ConstraintViolation in its
// chain, if any.
func asConstraintViolation(err error) (*ConstraintViolation, bool) {
	var v *ConstraintViolation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
