// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"context"
	"fmt"
)

// UsageOracle answers whether a definition is currently referenced by the
// policy subsystem. The answer is a point-in-time read with no caching
// guarantee: callers must re-check before every mutating decision, and
// guarded writes additionally rely on the version token to close the
// window between check and write.
type UsageOracle interface {
	IsInUse(ctx context.Context, attributeID string) (bool, error)
}

// EditPolicy is the edit latitude granted for a definition, derived from
// its data type and whether policies reference it.
type EditPolicy int

// EditPolicy constants, from most to least permissive.
const (
	// EditPolicyFull permits every field edit, including destructive
	// value changes and deletion of the definition.
	EditPolicyFull EditPolicy = iota // full

	// EditPolicyAppendOnly permits adding members to the value set and
	// editing the description. Existing members must survive unchanged.
	EditPolicyAppendOnly // append_only

	// EditPolicyLocked permits editing the description only.
	EditPolicyLocked // locked
)

var editPolicyStrings = [...]string{
	"full",
	"append_only",
	"locked",
}

func (p EditPolicy) String() string {
	if p >= 0 && int(p) < len(editPolicyStrings) {
		return editPolicyStrings[p]
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// DeriveEditPolicy maps a definition's data type and usage state to the
// edit latitude it gets. The function is pure: same inputs, same answer,
// no reads or writes.
//
// Unused definitions are fully editable. Referenced collection types stay
// append-editable because adding a permitted member cannot invalidate an
// existing policy comparison. Referenced scalar types lock, since any
// change to their value set could.
func DeriveEditPolicy(dt DataType, inUse bool) EditPolicy {
	switch {
	case !inUse:
		return EditPolicyFull
	case dt.IsCollection():
		return EditPolicyAppendOnly
	default:
		return EditPolicyLocked
	}
}

// Usage is the usage report for one definition: whether policies
// reference it and the edit policy that follows.
type Usage struct {
	AttributeID string
	InUse       bool
	Policy      EditPolicy
}
