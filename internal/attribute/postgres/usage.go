// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/attrdesk/attrdesk/internal/attribute"
)

// PolicyRefOracle answers usage checks against the policy_attribute_refs
// table the policy subsystem writes. It is a point-in-time existence
// probe; callers re-check before every mutating decision.
type PolicyRefOracle struct {
	pool poolIface
}

// NewPolicyRefOracle creates a PolicyRefOracle backed by the given pool.
func NewPolicyRefOracle(pool poolIface) *PolicyRefOracle {
	return &PolicyRefOracle{pool: pool}
}

// IsInUse reports whether any policy currently references the attribute.
func (o *PolicyRefOracle) IsInUse(ctx context.Context, attributeID string) (bool, error) {
	var inUse bool
	err := o.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM policy_attribute_refs WHERE attribute_id = $1)`,
		attributeID).Scan(&inUse)
	if err != nil {
		return false, oops.Code("ATTRIBUTE_USAGE_QUERY_FAILED").With("attribute_id", attributeID).Wrap(err)
	}
	return inUse, nil
}

// Compile-time interface check.
var _ attribute.UsageOracle = (*PolicyRefOracle)(nil)
