// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

//go:build integration

package attribute_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/attrdesk/attrdesk/internal/attribute"
	"github.com/attrdesk/attrdesk/internal/attribute/attributetest"
)

var _ = Describe("Delete Protection", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupAttributes(ctx, env.pool)
	})

	Describe("Single delete", func() {
		It("removes an unused custom definition", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			Expect(env.Svc.Delete(ctx, def.ID)).To(Succeed())

			_, err := env.Svc.Get(ctx, def.ID)
			Expect(err).To(MatchError(attribute.ErrNotFound))
		})

		It("refuses to delete a system definition", func() {
			sys := attributetest.NewSystemDefinition("sys.tenant", attribute.DataTypeString, attribute.Str("acme"))
			Expect(env.Repo.Insert(ctx, sys)).To(Succeed())

			err := env.Svc.Delete(ctx, sys.ID)
			Expect(err).To(MatchError(attribute.ErrSystemProtected))

			_, err = env.Svc.Get(ctx, sys.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("refuses to delete a definition referenced by a policy", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))
			referenceByPolicy(ctx, def.ID)

			err := env.Svc.Delete(ctx, def.ID)
			Expect(err).To(MatchError(attribute.ErrAttributeInUse))
		})

		It("allows the delete again once the last reference is gone", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))
			policyID := referenceByPolicy(ctx, def.ID)

			Expect(env.Svc.Delete(ctx, def.ID)).To(MatchError(attribute.ErrAttributeInUse))

			dropPolicyReference(ctx, policyID)
			Expect(env.Svc.Delete(ctx, def.ID)).To(Succeed())
		})

		It("returns ErrNotFound for a vanished id", func() {
			err := env.Svc.Delete(ctx, "01JUNKJUNKJUNKJUNKJUNKJUNK")
			Expect(err).To(MatchError(attribute.ErrNotFound))
		})

		It("re-enforces the usage guard inside the repository delete", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))
			referenceByPolicy(ctx, def.ID)

			// Straight to the repository, skipping the service's oracle
			// pre-check. The guarded statement must still refuse.
			err := env.Repo.Delete(ctx, def.ID)
			Expect(err).To(MatchError(attribute.ErrAttributeInUse))
		})

		It("re-enforces system protection inside the repository delete", func() {
			sys := attributetest.NewSystemDefinition("sys.tenant", attribute.DataTypeString, attribute.Str("acme"))
			Expect(env.Repo.Insert(ctx, sys)).To(Succeed())

			err := env.Repo.Delete(ctx, sys.ID)
			Expect(err).To(MatchError(attribute.ErrSystemProtected))
		})

		It("restricts raw deletes of referenced rows at the schema level", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))
			referenceByPolicy(ctx, def.ID)

			_, err := env.pool.Exec(ctx, `DELETE FROM attribute_definitions WHERE id = $1`, def.ID)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("policy_attribute_refs"))
		})
	})

	Describe("Bulk delete", func() {
		It("classifies each id independently", func() {
			deletable := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))
			referenced := mustCreate(ctx, newCreateSpec("subject.region", attribute.DataTypeString, "eu"))
			referenceByPolicy(ctx, referenced.ID)
			sys := attributetest.NewSystemDefinition("sys.tenant", attribute.DataTypeString, attribute.Str("acme"))
			Expect(env.Repo.Insert(ctx, sys)).To(Succeed())

			summary, err := env.Svc.BulkDelete(ctx, []string{
				deletable.ID, referenced.ID, sys.ID, "01MISSINGMISSINGMISSING00",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Deleted).To(Equal([]string{deletable.ID}))
			Expect(summary.FailedInUse).To(Equal([]string{referenced.ID}))
			Expect(summary.FailedSystem).To(Equal([]string{sys.ID}))
			Expect(summary.FailedNotFound).To(Equal([]string{"01MISSINGMISSINGMISSING00"}))
			Expect(summary.FailedOther).To(BeEmpty())
			Expect(summary.Dominant()).To(Equal(attribute.BulkOutcomeForbidden))
		})

		It("removes every eligible id in one pass", func() {
			a := mustCreate(ctx, newCreateSpec("subject.a", attribute.DataTypeString, "x"))
			b := mustCreate(ctx, newCreateSpec("subject.b", attribute.DataTypeString, "y"))
			c := mustCreate(ctx, newCreateSpec("subject.c", attribute.DataTypeString, "z"))

			summary, err := env.Svc.BulkDelete(ctx, []string{a.ID, b.ID, c.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Deleted).To(ConsistOf(a.ID, b.ID, c.ID))
			Expect(summary.FailureCount()).To(BeZero())
			Expect(summary.Dominant()).To(Equal(attribute.BulkOutcomeDeleted))

			count, err := env.Repo.Count(ctx, attribute.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("collapses duplicate ids to one outcome", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			summary, err := env.Svc.BulkDelete(ctx, []string{def.ID, def.ID, def.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Deleted).To(Equal([]string{def.ID}))
		})

		It("leaves ineligible rows untouched while deleting the rest", func() {
			keep := mustCreate(ctx, newCreateSpec("subject.keep", attribute.DataTypeString, "k"))
			referenceByPolicy(ctx, keep.ID)
			drop := mustCreate(ctx, newCreateSpec("subject.drop", attribute.DataTypeString, "d"))

			summary, err := env.Svc.BulkDelete(ctx, []string{keep.ID, drop.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Deleted).To(Equal([]string{drop.ID}))
			Expect(summary.Dominant()).To(Equal(attribute.BulkOutcomeConflict))

			_, err = env.Svc.Get(ctx, keep.ID)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
