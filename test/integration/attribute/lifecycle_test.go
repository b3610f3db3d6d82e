// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

//go:build integration

package attribute_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/attrdesk/attrdesk/internal/attribute"
	"github.com/attrdesk/attrdesk/internal/attribute/attributetest"
)

var _ = Describe("Attribute Lifecycle", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupAttributes(ctx, env.pool)
	})

	Describe("Create", func() {
		It("persists all definition fields", func() {
			before := time.Now().Add(-time.Second)
			spec := newCreateSpec("subject.team", attribute.DataTypeString, "red, blue, gold")
			spec.Description = "Team assignment."
			spec.Tags = []string{"pilot", "hr"}

			def := mustCreate(ctx, spec)

			got, err := env.Svc.Get(ctx, def.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("subject.team"))
			Expect(got.DisplayName).To(Equal("Test subject.team"))
			Expect(got.Description).To(Equal("Team assignment."))
			Expect(got.Categories).To(Equal([]attribute.Category{attribute.CategorySubject}))
			Expect(got.DataType).To(Equal(attribute.DataTypeString))
			Expect(got.Metadata.Tags).To(Equal([]string{"pilot", "hr"}))
			Expect(got.Metadata.CreatedBy).To(Equal("integration"))
			Expect(got.Metadata.IsCustom).To(BeTrue())
			Expect(got.Metadata.IsSystem).To(BeFalse())
			Expect(got.Metadata.Version).To(Equal(1))
			Expect(got.Active).To(BeTrue())
			Expect(got.CreatedAt).To(BeTemporally(">=", before))
		})

		It("round-trips the parsed value set through JSONB", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red, blue, gold"))

			got, err := env.Repo.FindByID(ctx, def.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Constraints.EnumValues).To(HaveLen(3))
			Expect(got.Constraints.EnumValues[0].Equal(attribute.Str("red"))).To(BeTrue())
			Expect(got.Constraints.EnumValues[2].Equal(attribute.Str("gold"))).To(BeTrue())
		})

		It("round-trips structural bounds on numeric definitions", func() {
			minValue, maxValue := 1.0, 5.0
			spec := newCreateSpec("subject.level", attribute.DataTypeNumber, "1, 2, 3, 4, 5")
			spec.Bounds = attribute.Bounds{MinValue: &minValue, MaxValue: &maxValue}

			def := mustCreate(ctx, spec)

			got, err := env.Repo.FindByID(ctx, def.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Constraints.MinValue).To(HaveValue(Equal(1.0)))
			Expect(got.Constraints.MaxValue).To(HaveValue(Equal(5.0)))
			Expect(got.Constraints.EnumValues).To(HaveLen(5))
		})

		It("rejects a duplicate name", func() {
			mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			_, err := env.Svc.Create(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "blue"))
			Expect(err).To(MatchError(attribute.ErrDuplicateName))
		})

		It("enforces name uniqueness regardless of case at the index", func() {
			mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			clash := attributetest.NewDefinition("SUBJECT.TEAM", attribute.DataTypeString, attribute.Str("blue"))
			err := env.Repo.Insert(ctx, clash)
			Expect(err).To(MatchError(attribute.ErrDuplicateName))
		})

		It("rejects names in the reserved namespace", func() {
			_, err := env.Svc.Create(ctx, newCreateSpec("sys.custom", attribute.DataTypeString, "x"))
			Expect(err).To(MatchError(ContainSubstring("reserved pattern")))
		})

		It("rejects unparseable values text before touching the store", func() {
			_, err := env.Svc.Create(ctx, newCreateSpec("subject.level", attribute.DataTypeNumber, "1, two, 3"))
			Expect(err).To(MatchError(ContainSubstring("cannot parse")))

			_, err = env.Svc.GetByName(ctx, "subject.level")
			Expect(err).To(MatchError(attribute.ErrNotFound))
		})
	})

	Describe("Lookup", func() {
		It("returns ErrNotFound for a missing id", func() {
			_, err := env.Svc.Get(ctx, "01JUNKJUNKJUNKJUNKJUNKJUNK")
			Expect(err).To(MatchError(attribute.ErrNotFound))
		})

		It("finds definitions by name case-insensitively", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			got, err := env.Svc.GetByName(ctx, "SUBJECT.TEAM")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(def.ID))
		})
	})

	Describe("Update", func() {
		It("applies a patch and increments the version token", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red, blue"))

			values := "red, blue, gold"
			updated, err := env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{
				Values:         &values,
				LastModifiedBy: "editor",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Metadata.Version).To(Equal(2))
			Expect(updated.Constraints.EnumValues).To(HaveLen(3))

			got, err := env.Repo.FindByID(ctx, def.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Metadata.Version).To(Equal(2))
			Expect(got.Metadata.LastModifiedBy).To(Equal("editor"))
			Expect(got.UpdatedAt).To(BeTemporally(">=", got.CreatedAt))
		})

		It("rejects a stale version token with ErrVersionConflict", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			desc := "first writer wins"
			_, err := env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{Description: &desc})
			Expect(err).NotTo(HaveOccurred())

			stale := "second writer holds version 1"
			_, err = env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{Description: &stale})
			Expect(err).To(MatchError(attribute.ErrVersionConflict))
		})

		It("manages the version token itself when none is pinned", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			desc := "owner edit"
			_, err := env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{Description: &desc})
			Expect(err).NotTo(HaveOccurred())

			// Version is now 2; an unpinned update re-reads and lands on it.
			managed := "managed edit"
			updated, err := env.Svc.Update(ctx, def.ID, 0, attribute.Patch{Description: &managed})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Metadata.Version).To(Equal(3))
			Expect(updated.Description).To(Equal("managed edit"))
		})

		It("requires fresh values text when the data type changes", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			dt := attribute.DataTypeNumber
			_, err := env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{DataType: &dt})
			Expect(err).To(MatchError(ContainSubstring("required when dataType changes")))
		})
	})

	Describe("Edit policy under policy usage", func() {
		It("locks value edits on a referenced scalar definition", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red, blue"))
			referenceByPolicy(ctx, def.ID)

			values := "red, blue, gold"
			_, err := env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{Values: &values})
			Expect(err).To(MatchError(ContainSubstring("edit policy")))
		})

		It("still allows description edits on a locked definition", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red, blue"))
			referenceByPolicy(ctx, def.ID)

			desc := "clarified while referenced"
			updated, err := env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{Description: &desc})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Description).To(Equal("clarified while referenced"))
		})

		It("allows appending members to a referenced collection definition", func() {
			spec := newCreateSpec("resource.regions", attribute.DataTypeArray, `["eu", "us"]`)
			spec.Categories = []attribute.Category{attribute.CategoryResource}
			def := mustCreate(ctx, spec)
			referenceByPolicy(ctx, def.ID)

			values := `["eu", "us", "apac"]`
			updated, err := env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{Values: &values})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Constraints.EnumValues).To(HaveLen(3))
		})

		It("rejects removing members from a referenced collection definition", func() {
			spec := newCreateSpec("resource.regions", attribute.DataTypeArray, `["eu", "us"]`)
			spec.Categories = []attribute.Category{attribute.CategoryResource}
			def := mustCreate(ctx, spec)
			referenceByPolicy(ctx, def.ID)

			values := `["eu", "apac"]`
			_, err := env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{Values: &values})
			Expect(err).To(MatchError(ContainSubstring("removed or altered")))
		})

		It("reports usage and the derived edit policy", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			usage, err := env.Svc.GetUsage(ctx, def.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(usage.InUse).To(BeFalse())
			Expect(usage.Policy).To(Equal(attribute.EditPolicyFull))

			policyID := referenceByPolicy(ctx, def.ID)
			usage, err = env.Svc.GetUsage(ctx, def.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(usage.InUse).To(BeTrue())
			Expect(usage.Policy).To(Equal(attribute.EditPolicyLocked))

			dropPolicyReference(ctx, policyID)
			usage, err = env.Svc.GetUsage(ctx, def.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(usage.Policy).To(Equal(attribute.EditPolicyFull))
		})
	})

	Describe("Deactivation", func() {
		It("hides deactivated definitions from the active filter but keeps them retrievable", func() {
			def := mustCreate(ctx, newCreateSpec("subject.team", attribute.DataTypeString, "red"))

			inactive := false
			_, err := env.Svc.Update(ctx, def.ID, def.Metadata.Version, attribute.Patch{Active: &inactive})
			Expect(err).NotTo(HaveOccurred())

			active := true
			page, err := env.Svc.List(ctx, attribute.ListOptions{Active: &active})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(BeEmpty())

			got, err := env.Svc.Get(ctx, def.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Active).To(BeFalse())
		})
	})
})
