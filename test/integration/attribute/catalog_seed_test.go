// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

//go:build integration

package attribute_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/attrdesk/attrdesk/internal/attribute"
	"github.com/attrdesk/attrdesk/internal/catalog"
)

var _ = Describe("Catalog Seeding", func() {
	var (
		ctx context.Context
		cat *catalog.Catalog
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupAttributes(ctx, env.pool)

		var err error
		cat, err = catalog.Default()
		Expect(err).NotTo(HaveOccurred())
	})

	It("seeds the embedded catalog into an empty store", func() {
		res, err := catalog.Seed(ctx, env.Repo, cat, catalog.SeedOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Created).To(HaveLen(len(cat.Attributes)))
		Expect(res.Created[0]).To(Equal("subject.role"))
		Expect(res.Skipped).To(BeEmpty())

		count, err := env.Repo.Count(ctx, attribute.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(len(cat.Attributes)))
	})

	It("marks seeded definitions as system-owned", func() {
		_, err := catalog.Seed(ctx, env.Repo, cat, catalog.SeedOptions{})
		Expect(err).NotTo(HaveOccurred())

		isSystem := true
		count, err := env.Repo.Count(ctx, attribute.ListOptions{IsSystem: &isSystem})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(len(cat.Attributes)))

		def, err := env.Svc.GetByName(ctx, "subject.role")
		Expect(err).NotTo(HaveOccurred())
		Expect(def.Metadata.IsSystem).To(BeTrue())
		Expect(def.Metadata.IsCustom).To(BeFalse())
		Expect(def.Metadata.CreatedBy).To(Equal("system"))
	})

	It("is idempotent across repeated runs", func() {
		_, err := catalog.Seed(ctx, env.Repo, cat, catalog.SeedOptions{})
		Expect(err).NotTo(HaveOccurred())

		res, err := catalog.Seed(ctx, env.Repo, cat, catalog.SeedOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Created).To(BeEmpty())
		Expect(res.Skipped).To(HaveLen(len(cat.Attributes)))
	})

	It("writes nothing on a dry run", func() {
		res, err := catalog.Seed(ctx, env.Repo, cat, catalog.SeedOptions{DryRun: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Created).To(HaveLen(len(cat.Attributes)))

		count, err := env.Repo.Count(ctx, attribute.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeZero())
	})

	It("skips names that already exist and seeds the rest", func() {
		// An operator-created definition owns a catalog name already.
		spec := newCreateSpec("subject.role", attribute.DataTypeString, "custom_admin")
		mustCreate(ctx, spec)

		res, err := catalog.Seed(ctx, env.Repo, cat, catalog.SeedOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Skipped).To(Equal([]string{"subject.role"}))
		Expect(res.Created).To(HaveLen(len(cat.Attributes) - 1))

		// The existing definition survives untouched.
		def, err := env.Svc.GetByName(ctx, "subject.role")
		Expect(err).NotTo(HaveOccurred())
		Expect(def.Metadata.IsCustom).To(BeTrue())
		Expect(def.Constraints.EnumValues[0].Equal(attribute.Str("custom_admin"))).To(BeTrue())
	})

	It("records the requested actor on new definitions", func() {
		_, err := catalog.Seed(ctx, env.Repo, cat, catalog.SeedOptions{CreatedBy: "ops@example.com"})
		Expect(err).NotTo(HaveOccurred())

		def, err := env.Svc.GetByName(ctx, "subject.role")
		Expect(err).NotTo(HaveOccurred())
		Expect(def.Metadata.CreatedBy).To(Equal("ops@example.com"))
	})

	It("protects seeded definitions from deletion", func() {
		_, err := catalog.Seed(ctx, env.Repo, cat, catalog.SeedOptions{})
		Expect(err).NotTo(HaveOccurred())

		def, err := env.Svc.GetByName(ctx, "subject.role")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Svc.Delete(ctx, def.ID)).To(MatchError(attribute.ErrSystemProtected))
	})
})
