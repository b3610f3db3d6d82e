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

var _ = Describe("Listing and Filtering", func() {
	var ctx context.Context

	// Fixture set, in creation order: sys.origin first, then four
	// active customs, then subject.retired which is deactivated last.
	// Sorted by name: resource.label, resource.regions, subject.level,
	// subject.retired, subject.team, sys.origin.
	BeforeEach(func() {
		ctx = context.Background()
		cleanupAttributes(ctx, env.pool)

		sys := attributetest.NewSystemDefinition("sys.origin", attribute.DataTypeString, attribute.Str("catalog"))
		Expect(env.Repo.Insert(ctx, sys)).To(Succeed())

		team := newCreateSpec("subject.team", attribute.DataTypeString, "red, blue")
		team.Tags = []string{"pilot"}
		mustCreate(ctx, team)

		mustCreate(ctx, newCreateSpec("subject.level", attribute.DataTypeNumber, "1, 2, 3"))

		label := newCreateSpec("resource.label", attribute.DataTypeString, "public, internal")
		label.Categories = []attribute.Category{attribute.CategoryResource}
		label.Tags = []string{"pilot", "infra"}
		mustCreate(ctx, label)

		regions := newCreateSpec("resource.regions", attribute.DataTypeArray, `["eu", "us"]`)
		regions.Categories = []attribute.Category{attribute.CategoryResource}
		mustCreate(ctx, regions)

		retired := mustCreate(ctx, newCreateSpec("subject.retired", attribute.DataTypeString, "old"))
		inactive := false
		_, err := env.Svc.Update(ctx, retired.ID, retired.Metadata.Version, attribute.Patch{Active: &inactive})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Filters", func() {
		It("filters by data type", func() {
			dt := attribute.DataTypeNumber
			page, err := env.Svc.List(ctx, attribute.ListOptions{DataType: &dt})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)).To(Equal([]string{"subject.level"}))
		})

		It("filters by category", func() {
			cat := attribute.CategoryResource
			page, err := env.Svc.List(ctx, attribute.ListOptions{Category: &cat})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)).To(Equal([]string{"resource.label", "resource.regions"}))
		})

		It("filters by active state", func() {
			active := false
			page, err := env.Svc.List(ctx, attribute.ListOptions{Active: &active})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)).To(Equal([]string{"subject.retired"}))
		})

		It("filters by system flag", func() {
			isSystem := true
			page, err := env.Svc.List(ctx, attribute.ListOptions{IsSystem: &isSystem})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)).To(Equal([]string{"sys.origin"}))
		})

		It("filters by tag membership", func() {
			page, err := env.Svc.List(ctx, attribute.ListOptions{Tag: "pilot"})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)).To(Equal([]string{"resource.label", "subject.team"}))
		})

		It("filters by name substring", func() {
			page, err := env.Svc.List(ctx, attribute.ListOptions{NameContains: "level"})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)).To(Equal([]string{"subject.level"}))
		})

		It("combines filter dimensions", func() {
			cat := attribute.CategorySubject
			active := true
			page, err := env.Svc.List(ctx, attribute.ListOptions{Category: &cat, Active: &active})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)).To(Equal([]string{"subject.level", "subject.team"}))
		})
	})

	Describe("Pagination", func() {
		It("pages through the full set with totals", func() {
			page, err := env.Svc.List(ctx, attribute.ListOptions{Page: 1, PerPage: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.TotalItems).To(Equal(6))
			Expect(page.TotalPages).To(Equal(3))
			Expect(namesOf(page)).To(Equal([]string{"resource.label", "resource.regions"}))

			page, err = env.Svc.List(ctx, attribute.ListOptions{Page: 3, PerPage: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)).To(Equal([]string{"subject.team", "sys.origin"}))
		})

		It("returns an empty page past the end, totals intact", func() {
			page, err := env.Svc.List(ctx, attribute.ListOptions{Page: 9, PerPage: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(BeEmpty())
			Expect(page.TotalItems).To(Equal(6))
		})

		It("clamps unset paging to the defaults", func() {
			page, err := env.Svc.List(ctx, attribute.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Page).To(Equal(1))
			Expect(page.PerPage).To(Equal(attribute.DefaultPerPage))
			Expect(page.Items).To(HaveLen(6))
		})
	})

	Describe("Sorting", func() {
		It("orders by name ascending by default", func() {
			page, err := env.Svc.List(ctx, attribute.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)).To(Equal([]string{
				"resource.label", "resource.regions", "subject.level",
				"subject.retired", "subject.team", "sys.origin",
			}))
		})

		It("orders by name descending on request", func() {
			page, err := env.Svc.List(ctx, attribute.ListOptions{SortBy: attribute.SortByName, SortDesc: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)[0]).To(Equal("sys.origin"))
		})

		It("orders by creation time", func() {
			page, err := env.Svc.List(ctx, attribute.ListOptions{SortBy: attribute.SortByCreatedAt})
			Expect(err).NotTo(HaveOccurred())
			Expect(namesOf(page)[0]).To(Equal("sys.origin"))
		})

		It("orders by update time, most recent last", func() {
			// subject.retired got the only post-create write.
			page, err := env.Svc.List(ctx, attribute.ListOptions{SortBy: attribute.SortByUpdatedAt})
			Expect(err).NotTo(HaveOccurred())
			names := namesOf(page)
			Expect(names[len(names)-1]).To(Equal("subject.retired"))
		})
	})

	Describe("Count", func() {
		It("counts matches ignoring paging fields", func() {
			count, err := env.Repo.Count(ctx, attribute.ListOptions{Page: 1, PerPage: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(6))
		})

		It("honors filter dimensions", func() {
			isSystem := false
			count, err := env.Repo.Count(ctx, attribute.ListOptions{IsSystem: &isSystem})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(5))
		})
	})
})

func namesOf(page *attribute.Page) []string {
	names := make([]string, len(page.Items))
	for i, def := range page.Items {
		names[i] = def.Name
	}
	return names
}
