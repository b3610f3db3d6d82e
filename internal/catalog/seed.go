// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/attrdesk/attrdesk/internal/attribute"
)

// defaultSeedActor is recorded as creator when no actor is given.
const defaultSeedActor = "system"

// SeedOptions adjust a seeding pass.
type SeedOptions struct {
	// DryRun reports what would change without writing anything.
	DryRun bool
	// CreatedBy is recorded as the creator of new definitions. Empty
	// selects "system".
	CreatedBy string
}

// SeedResult reports what a seeding pass did, in catalog order.
type SeedResult struct {
	Created []string
	Skipped []string
}

// Seed loads catalog entries into the repository. Entries whose name
// already exists are skipped, so running it repeatedly is safe; the
// catalog never updates or reactivates definitions it finds in place.
func Seed(ctx context.Context, repo attribute.Repository, cat *Catalog, opts SeedOptions) (*SeedResult, error) {
	actor := opts.CreatedBy
	if actor == "" {
		actor = defaultSeedActor
	}

	res := &SeedResult{}
	for _, e := range cat.Attributes {
		switch _, err := repo.FindByName(ctx, e.Name); {
		case err == nil:
			res.Skipped = append(res.Skipped, e.Name)
			continue
		case !errors.Is(err, attribute.ErrNotFound):
			return nil, oops.Code("SEED_FAILED").
				With("name", e.Name).
				Wrapf(err, "check existing attribute")
		}

		def, err := e.Definition(actor, time.Now().UTC())
		if err != nil {
			return nil, oops.Code("SEED_FAILED").
				With("name", e.Name).
				Wrap(err)
		}
		if opts.DryRun {
			res.Created = append(res.Created, e.Name)
			continue
		}

		if err := repo.Insert(ctx, def); err != nil {
			// A concurrent seeder can win the insert between the
			// existence check and here; the unique index is the
			// authority.
			if errors.Is(err, attribute.ErrDuplicateName) {
				res.Skipped = append(res.Skipped, e.Name)
				continue
			}
			return nil, oops.Code("SEED_FAILED").
				With("name", e.Name).
				Wrapf(err, "insert attribute")
		}
		res.Created = append(res.Created, e.Name)

		slog.InfoContext(ctx, "seeded system attribute",
			"attribute_id", def.ID,
			"name", def.Name,
			"data_type", def.DataType.String())
	}

	slog.InfoContext(ctx, "catalog seeding complete",
		"created", len(res.Created),
		"skipped", len(res.Skipped),
		"dry_run", opts.DryRun)
	return res, nil
}
