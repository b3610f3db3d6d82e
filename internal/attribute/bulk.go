// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
)

// ItemError pairs a failed bulk-delete id with its reason.
type ItemError struct {
	ID     string
	Reason string
}

// Summary classifies every id of a bulk delete. Slices keep the caller's
// submission order. An id appears in exactly one bucket.
type Summary struct {
	Deleted        []string
	FailedSystem   []string
	FailedInUse    []string
	FailedNotFound []string
	FailedOther    []ItemError
}

// BulkOutcome is the single dominant classification of a bulk delete,
// used for the caller-facing message.
type BulkOutcome string

// BulkOutcome constants, in dominance order.
const (
	BulkOutcomeForbidden BulkOutcome = "forbidden"
	BulkOutcomeConflict  BulkOutcome = "conflict"
	BulkOutcomeNotFound  BulkOutcome = "not_found"
	BulkOutcomeOther     BulkOutcome = "error"
	BulkOutcomeDeleted   BulkOutcome = "deleted"
)

// Dominant picks the classification that headlines a mixed result.
// Precedence is fixed: forbidden beats conflict beats not-found beats
// other failures; a run with no failures is deleted. Ties in count do
// not matter, only presence.
func (s *Summary) Dominant() BulkOutcome {
	switch {
	case len(s.FailedSystem) > 0:
		return BulkOutcomeForbidden
	case len(s.FailedInUse) > 0:
		return BulkOutcomeConflict
	case len(s.FailedNotFound) > 0:
		return BulkOutcomeNotFound
	case len(s.FailedOther) > 0:
		return BulkOutcomeOther
	}
	return BulkOutcomeDeleted
}

// FailureCount returns the number of ids that were not deleted.
func (s *Summary) FailureCount() int {
	return len(s.FailedSystem) + len(s.FailedInUse) + len(s.FailedNotFound) + len(s.FailedOther)
}

type bulkClass int

const (
	bulkEligible bulkClass = iota
	bulkSystem
	bulkInUse
	bulkNotFound
	bulkOther
)

type bulkResult struct {
	class  bulkClass
	reason string
}

// BulkDelete attempts to delete every id and classifies each outcome
// independently: one id failing never aborts the rest. Duplicate ids
// collapse to their first occurrence. Classification fans out over a
// bounded worker pool; the deletes themselves run as one guarded
// multi-row statement. Only an infrastructure failure, including context
// cancellation, returns a non-nil error.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (summary *Summary, err error) {
	start := time.Now()
	defer func() { recordMutation("bulk_delete", start, err) }()

	ids = dedupeIDs(ids)
	results := make([]bulkResult, len(ids))

	sem := make(chan struct{}, s.bulkWorkers)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.classifyForDelete(ctx, id)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, oops.Code("BULK_DELETE_ABORTED").Wrap(ctx.Err())
	}

	var eligible []string
	for i, r := range results {
		if r.class == bulkEligible {
			eligible = append(eligible, ids[i])
		}
	}

	deleted := map[string]bool{}
	if len(eligible) > 0 {
		removed, err := s.repo.DeleteMany(ctx, eligible)
		if err != nil {
			return nil, oops.Wrapf(err, "bulk delete %d attributes", len(eligible))
		}
		for _, id := range removed {
			deleted[id] = true
		}
	}

	// Ids that classified as eligible but were skipped by the guarded
	// delete changed state between the check and the write. Re-read them
	// for their final classification.
	for i, r := range results {
		if r.class != bulkEligible || deleted[ids[i]] {
			continue
		}
		results[i] = s.classifyForDelete(ctx, ids[i])
		if results[i].class == bulkEligible {
			results[i] = bulkResult{class: bulkOther, reason: "skipped by a concurrent change"}
		}
	}

	summary = &Summary{}
	for i, id := range ids {
		switch {
		case deleted[id]:
			summary.Deleted = append(summary.Deleted, id)
			recordBulkItem("deleted")
		case results[i].class == bulkSystem:
			summary.FailedSystem = append(summary.FailedSystem, id)
			recordBulkItem("system")
		case results[i].class == bulkInUse:
			summary.FailedInUse = append(summary.FailedInUse, id)
			recordBulkItem("in_use")
		case results[i].class == bulkNotFound:
			summary.FailedNotFound = append(summary.FailedNotFound, id)
			recordBulkItem("not_found")
		default:
			summary.FailedOther = append(summary.FailedOther, ItemError{ID: id, Reason: results[i].reason})
			recordBulkItem("other")
		}
	}

	slog.InfoContext(ctx, "bulk delete finished",
		"requested", len(ids),
		"deleted", len(summary.Deleted),
		"failed_system", len(summary.FailedSystem),
		"failed_in_use", len(summary.FailedInUse),
		"failed_not_found", len(summary.FailedNotFound),
		"failed_other", len(summary.FailedOther),
		"dominant", string(summary.Dominant()))
	return summary, nil
}

// classifyForDelete decides what a single delete attempt would do right
// now: eligible, blocked, or missing. Oracle and store failures classify
// as other so the remaining items keep going.
func (s *Service) classifyForDelete(ctx context.Context, id string) bulkResult {
	def, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return bulkResult{class: bulkNotFound}
	case err != nil:
		return bulkResult{class: bulkOther, reason: err.Error()}
	}
	if def.Metadata.IsSystem {
		return bulkResult{class: bulkSystem}
	}
	inUse, err := s.oracle.IsInUse(ctx, def.ID)
	if err != nil {
		return bulkResult{class: bulkOther, reason: err.Error()}
	}
	if inUse {
		return bulkResult{class: bulkInUse}
	}
	return bulkResult{class: bulkEligible}
}

func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
