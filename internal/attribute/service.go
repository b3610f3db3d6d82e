// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Retry tuning for server-managed updates replayed after a version
// conflict.
const (
	updateRetryBase  = 250 * time.Millisecond
	updateMaxRetries = 3
)

// defaultBulkWorkers bounds the classification fan-out of a bulk delete.
const defaultBulkWorkers = 4

// ServiceConfig holds dependencies for the attribute Service.
type ServiceConfig struct {
	Repo   Repository
	Oracle UsageOracle

	// Validator supplies reserved-name checking. Nil means syntax-only
	// name validation.
	Validator *Validator

	// BulkWorkers bounds concurrent per-item classification during bulk
	// deletes. Zero or negative selects the default.
	BulkWorkers int
}

// Service implements the attribute definition lifecycle over a
// repository and the policy-usage oracle. All guarded mutations combine
// an oracle check with the repository's own write-time guards, so the
// answer of a stale oracle read can never complete a forbidden write.
type Service struct {
	repo        Repository
	oracle      UsageOracle
	validator   *Validator
	bulkWorkers int
}

// NewService creates a Service with the given configuration.
func NewService(cfg ServiceConfig) *Service {
	v := cfg.Validator
	if v == nil {
		v = &Validator{}
	}
	workers := cfg.BulkWorkers
	if workers < 1 {
		workers = defaultBulkWorkers
	}
	return &Service{
		repo:        cfg.Repo,
		oracle:      cfg.Oracle,
		validator:   v,
		bulkWorkers: workers,
	}
}

// CreateSpec carries the caller-supplied fields for a new definition.
// Values is raw permitted-values text in the syntax of the declared data
// type.
type CreateSpec struct {
	Name        string
	DisplayName string
	Description string
	Categories  []Category
	DataType    DataType
	Values      string
	Bounds      Bounds
	Tags        []string
	CreatedBy   string
}

// Create validates, parses, and persists a new custom definition.
// Returns a *ValidationError for malformed fields, a *ParseError for bad
// values text, a *ConstraintViolation when the parsed set fails the
// declared bounds, or ErrDuplicateName wrapped when the name is taken.
func (s *Service) Create(ctx context.Context, spec CreateSpec) (def *Definition, err error) {
	start := time.Now()
	defer func() { recordMutation("create", start, err) }()

	if err = s.validator.ValidateName(spec.Name); err != nil {
		return nil, err
	}
	if err = ValidateDisplayName(spec.DisplayName); err != nil {
		return nil, err
	}
	if err = ValidateDescription(spec.Description); err != nil {
		return nil, err
	}
	if err = ValidateCategories(spec.Categories); err != nil {
		return nil, err
	}
	if err = ValidateTags(spec.Tags); err != nil {
		return nil, err
	}

	parsed, err := ParseValues(spec.DataType, spec.Values)
	recordParse(spec.DataType, err)
	if err != nil {
		return nil, oops.Code("VALUE_PARSE_FAILED").
			With("name", spec.Name).
			With("data_type", spec.DataType.String()).
			Wrap(err)
	}
	if len(parsed) > MaxValueCount {
		return nil, &ValidationError{
			Field:   "values",
			Message: "must have at most 1000 values",
		}
	}
	if err = spec.Bounds.Constraints(nil).Validate(parsed); err != nil {
		recordViolation(err)
		return nil, oops.Code("CONSTRAINT_VIOLATION").
			With("name", spec.Name).
			Wrap(err)
	}

	now := time.Now().UTC()
	def = &Definition{
		ID:          ulid.Make().String(),
		Name:        spec.Name,
		DisplayName: spec.DisplayName,
		Description: spec.Description,
		Categories:  append([]Category(nil), spec.Categories...),
		DataType:    spec.DataType,
		Constraints: spec.Bounds.Constraints(parsed),
		Metadata: Metadata{
			CreatedBy:      spec.CreatedBy,
			LastModifiedBy: spec.CreatedBy,
			Tags:           append([]string(nil), spec.Tags...),
			IsSystem:       false,
			IsCustom:       true,
			Version:        1,
		},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.repo.Insert(ctx, def); err != nil {
		return nil, oops.Wrapf(err, "create attribute %s", spec.Name)
	}

	slog.InfoContext(ctx, "attribute definition created",
		"attribute_id", def.ID,
		"name", def.Name,
		"data_type", def.DataType.String(),
		"values", len(def.Constraints.EnumValues))
	return def, nil
}

// Get loads one definition by id.
func (s *Service) Get(ctx context.Context, id string) (*Definition, error) {
	def, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, oops.Wrapf(err, "get attribute %s", id)
	}
	return def, nil
}

// GetByName loads one definition by its unique name.
func (s *Service) GetByName(ctx context.Context, name string) (*Definition, error) {
	def, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, oops.Wrapf(err, "get attribute by name %s", name)
	}
	return def, nil
}

// List returns a filtered, sorted page of definitions.
func (s *Service) List(ctx context.Context, opts ListOptions) (*Page, error) {
	page, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, oops.Wrapf(err, "list attributes")
	}
	return page, nil
}

// GetUsage reports whether policies reference the definition and the
// edit policy that follows from it.
func (s *Service) GetUsage(ctx context.Context, id string) (*Usage, error) {
	def, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, oops.Wrapf(err, "get attribute %s", id)
	}
	inUse, err := s.oracle.IsInUse(ctx, def.ID)
	if err != nil {
		return nil, oops.Code("USAGE_CHECK_FAILED").
			With("attribute_id", def.ID).
			Wrap(err)
	}
	policy := DeriveEditPolicy(def.DataType, inUse)
	recordEditPolicy(policy)
	return &Usage{AttributeID: def.ID, InUse: inUse, Policy: policy}, nil
}

// Update applies a patch to a definition under the edit policy its
// current usage state dictates.
//
// expectedVersion > 0 pins the write to that version token: any
// concurrent change fails with ErrVersionConflict wrapped, and the
// caller must re-read. expectedVersion == 0 lets the service manage the
// token itself: each attempt re-reads the definition, re-derives the
// edit policy, and replays the patch, retrying a bounded number of
// times when a concurrent writer wins the race. Either way the
// repository write is compare-and-swap on the version column, so the
// usage check and the write cannot interleave with a policy change
// unnoticed.
func (s *Service) Update(ctx context.Context, id string, expectedVersion int, patch Patch) (def *Definition, err error) {
	start := time.Now()
	defer func() { recordMutation("update", start, err) }()

	backoff := retry.WithMaxRetries(updateMaxRetries, retry.NewFibonacci(updateRetryBase))
	var updated *Definition
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt, attemptErr := s.updateOnce(ctx, id, expectedVersion, patch)
		if attemptErr != nil {
			if expectedVersion == 0 && errors.Is(attemptErr, ErrVersionConflict) {
				recordUpdateRetry()
				return retry.RetryableError(attemptErr)
			}
			return attemptErr
		}
		updated = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "attribute definition updated",
		"attribute_id", updated.ID,
		"name", updated.Name,
		"version", updated.Metadata.Version)
	return updated, nil
}

func (s *Service) updateOnce(ctx context.Context, id string, expectedVersion int, patch Patch) (*Definition, error) {
	def, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, oops.Wrapf(err, "update attribute %s", id)
	}
	inUse, err := s.oracle.IsInUse(ctx, def.ID)
	if err != nil {
		return nil, oops.Code("USAGE_CHECK_FAILED").
			With("attribute_id", def.ID).
			Wrap(err)
	}
	policy := DeriveEditPolicy(def.DataType, inUse)
	recordEditPolicy(policy)

	session := NewEditSession(def, policy)
	if err := session.Stage(patch); err != nil {
		recordViolation(err)
		return nil, oops.Code("CONSTRAINT_VIOLATION").
			With("attribute_id", def.ID).
			With("edit_policy", policy.String()).
			Wrap(err)
	}
	next, err := session.Apply()
	if err != nil {
		return nil, s.wrapApplyError(def, policy, patch, err)
	}

	expected := expectedVersion
	if expected == 0 {
		expected = def.Metadata.Version
	}
	if err := s.repo.Update(ctx, next, expected); err != nil {
		return nil, oops.Wrapf(err, "update attribute %s", id)
	}
	return next, nil
}

// wrapApplyError classifies a failed session apply with the matching
// error code and records parse and violation metrics.
func (s *Service) wrapApplyError(def *Definition, policy EditPolicy, patch Patch, err error) error {
	base := oops.With("attribute_id", def.ID).With("edit_policy", policy.String())

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		dt := def.DataType
		if patch.DataType != nil {
			dt = *patch.DataType
		}
		recordParse(dt, err)
		return base.Code("VALUE_PARSE_FAILED").Wrap(err)
	}
	if _, ok := asConstraintViolation(err); ok {
		recordViolation(err)
		return base.Code("CONSTRAINT_VIOLATION").Wrap(err)
	}
	return err
}

// Delete removes one definition. System definitions and definitions
// still referenced by policies are never deleted; the repository
// re-enforces both rules inside the delete statement, so the pre-checks
// here only decide which error the caller sees first.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { recordMutation("delete", start, err) }()

	def, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return oops.Wrapf(err, "delete attribute %s", id)
	}
	if def.Metadata.IsSystem {
		return oops.Code("ATTRIBUTE_SYSTEM_PROTECTED").
			With("attribute_id", def.ID).
			With("name", def.Name).
			Wrap(ErrSystemProtected)
	}
	inUse, err := s.oracle.IsInUse(ctx, def.ID)
	if err != nil {
		return oops.Code("USAGE_CHECK_FAILED").
			With("attribute_id", def.ID).
			Wrap(err)
	}
	if inUse {
		return oops.Code("ATTRIBUTE_IN_USE").
			With("attribute_id", def.ID).
			With("name", def.Name).
			Wrap(ErrAttributeInUse)
	}

	if err = s.repo.Delete(ctx, id); err != nil {
		return oops.Wrapf(err, "delete attribute %s", id)
	}
	slog.InfoContext(ctx, "attribute definition deleted",
		"attribute_id", def.ID,
		"name", def.Name)
	return nil
}
