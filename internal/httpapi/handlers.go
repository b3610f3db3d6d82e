// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/attrdesk/attrdesk/internal/attribute"
)

// maxBodyBytes caps request bodies. The largest legitimate payload is a
// create with a full thousand-member value set, which fits comfortably.
const maxBodyBytes = 1 << 20

// API binds the attribute service to the route table.
type API struct {
	svc *attribute.Service
	log *slog.Logger
}

// NewAPI creates the transport binding. A nil logger uses the default.
func NewAPI(svc *attribute.Service, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{svc: svc, log: log}
}

// Routes assembles the route table and middleware chain. Request ids are
// assigned outermost so every log line and panic report carries one.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/attributes", a.handleCreate)
	mux.HandleFunc("GET /v1/attributes", a.handleList)
	mux.HandleFunc("GET /v1/attributes/{id}", a.handleGet)
	mux.HandleFunc("PUT /v1/attributes/{id}", a.handleUpdate)
	mux.HandleFunc("DELETE /v1/attributes/{id}", a.handleDelete)
	mux.HandleFunc("POST /v1/attributes/bulk-delete", a.handleBulkDelete)
	mux.HandleFunc("GET /v1/attributes/{id}/usage", a.handleGetUsage)

	var handler http.Handler = a.recoverPanics(mux)
	handler = a.observeRequests(mux, handler)
	return withRequestID(handler)
}

// constraintsDTO is the wire form of a definition's constraints. The
// enumeration renders as a natural JSON array of the permitted values.
type constraintsDTO struct {
	EnumValues json.RawMessage `json:"enumValues,omitempty"`
	MinLength  *int            `json:"minLength,omitempty"`
	MaxLength  *int            `json:"maxLength,omitempty"`
	MinValue   *float64        `json:"minValue,omitempty"`
	MaxValue   *float64        `json:"maxValue,omitempty"`
	Pattern    string          `json:"pattern,omitempty"`
	Format     string          `json:"format,omitempty"`
}

// boundsDTO is the caller-declared portion of the constraints: everything
// except the enumeration, which is owned by the parsed values text.
type boundsDTO struct {
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	MinValue  *float64 `json:"minValue,omitempty"`
	MaxValue  *float64 `json:"maxValue,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Format    string   `json:"format,omitempty"`
}

func (b boundsDTO) bounds() attribute.Bounds {
	return attribute.Bounds{
		MinLength: b.MinLength,
		MaxLength: b.MaxLength,
		MinValue:  b.MinValue,
		MaxValue:  b.MaxValue,
		Pattern:   b.Pattern,
		Format:    b.Format,
	}
}

// attributeDTO is the wire form of a definition.
type attributeDTO struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	DisplayName    string         `json:"displayName"`
	Description    string         `json:"description"`
	Categories     []string       `json:"categories"`
	DataType       string         `json:"dataType"`
	Constraints    constraintsDTO `json:"constraints"`
	Tags           []string       `json:"tags"`
	IsSystem       bool           `json:"isSystem"`
	IsCustom       bool           `json:"isCustom"`
	CreatedBy      string         `json:"createdBy"`
	LastModifiedBy string         `json:"lastModifiedBy"`
	Version        int            `json:"version"`
	Active         bool           `json:"active"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func newAttributeDTO(def *attribute.Definition) (attributeDTO, error) {
	constraints := constraintsDTO{
		MinLength: def.Constraints.MinLength,
		MaxLength: def.Constraints.MaxLength,
		MinValue:  def.Constraints.MinValue,
		MaxValue:  def.Constraints.MaxValue,
		Pattern:   def.Constraints.Pattern,
		Format:    def.Constraints.Format,
	}
	if len(def.Constraints.EnumValues) > 0 {
		raw, err := attribute.EncodeValues(def.DataType, def.Constraints.EnumValues)
		if err != nil {
			return attributeDTO{}, oops.
				Code("VALUE_ENCODE_FAILED").
				With("attribute_id", def.ID).
				Wrapf(err, "encode enum values")
		}
		constraints.EnumValues = raw
	}

	categories := make([]string, 0, len(def.Categories))
	for _, c := range def.Categories {
		categories = append(categories, c.String())
	}

	return attributeDTO{
		ID:             def.ID,
		Name:           def.Name,
		DisplayName:    def.DisplayName,
		Description:    def.Description,
		Categories:     categories,
		DataType:       def.DataType.String(),
		Constraints:    constraints,
		Tags:           orEmpty(def.Metadata.Tags),
		IsSystem:       def.Metadata.IsSystem,
		IsCustom:       def.Metadata.IsCustom,
		CreatedBy:      def.Metadata.CreatedBy,
		LastModifiedBy: def.Metadata.LastModifiedBy,
		Version:        def.Metadata.Version,
		Active:         def.Active,
		CreatedAt:      def.CreatedAt,
		UpdatedAt:      def.UpdatedAt,
	}, nil
}

type createRequest struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName"`
	Description string     `json:"description"`
	Categories  []string   `json:"categories"`
	DataType    string     `json:"dataType"`
	Values      string     `json:"values"`
	Constraints *boundsDTO `json:"constraints"`
	Tags        []string   `json:"tags"`
	CreatedBy   string     `json:"createdBy"`
}

func (req createRequest) spec() (attribute.CreateSpec, error) {
	dt, err := attribute.ParseDataType(req.DataType)
	if err != nil {
		return attribute.CreateSpec{}, &attribute.ValidationError{Field: "dataType", Message: err.Error()}
	}
	spec := attribute.CreateSpec{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Categories:  toCategories(req.Categories),
		DataType:    dt,
		Values:      req.Values,
		Tags:        req.Tags,
		CreatedBy:   req.CreatedBy,
	}
	if req.Constraints != nil {
		spec.Bounds = req.Constraints.bounds()
	}
	return spec, nil
}

type updateRequest struct {
	DisplayName     *string    `json:"displayName"`
	Description     *string    `json:"description"`
	Categories      []string   `json:"categories"`
	DataType        *string    `json:"dataType"`
	Values          *string    `json:"values"`
	Constraints     *boundsDTO `json:"constraints"`
	Tags            []string   `json:"tags"`
	Active          *bool      `json:"active"`
	ExpectedVersion int        `json:"expectedVersion"`
	LastModifiedBy  string     `json:"lastModifiedBy"`
}

// patch converts the request to the service patch. Absent fields stay
// nil, meaning unchanged; expectedVersion zero delegates conflict
// handling to the server-side retry.
func (req updateRequest) patch() (attribute.Patch, error) {
	if req.ExpectedVersion < 0 {
		return attribute.Patch{}, &attribute.ValidationError{Field: "expectedVersion", Message: "must not be negative"}
	}
	patch := attribute.Patch{
		DisplayName:    req.DisplayName,
		Description:    req.Description,
		Categories:     toCategories(req.Categories),
		Values:         req.Values,
		Tags:           req.Tags,
		Active:         req.Active,
		LastModifiedBy: req.LastModifiedBy,
	}
	if req.DataType != nil {
		dt, err := attribute.ParseDataType(*req.DataType)
		if err != nil {
			return attribute.Patch{}, &attribute.ValidationError{Field: "dataType", Message: err.Error()}
		}
		patch.DataType = &dt
	}
	if req.Constraints != nil {
		bounds := req.Constraints.bounds()
		patch.Bounds = &bounds
	}
	return patch, nil
}

type deleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type usageDTO struct {
	AttributeID      string `json:"attributeId"`
	IsUsedInPolicies bool   `json:"isUsedInPolicies"`
	EditPolicy       string `json:"editPolicy"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type itemErrorDTO struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// summaryDTO is the wire form of a bulk-delete summary. Buckets are
// always arrays, never null, so callers can index them unconditionally.
type summaryDTO struct {
	Deleted        []string       `json:"deleted"`
	FailedSystem   []string       `json:"failedSystem"`
	FailedInUse    []string       `json:"failedInUse"`
	FailedNotFound []string       `json:"failedNotFound"`
	FailedOther    []itemErrorDTO `json:"failedOther"`
}

func newSummaryDTO(s *attribute.Summary) summaryDTO {
	failedOther := make([]itemErrorDTO, 0, len(s.FailedOther))
	for _, item := range s.FailedOther {
		failedOther = append(failedOther, itemErrorDTO{ID: item.ID, Reason: item.Reason})
	}
	return summaryDTO{
		Deleted:        orEmpty(s.Deleted),
		FailedSystem:   orEmpty(s.FailedSystem),
		FailedInUse:    orEmpty(s.FailedInUse),
		FailedNotFound: orEmpty(s.FailedNotFound),
		FailedOther:    failedOther,
	}
}

// bulkEnvelope is the bulk-delete response. A batch can succeed for some
// ids and fail for others, so the summary is carried either way; on any
// failure the error field holds the dominant classification and details
// list the per-id reasons in bucket order.
type bulkEnvelope struct {
	Success bool       `json:"success"`
	Data    summaryDTO `json:"data"`
	Error   string     `json:"error,omitempty"`
	Details []string   `json:"details,omitempty"`
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	spec, err := req.spec()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	def, err := a.svc.Create(r.Context(), spec)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/attributes/"+url.PathEscape(def.ID))
	a.writeDefinition(w, r, http.StatusCreated, def)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r.URL.Query())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	page, err := a.svc.List(r.Context(), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	items := make([]attributeDTO, 0, len(page.Items))
	for _, def := range page.Items {
		dto, err := newAttributeDTO(def)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		items = append(items, dto)
	}
	a.writePage(w, r, items, pagination{
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
	})
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	def, err := a.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeDefinition(w, r, http.StatusOK, def)
}

func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	def, err := a.svc.Update(r.Context(), r.PathValue("id"), req.ExpectedVersion, patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeDefinition(w, r, http.StatusOK, def)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.svc.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeData(w, r, http.StatusOK, deleteResponse{ID: id, Deleted: true})
}

func (a *API) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		a.writeError(w, r, &attribute.ValidationError{Field: "ids", Message: "must list at least one id"})
		return
	}
	summary, err := a.svc.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	env := bulkEnvelope{
		Success: summary.FailureCount() == 0,
		Data:    newSummaryDTO(summary),
	}
	if !env.Success {
		env.Error = dominantMessage(summary.Dominant())
		env.Details = summaryDetails(summary)
	}
	if err := writeJSON(w, http.StatusOK, env); err != nil {
		a.logWriteFailure(r, err)
	}
}

func (a *API) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := a.svc.GetUsage(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeData(w, r, http.StatusOK, usageDTO{
		AttributeID:      usage.AttributeID,
		IsUsedInPolicies: usage.InUse,
		EditPolicy:       usage.Policy.String(),
	})
}

// writeDefinition renders a definition into the success envelope.
func (a *API) writeDefinition(w http.ResponseWriter, r *http.Request, statusCode int, def *attribute.Definition) {
	dto, err := newAttributeDTO(def)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeData(w, r, statusCode, dto)
}

// decodeJSON decodes a request body, rejecting unknown fields and
// trailing data. Failures surface as validation errors so they map to
// 400 instead of 500.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &attribute.ValidationError{Field: "body", Message: err.Error()}
	}
	if dec.More() {
		return &attribute.ValidationError{Field: "body", Message: "unexpected trailing data"}
	}
	return nil
}

func toCategories(ss []string) []attribute.Category {
	if ss == nil {
		return nil
	}
	categories := make([]attribute.Category, 0, len(ss))
	for _, s := range ss {
		categories = append(categories, attribute.Category(s))
	}
	return categories
}

// listOptionsFromQuery binds the list filters, sort, and paging from the
// query string. Unparseable parameters reject the request rather than
// silently filtering nothing.
func listOptionsFromQuery(q url.Values) (attribute.ListOptions, error) {
	var opts attribute.ListOptions
	if raw := q.Get("dataType"); raw != "" {
		dt, err := attribute.ParseDataType(raw)
		if err != nil {
			return opts, &attribute.ValidationError{Field: "dataType", Message: err.Error()}
		}
		opts.DataType = &dt
	}
	if raw := q.Get("category"); raw != "" {
		c := attribute.Category(raw)
		if c != attribute.CategorySubject && c != attribute.CategoryResource {
			return opts, &attribute.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", raw)}
		}
		opts.Category = &c
	}
	var err error
	if opts.Active, err = queryBool(q, "active"); err != nil {
		return opts, err
	}
	if opts.IsSystem, err = queryBool(q, "isSystem"); err != nil {
		return opts, err
	}
	opts.Tag = q.Get("tag")
	opts.NameContains = q.Get("nameContains")

	if raw := q.Get("sortBy"); raw != "" {
		field := attribute.SortField(raw)
		if !field.Valid() {
			return opts, &attribute.ValidationError{Field: "sortBy", Message: "must be name, created_at, or updated_at"}
		}
		opts.SortBy = field
	}
	sortDesc, err := queryBool(q, "sortDesc")
	if err != nil {
		return opts, err
	}
	if sortDesc != nil {
		opts.SortDesc = *sortDesc
	}

	if opts.Page, err = queryInt(q, "page"); err != nil {
		return opts, err
	}
	if opts.PerPage, err = queryInt(q, "perPage"); err != nil {
		return opts, err
	}
	return opts, nil
}

// queryBool parses an optional boolean query parameter. Absent means nil.
func queryBool(q url.Values, key string) (*bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &attribute.ValidationError{Field: key, Message: "must be a boolean"}
	}
	return &b, nil
}

// queryInt parses an optional integer query parameter. Absent means
// zero, which the service normalizes to its default.
func queryInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &attribute.ValidationError{Field: key, Message: "must be an integer"}
	}
	return n, nil
}

// orEmpty substitutes an empty slice for nil so the wire form is always
// an array, never null.
func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// dominantMessage renders the headline for a bulk delete with failures.
func dominantMessage(outcome attribute.BulkOutcome) string {
	switch outcome {
	case attribute.BulkOutcomeForbidden:
		return "system attributes cannot be deleted"
	case attribute.BulkOutcomeConflict:
		return "attributes referenced by policies cannot be deleted"
	case attribute.BulkOutcomeNotFound:
		return "one or more attributes were not found"
	case attribute.BulkOutcomeOther:
		return "one or more attributes could not be deleted"
	case attribute.BulkOutcomeDeleted:
		return ""
	}
	return ""
}

// summaryDetails flattens per-id failures into the details list, in
// dominance bucket order with submission order inside each bucket.
func summaryDetails(s *attribute.Summary) []string {
	details := make([]string, 0, s.FailureCount())
	for _, id := range s.FailedSystem {
		details = append(details, fmt.Sprintf("%s: %s", id, attribute.ErrSystemProtected))
	}
	for _, id := range s.FailedInUse {
		details = append(details, fmt.Sprintf("%s: %s", id, attribute.ErrAttributeInUse))
	}
	for _, id := range s.FailedNotFound {
		details = append(details, fmt.Sprintf("%s: %s", id, attribute.ErrNotFound))
	}
	for _, item := range s.FailedOther {
		details = append(details, fmt.Sprintf("%s: %s", item.ID, item.Reason))
	}
	return details
}
