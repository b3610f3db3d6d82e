// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

// Package httpapi binds the attribute service to its JSON transport.
// Every response uses one of two envelope shapes: successes wrap their
// payload in {"success": true, "data": ...} with an optional pagination
// block, failures carry {"success": false, "error": ...} with optional
// per-item details. Bulk deletes blend the two because a single call can
// succeed for some ids and fail for others.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/attrdesk/attrdesk/internal/attribute"
	"github.com/attrdesk/attrdesk/pkg/errutil"
)

// pagination is the paging block of a list response.
type pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// successEnvelope wraps every successful response body.
type successEnvelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data"`
	Pagination *pagination `json:"pagination,omitempty"`
}

// errorEnvelope wraps every failed response body.
type errorEnvelope struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// writeJSON writes a JSON body with the given status code. Returns an
// error if encoding fails, which the caller logs; headers are already on
// the wire at that point.
func writeJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode JSON response: %w", err)
	}
	return nil
}

// writeData writes a success envelope around data.
func (a *API) writeData(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	env := successEnvelope{Success: true, Data: data}
	if err := writeJSON(w, statusCode, env); err != nil {
		a.logWriteFailure(r, err)
	}
}

// writePage writes a success envelope with the pagination block filled in.
func (a *API) writePage(w http.ResponseWriter, r *http.Request, data any, p pagination) {
	env := successEnvelope{Success: true, Data: data, Pagination: &p}
	if err := writeJSON(w, http.StatusOK, env); err != nil {
		a.logWriteFailure(r, err)
	}
}

// writeError maps err to its transport status and writes the error
// envelope. Unclassified errors respond with a generic message and log
// the real error; domain errors carry their own text to the caller.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, message := classifyError(err)
	if statusCode == http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), a.log.With(
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
		), "request failed", err)
	}
	env := errorEnvelope{Success: false, Error: message}
	if werr := writeJSON(w, statusCode, env); werr != nil {
		a.logWriteFailure(r, werr)
	}
}

func (a *API) logWriteFailure(r *http.Request, err error) {
	a.log.ErrorContext(r.Context(), "failed to write response",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
}

// classifyError maps a domain error to its HTTP status and caller-facing
// message. Sentinels render their canonical text rather than the wrapped
// chain; request-shape and constraint errors render their own messages.
// Anything unrecognized is an internal failure and its text never leaks.
func classifyError(err error) (int, string) {
	var (
		validationErr *attribute.ValidationError
		parseErr      *attribute.ParseError
		violation     *attribute.ConstraintViolation
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, parseErr.Error()
	case errors.As(err, &violation):
		if violation.IsEditRuleViolation() {
			return http.StatusConflict, violation.Error()
		}
		return http.StatusBadRequest, violation.Error()
	case errors.Is(err, attribute.ErrDuplicateName):
		return http.StatusConflict, attribute.ErrDuplicateName.Error()
	case errors.Is(err, attribute.ErrVersionConflict):
		return http.StatusConflict, attribute.ErrVersionConflict.Error()
	case errors.Is(err, attribute.ErrAttributeInUse):
		return http.StatusConflict, attribute.ErrAttributeInUse.Error()
	case errors.Is(err, attribute.ErrSystemProtected):
		return http.StatusForbidden, attribute.ErrSystemProtected.Error()
	case errors.Is(err, attribute.ErrNotFound):
		return http.StatusNotFound, attribute.ErrNotFound.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}
