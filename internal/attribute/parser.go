// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseValues converts raw permitted-values text into an ordered,
// deduplicated set of typed values for the given data type.
//
// Scalar types read the whole input as one comma-separated list: tokens
// are trimmed, empty tokens dropped, and each remaining token parsed
// independently. Array input is one JSON array literal per line, with
// every member flattened into the result. Object input is one JSON
// object literal per line.
//
// Parsing is fail-fast: the first bad token or line aborts the whole
// parse with a *ParseError and no partial result survives. Duplicate
// members are dropped, keeping the first occurrence.
func ParseValues(dt DataType, raw string) ([]TypedValue, error) {
	var (
		values []TypedValue
		err    error
	)
	switch dt {
	case DataTypeString, DataTypeNumber, DataTypeBoolean, DataTypeDate:
		values, err = parseScalarList(dt, raw)
	case DataTypeArray:
		values, err = parseArrayLines(raw)
	case DataTypeObject:
		values, err = parseObjectLines(raw)
	default:
		return nil, fmt.Errorf("unknown data type %s", dt)
	}
	if err != nil {
		return nil, err
	}
	return dedupeValues(values), nil
}

// FormatValues renders a value set back into the raw text form that
// ParseValues accepts. Parsing the result yields an equal value set.
func FormatValues(dt DataType, values []TypedValue) (string, error) {
	for i, v := range values {
		if err := checkKindForType(dt, v); err != nil {
			return "", fmt.Errorf("value %d: %w", i+1, err)
		}
	}
	switch dt {
	case DataTypeString, DataTypeNumber, DataTypeBoolean, DataTypeDate:
		return joinValues(values), nil
	case DataTypeArray:
		members := make([]any, len(values))
		for i, v := range values {
			members[i] = v.toJSON()
		}
		b, err := json.Marshal(members)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case DataTypeObject:
		lines := make([]string, len(values))
		for i, v := range values {
			b, err := json.Marshal(v.toJSON())
			if err != nil {
				return "", err
			}
			lines[i] = string(b)
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("unknown data type %s", dt)
}

func parseScalarList(dt DataType, raw string) ([]TypedValue, error) {
	var values []TypedValue
	pos := 0
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		pos++
		v, err := parseScalarToken(dt, tok)
		if err != nil {
			return nil, &ParseError{Position: pos, Token: tok, Reason: err.Error()}
		}
		values = append(values, v)
	}
	return values, nil
}

func parseScalarToken(dt DataType, tok string) (TypedValue, error) {
	switch dt {
	case DataTypeString:
		return Str(tok), nil
	case DataTypeNumber:
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return TypedValue{}, errors.New("not a number")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return TypedValue{}, errors.New("not a finite number")
		}
		return Num(f), nil
	case DataTypeBoolean:
		switch {
		case strings.EqualFold(tok, "true"):
			return Bool(true), nil
		case strings.EqualFold(tok, "false"):
			return Bool(false), nil
		}
		return TypedValue{}, errors.New("not a boolean, want true or false")
	case DataTypeDate:
		t, err := time.Parse(time.DateOnly, tok)
		if err != nil {
			return TypedValue{}, errors.New("not a calendar date, want YYYY-MM-DD")
		}
		return Date(t), nil
	}
	return TypedValue{}, fmt.Errorf("data type %s is not scalar", dt)
}

func parseArrayLines(raw string) ([]TypedValue, error) {
	var values []TypedValue
	for i, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		doc, perr := parseJSONLine(i+1, trimmed)
		if perr != nil {
			return nil, perr
		}
		arr, ok := doc.([]any)
		if !ok {
			return nil, &ParseError{Line: i + 1, Token: trimmed, Reason: "not a JSON array literal"}
		}
		for _, m := range arr {
			tv, err := fromJSON(m)
			if err != nil {
				return nil, &ParseError{Line: i + 1, Token: trimmed, Reason: err.Error()}
			}
			values = append(values, tv)
		}
	}
	return values, nil
}

func parseObjectLines(raw string) ([]TypedValue, error) {
	var values []TypedValue
	for i, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		doc, perr := parseJSONLine(i+1, trimmed)
		if perr != nil {
			return nil, perr
		}
		if _, ok := doc.(map[string]any); !ok {
			return nil, &ParseError{Line: i + 1, Token: trimmed, Reason: "not a JSON object literal"}
		}
		tv, err := fromJSON(doc)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Token: trimmed, Reason: err.Error()}
		}
		values = append(values, tv)
	}
	return values, nil
}

// parseJSONLine decodes one trimmed input line. Decoding into any rather
// than a concrete slice or map keeps "null" from slipping through as an
// empty collection.
func parseJSONLine(lineNo int, trimmed string) (any, *ParseError) {
	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, &ParseError{Line: lineNo, Token: trimmed, Reason: "not valid JSON"}
	}
	if doc == nil {
		return nil, &ParseError{Line: lineNo, Token: trimmed, Reason: "null is not a permitted value"}
	}
	return doc, nil
}
