// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID returns the schema $id published for catalog files.
func SchemaID() string {
	return "https://attrdesk.dev/schemas/catalog.schema.json"
}

// GenerateSchema generates the JSON Schema for catalog files from the
// Catalog struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Catalog{})
	schema.ID = jsonschema.ID(SchemaID())
	schema.Title = "AttrDesk Attribute Catalog"
	schema.Description = "Schema for attrdesk system-attribute catalog files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal catalog schema: %w", err)
	}
	return data, nil
}

// compiledSchema compiles the generated schema once per process.
var compiledSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, fmt.Errorf("parse catalog schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("catalog.schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("add catalog schema resource: %w", err)
	}
	sch, err := c.Compile("catalog.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	return sch, nil
})

// ValidateSchema validates raw catalog YAML against the generated JSON
// Schema. It reports structural problems only; domain rules run in
// Parse.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return errors.New("catalog data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}
	return nil
}

// toJSONTypes converts YAML-parsed data into the value kinds the schema
// validator accepts. yaml.v3 already produces map[string]any, but leaves
// timestamps and similar scalars as their native Go types, which a JSON
// Schema has no vocabulary for.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = toJSONTypes(v)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = toJSONTypes(v)
		}
		return result
	case string, bool, int, int64, float64, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var result any
			if err := json.Unmarshal(b, &result); err == nil {
				return result
			}
		}
		return val
	}
}
