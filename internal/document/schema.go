package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchema returns the DocumentStructure schema as a generic map.
// Refinement backends are asked to produce JSON matching it.
func JSONSchema() map[string]any {
	num := map[string]any{"type": "number"}
	position := map[string]any{
		"type":     "object",
		"required": []string{"x", "y", "width", "height"},
		"properties": map[string]any{
			"x": num, "y": num, "width": num, "height": num,
		},
	}
	cell := map[string]any{
		"type":       "object",
		"required":   []string{"text"},
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
	}
	element := map[string]any{
		"type":     "object",
		"required": []string{"type", "content"},
		"properties": map[string]any{
			"type": map[string]any{
				"type": "string",
				"enum": []string{"heading", "paragraph", "table", "list", "image", "formula"},
			},
			"content":  map[string]any{"type": "string"},
			"position": position,
			"style":    map[string]any{"type": "object"},
			"level":    map[string]any{"type": "integer", "minimum": 0},
			"table": map[string]any{
				"type":     "object",
				"required": []string{"rows"},
				"properties": map[string]any{
					"rows": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "array", "items": cell},
					},
				},
			},
		},
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"elements", "metadata"},
		"properties": map[string]any{
			"elements": map[string]any{"type": "array", "items": element},
			"metadata": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pageCount":   map[string]any{"type": "integer"},
					"orientation": map[string]any{"type": "string", "enum": []string{"portrait", "landscape"}},
					"dimensions": map[string]any{
						"type":       "object",
						"properties": map[string]any{"width": num, "height": num},
					},
				},
			},
		},
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(JSONSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("structure.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("structure.json")
	})
	return compiledSchema, schemaErr
}

// Validate checks raw JSON against the DocumentStructure schema.
func Validate(data []byte) error {
	schema, err := compiled()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
